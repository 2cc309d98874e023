// Package sink consumes reported workload results and produces the external
// side effect: filing an issue on the configured tracker. Filing happens off
// the beacon request path; the beacon response returns as soon as the
// Reported state is recorded.
package sink

import (
	"context"
	"fmt"
	"time"
)

// Result is one reported workload outcome handed to a Filer.
type Result struct {
	// Workload is the asset name the result belongs to.
	Workload string

	// Client is the reporting client's network address.
	Client string

	// Payload is the opaque report body forwarded verbatim.
	Payload string

	// ReportedAt is when the Reported transition was recorded.
	ReportedAt time.Time
}

// Filer files one workload result with an external tracker. Implementations
// own their retry policy: by the time File returns an error, retries are
// exhausted and the workload is marked Failed. The core never re-queues.
type Filer interface {
	// File records the result externally. Invoked exactly once per
	// reported workload.
	File(ctx context.Context, result Result) error
}

// Config holds result sink configuration.
type Config struct {
	// Owner and Repo name the tracker repository issues are filed under.
	Owner string `mapstructure:"owner"`
	Repo  string `mapstructure:"repo"`

	// BaseURL is the tracker API root. Defaults to the public GitHub API.
	BaseURL string `mapstructure:"base_url"`

	// Token authenticates API calls. When empty the ambient GITHUB_TOKEN
	// environment variable is used.
	Token string `mapstructure:"-"`

	// Labels are attached to every filed issue.
	Labels []string `mapstructure:"labels"`

	// Timeout bounds a single filing request.
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxConcurrent bounds in-flight filings.
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.github.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("sink: owner is required")
	}
	if c.Repo == "" {
		return fmt.Errorf("sink: repo is required")
	}
	return nil
}
