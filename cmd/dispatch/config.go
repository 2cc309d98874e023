package main

import (
	"github.com/skillsenselab/dispatch/config"
	"github.com/skillsenselab/dispatch/discovery"
	"github.com/skillsenselab/dispatch/release"
	"github.com/skillsenselab/dispatch/server"
	"github.com/skillsenselab/dispatch/sink"
	"github.com/skillsenselab/dispatch/workload"
)

// dispatchConfig is the root configuration, layered from config.yml, .env,
// and environment variables. The upstream coordinates (owner/repo/tag and
// asset filters) come from the command line, not from here.
type dispatchConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server    server.Config    `yaml:"server" mapstructure:"server"`
	Catalog   workload.Config  `yaml:"catalog" mapstructure:"catalog"`
	Release   release.Config   `yaml:"release" mapstructure:"release"`
	Sink      sink.Config      `yaml:"sink" mapstructure:"sink"`
	Discovery discovery.Config `yaml:"discovery" mapstructure:"discovery"`
}

// ApplyDefaults fills in service-level defaults and cascades to sections.
func (c *dispatchConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "dispatch"
	}
	c.ServiceConfig.ApplyDefaults()

	c.Server.ApplyDefaults()
	c.Catalog.ApplyDefaults()
	c.Release.ApplyDefaults()

	// The advertised boot service rides the HTTP server's port.
	if c.Discovery.Provider == "" {
		c.Discovery.Provider = "mdns"
	}
	if c.Discovery.ServiceName == "" {
		c.Discovery.ServiceName = "dispatch-boot"
	}
	if c.Discovery.ServicePort == 0 {
		c.Discovery.ServicePort = c.Server.Port
	}
	c.Discovery.ApplyDefaults()
}

// Validate checks the configuration sections. The sink section is validated
// later, after CLI flags have filled in its repository coordinates.
func (c *dispatchConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if err := c.Release.Validate(); err != nil {
		return err
	}
	return c.Discovery.Validate()
}
