package sink

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	apperrors "github.com/skillsenselab/dispatch/errors"
	"github.com/skillsenselab/dispatch/httpclient"
	"github.com/skillsenselab/dispatch/httpclient/rest"
	"github.com/skillsenselab/dispatch/logger"
	"github.com/skillsenselab/dispatch/util"
)

// IssueTracker files results as issues via the GitHub Issues API. Transport
// failures are retried with the adapter's bounded backoff before File gives
// up and returns SinkError.
type IssueTracker struct {
	rest *rest.Client
	cfg  Config
	log  *logger.Logger
}

var _ Filer = (*IssueTracker)(nil)

// NewIssueTracker creates the GitHub-backed Filer.
func NewIssueTracker(cfg Config, log *logger.Logger) (*IssueTracker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	token := cfg.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	hc := httpclient.Config{
		Name:    "issue-tracker",
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Headers: map[string]string{
			"Accept":               "application/vnd.github+json",
			"X-GitHub-Api-Version": "2022-11-28",
		},
		Retry:          httpclient.DefaultRetryConfig(),
		CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("issue-tracker"),
	}
	if token != "" {
		hc.Auth = httpclient.BearerAuth(token)
	}

	rc, err := rest.New(hc)
	if err != nil {
		return nil, fmt.Errorf("sink: build client: %w", err)
	}

	return &IssueTracker{
		rest: rc,
		cfg:  cfg,
		log:  log.WithComponent("sink"),
	}, nil
}

// Close releases the underlying HTTP resources.
func (s *IssueTracker) Close(ctx context.Context) error {
	return s.rest.Close(ctx)
}

type issueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

type issueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// File posts one issue with a title derived from the workload name and a
// body derived from the report payload.
func (s *IssueTracker) File(ctx context.Context, result Result) error {
	correlation := uuid.New().String()

	body := fmt.Sprintf(
		"Result reported by `%s` at %s.\n\n```\n%s\n```\n\n_correlation: %s_\n",
		result.Client,
		result.ReportedAt.UTC().Format("2006-01-02T15:04:05Z"),
		result.Payload,
		correlation,
	)

	req := issueRequest{
		Title:  "dispatch result: " + util.Truncate(result.Workload, 120),
		Body:   body,
		Labels: s.cfg.Labels,
	}

	path := fmt.Sprintf("/repos/%s/%s/issues", s.cfg.Owner, s.cfg.Repo)
	resp, err := rest.Post[issueResponse](ctx, s.rest, path, req)
	if err != nil {
		return apperrors.SinkError(result.Workload, err)
	}

	s.log.Info("result filed", map[string]interface{}{
		logger.FieldWorkload: result.Workload,
		"issue":              resp.Data.Number,
		"correlation_id":     correlation,
	})
	return nil
}
