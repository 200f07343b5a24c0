package media

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// Client asks a remote suggestion service and falls back to a local
// source when the service fails.
type Client struct {
	http     *resty.Client
	fallback Suggester
}

// NewClient creates a Client for the service at baseURL. fallback may be nil.
func NewClient(baseURL string, timeout time.Duration, fallback Suggester) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		fallback: fallback,
	}
}

// Suggest calls GET /suggest?kind=<kind>.
func (c *Client) Suggest(ctx context.Context, kind Kind) (Suggestion, error) {
	s, err := c.fetch(ctx, kind)
	if err == nil {
		return s, nil
	}
	if c.fallback == nil {
		return Suggestion{}, err
	}
	log.WithError(err).WithField("kind", kind).Warn("media: remote lookup failed, using fallback")
	return c.fallback.Suggest(ctx, kind)
}

func (c *Client) fetch(ctx context.Context, kind Kind) (Suggestion, error) {
	var s Suggestion
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("kind", string(kind)).
		SetResult(&s).
		Get("/suggest")
	if err != nil {
		return Suggestion{}, fmt.Errorf("media: request: %w", err)
	}
	if resp.IsError() {
		return Suggestion{}, fmt.Errorf("media: unexpected status %d", resp.StatusCode())
	}
	if s.Title == "" {
		return Suggestion{}, fmt.Errorf("media: empty suggestion for %q", kind)
	}
	s.Kind = kind
	return s, nil
}
