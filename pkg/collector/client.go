// Package collector uploads batches of feedback records to the remote
// collection endpoint.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/resilience"
)

// Batch is the request body.
type Batch struct {
	Records []model.FeedbackRecord `json:"records"`
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends Authorization: Bearer <token>.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// Client posts feedback batches.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewClient creates a collector client for url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends all records in one request. Any non-2xx response is an
// error; 429 and 5xx are marked transient.
func (c *Client) Upload(ctx context.Context, records []model.FeedbackRecord) error {
	body, err := json.Marshal(Batch{Records: records})
	if err != nil {
		return eris.Wrap(err, "collector: marshal batch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "collector: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "collector: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("collector", resp); err != nil {
		return err
	}

	zap.L().Debug("collector: uploaded batch", zap.Int("records", len(records)))
	return nil
}
