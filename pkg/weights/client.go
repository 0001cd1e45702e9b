// Package weights fetches the optional remote lure weight overrides.
package weights

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Document is the remote override format.
type Document struct {
	Weights map[string]float64 `json:"weights"`
}

// Option configures Fetch.
type Option func(*fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *fetcher) { f.httpClient = hc }
}

type fetcher struct {
	httpClient *http.Client
}

// Fetch downloads the override map from url. Any non-200 response or a
// document without a weights object is an error; callers treat errors as
// "no overrides".
func Fetch(ctx context.Context, url string, opts ...Option) (map[string]float64, error) {
	f := &fetcher{httpClient: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "weights: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "weights: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("weights: unexpected status %d", resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "weights: parse response")
	}
	if doc.Weights == nil {
		return nil, eris.New("weights: response has no weights object")
	}
	return doc.Weights, nil
}
