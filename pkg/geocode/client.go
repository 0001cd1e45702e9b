// Package geocode resolves US ZIP codes to coordinates via zippopotam.us.
package geocode

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lureiq/internal/resilience"
)

const defaultBaseURL = "https://api.zippopotam.us"

// ErrInvalidZip is returned for input that is not a 5-digit US ZIP code.
var ErrInvalidZip = eris.New("geocode: invalid zip")

// Client looks up ZIP code centroids.
type Client interface {
	// LookupZip returns Matched=false (and no error) when the ZIP is unknown.
	LookupZip(ctx context.Context, zip string) (*Result, error)
}

// Result holds the lookup output for a ZIP code.
type Result struct {
	Zip       string  `json:"zip"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Place     string  `json:"place,omitempty"`
	State     string  `json:"state,omitempty"`
	Source    string  `json:"source"` // "zippopotam" or "cache"
	Matched   bool    `json:"matched"`
}

// Cache persists lookup results between runs. store.KV satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL points the client at a different zippopotam host.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit sets the requests-per-second limit. Non-positive keeps
// the default.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(g *geocoder) {
		g.cache = c
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *geocoder) {
		g.retry = cfg
	}
}

type geocoder struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	cache      Cache
	retry      resilience.RetryConfig
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(2, 2),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.retry.OnRetry = resilience.RetryLogger("zippopotam", "lookup_zip")
	return g
}

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// NormalizeZip trims whitespace and validates the 5-digit format.
func NormalizeZip(zip string) (string, error) {
	zip = strings.TrimSpace(zip)
	if !zipPattern.MatchString(zip) {
		return "", eris.Wrapf(ErrInvalidZip, "%q", zip)
	}
	return zip, nil
}

// LookupZip checks the cache, then queries zippopotam.us.
func (g *geocoder) LookupZip(ctx context.Context, zip string) (*Result, error) {
	zip, err := NormalizeZip(zip)
	if err != nil {
		return nil, err
	}

	key := cacheKey(zip)
	if r := g.checkCache(ctx, key); r != nil {
		return r, nil
	}

	result, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*Result, error) {
		return g.lookupZippopotam(ctx, zip)
	})
	if err != nil {
		return nil, err
	}

	g.storeCache(ctx, key, result)
	return result, nil
}
