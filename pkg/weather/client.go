// Package weather fetches hourly precipitation, air temperature and daily
// sun times from the Open-Meteo forecast API.
package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lureiq/internal/resilience"
)

const defaultBaseURL = "https://api.open-meteo.com/v1"

// Client fetches forecasts for a coordinate.
type Client interface {
	Forecast(ctx context.Context, lat, lon float64) (*Forecast, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithBaseURL overrides the API root (default https://api.open-meteo.com/v1).
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPastDays sets how many days of history to request. The trailing 72h
// water-temperature estimate needs at least 3.
func WithPastDays(n int) Option {
	return func(c *client) {
		if n >= 0 {
			c.pastDays = n
		}
	}
}

// WithForecastDays sets how many days ahead to request.
func WithForecastDays(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.forecastDays = n
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) { c.retry = cfg }
}

type client struct {
	httpClient   *http.Client
	baseURL      string
	limiter      *rate.Limiter
	pastDays     int
	forecastDays int
	retry        resilience.RetryConfig
}

// NewClient creates an Open-Meteo client.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		baseURL:      defaultBaseURL,
		limiter:      rate.NewLimiter(5, 5),
		pastDays:     3,
		forecastDays: 1,
		retry:        resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("open-meteo", "forecast")
	return c
}

// Forecast fetches and parses the forecast for lat/lon in the location's
// local time zone.
func (c *client) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Forecast, error) {
		return c.fetch(ctx, lat, lon)
	})
}

func (c *client) requestURL(lat, lon float64) string {
	params := url.Values{
		"latitude":      {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(lon, 'f', -1, 64)},
		"hourly":        {"precipitation,temperature_2m"},
		"daily":         {"sunrise,sunset"},
		"timezone":      {"auto"},
		"past_days":     {strconv.Itoa(c.pastDays)},
		"forecast_days": {strconv.Itoa(c.forecastDays)},
	}
	return c.baseURL + "/forecast?" + params.Encode()
}

func (c *client) fetch(ctx context.Context, lat, lon float64) (*Forecast, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "weather: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(lat, lon), nil)
	if err != nil {
		return nil, eris.Wrap(err, "weather: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "weather: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("weather", resp); err != nil {
		return nil, err
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, eris.Wrap(err, "weather: parse response")
	}
	return body.toForecast()
}
