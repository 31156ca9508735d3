// ABOUTME: Shared Open-Meteo HTTP client: timeout, rate limiter, circuit breaker, retries.
// ABOUTME: Geocoder and Forecaster are thin service wrappers built on top of it.

package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/2389/weather-travel/internal/toolerr"
)

const (
	// DefaultGeocodingURL is the Open-Meteo geocoding search endpoint.
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	// DefaultForecastURL is the Open-Meteo forecast endpoint.
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	// DefaultTimeout bounds every upstream attempt.
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent identifies us to Open-Meteo.
	DefaultUserAgent = "weather-travel/1.0"

	maxResponseBody = 2 << 20
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BreakerConfig configures the optional circuit breaker.
type BreakerConfig struct {
	Enabled bool
	// ConsecutiveFailures trips the breaker. Only upstream and rate-limit
	// failures count.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// Config holds client configuration. Zero values select defaults.
type Config struct {
	GeocodingURL  string
	ForecastURL   string
	UserAgent     string
	Timeout       time.Duration
	Backoff       time.Duration
	MaxRetryAfter time.Duration
	// RateLimit is requests per second across both services; 0 disables limiting.
	RateLimit float64
	RateBurst int
	Breaker   BreakerConfig
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient Doer
	// Sleep overrides the backoff wait (tests).
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Client performs upstream calls under the shared resilience policy.
type Client struct {
	http         Doer
	geocodingURL string
	forecastURL  string
	userAgent    string
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	retry        RetryPolicy
	logger       *slog.Logger
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "openmeteo")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		http:         httpClient,
		geocodingURL: orDefault(cfg.GeocodingURL, DefaultGeocodingURL),
		forecastURL:  orDefault(cfg.ForecastURL, DefaultForecastURL),
		userAgent:    orDefault(cfg.UserAgent, DefaultUserAgent),
		retry: RetryPolicy{
			Backoff:       cfg.Backoff,
			MaxRetryAfter: cfg.MaxRetryAfter,
			Sleep:         cfg.Sleep,
			Logger:        logger,
		},
		logger: logger,
	}
	if c.retry.Backoff <= 0 {
		c.retry.Backoff = DefaultBackoff
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(cfg.Breaker, logger)
	}

	return c
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Caller mistakes (bad city, bad params) say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			// A caller that hung up is not an upstream fault.
			if errors.Is(err, context.Canceled) {
				return true
			}
			switch toolerr.KindOf(err) {
			case toolerr.Upstream, toolerr.RateLimited:
				return false
			}
			return true
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// getJSON performs a GET with the resilience policy and decodes the 2xx body into out.
func (c *Client) getJSON(ctx context.Context, service, endpoint string, query url.Values, out any) error {
	reqURL := endpoint + "?" + query.Encode()

	call := func(ctx context.Context) (*http.Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}

	start := time.Now()
	resp, err := c.execute(ctx, service, call)
	if err != nil {
		c.logger.Debug("upstream call failed",
			"service", service,
			"duration", time.Since(start),
			"error", err,
		)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return toolerr.Wrap(toolerr.Upstream, err, "%s: reading response body", service)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return toolerr.Wrap(toolerr.Upstream, err, "%s returned invalid JSON", service)
	}

	c.logger.Debug("upstream call complete",
		"service", service,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return nil
}

// execute runs the retried call, inside the circuit breaker when one is configured.
func (c *Client) execute(ctx context.Context, service string, call Caller) (*http.Response, error) {
	if c.breaker == nil {
		return c.retry.Do(ctx, service, call)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.retry.Do(ctx, service, call)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, toolerr.Wrap(toolerr.Upstream, err, "%s temporarily unavailable", service)
		}
		return nil, err
	}
	resp, ok := result.(*http.Response)
	if !ok {
		return nil, toolerr.New(toolerr.Upstream, "%s: unexpected result from circuit breaker", service)
	}
	return resp, nil
}

// formatFloat formats a coordinate without trailing zeros.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
