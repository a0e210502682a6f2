package vendorapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrNoData marks a target the vendor has no archive file for (HTTP 404).
// It is an empty result, not a failure.
var ErrNoData = errors.New("vendor has no data for target")

// StatusError is a non-2xx vendor response.
type StatusError struct {
	StatusCode int
	Status     string
	RetryAfter time.Duration // from the Retry-After header, 0 when absent
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vendor responded %s", e.Status)
}

// Config holds the vendor client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int           // transient and generic HTTP failures
	MaxDelay   time.Duration // backoff cap
	HostRPS    float64       // politeness limit toward the vendor host
	HostBurst  int

	// OnRetry is invoked once per retried request, for counters.
	OnRetry func()
}

// DefaultConfig returns the settings used when the options are not
// configured.
func DefaultConfig() Config {
	return Config{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		MaxDelay:   60 * time.Second,
		HostRPS:    50,
		HostBurst:  25,
	}
}

// Client is the process-wide vendor API client: one pooled HTTP client, one
// politeness limiter, one circuit breaker. It is constructed once per run,
// injected everywhere, and never mutated afterwards.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewClient builds the shared vendor client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.HostRPS <= 0 {
		cfg.HostRPS = def.HostRPS
	}
	if cfg.HostBurst <= 0 {
		cfg.HostBurst = def.HostBurst
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "vendor-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	})
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.HostRPS), cfg.HostBurst),
		breaker: breaker,
		log:     log.With().Str("component", "vendor_api").Logger(),
	}
}

type payload struct {
	data     []byte
	encoding string
}

// get performs one rate-limited, breaker-guarded request. Non-2xx statuses
// come back as *StatusError with the body drained so the connection can be
// reused.
func (c *Client) get(ctx context.Context, url string) (payload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return payload{}, err
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, &StatusError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		return payload{data: data, encoding: resp.Header.Get("Content-Encoding")}, nil
	})
	if err != nil {
		return payload{}, err
	}
	return out.(payload), nil
}
