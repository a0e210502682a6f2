package vendorapi

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// Attempt caps per failure category.
const (
	rateLimitMaxAttempts = 10
	backoffBase          = time.Second
)

// parseRetryAfter decodes a Retry-After header in delta-seconds form.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// doWithRetry runs fetch under the category-aware retry policy:
//
//   - 404: never retried, surfaces as ErrNoData
//   - 429: up to 10 attempts, honoring Retry-After when present, otherwise
//     2^attempt seconds
//   - network errors and other 4xx/5xx: exponential backoff with ±10 %
//     jitter, capped at MaxDelay, MaxRetries attempts
//
// Context cancellation stops the loop immediately.
func (c *Client) doWithRetry(ctx context.Context, url string) (payload, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		p, err := c.get(ctx, url)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return payload{}, err
		}
		lastErr = err

		var delay time.Duration
		var se *StatusError
		switch {
		case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
			return payload{}, ErrNoData
		case errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests:
			if attempt+1 >= rateLimitMaxAttempts {
				return payload{}, lastErr
			}
			if se.RetryAfter > 0 {
				delay = se.RetryAfter
			} else {
				delay = time.Duration(math.Pow(2, float64(attempt))) * time.Second
			}
		default:
			if attempt+1 >= c.cfg.MaxRetries {
				return payload{}, lastErr
			}
			delay = c.backoff(attempt)
		}

		if c.cfg.OnRetry != nil {
			c.cfg.OnRetry()
		}
		c.log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Str("url", url).
			Msg("Retrying vendor request")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return payload{}, ctx.Err()
		}
	}
}

// backoff is base*2^attempt with ±10 % jitter, capped at MaxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(float64(backoffBase) * math.Pow(2, float64(attempt)))
	if d > c.cfg.MaxDelay {
		d = c.cfg.MaxDelay
	}
	jitter := 1 + (rand.Float64()*0.2 - 0.1)
	return time.Duration(float64(d) * jitter)
}
