package objstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	putAttempts    = 3
	putBackoffBase = 500 * time.Millisecond
)

// PutWithRetry uploads with exponential backoff, up to three attempts. A
// store write that keeps failing surfaces the last error; the caller decides
// whether that fails one target or the whole run.
func PutWithRetry(ctx context.Context, store Store, key string, data []byte, log zerolog.Logger) error {
	var lastErr error
	backoff := putBackoffBase
	for attempt := 0; attempt < putAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		if lastErr = store.Put(ctx, key, data); lastErr == nil {
			return nil
		}
		log.Warn().Err(lastErr).Str("key", key).Int("attempt", attempt+1).
			Msg("Object-store write failed")
	}
	return fmt.Errorf("upload %s after %d attempts: %w", key, putAttempts, lastErr)
}
