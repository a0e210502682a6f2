package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// DailyBucket is a token bucket sized for a per-worker daily request budget:
// capacity tokens refilled continuously over the refill period (one day by
// default). Refill is lazy: tokens are minted on acquire from the elapsed
// time, and the refill anchor advances proportionally so fractional progress
// is never lost. All mutation happens inside Acquire under the mutex; the
// sleep never holds it.
type DailyBucket struct {
	mu         sync.Mutex
	capacity   int64
	period     time.Duration
	tokens     int64
	lastRefill time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRefillPeriod is the refill horizon for the per-VM request budget.
const DefaultRefillPeriod = 24 * time.Hour

// NewDailyBucket builds a full bucket.
func NewDailyBucket(capacity int64, period time.Duration) (*DailyBucket, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("bucket capacity must be positive, got %d", capacity)
	}
	if period <= 0 {
		return nil, fmt.Errorf("refill period must be positive, got %s", period)
	}
	b := &DailyBucket{
		capacity: capacity,
		period:   period,
		tokens:   capacity,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	b.lastRefill = b.now()
	return b, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Acquire takes one token, sleeping until the refill makes one available.
// It returns early only when the context is cancelled.
func (b *DailyBucket) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refillLocked()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := b.tokenInterval()
		b.mu.Unlock()

		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Tokens reports the currently available tokens after a lazy refill.
func (b *DailyBucket) Tokens() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}

// tokenInterval is the time one token takes to mint: (needed - available) is
// always 1 here because Acquire takes single tokens.
func (b *DailyBucket) tokenInterval() time.Duration {
	return time.Duration(float64(b.period) / float64(b.capacity))
}

// refillLocked mints tokens earned since lastRefill. A full period elapsed
// resets to capacity; otherwise floor(elapsed/period*capacity) tokens are
// added, capped at capacity, and the anchor advances by exactly the time
// those tokens took to mint.
func (b *DailyBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	if elapsed >= b.period {
		b.tokens = b.capacity
		b.lastRefill = now
		return
	}
	minted := int64(math.Floor(float64(elapsed) / float64(b.period) * float64(b.capacity)))
	if minted <= 0 {
		return
	}
	b.tokens += minted
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(minted) * b.tokenInterval())
}

// Semaphore caps concurrent entries into the fetch/upload critical section.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore builds a counting semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// Acquire takes a slot or returns the context error.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}
