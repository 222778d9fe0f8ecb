package bybit

import (
	"context"
	"sync"
	"time"
)

// DefaultRequestsPerSecond stays under Bybit's per-UID order limit
const DefaultRequestsPerSecond = 10

// rateLimiter is a token bucket shared by every request the client makes
type rateLimiter struct {
	capacity float64
	rate     float64 // tokens per second
	now      func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

func newRateLimiter(perSecond int) *rateLimiter {
	if perSecond <= 0 {
		perSecond = DefaultRequestsPerSecond
	}
	now := time.Now
	return &rateLimiter{
		capacity:   float64(perSecond),
		rate:       float64(perSecond),
		now:        now,
		tokens:     float64(perSecond),
		lastRefill: now(),
	}
}

// allow takes a token when one is available and otherwise reports how long
// until the next one
func (rl *rateLimiter) allow() (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	t := rl.now()
	if elapsed := t.Sub(rl.lastRefill).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastRefill = t
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return true, 0
	}
	wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
	return false, wait
}

// wait blocks until a token is taken or ctx ends
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		ok, d := rl.allow()
		if ok {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
