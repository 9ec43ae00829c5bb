package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Stall/internal/clock"
)

// TokenBucket refills rate/window tokens per second up to burst. Each Allow
// takes one token. It paces the load runner and can guard the bench
// endpoints of a single server.
type TokenBucket struct {
	clock    clock.Clock
	perSec   float64
	capacity int

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewTokenBucket creates a token bucket limiter. burst <= 0 means burst = rate.
func NewTokenBucket(rate int, window time.Duration, burst int, c clock.Clock) *TokenBucket {
	if burst <= 0 {
		burst = rate
	}
	return &TokenBucket{
		clock:    c,
		perSec:   float64(rate) / window.Seconds(),
		capacity: burst,
		buckets:  make(map[string]*bucket),
	}
}

func (tb *TokenBucket) Allow(_ context.Context, key string) Decision {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.clock.Now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.capacity), lastFill: now}
		tb.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastFill).Seconds() * tb.perSec
	if b.tokens > float64(tb.capacity) {
		b.tokens = float64(tb.capacity)
	}
	b.lastFill = now

	resetAt := now
	if deficit := float64(tb.capacity) - b.tokens; deficit > 0 {
		resetAt = now.Add(tb.durationFor(deficit))
	}

	if b.tokens >= 1.0 {
		b.tokens--
		return Decision{
			Allowed:   true,
			Remaining: int(b.tokens),
			Limit:     tb.capacity,
			ResetAt:   resetAt,
		}
	}

	return Decision{
		Limit:   tb.capacity,
		ResetAt: resetAt,
		RetryAt: now.Add(tb.durationFor(1.0 - b.tokens)),
	}
}

func (tb *TokenBucket) durationFor(tokens float64) time.Duration {
	return time.Duration(tokens / tb.perSec * float64(time.Second))
}
