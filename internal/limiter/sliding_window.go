package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Stall/internal/clock"
)

// SlidingWindow admits at most limit units per key in any window-long span.
// It is the in-process twin of RedisLimiter.
type SlidingWindow struct {
	clock  clock.Clock
	limit  int
	window time.Duration

	mu   sync.Mutex
	logs map[string][]time.Time
}

func NewSlidingWindow(limit int, window time.Duration, c clock.Clock) *SlidingWindow {
	return &SlidingWindow{
		clock:  c,
		limit:  limit,
		window: window,
		logs:   make(map[string][]time.Time),
	}
}

func (sw *SlidingWindow) Allow(_ context.Context, key string) Decision {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	cutoff := now.Add(-sw.window)

	live := sw.logs[key][:0]
	for _, ts := range sw.logs[key] {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}

	resetAt := now.Add(sw.window)
	if len(live) > 0 {
		resetAt = live[0].Add(sw.window)
	}

	if len(live) < sw.limit {
		sw.logs[key] = append(live, now)
		return Decision{
			Allowed:   true,
			Remaining: sw.limit - len(live) - 1,
			Limit:     sw.limit,
			ResetAt:   resetAt,
		}
	}

	sw.logs[key] = live
	return Decision{
		Limit:   sw.limit,
		ResetAt: resetAt,
		RetryAt: live[0].Add(sw.window),
	}
}
