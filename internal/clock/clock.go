package clock

import (
	"context"
	"time"
)

// Clock abstracts time for the load runner, the limiter and the recorder, so
// pacing and timestamps can be driven by a VirtualClock in tests.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Real delegates to the time package.
type Real struct{}

func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time                         { return time.Now() }
func (Real) Since(t time.Time) time.Duration        { return time.Since(t) }
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Sleep waits for d on c, returning early with ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}
