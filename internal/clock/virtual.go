package clock

import (
	"sync"
	"time"
)

// Virtual is a Clock that only moves when told to. Waiters registered with
// After fire from Advance once their deadline is reached. Safe for
// concurrent use.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	pending []pendingTimer
}

type pendingTimer struct {
	at time.Time
	ch chan time.Time
}

func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) Since(t time.Time) time.Duration {
	return v.Now().Sub(t)
}

func (v *Virtual) After(d time.Duration) <-chan time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- v.now
		return ch
	}
	v.pending = append(v.pending, pendingTimer{at: v.now.Add(d), ch: ch})
	return ch
}

// Advance moves time forward by d and fires due waiters. Panics on negative d.
func (v *Virtual) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	v.now = v.now.Add(d)
	kept := v.pending[:0]
	for _, p := range v.pending {
		if p.at.After(v.now) {
			kept = append(kept, p)
			continue
		}
		p.ch <- v.now
	}
	v.pending = kept
}

// Waiters reports how many After channels have not fired yet.
func (v *Virtual) Waiters() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}
