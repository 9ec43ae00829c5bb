package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Stall/internal/clock"
)

var (
	epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx   = context.Background()
)

func TestTokenBucket_BasicAllow(t *testing.T) {
	vc := clock.NewVirtual(epoch)
	tb := NewTokenBucket(10, time.Minute, 10, vc)

	d := tb.Allow(ctx, "tx")
	if !d.Allowed {
		t.Fatal("first request should be allowed")
	}
	if d.Remaining != 9 {
		t.Errorf("Remaining = %d, want 9", d.Remaining)
	}
	if d.Limit != 10 {
		t.Errorf("Limit = %d, want 10", d.Limit)
	}
}

func TestTokenBucket_ExhaustThenRefill(t *testing.T) {
	vc := clock.NewVirtual(epoch)
	// 10 per minute is one token every 6 seconds.
	tb := NewTokenBucket(10, time.Minute, 10, vc)

	for i := 0; i < 10; i++ {
		if d := tb.Allow(ctx, "tx"); !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	d := tb.Allow(ctx, "tx")
	if d.Allowed {
		t.Fatal("11th request should be denied")
	}
	if got := d.RetryAt.Sub(epoch); got != 6*time.Second {
		t.Errorf("RetryAt = epoch+%s, want epoch+6s", got)
	}

	vc.Advance(6 * time.Second)
	if d := tb.Allow(ctx, "tx"); !d.Allowed {
		t.Error("should be allowed after one refill interval")
	}
}

func TestTokenBucket_BurstDefaultsToRate(t *testing.T) {
	vc := clock.NewVirtual(epoch)
	tb := NewTokenBucket(3, time.Second, 0, vc)

	for i := 0; i < 3; i++ {
		tb.Allow(ctx, "k")
	}
	if d := tb.Allow(ctx, "k"); d.Allowed {
		t.Error("burst should equal rate when zero")
	}
}

func TestTokenBucket_KeysAreIndependent(t *testing.T) {
	vc := clock.NewVirtual(epoch)
	tb := NewTokenBucket(1, time.Minute, 1, vc)

	if d := tb.Allow(ctx, "read"); !d.Allowed {
		t.Fatal("read should be allowed")
	}
	if d := tb.Allow(ctx, "tx"); !d.Allowed {
		t.Fatal("tx has its own bucket")
	}
	if d := tb.Allow(ctx, "read"); d.Allowed {
		t.Fatal("second read should be denied")
	}
}

func TestTokenBucket_CapsAtCapacity(t *testing.T) {
	vc := clock.NewVirtual(epoch)
	tb := NewTokenBucket(2, time.Second, 2, vc)

	vc.Advance(time.Hour)
	allowed := 0
	for i := 0; i < 5; i++ {
		if tb.Allow(ctx, "k").Allowed {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed = %d after idle period, want 2", allowed)
	}
}
