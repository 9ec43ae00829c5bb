package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/Stall/internal/clock"
)

// Algorithm identifies how admission is counted.
type Algorithm string

const (
	AlgorithmTokenBucket   Algorithm = "token_bucket"
	AlgorithmSlidingWindow Algorithm = "sliding_window"
	// AlgorithmRedis is a sliding window kept in Redis, shared by every
	// server pointed at the same instance.
	AlgorithmRedis Algorithm = "redis"
)

// Limiter decides whether one more unit of work identified by key may start.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
	RetryAt   time.Time `json:"retry_at"` // set when denied
}

// Config holds the parameters for creating a limiter.
type Config struct {
	Algorithm Algorithm     `yaml:"algorithm"`
	Rate      int           `yaml:"rate"`   // units allowed per window
	Window    time.Duration `yaml:"window"` // window duration
	Burst     int           `yaml:"burst"`  // token bucket only; 0 means Rate
}

// Validate checks the numeric parameters.
func (c Config) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %d", c.Rate)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	return nil
}

// NewInProcess builds a token bucket or sliding window limiter from cfg.
// Redis limiters are built with NewRedis.
func NewInProcess(cfg Config, c clock.Clock) (Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Algorithm {
	case AlgorithmTokenBucket, "":
		return NewTokenBucket(cfg.Rate, cfg.Window, cfg.Burst, c), nil
	case AlgorithmSlidingWindow:
		return NewSlidingWindow(cfg.Rate, cfg.Window, c), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q, must be one of: token_bucket, sliding_window, redis", cfg.Algorithm)
	}
}

// Wait blocks until lim admits key or ctx ends. Waiting is done on c so a
// virtual clock can drive it.
func Wait(ctx context.Context, lim Limiter, c clock.Clock, key string) error {
	for {
		d := lim.Allow(ctx, key)
		if d.Allowed {
			return nil
		}
		wait := d.RetryAt.Sub(c.Now())
		if wait <= 0 {
			wait = time.Millisecond
		}
		if err := clock.Sleep(ctx, c, wait); err != nil {
			return err
		}
	}
}
