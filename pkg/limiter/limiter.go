// Package limiter exposes the admission limiters used in front of the bench
// endpoints so other programs can share the same budget semantics.
package limiter

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/SmitUplenchwar2687/Stall/internal/clock"
	internallimiter "github.com/SmitUplenchwar2687/Stall/internal/limiter"
)

// Algorithm identifies an admission algorithm.
type Algorithm = internallimiter.Algorithm

const (
	AlgorithmTokenBucket   = internallimiter.AlgorithmTokenBucket
	AlgorithmSlidingWindow = internallimiter.AlgorithmSlidingWindow
	AlgorithmRedis         = internallimiter.AlgorithmRedis
)

// Limiter is the admission interface.
type Limiter = internallimiter.Limiter

// Decision is the outcome of one admission check.
type Decision = internallimiter.Decision

// Config holds the parameters shared by every algorithm.
type Config = internallimiter.Config

// RedisConfig points a Redis limiter at an instance or cluster.
type RedisConfig = internallimiter.RedisConfig

// TokenBucket refills continuously up to a burst capacity.
type TokenBucket = internallimiter.TokenBucket

// SlidingWindow keeps a log of admitted units per key.
type SlidingWindow = internallimiter.SlidingWindow

// RedisLimiter is a sliding window shared through Redis.
type RedisLimiter = internallimiter.RedisLimiter

// Clock is the time source limiters read.
type Clock = clock.Clock

// VirtualClock only moves when advanced.
type VirtualClock = clock.Virtual

// RealClock returns the wall clock.
func RealClock() Clock { return clock.NewReal() }

// NewVirtualClock returns a clock frozen at start.
func NewVirtualClock(start time.Time) *VirtualClock { return clock.NewVirtual(start) }

// NewTokenBucket creates a token bucket admitting rate units per window.
func NewTokenBucket(rate int, window time.Duration, burst int, c Clock) *TokenBucket {
	return internallimiter.NewTokenBucket(rate, window, burst, c)
}

// NewSlidingWindow creates a sliding window admitting limit units per window.
func NewSlidingWindow(limit int, window time.Duration, c Clock) *SlidingWindow {
	return internallimiter.NewSlidingWindow(limit, window, c)
}

// NewInProcess builds a token bucket or sliding window from cfg.
func NewInProcess(cfg Config, c Clock) (Limiter, error) {
	return internallimiter.NewInProcess(cfg, c)
}

// NewRedis connects to Redis and returns a shared sliding window.
func NewRedis(ctx context.Context, cfg Config, rcfg RedisConfig, c Clock, logger *log.Logger) (*RedisLimiter, error) {
	return internallimiter.NewRedis(ctx, cfg, rcfg, c, logger)
}

// Wait blocks until lim admits key or ctx ends.
func Wait(ctx context.Context, lim Limiter, c Clock, key string) error {
	return internallimiter.Wait(ctx, lim, c, key)
}
