package limiter

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/SmitUplenchwar2687/Stall/internal/clock"
)

const (
	defaultRedisPoolSize    = 20
	defaultRedisMaxRetries  = 3
	defaultRedisDialTimeout = 5 * time.Second
	defaultRedisKeyPrefix   = "stall:admit:"
)

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

local allowed = 0
local remaining = 0

if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, window)
  allowed = 1
  remaining = limit - (count + 1)
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset = now + window
if oldest ~= nil and #oldest >= 2 then
  reset = tonumber(oldest[2]) + window
end

return {allowed, remaining, reset}
`)

// RedisConfig points the limiter at a Redis instance or cluster.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Cluster      bool          `yaml:"cluster"`
	ClusterNodes []string      `yaml:"clusterNodes"`
	PoolSize     int           `yaml:"poolSize"`
	MaxRetries   int           `yaml:"maxRetries"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	KeyPrefix    string        `yaml:"keyPrefix"`
}

// RedisLimiter is a sliding window whose state lives in Redis, so several
// servers in front of the same database share one admission budget.
type RedisLimiter struct {
	client redis.UniversalClient
	clock  clock.Clock
	logger *log.Logger
	prefix string
	limit  int
	window time.Duration

	seq atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// NewRedis connects to Redis and returns a limiter admitting cfg.Rate units
// per cfg.Window per key.
func NewRedis(ctx context.Context, cfg Config, rcfg RedisConfig, c clock.Clock, logger *log.Logger) (*RedisLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Window < time.Millisecond {
		return nil, fmt.Errorf("window must be at least 1ms, got %s", cfg.Window)
	}
	conf, err := normalizeRedisConfig(rcfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	l := &RedisLimiter{
		client: newRedisClient(conf),
		clock:  c,
		logger: logger.WithPrefix("limiter"),
		prefix: conf.KeyPrefix,
		limit:  cfg.Rate,
		window: cfg.Window,
	}
	if err := l.pingWithRetry(ctx, conf.MaxRetries); err != nil {
		_ = l.client.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}
	return l, nil
}

// Allow runs one sliding-window step in Redis. A Redis failure denies the
// request and is logged.
func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	d, err := l.check(ctx, key)
	if err != nil {
		now := l.clock.Now()
		l.logger.Warn("admission check failed", "key", key, "err", err)
		return Decision{
			Limit:   l.limit,
			ResetAt: now.Add(l.window),
			RetryAt: now.Add(time.Second),
		}
	}
	return d
}

func (l *RedisLimiter) check(ctx context.Context, key string) (Decision, error) {
	if key == "" {
		return Decision{}, errors.New("key is required")
	}
	now := l.clock.Now()
	member := fmt.Sprintf("%d-%d", now.UnixNano(), l.seq.Add(1))

	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.prefix + key},
		now.UnixMilli(), l.window.Milliseconds(), l.limit, member).Result()
	if err != nil {
		return Decision{}, errors.Wrap(err, "running admission script")
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("unexpected redis script result: %T", res)
	}
	var nums [3]int64
	for i, v := range values {
		if nums[i], err = asInt64(v); err != nil {
			return Decision{}, errors.Wrapf(err, "parsing script result %d", i)
		}
	}

	d := Decision{
		Allowed:   nums[0] == 1,
		Remaining: int(nums[1]),
		Limit:     l.limit,
		ResetAt:   time.UnixMilli(nums[2]),
	}
	if !d.Allowed {
		d.RetryAt = d.ResetAt
	}
	return d, nil
}

// Close releases the Redis client. It is idempotent.
func (l *RedisLimiter) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.client.Close()
	})
	return l.closeErr
}

func (l *RedisLimiter) pingWithRetry(ctx context.Context, maxRetries int) error {
	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if lastErr = l.client.Ping(ctx).Err(); lastErr == nil {
			return nil
		}
		if i == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

func normalizeRedisConfig(cfg RedisConfig) (RedisConfig, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultRedisPoolSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRedisMaxRetries
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultRedisDialTimeout
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultRedisKeyPrefix
	}
	if cfg.Cluster && len(cfg.ClusterNodes) == 0 {
		return cfg, errors.New("clusterNodes is required when cluster=true")
	}
	if !cfg.Cluster && cfg.Addr == "" {
		return cfg, errors.New("addr is required when cluster=false")
	}
	return cfg, nil
}

func newRedisClient(cfg RedisConfig) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
}

func asInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}
