package cli

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Stall/internal/clock"
	"github.com/SmitUplenchwar2687/Stall/internal/config"
	"github.com/SmitUplenchwar2687/Stall/internal/limiter"
)

// admissionOptions configure the limiter in front of the bench endpoints.
type admissionOptions struct {
	enabled   bool
	algorithm string
	rate      int
	window    time.Duration
	burst     int

	redisHost         string
	redisPort         int
	redisPassword     string
	redisDB           int
	redisCluster      bool
	redisClusterNodes []string
	redisPoolSize     int
	redisMaxRetries   int
	redisDialTimeout  time.Duration
}

func (o *admissionOptions) addFlags(cmd *cobra.Command) {
	def := config.Default()
	cmd.Flags().BoolVar(&o.enabled, "admission", false, "limit bench operations admitted per window")
	cmd.Flags().StringVar(&o.algorithm, "admission-algorithm", string(def.Limiter.Algorithm), "admission algorithm (token_bucket, sliding_window, redis)")
	cmd.Flags().IntVar(&o.rate, "admission-rate", def.Limiter.Rate, "operations admitted per window, per operation type")
	cmd.Flags().DurationVar(&o.window, "admission-window", def.Limiter.Window, "admission window")
	cmd.Flags().IntVar(&o.burst, "admission-burst", def.Limiter.Burst, "max burst (token_bucket only, 0 = same as rate)")

	cmd.Flags().StringVar(&o.redisHost, "redis-host", "localhost", "redis host (or host:port)")
	cmd.Flags().IntVar(&o.redisPort, "redis-port", 6379, "redis port")
	cmd.Flags().StringVar(&o.redisPassword, "redis-password", "", "redis password")
	cmd.Flags().IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	cmd.Flags().BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	cmd.Flags().StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
	cmd.Flags().IntVar(&o.redisPoolSize, "redis-pool-size", 20, "redis connection pool size")
	cmd.Flags().IntVar(&o.redisMaxRetries, "redis-max-retries", 3, "redis max retries")
	cmd.Flags().DurationVar(&o.redisDialTimeout, "redis-dial-timeout", 5*time.Second, "redis dial timeout")
}

func (o *admissionOptions) applyConfigIfUnset(cmd *cobra.Command, lim config.LimiterConfig, rcfg limiter.RedisConfig) {
	if !cmd.Flags().Changed("admission") {
		o.enabled = lim.Enabled
	}
	if !cmd.Flags().Changed("admission-algorithm") {
		o.algorithm = string(lim.Algorithm)
	}
	if !cmd.Flags().Changed("admission-rate") {
		o.rate = lim.Rate
	}
	if !cmd.Flags().Changed("admission-window") {
		o.window = lim.Window
	}
	if !cmd.Flags().Changed("admission-burst") {
		o.burst = lim.Burst
	}
	if !cmd.Flags().Changed("redis-host") && rcfg.Addr != "" {
		o.redisHost = rcfg.Addr
	}
	if !cmd.Flags().Changed("redis-password") {
		o.redisPassword = rcfg.Password
	}
	if !cmd.Flags().Changed("redis-db") {
		o.redisDB = rcfg.DB
	}
	if !cmd.Flags().Changed("redis-cluster") {
		o.redisCluster = rcfg.Cluster
	}
	if !cmd.Flags().Changed("redis-cluster-nodes") && len(rcfg.ClusterNodes) > 0 {
		o.redisClusterNodes = rcfg.ClusterNodes
	}
	if !cmd.Flags().Changed("redis-pool-size") && rcfg.PoolSize > 0 {
		o.redisPoolSize = rcfg.PoolSize
	}
	if !cmd.Flags().Changed("redis-max-retries") && rcfg.MaxRetries > 0 {
		o.redisMaxRetries = rcfg.MaxRetries
	}
	if !cmd.Flags().Changed("redis-dial-timeout") && rcfg.DialTimeout > 0 {
		o.redisDialTimeout = rcfg.DialTimeout
	}
}

func (o *admissionOptions) limiterConfig() config.LimiterConfig {
	return config.LimiterConfig{
		Enabled: o.enabled,
		Config: limiter.Config{
			Algorithm: limiter.Algorithm(o.algorithm),
			Rate:      o.rate,
			Window:    o.window,
			Burst:     o.burst,
		},
	}
}

func (o *admissionOptions) redisConfig() (limiter.RedisConfig, error) {
	rcfg := limiter.RedisConfig{
		Password:     o.redisPassword,
		DB:           o.redisDB,
		Cluster:      o.redisCluster,
		ClusterNodes: append([]string(nil), o.redisClusterNodes...),
		PoolSize:     o.redisPoolSize,
		MaxRetries:   o.redisMaxRetries,
		DialTimeout:  o.redisDialTimeout,
	}
	if o.redisCluster {
		return rcfg, nil
	}
	host, port, err := normalizeRedisHostPort(o.redisHost, o.redisPort)
	if err != nil {
		return rcfg, err
	}
	rcfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	return rcfg, nil
}

// createAdmissionLimiter returns nil when admission is disabled. The close
// func is always safe to call.
func createAdmissionLimiter(ctx context.Context, o *admissionOptions, clk clock.Clock, logger *log.Logger) (limiter.Limiter, func() error, error) {
	noop := func() error { return nil }
	cfg := o.limiterConfig()
	if !cfg.Enabled {
		return nil, noop, nil
	}

	if cfg.Algorithm == limiter.AlgorithmRedis {
		rcfg, err := o.redisConfig()
		if err != nil {
			return nil, noop, err
		}
		lim, err := limiter.NewRedis(ctx, cfg.Config, rcfg, clk, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("creating redis admission limiter: %w", err)
		}
		return lim, lim.Close, nil
	}

	lim, err := limiter.NewInProcess(cfg.Config, clk)
	if err != nil {
		return nil, noop, err
	}
	return lim, noop, nil
}

func normalizeRedisHostPort(host string, port int) (string, int, error) {
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid --redis-host value %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in --redis-host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	if port <= 0 {
		return "", 0, fmt.Errorf("redis port must be positive, got %d", port)
	}
	return host, port, nil
}
