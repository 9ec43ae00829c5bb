package config

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/SmitUplenchwar2687/Stall/internal/limiter"
	"github.com/SmitUplenchwar2687/Stall/internal/loadgen"
	"github.com/SmitUplenchwar2687/Stall/internal/store"
)

var (
	ErrInvalidServer   = errors.New("invalid server config")
	ErrInvalidDatabase = errors.New("invalid database config")
	ErrInvalidLimiter  = errors.New("invalid limiter config")
	ErrInvalidLog      = errors.New("invalid log config")
	ErrInvalidLoad     = errors.New("invalid load config")
)

// Config is the top-level configuration of a stall process.
type Config struct {
	Server   ServerConfig        `yaml:"server"`
	Database DatabaseConfig      `yaml:"database"`
	Limiter  LimiterConfig       `yaml:"limiter"`
	Redis    limiter.RedisConfig `yaml:"redis"`
	Log      LogConfig           `yaml:"log"`
	Load     LoadConfig          `yaml:"load"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"requestTimeout"` // 0 disables
	Record         string        `yaml:"record"`         // export served ops here on shutdown
	Metrics        bool          `yaml:"metrics"`
}

// DatabaseConfig selects the dialect and pool.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// Options converts the section into store options.
func (d DatabaseConfig) Options() store.Options {
	return store.Options{
		Driver:          d.Driver,
		DSN:             d.DSN,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

// LimiterConfig is the admission limiter in front of the bench endpoints.
type LimiterConfig struct {
	Enabled        bool `yaml:"enabled"`
	limiter.Config `yaml:",inline"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, logfmt
}

// LoadConfig drives the load command.
type LoadConfig struct {
	Target               string `yaml:"target"`
	Output               string `yaml:"output"` // plain, table, json
	loadgen.RunnerConfig `yaml:",inline"`
	Plan                 loadgen.PlanSpec `yaml:"plan"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:    ":8080",
			Metrics: true,
		},
		Database: DatabaseConfig{
			Driver:          store.DialectMySQL,
			DSN:             "bench:bench@tcp(127.0.0.1:3306)/bench",
			MaxOpenConns:    64,
			MaxIdleConns:    16,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Limiter: LimiterConfig{
			Config: limiter.Config{
				Algorithm: limiter.AlgorithmTokenBucket,
				Rate:      100,
				Window:    time.Second,
				Burst:     100,
			},
		},
		Redis: limiter.RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Load: LoadConfig{
			Target: "http://127.0.0.1:8080",
			Output: loadgen.OutputStyleTable,
			RunnerConfig: loadgen.RunnerConfig{
				Concurrency: 16,
			},
			Plan: loadgen.PlanSpec{
				Count:   1000,
				IDs:     10,
				TxRatio: 0.5,
				Delta:   1,
				Pattern: loadgen.PatternSteady,
			},
		},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.Wrap(ErrInvalidServer, "addr is required")
	}
	if c.Server.RequestTimeout < 0 {
		return errors.Wrapf(ErrInvalidServer, "requestTimeout must be >= 0, got %s", c.Server.RequestTimeout)
	}

	if _, err := store.LookupDialect(c.Database.Driver); err != nil {
		return errors.Wrap(ErrInvalidDatabase, err.Error())
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.Wrap(ErrInvalidDatabase, "dsn is required")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.Wrap(ErrInvalidDatabase, "pool sizes must be >= 0")
	}

	if c.Limiter.Enabled {
		if err := c.Limiter.Config.Validate(); err != nil {
			return errors.Wrap(ErrInvalidLimiter, err.Error())
		}
		switch c.Limiter.Algorithm {
		case limiter.AlgorithmTokenBucket, limiter.AlgorithmSlidingWindow:
		case limiter.AlgorithmRedis:
			if c.Redis.Addr == "" && !c.Redis.Cluster {
				return errors.Wrap(ErrInvalidLimiter, "redis.addr is required for the redis algorithm")
			}
			if c.Redis.Cluster && len(c.Redis.ClusterNodes) == 0 {
				return errors.Wrap(ErrInvalidLimiter, "redis.clusterNodes is required when redis.cluster=true")
			}
		default:
			return errors.Wrapf(ErrInvalidLimiter, "unknown algorithm %q, must be one of: token_bucket, sliding_window, redis", c.Limiter.Algorithm)
		}
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(ErrInvalidLog, "unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		return errors.Wrapf(ErrInvalidLog, "unknown format %q, must be one of: text, json, logfmt", c.Log.Format)
	}

	if c.Load.Concurrency < 0 || c.Load.Rate < 0 || c.Load.Speed < 0 {
		return errors.Wrap(ErrInvalidLoad, "concurrency, rate and speed must be >= 0")
	}
	switch c.Load.Output {
	case loadgen.OutputStylePlain, loadgen.OutputStyleTable, loadgen.OutputStyleJSON:
	default:
		return errors.Wrapf(ErrInvalidLoad, "unknown output %q, must be one of: plain, table, json", c.Load.Output)
	}
	if err := c.Load.Plan.Validate(); err != nil {
		return errors.Wrap(ErrInvalidLoad, err.Error())
	}
	return nil
}

// LoadFile reads a YAML config file over the defaults. Fields the file does
// not mention keep their default values; unknown fields are rejected.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config file")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, errors.Wrap(err, "parsing config file")
	}
	return cfg, nil
}

// WriteExample writes a commented example config file to path.
func WriteExample(path string) error {
	return os.WriteFile(path, []byte(exampleYAML), 0o644)
}

const exampleYAML = `# stall configuration. Every field is optional; omitted fields keep their defaults.
server:
  addr: ":8080"
  requestTimeout: 0s      # per bench operation, 0 disables
  record: ""              # write served ops to this file on shutdown
  metrics: true

database:
  driver: mysql           # mysql, postgres or sqlite
  dsn: "bench:bench@tcp(127.0.0.1:3306)/bench"
  maxOpenConns: 64
  maxIdleConns: 16
  connMaxLifetime: 5m

limiter:
  enabled: false
  algorithm: token_bucket # token_bucket, sliding_window or redis
  rate: 100
  window: 1s
  burst: 100

redis:
  addr: "127.0.0.1:6379"

log:
  level: info
  format: text            # text, json or logfmt

load:
  target: "http://127.0.0.1:8080"
  output: table           # plain, table or json
  concurrency: 16
  rate: 0                 # ops per second, 0 is unpaced
  verify: false
  plan:
    count: 1000
    ids: 10
    txRatio: 0.5
    delta: 1
    sleepMs: 0
    duration: 0s
    pattern: steady       # steady, burst or ramp
`
