package cli

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/SmitUplenchwar2687/Stall/internal/bench"
	"github.com/SmitUplenchwar2687/Stall/internal/clock"
	"github.com/SmitUplenchwar2687/Stall/internal/limiter"
	"github.com/SmitUplenchwar2687/Stall/internal/loadgen"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

func TestBuildServer_ServesAndRecords(t *testing.T) {
	dsn := sqliteDSN(t)
	mustRun(t, "seed", "--driver", "sqlite", "--dsn", dsn, "--count", "1", "--start-count", "10")

	recordPath := filepath.Join(t.TempDir(), "served.json")
	so := &serverOptions{addr: "127.0.0.1:0", recordFile: recordPath, metrics: true, ensureSchema: true}
	dbo := &dbOptions{driver: "sqlite", dsn: dsn}
	ao := &admissionOptions{}
	logger := log.New(io.Discard)

	rs, err := buildServer(context.Background(), so, dbo, ao, clock.NewReal(), logger)
	if err != nil {
		t.Fatalf("buildServer() error: %v", err)
	}
	defer rs.close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = rs.srv.StartOnListener(ln) }()
	base := "http://" + ln.Addr().String()

	client := loadgen.NewClient(base, &http.Client{Timeout: 5 * time.Second})
	ctx := context.Background()
	if err := client.Health(ctx); err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	res, err := client.Increment(ctx, bench.IncrementRequest{ID: 1, Delta: 5}, 0)
	if err != nil {
		t.Fatalf("Increment() error: %v", err)
	}
	if res.Count != 15 {
		t.Fatalf("count = %d, want 15", res.Count)
	}

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rs.srv.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	exportRecords(rs.recorder, recordPath, logger)

	records, err := recorder.LoadFile(recordPath)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(records) != 1 || records[0].Op != recorder.OpTx || records[0].Count != 15 {
		t.Fatalf("records = %+v, want one tx with count 15", records)
	}
}

func TestBuildServer_BadDatabase(t *testing.T) {
	so := &serverOptions{addr: "127.0.0.1:0"}
	dbo := &dbOptions{driver: "sqlite", dsn: ""}
	if _, err := buildServer(context.Background(), so, dbo, &admissionOptions{}, clock.NewReal(), log.New(io.Discard)); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestCreateAdmissionLimiter(t *testing.T) {
	clk := clock.NewReal()
	logger := log.New(io.Discard)
	ctx := context.Background()

	lim, closeFn, err := createAdmissionLimiter(ctx, &admissionOptions{}, clk, logger)
	if err != nil || lim != nil {
		t.Fatalf("disabled: lim=%v err=%v, want nil, nil", lim, err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, algo := range []string{"token_bucket", "sliding_window"} {
		lim, closeFn, err := createAdmissionLimiter(ctx, &admissionOptions{enabled: true, algorithm: algo, rate: 2, window: time.Second}, clk, logger)
		if err != nil {
			t.Fatalf("%s: %v", algo, err)
		}
		if !lim.Allow(ctx, "tx").Allowed {
			t.Errorf("%s: first request denied", algo)
		}
		_ = closeFn()
	}

	if _, _, err := createAdmissionLimiter(ctx, &admissionOptions{enabled: true, algorithm: "fixed_window", rate: 1, window: time.Second}, clk, logger); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestCreateAdmissionLimiter_RedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	ao := &admissionOptions{
		enabled:          true,
		algorithm:        string(limiter.AlgorithmRedis),
		rate:             5,
		window:           time.Second,
		redisHost:        "127.0.0.1:1",
		redisDialTimeout: 50 * time.Millisecond,
	}
	if _, _, err := createAdmissionLimiter(ctx, ao, clock.NewReal(), log.New(io.Discard)); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestNormalizeRedisHostPort(t *testing.T) {
	tests := []struct {
		host     string
		port     int
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{host: "localhost", port: 6379, wantHost: "localhost", wantPort: 6379},
		{host: "localhost:6380", port: 6379, wantHost: "localhost", wantPort: 6380},
		{host: "[::1]:6381", port: 6379, wantHost: "::1", wantPort: 6381},
		{host: "localhost:abc", port: 6379, wantErr: true},
		{host: "", port: 6379, wantErr: true},
		{host: "localhost", port: 0, wantErr: true},
	}
	for _, tt := range tests {
		host, port, err := normalizeRedisHostPort(tt.host, tt.port)
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeRedisHostPort(%q, %d) expected error", tt.host, tt.port)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeRedisHostPort(%q, %d) error: %v", tt.host, tt.port, err)
			continue
		}
		if host != tt.wantHost || port != tt.wantPort {
			t.Errorf("normalizeRedisHostPort(%q, %d) = %s:%d, want %s:%d", tt.host, tt.port, host, port, tt.wantHost, tt.wantPort)
		}
	}
}

func TestRedisConfig_Cluster(t *testing.T) {
	ao := &admissionOptions{redisCluster: true, redisClusterNodes: []string{"a:1", "b:2"}, redisHost: "ignored:x"}
	rcfg, err := ao.redisConfig()
	if err != nil {
		t.Fatalf("redisConfig() error: %v", err)
	}
	if !rcfg.Cluster || len(rcfg.ClusterNodes) != 2 || rcfg.Addr != "" {
		t.Fatalf("rcfg = %+v", rcfg)
	}
}
