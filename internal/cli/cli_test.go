package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Stall/internal/config"
	"github.com/SmitUplenchwar2687/Stall/internal/loadgen"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

func sqliteDSN(t *testing.T) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "stall.db") + "?_pragma=busy_timeout(5000)"
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd := NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

type jsonReport struct {
	Latency      []map[string]string `json:"latency"`
	Outcomes     []map[string]string `json:"outcomes"`
	Verification []map[string]string `json:"verification"`
}

func decodeReport(t *testing.T, out string) jsonReport {
	t.Helper()
	var rep jsonReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decoding report: %v\n%s", err, out)
	}
	return rep
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	want := []string{"server", "schema", "seed", "load", "generate"}
	for _, name := range want {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	if _, err := run(t, "--log-level", "loud", "generate", "config", "--output", filepath.Join(t.TempDir(), "c.yaml")); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	if _, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "schema"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestSchemaAndSeed(t *testing.T) {
	dsn := sqliteDSN(t)

	out := mustRun(t, "schema", "--driver", "sqlite", "--dsn", dsn)
	if !strings.Contains(out, "schema ready (sqlite)") {
		t.Errorf("schema output = %q", out)
	}

	out = mustRun(t, "seed", "--driver", "sqlite", "--dsn", dsn, "--count", "3", "--first-id", "5", "--start-count", "7")
	if !strings.Contains(out, "seeded 3 rows (ids 5..7, cnt=7)") {
		t.Errorf("seed output = %q", out)
	}
}

func TestSeed_InvalidCount(t *testing.T) {
	if _, err := run(t, "seed", "--driver", "sqlite", "--dsn", sqliteDSN(t), "--count", "0"); err == nil {
		t.Fatal("expected error for zero count")
	}
}

func TestSchema_UnknownDriver(t *testing.T) {
	if _, err := run(t, "schema", "--driver", "oracle", "--dsn", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoad_DirectVerifiesIncrements(t *testing.T) {
	dsn := sqliteDSN(t)
	mustRun(t, "seed", "--driver", "sqlite", "--dsn", dsn, "--count", "3", "--start-count", "10")

	out := mustRun(t, "load", "--direct", "--driver", "sqlite", "--dsn", dsn,
		"--count", "30", "--ids", "3", "--tx-ratio", "1", "--seed", "42",
		"--concurrency", "4", "--verify", "--output", "json")

	rep := decodeReport(t, out)
	if len(rep.Verification) != 3 {
		t.Fatalf("verification rows = %d, want 3", len(rep.Verification))
	}
	var applied int
	for _, row := range rep.Verification {
		if row["Lost"] != "0" {
			t.Errorf("row %s lost %s increments", row["ID"], row["Lost"])
		}
		var n int
		if err := json.Unmarshal([]byte(row["Applied"]), &n); err != nil {
			t.Fatalf("Applied %q: %v", row["Applied"], err)
		}
		applied += n
	}
	if applied != 30 {
		t.Errorf("applied = %d, want 30", applied)
	}
}

func TestLoad_MissingRowsAreReportedNotFatal(t *testing.T) {
	dsn := sqliteDSN(t)
	mustRun(t, "schema", "--driver", "sqlite", "--dsn", dsn)

	out := mustRun(t, "load", "--direct", "--driver", "sqlite", "--dsn", dsn,
		"--count", "5", "--ids", "1", "--first-id", "99", "--tx-ratio", "0", "--output", "json")

	rep := decodeReport(t, out)
	if len(rep.Outcomes) != 1 || rep.Outcomes[0]["Outcome"] != "not_found" || rep.Outcomes[0]["Count"] != "5" {
		t.Fatalf("outcomes = %v, want 5 not_found reads", rep.Outcomes)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dsn := sqliteDSN(t)
	mustRun(t, "seed", "--driver", "sqlite", "--dsn", dsn, "--count", "2")

	cfgPath := filepath.Join(t.TempDir(), "stall.yaml")
	yaml := `database:
  driver: sqlite
  dsn: "` + dsn + `"
load:
  output: json
  concurrency: 2
  plan:
    count: 8
    ids: 2
    txRatio: 0.5
    delta: 1
    seed: 3
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, "--config", cfgPath, "load", "--direct")
	rep := decodeReport(t, out)
	total := 0
	for _, row := range rep.Latency {
		var n int
		_ = json.Unmarshal([]byte(row["Count"]), &n)
		total += n
	}
	if total != 8 {
		t.Errorf("ops = %d, want 8 from the config file", total)
	}
}

func TestLoad_PlanFile(t *testing.T) {
	dsn := sqliteDSN(t)
	mustRun(t, "seed", "--driver", "sqlite", "--dsn", dsn, "--count", "1")

	planPath := filepath.Join(t.TempDir(), "plan.json")
	out := mustRun(t, "generate", "plan", "--output", planPath, "--count", "6", "--ids", "1", "--tx-ratio", "1", "--seed", "9")
	if !strings.Contains(out, "Generated 6 operations") {
		t.Errorf("generate output = %q", out)
	}

	out = mustRun(t, "load", "--direct", "--driver", "sqlite", "--dsn", dsn, "--plan", planPath, "--verify", "--output", "plain")
	if !strings.Contains(out, "TX") {
		t.Errorf("plain report missing tx row: %q", out)
	}
}

func TestLoad_ReplayFile(t *testing.T) {
	dsn := sqliteDSN(t)
	mustRun(t, "seed", "--driver", "sqlite", "--dsn", dsn, "--count", "1")

	rec := recorder.New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_ = rec.Record(recorder.OpRecord{Timestamp: base.Add(time.Duration(i) * time.Millisecond), Op: recorder.OpTx, ID: 1, Delta: 2})
	}
	_ = rec.Record(recorder.OpRecord{Timestamp: base, Op: recorder.OpRead, ID: 1})
	path := filepath.Join(t.TempDir(), "served.json")
	if err := rec.ExportFile(path); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, "load", "--direct", "--driver", "sqlite", "--dsn", dsn, "--replay", path, "--verify", "--output", "json")
	rep := decodeReport(t, out)
	if len(rep.Verification) != 1 || rep.Verification[0]["Applied"] != "6" || rep.Verification[0]["After"] != "6" {
		t.Fatalf("verification = %v, want 6 applied", rep.Verification)
	}
}

func TestLoad_PlanAndReplayExclusive(t *testing.T) {
	if _, err := run(t, "load", "--plan", "a.json", "--replay", "b.json"); err == nil {
		t.Fatal("expected error for --plan with --replay")
	}
}

func TestLoad_UnhealthyTarget(t *testing.T) {
	_, err := run(t, "load", "--target", "http://127.0.0.1:1", "--count", "1")
	if err == nil || !strings.Contains(err.Error(), "not healthy") {
		t.Fatalf("err = %v, want unhealthy target", err)
	}
}

func TestGenerateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stall.yaml")
	out := mustRun(t, "generate", "config", "--output", path)
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}

func TestGeneratePlan_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	mustRun(t, "generate", "plan", "--output", a, "--count", "20", "--seed", "5", "--pattern", "burst", "--duration", "1s")
	mustRun(t, "generate", "plan", "--output", b, "--count", "20", "--seed", "5", "--pattern", "burst", "--duration", "1s")

	pa, err := loadgen.LoadPlan(a)
	if err != nil {
		t.Fatal(err)
	}
	pb, err := loadgen.LoadPlan(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(pa.Ops) != 20 || len(pb.Ops) != 20 {
		t.Fatalf("ops = %d, %d, want 20", len(pa.Ops), len(pb.Ops))
	}
	for i := range pa.Ops {
		if pa.Ops[i] != pb.Ops[i] {
			t.Fatalf("op %d differs: %+v vs %+v", i, pa.Ops[i], pb.Ops[i])
		}
	}
}

func TestGeneratePlan_InvalidPattern(t *testing.T) {
	if _, err := run(t, "generate", "plan", "--output", filepath.Join(t.TempDir(), "p.json"), "--pattern", "zigzag"); err == nil {
		t.Fatal("expected error for unknown pattern")
	}
}
