package loadgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
	"github.com/olekukonko/tablewriter"

	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

// Output styles accepted by Report.Render.
const (
	OutputStylePlain = "plain"
	OutputStyleTable = "table"
	OutputStyleJSON  = "json"
)

// Latencies are kept in microseconds, up to one day.
const maxLatencyMicros = 24 * 60 * 60 * 1000 * 1000

// Report aggregates a run. It is safe for concurrent observe calls.
type Report struct {
	Started time.Time
	Elapsed time.Duration

	// Expected is the sum of deltas of successful tx ops per id.
	Expected map[int64]int64
	// Checks holds the lost-update verification, when requested.
	Checks []Check

	mu    sync.Mutex
	stats map[recorder.Op]*opStats
}

// Check compares a row's count before and after a run with the deltas the
// run applied successfully.
type Check struct {
	ID       int64 `json:"id"`
	Before   int64 `json:"before"`
	Applied  int64 `json:"applied"`
	After    int64 `json:"after"`
	Verified bool  `json:"verified"` // false when either read failed
}

// Lost is the number of successful deltas missing from the final count.
// It is negative when the row moved by more than the run saw succeed, which
// happens when an op failed on the client side but still committed.
func (c Check) Lost() int64 {
	return c.Before + c.Applied - c.After
}

// Missing is the positive part of Lost.
func (c Check) Missing() int64 {
	if lost := c.Lost(); lost > 0 {
		return lost
	}
	return 0
}

// Unconfirmed is the negative part of Lost, as a positive number.
func (c Check) Unconfirmed() int64 {
	if lost := c.Lost(); lost < 0 {
		return -lost
	}
	return 0
}

type opStats struct {
	outcomes map[string]int // "ok" or error kind
	hist     *hdrhistogram.Histogram
}

func newReport(started time.Time) *Report {
	return &Report{
		Started:  started,
		Expected: make(map[int64]int64),
		stats:    make(map[recorder.Op]*opStats),
	}
}

func (r *Report) observe(op Op, latency time.Duration, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stats[op.Kind]
	if !ok {
		st = &opStats{
			outcomes: make(map[string]int),
			hist:     hdrhistogram.New(1, maxLatencyMicros, 3),
		}
		r.stats[op.Kind] = st
	}

	micros := latency.Microseconds()
	if micros < 1 {
		micros = 1
	}
	if micros > maxLatencyMicros {
		// Slower ops land in the top bucket instead of vanishing.
		micros = maxLatencyMicros
	}
	// Clamped into the histogram's range, so RecordValue cannot fail.
	_ = st.hist.RecordValue(micros)

	if kind == "" {
		st.outcomes["ok"]++
		if op.Kind == recorder.OpTx {
			r.Expected[op.ID] += op.Delta
		}
		return
	}
	st.outcomes[kind]++
}

func (r *Report) verify(before, after map[int64]int64) {
	ids := make([]int64, 0, len(before))
	for id := range before {
		ids = append(ids, id)
	}
	for id := range after {
		if _, ok := before[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		b, okBefore := before[id]
		a, okAfter := after[id]
		r.Checks = append(r.Checks, Check{
			ID:       id,
			Before:   b,
			Applied:  r.Expected[id],
			After:    a,
			Verified: okBefore && okAfter,
		})
	}
}

// Outcomes returns the count per outcome ("ok" or an error kind) for op.
func (r *Report) Outcomes(op recorder.Op) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int)
	if st, ok := r.stats[op]; ok {
		for k, v := range st.outcomes {
			out[k] = v
		}
	}
	return out
}

// TotalOK counts successful ops of every kind.
func (r *Report) TotalOK() int {
	ok, _ := r.totals()
	return ok
}

// TotalFailed counts failed ops of every kind.
func (r *Report) TotalFailed() int {
	_, failed := r.totals()
	return failed
}

func (r *Report) totals() (ok, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stats {
		for kind, n := range st.outcomes {
			if kind == "ok" {
				ok += n
			} else {
				failed += n
			}
		}
	}
	return ok, failed
}

// LostUpdates sums Missing over verified checks. Rows that over-count never
// offset rows that lost increments.
func (r *Report) LostUpdates() int64 {
	var lost int64
	for _, c := range r.Checks {
		if c.Verified {
			lost += c.Missing()
		}
	}
	return lost
}

// UnconfirmedUpdates sums Unconfirmed over verified checks: increments that
// landed although the run did not see them succeed.
func (r *Report) UnconfirmedUpdates() int64 {
	var n int64
	for _, c := range r.Checks {
		if c.Verified {
			n += c.Unconfirmed()
		}
	}
	return n
}

var latencyHeaders = []string{"Operation", "Takes(s)", "Count", "OK", "QPS", "Avg(us)", "Min(us)", "Max(us)", "99th(us)", "99.9th(us)", "99.99th(us)"}

func (r *Report) latencyRows() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]string, 0, len(r.stats))
	for op := range r.stats {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)

	elapsed := r.Elapsed.Seconds()
	rows := make([][]string, 0, len(ops))
	for _, name := range ops {
		st := r.stats[recorder.Op(name)]
		count := st.hist.TotalCount()
		qps := 0.0
		if elapsed > 0 {
			qps = float64(count) / elapsed
		}
		rows = append(rows, []string{
			strings.ToUpper(name),
			fmt.Sprintf("%.1f", elapsed),
			fmt.Sprintf("%d", count),
			fmt.Sprintf("%d", st.outcomes["ok"]),
			fmt.Sprintf("%.1f", qps),
			fmt.Sprintf("%d", int64(st.hist.Mean())),
			fmt.Sprintf("%d", st.hist.Min()),
			fmt.Sprintf("%d", st.hist.Max()),
			fmt.Sprintf("%d", st.hist.ValueAtPercentile(99)),
			fmt.Sprintf("%d", st.hist.ValueAtPercentile(99.9)),
			fmt.Sprintf("%d", st.hist.ValueAtPercentile(99.99)),
		})
	}
	return rows
}

var outcomeHeaders = []string{"Operation", "Outcome", "Count"}

func (r *Report) outcomeRows() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rows [][]string
	for op, st := range r.stats {
		for kind, n := range st.outcomes {
			rows = append(rows, []string{strings.ToUpper(string(op)), kind, fmt.Sprintf("%d", n)})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})
	return rows
}

var checkHeaders = []string{"ID", "Before", "Applied", "After", "Lost", "Unconfirmed"}

func (r *Report) checkRows() [][]string {
	rows := make([][]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		lost, unconfirmed := "n/a", "n/a"
		if c.Verified {
			lost = fmt.Sprintf("%d", c.Missing())
			unconfirmed = fmt.Sprintf("%d", c.Unconfirmed())
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.ID),
			fmt.Sprintf("%d", c.Before),
			fmt.Sprintf("%d", c.Applied),
			fmt.Sprintf("%d", c.After),
			lost,
			unconfirmed,
		})
	}
	return rows
}

// Render writes the report in one of the output styles.
func (r *Report) Render(w io.Writer, style string) error {
	sections := []struct {
		name    string
		headers []string
		rows    [][]string
	}{
		{"latency", latencyHeaders, r.latencyRows()},
		{"outcomes", outcomeHeaders, r.outcomeRows()},
		{"verification", checkHeaders, r.checkRows()},
	}

	switch style {
	case OutputStyleJSON:
		doc := make(map[string][]map[string]string, len(sections))
		for _, s := range sections {
			doc[s.name] = zipRows(s.headers, s.rows)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case OutputStyleTable:
		for _, s := range sections {
			renderTable(w, s.headers, s.rows)
		}
		return nil
	case OutputStylePlain, "":
		for _, s := range sections {
			renderPlain(w, s.headers, s.rows)
		}
		return nil
	default:
		return fmt.Errorf("unknown output style %q, must be one of: plain, table, json", style)
	}
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	tb := tablewriter.NewWriter(w)
	tb.SetHeader(headers)
	tb.AppendBulk(rows)
	tb.Render()
}

// renderPlain writes one line per row: the first column, then the rest as
// "Header: value" pairs.
func renderPlain(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	buf := new(bytes.Buffer)
	for _, row := range rows {
		args := make([]string, len(headers)-1)
		for i, h := range headers[1:] {
			args[i] = h + ": " + row[i+1]
		}
		fmt.Fprintf(buf, "%-8s - %s\n", row[0], strings.Join(args, ", "))
	}
	_, _ = io.Copy(w, buf)
}

func zipRows(headers []string, rows [][]string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		line := make(map[string]string, len(headers))
		for i, h := range headers {
			line[h] = row[i]
		}
		out = append(out, line)
	}
	return out
}
