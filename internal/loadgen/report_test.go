package loadgen

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

func sampleReport() *Report {
	rep := newReport(epoch)
	rep.observe(Op{Kind: recorder.OpTx, ID: 1, Delta: 2}, 3*time.Millisecond, "")
	rep.observe(Op{Kind: recorder.OpTx, ID: 1, Delta: 2}, 5*time.Millisecond, "")
	rep.observe(Op{Kind: recorder.OpTx, ID: 9, Delta: 1}, time.Millisecond, "not_found")
	rep.observe(Op{Kind: recorder.OpRead, ID: 1}, 0, "")
	rep.Elapsed = time.Second
	rep.verify(map[int64]int64{1: 10}, map[int64]int64{1: 12})
	return rep
}

func TestReport_Tallies(t *testing.T) {
	rep := sampleReport()
	require.Equal(t, 3, rep.TotalOK())
	require.Equal(t, 1, rep.TotalFailed())
	require.Equal(t, map[int64]int64{1: 4}, rep.Expected)
	require.Equal(t, []Check{{ID: 1, Before: 10, Applied: 4, After: 12, Verified: true}}, rep.Checks)
	require.EqualValues(t, 2, rep.LostUpdates())
}

func TestReport_OverCountedRowDoesNotHideLoss(t *testing.T) {
	rep := newReport(epoch)
	rep.Checks = []Check{
		{ID: 1, Before: 0, Applied: 5, After: 2, Verified: true},
		{ID: 2, Before: 0, Applied: 5, After: 8, Verified: true},
		{ID: 3, Before: 0, Applied: 5, After: 0, Verified: false},
	}
	require.EqualValues(t, 3, rep.LostUpdates())
	require.EqualValues(t, 3, rep.UnconfirmedUpdates())

	var buf bytes.Buffer
	require.NoError(t, rep.Render(&buf, OutputStyleJSON))
	var doc map[string][]map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "3", doc["verification"][0]["Lost"])
	require.Equal(t, "0", doc["verification"][1]["Lost"])
	require.Equal(t, "3", doc["verification"][1]["Unconfirmed"])
	require.Equal(t, "n/a", doc["verification"][2]["Lost"])
}

func TestReport_ClampsHugeLatency(t *testing.T) {
	rep := newReport(epoch)
	rep.observe(Op{Kind: recorder.OpRead, ID: 1}, 48*time.Hour, "")
	rep.observe(Op{Kind: recorder.OpRead, ID: 1}, time.Millisecond, "")
	rep.Elapsed = time.Second

	rows := rep.latencyRows()
	require.Len(t, rows, 1)
	require.Equal(t, "2", rows[0][2], "both samples counted")
	require.GreaterOrEqual(t, rep.stats[recorder.OpRead].hist.Max(), int64(maxLatencyMicros))
}

func TestReport_RenderPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Render(&buf, OutputStylePlain))
	out := buf.String()
	require.Contains(t, out, "TX       - Takes(s): 1.0, Count: 3, OK: 2")
	require.Contains(t, out, "READ     - Takes(s): 1.0, Count: 1, OK: 1")
	require.Contains(t, out, "Outcome: not_found, Count: 1")
	require.Contains(t, out, "Lost: 2")
}

func TestReport_RenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Render(&buf, OutputStyleTable))
	require.Contains(t, buf.String(), "OPERATION")
	require.Contains(t, buf.String(), "not_found")
}

func TestReport_RenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Render(&buf, OutputStyleJSON))

	var doc map[string][]map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc["latency"], 2)
	require.Equal(t, "READ", doc["latency"][0]["Operation"])
	require.Equal(t, "2", doc["verification"][0]["Lost"])
}

func TestReport_RenderUnknownStyle(t *testing.T) {
	require.Error(t, sampleReport().Render(&bytes.Buffer{}, "xml"))
}
