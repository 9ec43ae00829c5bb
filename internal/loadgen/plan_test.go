package loadgen

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestGenerate_Validation(t *testing.T) {
	tests := []struct {
		name string
		spec PlanSpec
	}{
		{"zero count", PlanSpec{IDs: 1}},
		{"zero ids", PlanSpec{Count: 1}},
		{"ratio above one", PlanSpec{Count: 1, IDs: 1, TxRatio: 1.5}},
		{"negative sleep", PlanSpec{Count: 1, IDs: 1, SleepMs: -1}},
		{"negative duration", PlanSpec{Count: 1, IDs: 1, Duration: -time.Second}},
		{"unknown pattern", PlanSpec{Count: 1, IDs: 1, Pattern: "zigzag"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.spec)
			require.Error(t, err)
		})
	}
}

func TestGenerate_SeedIsDeterministic(t *testing.T) {
	spec := PlanSpec{Count: 50, IDs: 5, TxRatio: 0.5, Delta: 1, Pattern: PatternBurst, Duration: time.Minute, Seed: 7}
	a, err := Generate(spec)
	require.NoError(t, err)
	b, err := Generate(spec)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a.Ops, 50)
}

func TestGenerate_RatioAndIDs(t *testing.T) {
	reads, err := Generate(PlanSpec{Count: 20, IDs: 3, FirstID: 10, TxRatio: 0, Seed: 1})
	require.NoError(t, err)
	for _, op := range reads.Ops {
		require.Equal(t, recorder.OpRead, op.Kind)
		require.Zero(t, op.Delta)
		require.True(t, op.ID >= 10 && op.ID <= 12, "id %d out of range", op.ID)
	}

	txs, err := Generate(PlanSpec{Count: 20, IDs: 1, TxRatio: 1, Delta: 3, SleepMs: 25, Seed: 1})
	require.NoError(t, err)
	for _, op := range txs.Ops {
		require.Equal(t, Op{Kind: recorder.OpTx, ID: 1, Delta: 3, SleepMs: 25}, op)
	}
}

func TestGenerate_Patterns(t *testing.T) {
	steady, err := Generate(PlanSpec{Count: 4, IDs: 1, Duration: 4 * time.Second, Pattern: PatternSteady, Seed: 1})
	require.NoError(t, err)
	for i, op := range steady.Ops {
		require.Equal(t, time.Duration(i)*time.Second, op.At)
	}

	ramp, err := Generate(PlanSpec{Count: 10, IDs: 1, Duration: 10 * time.Second, Pattern: PatternRamp, Seed: 1})
	require.NoError(t, err)
	first := ramp.Ops[1].At - ramp.Ops[0].At
	last := ramp.Ops[9].At - ramp.Ops[8].At
	require.Less(t, last, first, "ramp gaps should shrink as the rate climbs")

	burst, err := Generate(PlanSpec{Count: 41, IDs: 1, Duration: 40 * time.Second, Pattern: PatternBurst, Seed: 1})
	require.NoError(t, err)
	require.Len(t, burst.Ops, 41)
	require.LessOrEqual(t, burst.Span(), 40*time.Second)
	for i := 1; i < len(burst.Ops); i++ {
		require.LessOrEqual(t, burst.Ops[i-1].At, burst.Ops[i].At, "ops must be sorted")
	}
}

func TestPlanFromRecords(t *testing.T) {
	records := []recorder.OpRecord{
		{Timestamp: epoch.Add(2 * time.Second), Op: recorder.OpTx, ID: 1, Delta: 4, SleepMs: 10},
		{Timestamp: epoch, Op: recorder.OpRead, ID: 2},
		{Timestamp: epoch.Add(time.Second), Op: "bogus", ID: 3},
	}
	plan := PlanFromRecords(records)
	require.Equal(t, []Op{
		{At: 0, Kind: recorder.OpRead, ID: 2},
		{At: 2 * time.Second, Kind: recorder.OpTx, ID: 1, Delta: 4, SleepMs: 10},
	}, plan.Ops)

	require.Empty(t, PlanFromRecords(nil).Ops)
}

func TestPlan_SaveLoad(t *testing.T) {
	plan, err := Generate(PlanSpec{Count: 10, IDs: 2, TxRatio: 0.5, Delta: 1, Duration: time.Second, Seed: 3})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, plan.Save(path))

	loaded, err := LoadPlan(path)
	require.NoError(t, err)
	require.Equal(t, plan, loaded)

	bad := Plan{Ops: []Op{{Kind: "drop"}}}
	require.NoError(t, bad.Save(path))
	_, err = LoadPlan(path)
	require.ErrorContains(t, err, "unknown op")
}
