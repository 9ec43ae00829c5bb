package loadgen

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/Stall/internal/bench"
	"github.com/SmitUplenchwar2687/Stall/internal/clock"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
	"github.com/SmitUplenchwar2687/Stall/internal/store"
	"github.com/SmitUplenchwar2687/Stall/internal/store/storetest"
)

func newEngine(t *testing.T) (*bench.Service, *store.DB) {
	t.Helper()
	db := storetest.Open(t)
	storetest.Seed(t, db, 1, "a", 0)
	storetest.Seed(t, db, 2, "b", 100)
	return bench.NewService(db, db.Dialect(), log.New(io.Discard)), db
}

func txPlan(n int, id, delta int64) Plan {
	ops := make([]Op, n)
	for i := range ops {
		ops[i] = Op{Kind: recorder.OpTx, ID: id, Delta: delta}
	}
	return Plan{Ops: ops}
}

func TestRunner_NoLostUpdates(t *testing.T) {
	svc, db := newEngine(t)
	plan := txPlan(60, 1, 1)
	plan.Ops = append(plan.Ops, txPlan(20, 2, -2).Ops...)

	r := NewRunner(Direct(svc), RunnerConfig{Concurrency: 8, Verify: true}, clock.NewReal(), log.New(io.Discard))
	rep, err := r.Run(context.Background(), plan)
	require.NoError(t, err)

	require.Equal(t, 80, rep.TotalOK())
	require.Zero(t, rep.TotalFailed())
	require.Equal(t, map[int64]int64{1: 60, 2: -40}, rep.Expected)
	require.Equal(t, []Check{
		{ID: 1, Before: 0, Applied: 60, After: 60, Verified: true},
		{ID: 2, Before: 100, Applied: -40, After: 60, Verified: true},
	}, rep.Checks)
	require.Zero(t, rep.LostUpdates())

	cnt, _ := storetest.Count(t, db, 1)
	require.EqualValues(t, 60, cnt)
}

func TestRunner_CountsFailuresByKind(t *testing.T) {
	svc, _ := newEngine(t)
	plan := Plan{Ops: []Op{
		{Kind: recorder.OpRead, ID: 1},
		{Kind: recorder.OpRead, ID: 404},
		{Kind: recorder.OpTx, ID: 404, Delta: 1},
		{Kind: recorder.OpTx, ID: 1, Delta: 1, SleepMs: -1},
	}}

	rep, err := NewRunner(Direct(svc), RunnerConfig{Concurrency: 2}, nil, log.New(io.Discard)).Run(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"ok": 1, "not_found": 1}, rep.Outcomes(recorder.OpRead))
	require.Equal(t, map[string]int{"not_found": 1, "invalid_argument": 1}, rep.Outcomes(recorder.OpTx))
	require.Empty(t, rep.Expected)
}

func TestRunner_EmptyPlan(t *testing.T) {
	svc, _ := newEngine(t)
	_, err := NewRunner(Direct(svc), RunnerConfig{}, nil, nil).Run(context.Background(), Plan{})
	require.Error(t, err)
}

func TestRunner_RatePacing(t *testing.T) {
	svc, _ := newEngine(t)
	plan := Plan{Ops: make([]Op, 6)}
	for i := range plan.Ops {
		plan.Ops[i] = Op{Kind: recorder.OpRead, ID: 1}
	}

	r := NewRunner(Direct(svc), RunnerConfig{Concurrency: 4, Rate: 100, Burst: 1}, clock.NewReal(), log.New(io.Discard))
	start := time.Now()
	rep, err := r.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, 6, rep.TotalOK())
	// One token up front, then one every 10ms.
	require.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestRunner_SpeedFollowsSchedule(t *testing.T) {
	svc, _ := newEngine(t)
	plan := Plan{Ops: []Op{
		{At: 0, Kind: recorder.OpRead, ID: 1},
		{At: 200 * time.Millisecond, Kind: recorder.OpRead, ID: 1},
	}}

	start := time.Now()
	_, err := NewRunner(Direct(svc), RunnerConfig{Speed: 4}, clock.NewReal(), log.New(io.Discard)).Run(context.Background(), plan)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRunner_ContextCanceled(t *testing.T) {
	svc, _ := newEngine(t)
	plan := Plan{Ops: []Op{
		{At: 0, Kind: recorder.OpRead, ID: 1},
		{At: time.Hour, Kind: recorder.OpRead, ID: 1},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rep, err := NewRunner(Direct(svc), RunnerConfig{Speed: 1}, clock.NewReal(), log.New(io.Discard)).Run(ctx, plan)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, rep)
	require.Equal(t, 1, rep.TotalOK())
}
