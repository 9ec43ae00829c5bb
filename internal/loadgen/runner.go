package loadgen

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/SmitUplenchwar2687/Stall/internal/bench"
	"github.com/SmitUplenchwar2687/Stall/internal/clock"
	"github.com/SmitUplenchwar2687/Stall/internal/limiter"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

// RunnerConfig controls how a plan is driven.
type RunnerConfig struct {
	Concurrency int `yaml:"concurrency"` // workers; 0 means 1

	// Rate caps dispatches per second using a token bucket. 0 is unpaced.
	Rate  int `yaml:"rate"`
	Burst int `yaml:"burst"` // 0 means 1

	// Speed replays the plan's own schedule: 1 is real time, 10 is ten
	// times faster. 0 ignores op offsets.
	Speed float64 `yaml:"speed"`

	// Verify reads every row touched by a tx op before and after the run and
	// reports lost updates. It assumes nothing else writes those rows.
	Verify bool `yaml:"verify"`
}

// Runner drives a plan against a Target with a fixed pool of workers.
type Runner struct {
	target Target
	cfg    RunnerConfig
	clock  clock.Clock
	pacer  limiter.Limiter
	logger *log.Logger
}

func NewRunner(target Target, cfg RunnerConfig, c clock.Clock, logger *log.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if c == nil {
		c = clock.NewReal()
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{
		target: target,
		cfg:    cfg,
		clock:  c,
		logger: logger.WithPrefix("load"),
	}
	if cfg.Rate > 0 {
		r.pacer = limiter.NewTokenBucket(cfg.Rate, time.Second, cfg.Burst, c)
	}
	return r
}

// Run executes every op of plan and returns the report. Failed ops are
// counted in the report; Run only fails when the plan is empty or ctx ends,
// in which case the partial report is returned alongside ctx's error.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Report, error) {
	if len(plan.Ops) == 0 {
		return nil, errors.New("plan has no operations")
	}
	ops := make([]Op, len(plan.Ops))
	copy(ops, plan.Ops)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].At < ops[j].At })

	var before map[int64]int64
	if r.cfg.Verify {
		before = r.snapshot(ctx, txIDs(ops))
	}

	start := r.clock.Now()
	rep := newReport(start)
	r.logger.Info("starting run", "ops", len(ops), "concurrency", r.cfg.Concurrency, "rate", r.cfg.Rate, "speed", r.cfg.Speed)

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan Op)

	g.Go(func() error {
		defer close(work)
		for _, op := range ops {
			if err := r.pace(gctx, start, op); err != nil {
				return err
			}
			select {
			case work <- op:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < r.cfg.Concurrency; i++ {
		g.Go(func() error {
			for op := range work {
				r.execute(gctx, op, rep)
			}
			return nil
		})
	}
	runErr := g.Wait()
	rep.Elapsed = r.clock.Since(start)

	if r.cfg.Verify && runErr == nil {
		after := r.snapshot(ctx, txIDs(ops))
		rep.verify(before, after)
	}
	r.logger.Info("run finished", "elapsed", rep.Elapsed, "ok", rep.TotalOK(), "failed", rep.TotalFailed())
	return rep, runErr
}

func (r *Runner) pace(ctx context.Context, start time.Time, op Op) error {
	if r.cfg.Speed > 0 {
		due := start.Add(time.Duration(float64(op.At) / r.cfg.Speed))
		if err := clock.Sleep(ctx, r.clock, due.Sub(r.clock.Now())); err != nil {
			return err
		}
	}
	if r.pacer != nil {
		return limiter.Wait(ctx, r.pacer, r.clock, "load")
	}
	return ctx.Err()
}

func (r *Runner) execute(ctx context.Context, op Op, rep *Report) {
	began := r.clock.Now()
	var err error
	switch op.Kind {
	case recorder.OpTx:
		_, err = r.target.Increment(ctx, bench.IncrementRequest{ID: op.ID, Delta: op.Delta}, op.SleepMs)
	default:
		_, err = r.target.Read(ctx, op.ID, op.SleepMs)
	}
	if err != nil {
		r.logger.Debug("op failed", "op", op.Kind, "id", op.ID, "err", err)
	}
	rep.observe(op, r.clock.Since(began), ErrorKind(err))
}

// snapshot reads the current count of each id. Rows that cannot be read are
// left out and later reported as unverified.
func (r *Runner) snapshot(ctx context.Context, ids []int64) map[int64]int64 {
	out := make(map[int64]int64, len(ids))
	for _, id := range ids {
		res, err := r.target.Read(ctx, id, 0)
		if err != nil {
			r.logger.Warn("verification read failed", "id", id, "err", err)
			continue
		}
		out[id] = res.Count
	}
	return out
}

func txIDs(ops []Op) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, op := range ops {
		if op.Kind == recorder.OpTx && !seen[op.ID] {
			seen[op.ID] = true
			ids = append(ids, op.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
