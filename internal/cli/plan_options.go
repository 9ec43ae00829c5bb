package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Stall/internal/loadgen"
)

// planOptions generate a workload plan from flags.
type planOptions struct {
	count    int
	ids      int
	firstID  int64
	txRatio  float64
	delta    int64
	sleepMs  int
	duration time.Duration
	pattern  string
	seed     int64
}

func (o *planOptions) addFlags(cmd *cobra.Command, def loadgen.PlanSpec) {
	cmd.Flags().IntVar(&o.count, "count", def.Count, "number of operations")
	cmd.Flags().IntVar(&o.ids, "ids", def.IDs, "number of distinct bench rows targeted")
	cmd.Flags().Int64Var(&o.firstID, "first-id", firstID(def.FirstID), "id of the first targeted row")
	cmd.Flags().Float64Var(&o.txRatio, "tx-ratio", def.TxRatio, "share of transactional increments (0 to 1)")
	cmd.Flags().Int64Var(&o.delta, "delta", def.Delta, "increment applied by each transaction")
	cmd.Flags().IntVar(&o.sleepMs, "sleep-ms", def.SleepMs, "backend delay per operation in milliseconds")
	cmd.Flags().DurationVar(&o.duration, "duration", def.Duration, "time span of the schedule (0 = all at once)")
	cmd.Flags().StringVar(&o.pattern, "pattern", string(def.Pattern), "arrival pattern (steady, burst, ramp)")
	cmd.Flags().Int64Var(&o.seed, "seed", def.Seed, "random seed (0 = time based)")
}

func (o *planOptions) applyConfigIfUnset(cmd *cobra.Command, spec loadgen.PlanSpec) {
	if !cmd.Flags().Changed("count") {
		o.count = spec.Count
	}
	if !cmd.Flags().Changed("ids") {
		o.ids = spec.IDs
	}
	if !cmd.Flags().Changed("first-id") {
		o.firstID = firstID(spec.FirstID)
	}
	if !cmd.Flags().Changed("tx-ratio") {
		o.txRatio = spec.TxRatio
	}
	if !cmd.Flags().Changed("delta") {
		o.delta = spec.Delta
	}
	if !cmd.Flags().Changed("sleep-ms") {
		o.sleepMs = spec.SleepMs
	}
	if !cmd.Flags().Changed("duration") {
		o.duration = spec.Duration
	}
	if !cmd.Flags().Changed("pattern") {
		o.pattern = string(spec.Pattern)
	}
	if !cmd.Flags().Changed("seed") {
		o.seed = spec.Seed
	}
}

func (o *planOptions) spec() loadgen.PlanSpec {
	return loadgen.PlanSpec{
		Count:    o.count,
		IDs:      o.ids,
		FirstID:  o.firstID,
		TxRatio:  o.txRatio,
		Delta:    o.delta,
		SleepMs:  o.sleepMs,
		Duration: o.duration,
		Pattern:  loadgen.Pattern(o.pattern),
		Seed:     o.seed,
	}
}
