package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Stall/internal/bench"
	"github.com/SmitUplenchwar2687/Stall/internal/clock"
	"github.com/SmitUplenchwar2687/Stall/internal/config"
	"github.com/SmitUplenchwar2687/Stall/internal/loadgen"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

type loadOptions struct {
	target      string
	output      string
	concurrency int
	rate        int
	burst       int
	speed       float64
	verify      bool

	planFile   string
	replayFile string
	direct     bool
}

func (o *loadOptions) applyConfigIfUnset(cmd *cobra.Command, cfg config.LoadConfig) {
	if !cmd.Flags().Changed("target") {
		o.target = cfg.Target
	}
	if !cmd.Flags().Changed("output") {
		o.output = cfg.Output
	}
	if !cmd.Flags().Changed("concurrency") {
		o.concurrency = cfg.Concurrency
	}
	if !cmd.Flags().Changed("rate") {
		o.rate = cfg.Rate
	}
	if !cmd.Flags().Changed("burst") {
		o.burst = cfg.Burst
	}
	if !cmd.Flags().Changed("speed") {
		o.speed = cfg.Speed
	}
	if !cmd.Flags().Changed("verify") {
		o.verify = cfg.Verify
	}
}

func (o *loadOptions) runnerConfig() loadgen.RunnerConfig {
	return loadgen.RunnerConfig{
		Concurrency: o.concurrency,
		Rate:        o.rate,
		Burst:       o.burst,
		Speed:       o.speed,
		Verify:      o.verify,
	}
}

func newLoadCmd(a *app) *cobra.Command {
	lo := &loadOptions{}
	po := &planOptions{}
	dbo := &dbOptions{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Drive concurrent slow operations and report latency and lost updates",
		Long: `Runs a workload of reads and transactional increments against a stall
server (or, with --direct, against the database itself) and prints latency
percentiles and outcomes per operation.

The workload comes from one of:
  --plan FILE      a plan written by "stall generate plan"
  --replay FILE    records exported by "stall server --record"
  otherwise        a plan generated from the --count/--ids/... flags

With --verify the counters of every incremented row are read before and
after the run, and the command fails if any increment was lost.`,
		Example: `  stall load --count 500 --ids 5 --tx-ratio 1 --sleep-ms 50 --concurrency 32 --verify
  stall load --plan plan.json --speed 2 --output plain
  stall load --replay served.json --target http://10.0.0.5:8080
  stall load --direct --driver sqlite --dsn file:bench.db --count 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lo.applyConfigIfUnset(cmd, a.cfg.Load)
			po.applyConfigIfUnset(cmd, a.cfg.Load.Plan)
			dbo.applyConfigIfUnset(cmd, a.cfg.Database)

			plan, err := lo.resolvePlan(po)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			target, closeTarget, err := lo.openTarget(ctx, dbo, a.logger)
			if err != nil {
				return err
			}
			defer closeTarget()

			runner := loadgen.NewRunner(target, lo.runnerConfig(), clock.NewReal(), a.logger)
			rep, runErr := runner.Run(ctx, plan)
			if rep != nil {
				if err := rep.Render(cmd.OutOrStdout(), lo.output); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if n := rep.UnconfirmedUpdates(); n > 0 {
				a.logger.Warn("rows moved by more than the confirmed increments", "unconfirmed", n)
			}
			if lost := rep.LostUpdates(); lost > 0 {
				return fmt.Errorf("%d increments were lost", lost)
			}
			return nil
		},
	}

	def := config.Default().Load
	cmd.Flags().StringVar(&lo.target, "target", def.Target, "base URL of the stall server")
	cmd.Flags().StringVar(&lo.output, "output", def.Output, "report format (plain, table, json)")
	cmd.Flags().IntVar(&lo.concurrency, "concurrency", def.Concurrency, "number of workers")
	cmd.Flags().IntVar(&lo.rate, "rate", def.Rate, "max operations per second (0 = follow the plan schedule)")
	cmd.Flags().IntVar(&lo.burst, "burst", def.Burst, "burst allowed by --rate")
	cmd.Flags().Float64Var(&lo.speed, "speed", def.Speed, "schedule speed multiplier when --rate is 0 (0 = as fast as possible)")
	cmd.Flags().BoolVar(&lo.verify, "verify", def.Verify, "read counters before and after and report lost increments")
	cmd.Flags().StringVar(&lo.planFile, "plan", "", "plan file to run")
	cmd.Flags().StringVar(&lo.replayFile, "replay", "", "recorded operations to replay")
	cmd.Flags().BoolVar(&lo.direct, "direct", false, "call the database directly instead of the HTTP server")
	cmd.MarkFlagsMutuallyExclusive("plan", "replay")
	po.addFlags(cmd, def.Plan)
	dbo.addFlags(cmd)

	return cmd
}

func (o *loadOptions) resolvePlan(po *planOptions) (loadgen.Plan, error) {
	switch {
	case o.planFile != "":
		return loadgen.LoadPlan(o.planFile)
	case o.replayFile != "":
		records, err := recorder.LoadFile(o.replayFile)
		if err != nil {
			return loadgen.Plan{}, err
		}
		plan := loadgen.PlanFromRecords(records)
		if len(plan.Ops) == 0 {
			return plan, fmt.Errorf("no replayable operations in %s", o.replayFile)
		}
		return plan, nil
	default:
		return loadgen.Generate(po.spec())
	}
}

// openTarget returns the engine the runner drives. The close func is always
// safe to call.
func (o *loadOptions) openTarget(ctx context.Context, dbo *dbOptions, logger *log.Logger) (loadgen.Target, func(), error) {
	if o.direct {
		db, err := dbo.open(ctx, logger)
		if err != nil {
			return nil, func() {}, err
		}
		svc := bench.NewService(db, db.Dialect(), logger)
		return loadgen.Direct(svc), func() { _ = db.Close() }, nil
	}

	client := loadgen.NewClient(o.target, nil)
	if err := client.Health(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("target %s is not healthy: %w", o.target, err)
	}
	return client, func() {}, nil
}
