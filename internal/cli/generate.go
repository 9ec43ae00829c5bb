package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Stall/internal/config"
	"github.com/SmitUplenchwar2687/Stall/internal/loadgen"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate workload plans and config",
		Long: `Generates files for the other commands.

Use "generate plan" to write a workload plan for "stall load --plan".
Use "generate config" to write an example YAML config.`,
	}
	cmd.AddCommand(newGeneratePlanCmd(a), newGenerateConfigCmd())
	return cmd
}

func newGeneratePlanCmd(a *app) *cobra.Command {
	po := &planOptions{}
	var output string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a workload plan file",
		Long: `Creates a deterministic (for a given --seed) list of reads and
transactional increments with their offsets from the start of the run.

Patterns:
  steady    Evenly spaced operations
  burst     A few dense bursts with quiet gaps
  ramp      A steadily climbing arrival rate`,
		Example: `  stall generate plan --output plan.json --count 1000 --ids 5
  stall generate plan --output burst.json --pattern burst --duration 30s --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			po.applyConfigIfUnset(cmd, a.cfg.Load.Plan)
			spec := po.spec()
			plan, err := loadgen.Generate(spec)
			if err != nil {
				return err
			}
			if err := plan.Save(output); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Generated %d operations to %s\n", len(plan.Ops), output)
			fmt.Fprintf(w, "  Rows:     %d..%d\n", spec.FirstID, spec.FirstID+int64(spec.IDs)-1)
			fmt.Fprintf(w, "  Span:     %s\n", plan.Span())
			fmt.Fprintf(w, "  Pattern:  %s\n", spec.Pattern)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "plan.json", "output file path")
	po.addFlags(cmd, config.Default().Load.Plan)
	return cmd
}

func newGenerateConfigCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate an example YAML config file",
		Example: `  stall generate config --output stall.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated example config at %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "stall.yaml", "output file path")
	return cmd
}
