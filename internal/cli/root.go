package cli

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Stall/internal/config"
)

// app is what PersistentPreRunE hands to every subcommand: the merged
// config and a logger built from it.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *log.Logger
}

// NewRootCmd creates the root stall command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "stall",
		Short: "Slow, concurrent database transactions on demand",
		Long: `Stall serves a small transactional workload over HTTP so you can see how a
server and its database behave when many slow transactions pile up.

Each request can hold the database for a chosen number of milliseconds
before incrementing a counter and reading it back in the same transaction.
The load command drives that workload and checks that no update was lost.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "log format (text, json, logfmt)")

	root.AddCommand(
		newServerCmd(a),
		newSchemaCmd(a),
		newSeedCmd(a),
		newLoadCmd(a),
		newGenerateCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
