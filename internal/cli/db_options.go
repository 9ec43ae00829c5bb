package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Stall/internal/config"
	"github.com/SmitUplenchwar2687/Stall/internal/store"
)

type dbOptions struct {
	driver          string
	dsn             string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

func (o *dbOptions) addFlags(cmd *cobra.Command) {
	def := config.Default().Database
	cmd.Flags().StringVar(&o.driver, "driver", def.Driver, "database dialect (mysql, postgres, sqlite)")
	cmd.Flags().StringVar(&o.dsn, "dsn", def.DSN, "database DSN")
	cmd.Flags().IntVar(&o.maxOpenConns, "max-open-conns", def.MaxOpenConns, "max open connections (ignored for sqlite)")
	cmd.Flags().IntVar(&o.maxIdleConns, "max-idle-conns", def.MaxIdleConns, "max idle connections")
	cmd.Flags().DurationVar(&o.connMaxLifetime, "conn-max-lifetime", def.ConnMaxLifetime, "max connection lifetime")
}

// applyConfigIfUnset copies config values into every option whose flag was
// not given explicitly.
func (o *dbOptions) applyConfigIfUnset(cmd *cobra.Command, cfg config.DatabaseConfig) {
	if !cmd.Flags().Changed("driver") {
		o.driver = cfg.Driver
	}
	if !cmd.Flags().Changed("dsn") {
		o.dsn = cfg.DSN
	}
	if !cmd.Flags().Changed("max-open-conns") {
		o.maxOpenConns = cfg.MaxOpenConns
	}
	if !cmd.Flags().Changed("max-idle-conns") {
		o.maxIdleConns = cfg.MaxIdleConns
	}
	if !cmd.Flags().Changed("conn-max-lifetime") {
		o.connMaxLifetime = cfg.ConnMaxLifetime
	}
}

func (o *dbOptions) toOptions() store.Options {
	return store.Options{
		Driver:          o.driver,
		DSN:             o.dsn,
		MaxOpenConns:    o.maxOpenConns,
		MaxIdleConns:    o.maxIdleConns,
		ConnMaxLifetime: o.connMaxLifetime,
	}
}

func (o *dbOptions) open(ctx context.Context, logger *log.Logger) (*store.DB, error) {
	return store.Open(ctx, o.toOptions(), logger)
}
