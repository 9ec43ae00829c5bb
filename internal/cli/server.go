package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/SmitUplenchwar2687/Stall/internal/bench"
	"github.com/SmitUplenchwar2687/Stall/internal/chat"
	"github.com/SmitUplenchwar2687/Stall/internal/clock"
	"github.com/SmitUplenchwar2687/Stall/internal/config"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
	"github.com/SmitUplenchwar2687/Stall/internal/server"
	"github.com/SmitUplenchwar2687/Stall/internal/store"
)

const shutdownTimeout = 5 * time.Second

type serverOptions struct {
	addr           string
	requestTimeout time.Duration
	recordFile     string
	metrics        bool
	ensureSchema   bool
	noChat         bool
}

func (o *serverOptions) applyConfigIfUnset(cmd *cobra.Command, cfg config.ServerConfig) {
	if !cmd.Flags().Changed("addr") {
		o.addr = cfg.Addr
	}
	if !cmd.Flags().Changed("request-timeout") {
		o.requestTimeout = cfg.RequestTimeout
	}
	if !cmd.Flags().Changed("record") {
		o.recordFile = cfg.Record
	}
	if !cmd.Flags().Changed("metrics") {
		o.metrics = cfg.Metrics
	}
}

// running is a server with everything it owns. close releases the
// database and the admission limiter.
type running struct {
	srv      *server.Server
	recorder *recorder.Recorder
	close    func()
}

func newServerCmd(a *app) *cobra.Command {
	so := &serverOptions{}
	dbo := &dbOptions{}
	ao := &admissionOptions{}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP and WebSocket server",
		Long: `Starts the bench server in front of a relational database.

Endpoints:
  GET  /                     Service info
  GET  /health               Database reachability
  GET  /api/db/read          Sleep on the backend, then read a row
  POST /api/db/tx            Sleep, increment and read back in one transaction
  GET  /metrics              Prometheus metrics
  WS   /ws/events            Live feed of served operations
  WS   /ws/chat              Chat message log`,
		Example: `  stall server --driver mysql --dsn 'bench:bench@tcp(127.0.0.1:3306)/bench'
  stall server --driver sqlite --dsn file:bench.db --ensure-schema
  stall server --admission --admission-rate 50 --admission-window 1s
  stall server --admission --admission-algorithm redis --redis-host localhost:6379
  stall server --record served.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			so.applyConfigIfUnset(cmd, a.cfg.Server)
			dbo.applyConfigIfUnset(cmd, a.cfg.Database)
			ao.applyConfigIfUnset(cmd, a.cfg.Limiter, a.cfg.Redis)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rs, err := buildServer(ctx, so, dbo, ao, clock.NewReal(), a.logger)
			if err != nil {
				return err
			}
			defer rs.close()

			a.logger.Info("listening", "addr", so.addr, "driver", dbo.driver, "admission", ao.enabled)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := rs.srv.Start(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				err := rs.srv.Shutdown(shutdownCtx)
				exportRecords(rs.recorder, so.recordFile, a.logger)
				return err
			})
			return g.Wait()
		},
	}

	def := config.Default().Server
	cmd.Flags().StringVar(&so.addr, "addr", def.Addr, "address to listen on")
	cmd.Flags().DurationVar(&so.requestTimeout, "request-timeout", def.RequestTimeout, "deadline for each bench operation (0 = none)")
	cmd.Flags().StringVar(&so.recordFile, "record", def.Record, "record served operations to a JSON file (exported on shutdown)")
	cmd.Flags().BoolVar(&so.metrics, "metrics", def.Metrics, "serve Prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&so.ensureSchema, "ensure-schema", false, "create the tables before serving")
	cmd.Flags().BoolVar(&so.noChat, "no-chat", false, "disable the /ws/chat endpoint")
	dbo.addFlags(cmd)
	ao.addFlags(cmd)

	return cmd
}

// buildServer opens the database and wires every component of the server.
func buildServer(ctx context.Context, so *serverOptions, dbo *dbOptions, ao *admissionOptions, clk clock.Clock, logger *log.Logger) (*running, error) {
	db, err := dbo.open(ctx, logger)
	if err != nil {
		return nil, err
	}
	if so.ensureSchema {
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	lim, closeLimiter, err := createAdmissionLimiter(ctx, ao, clk, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	opts := server.Options{
		Bench:          bench.NewService(db, db.Dialect(), logger),
		DB:             db,
		Limiter:        lim,
		Logger:         logger,
		Clock:          clk,
		RequestTimeout: so.requestTimeout,
	}
	if !so.noChat {
		opts.Chat = newChatService(db)
	}
	if so.metrics {
		opts.Metrics = server.NewMetrics("stall")
	}
	if so.recordFile != "" {
		opts.Recorder = recorder.New(nil)
	}

	return &running{
		srv:      server.New(so.addr, opts),
		recorder: opts.Recorder,
		close: func() {
			if err := closeLimiter(); err != nil {
				logger.Warn("closing admission limiter", "err", err)
			}
			if err := db.Close(); err != nil {
				logger.Warn("closing database", "err", err)
			}
		},
	}, nil
}

func newChatService(db *store.DB) *chat.Service {
	return chat.NewService(chat.NewRepository(db, db.Dialect()), bench.NewInjector(db.Dialect()), db)
}

func exportRecords(rec *recorder.Recorder, path string, logger *log.Logger) {
	if rec == nil || path == "" {
		return
	}
	logger.Info("exporting records", "count", rec.Len(), "file", path)
	if err := rec.ExportFile(path); err != nil {
		logger.Error("exporting records", "err", err)
	}
}
