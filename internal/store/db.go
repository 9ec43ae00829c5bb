package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	// postgres driver; mysql is imported by mysql.go.
	_ "github.com/lib/pq"
)

const (
	defaultMaxOpenConns    = 64
	defaultMaxIdleConns    = 16
	defaultConnMaxLifetime = 5 * time.Minute
)

// Options configures the connection pool.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB is a pooled connection to the relational backend. It is the
// non-transactional Queryer and opens transactional boundaries with InTx.
type DB struct {
	*sqlx.DB
	dialect Dialect
	logger  *log.Logger
}

// Open connects to the backend described by opts and verifies it with a ping.
func Open(ctx context.Context, opts Options, logger *log.Logger) (*DB, error) {
	dialect, err := LookupDialect(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("dsn is required for %s", dialect.Name)
	}
	dsn := opts.DSN
	switch dialect.Name {
	case DialectMySQL:
		if dsn, err = normalizeMySQLDSN(dsn); err != nil {
			return nil, err
		}
	case DialectSQLite:
		if err := registerSQLiteFuncs(); err != nil {
			return nil, err
		}
	}

	conn, err := sqlx.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dialect.Name)
	}
	applyPool(conn, dialect, opts)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "pinging %s", dialect.Name)
	}
	return New(conn, dialect, logger), nil
}

// New wraps an existing connection.
func New(conn *sqlx.DB, dialect Dialect, logger *log.Logger) *DB {
	if logger == nil {
		logger = log.Default()
	}
	return &DB{
		DB:      conn,
		dialect: dialect,
		logger:  logger.WithPrefix("store"),
	}
}

func applyPool(conn *sqlx.DB, dialect Dialect, opts Options) {
	if dialect.Name == DialectSQLite {
		// One writer at a time; a second connection would hit SQLITE_BUSY
		// instead of queueing behind the open transaction.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		return
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxIdle)
	conn.SetConnMaxLifetime(lifetime)
}

// Dialect returns the statements for this backend.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// InTx runs fn inside one transaction. fn receives the transaction handle and
// must route every statement through it. The transaction commits only if fn
// returns nil; an error, a panic or a cancelled ctx rolls it back.
func (db *DB) InTx(ctx context.Context, fn func(tx Queryer) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			db.rollback(tx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		db.rollback(tx)
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (db *DB) rollback(tx *sqlx.Tx) {
	// ErrTxDone means the driver already rolled back on ctx cancellation.
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		db.logger.Warn("rollback failed", "err", err)
	}
}
