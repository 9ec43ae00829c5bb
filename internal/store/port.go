package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Queryer is the SQL execution port. Both *sqlx.DB and *sqlx.Tx satisfy it,
// so every call names the unit of work it runs in: a transaction handle, or
// the pool for statements that need no atomicity.
type Queryer interface {
	BindNamed(query string, arg interface{}) (string, []interface{}, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Args are named bindings for a statement. Keys match the ":name" markers.
type Args map[string]interface{}

// Exec runs a mutating statement and returns the number of rows it affected.
func Exec(ctx context.Context, q Queryer, query string, arg Args) (int64, error) {
	res, err := execNamed(ctx, q, query, arg)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading rows affected")
	}
	return n, nil
}

// Insert runs an INSERT and returns the id generated by the backend.
func Insert(ctx context.Context, q Queryer, query string, arg Args) (int64, error) {
	res, err := execNamed(ctx, q, query, arg)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "reading generated id")
	}
	return id, nil
}

// Get scans exactly one row into dest. sql.ErrNoRows is returned unwrapped
// so callers can treat it as a not-found signal.
func Get(ctx context.Context, q Queryer, dest interface{}, query string, arg Args) error {
	stmt, args, err := q.BindNamed(query, arg)
	if err != nil {
		return errors.Wrapf(err, "binding %q", query)
	}
	if err := q.GetContext(ctx, dest, stmt, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return errors.WithStack(err)
	}
	return nil
}

// Select scans every returned row into dest, which must be a pointer to a slice.
func Select(ctx context.Context, q Queryer, dest interface{}, query string, arg Args) error {
	stmt, args, err := q.BindNamed(query, arg)
	if err != nil {
		return errors.Wrapf(err, "binding %q", query)
	}
	return errors.WithStack(q.SelectContext(ctx, dest, stmt, args...))
}

func execNamed(ctx context.Context, q Queryer, query string, arg Args) (sql.Result, error) {
	stmt, args, err := q.BindNamed(query, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "binding %q", query)
	}
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return res, nil
}
