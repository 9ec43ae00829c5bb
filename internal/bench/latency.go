package bench

import (
	"context"

	"github.com/pkg/errors"

	"github.com/SmitUplenchwar2687/Stall/internal/store"
)

// Injector holds the backend for a requested time using the dialect's sleep
// statement. It never touches a row.
type Injector struct {
	dialect store.Dialect
}

// NewInjector returns an Injector for the given dialect.
func NewInjector(d store.Dialect) *Injector {
	return &Injector{dialect: d}
}

// Delay blocks on the backend for ms milliseconds. Zero is legal and still
// costs one round trip. Callers reject negative values. If ctx ends first
// the error wraps ctx's error.
func (in *Injector) Delay(ctx context.Context, q store.Queryer, ms int) error {
	args, release := in.dialect.SleepArgs(ctx, float64(ms)/1000.0)
	defer release()
	if _, err := store.Exec(ctx, q, in.dialect.SleepSQL, args); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(ctxErr, "sleeping %dms: %v", ms, err)
		}
		return errors.Wrapf(err, "sleeping %dms", ms)
	}
	return nil
}
