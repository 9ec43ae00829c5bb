package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

var (
	sqliteOnce sync.Once
	sqliteErr  error

	// sleepWaits maps the :wait token of an in-flight sleep to the Done
	// channel of the context that issued it. SQLite scalar functions never
	// see the statement's context, so this is how a cancelled caller frees
	// the connection early.
	sleepWaits sync.Map
	sleepSeq   atomic.Int64
)

// SleepArgs binds SleepSQL. release must be called once the statement has
// returned.
func (d Dialect) SleepArgs(ctx context.Context, seconds float64) (Args, func()) {
	if d.Name != DialectSQLite {
		return Args{"seconds": seconds}, func() {}
	}
	token := sleepSeq.Add(1)
	sleepWaits.Store(token, ctx.Done())
	return Args{"seconds": seconds, "wait": token}, func() { sleepWaits.Delete(token) }
}

// registerSQLiteFuncs installs sleep(seconds), the SQLite stand-in for
// MySQL's SLEEP, and teaches sqlx that the "sqlite" driver uses '?' bindvars.
func registerSQLiteFuncs() error {
	sqliteOnce.Do(func() {
		sqlx.BindDriver("sqlite", sqlx.QUESTION)
		if sqliteErr = sqlite.RegisterScalarFunction("sleep", 1, sqliteSleep); sqliteErr != nil {
			return
		}
		sqliteErr = sqlite.RegisterScalarFunction("sleep", 2, sqliteSleep)
	})
	return sqliteErr
}

func sqliteSleep(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	var seconds float64
	switch v := args[0].(type) {
	case float64:
		seconds = v
	case int64:
		seconds = float64(v)
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("sleep: unsupported argument type %T", v)
	}
	if seconds <= 0 {
		return int64(0), nil
	}

	var done <-chan struct{}
	if len(args) > 1 {
		if token, ok := args[1].(int64); ok {
			if ch, ok := sleepWaits.Load(token); ok {
				done = ch.(<-chan struct{})
			}
		}
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return int64(0), nil
	case <-done:
		return nil, fmt.Errorf("sleep interrupted")
	}
}
