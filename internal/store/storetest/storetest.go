// Package storetest opens throwaway SQLite databases for tests in other packages.
package storetest

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/SmitUplenchwar2687/Stall/internal/store"
)

// Open returns a file-backed SQLite database with the schema applied.
// It is closed when the test ends.
func Open(t testing.TB) *store.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "stall.db") + "?_pragma=busy_timeout(5000)"
	db, err := store.Open(context.Background(), store.Options{Driver: store.DialectSQLite, DSN: dsn}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error: %v", err)
	}
	return db
}

// Seed writes one bench row.
func Seed(t testing.TB, db *store.DB, id int64, payload string, cnt int64) {
	t.Helper()
	_, err := db.SeedBenchItems(context.Background(), store.SeedSpec{
		Count:      1,
		FirstID:    id,
		Payload:    payload,
		StartCount: cnt,
	})
	if err != nil {
		t.Fatalf("seed bench item %d: %v", id, err)
	}
}

// Count reads cnt for id outside any transaction. ok is false when the row is absent.
func Count(t testing.TB, db *store.DB, id int64) (cnt int64, ok bool) {
	t.Helper()
	err := db.GetContext(context.Background(), &cnt, "SELECT cnt FROM bench_items WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false
	}
	if err != nil {
		t.Fatalf("read count %d: %v", id, err)
	}
	return cnt, true
}
