package store

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// EnsureSchema creates the bench and chat tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range db.dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "creating schema")
		}
	}
	db.logger.Debug("schema ready", "dialect", db.dialect.Name)
	return nil
}

// SeedSpec describes the bench rows written by SeedBenchItems.
type SeedSpec struct {
	Count      int
	FirstID    int64
	Payload    string
	StartCount int64
}

// SeedBenchItems upserts Count rows with consecutive ids starting at FirstID,
// each carrying Payload and StartCount. Existing rows are reset.
func (db *DB) SeedBenchItems(ctx context.Context, spec SeedSpec) (int, error) {
	if spec.Count <= 0 {
		return 0, fmt.Errorf("seed count must be positive, got %d", spec.Count)
	}
	if spec.FirstID <= 0 {
		spec.FirstID = 1
	}

	err := db.InTx(ctx, func(tx Queryer) error {
		for i := 0; i < spec.Count; i++ {
			id := spec.FirstID + int64(i)
			payload := spec.Payload
			if payload == "" {
				payload = fmt.Sprintf("item-%d", id)
			}
			_, err := Exec(ctx, tx, db.dialect.UpsertBenchItemSQL, Args{
				"id":      id,
				"payload": payload,
				"cnt":     spec.StartCount,
			})
			if err != nil {
				return errors.Wrapf(err, "seeding bench item %d", id)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	db.logger.Info("seeded bench items", "count", spec.Count, "first_id", spec.FirstID)
	return spec.Count, nil
}
