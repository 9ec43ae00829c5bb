package bench

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/SmitUplenchwar2687/Stall/internal/store"
)

const (
	selectItemSQL  = `SELECT id, payload, cnt FROM bench_items WHERE id = :id`
	incrementSQL   = `UPDATE bench_items SET cnt = cnt + :delta WHERE id = :id`
	selectCountSQL = `SELECT cnt FROM bench_items WHERE id = :id`
)

// CounterStore issues one statement per call against whichever Queryer it is
// handed. It keeps no state between calls.
type CounterStore struct{}

// ReadByID returns the row for id, or ErrNotFound.
func (CounterStore) ReadByID(ctx context.Context, q store.Queryer, id int64) (Item, error) {
	var item Item
	err := store.Get(ctx, q, &item, selectItemSQL, store.Args{"id": id})
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, errors.Wrapf(err, "reading bench item %d", id)
	}
	return item, nil
}

// Increment adds delta to the count of id and returns the number of rows
// changed. Zero rows means no such id; it is not reported as an error.
func (CounterStore) Increment(ctx context.Context, q store.Queryer, id, delta int64) (int64, error) {
	n, err := store.Exec(ctx, q, incrementSQL, store.Args{"delta": delta, "id": id})
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing bench item %d", id)
	}
	return n, nil
}

// ReadCountByID returns only the count for id, or ErrNotFound.
func (CounterStore) ReadCountByID(ctx context.Context, q store.Queryer, id int64) (int64, error) {
	var cnt int64
	err := store.Get(ctx, q, &cnt, selectCountSQL, store.Args{"id": id})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, errors.Wrapf(err, "reading count of bench item %d", id)
	}
	return cnt, nil
}
