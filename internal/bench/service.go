package bench

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/SmitUplenchwar2687/Stall/internal/store"
)

// Database is the non-transactional Queryer plus the ability to open a
// transactional boundary. *store.DB implements it.
type Database interface {
	store.Queryer
	InTx(ctx context.Context, fn func(tx store.Queryer) error) error
}

// Counter is the row access used by Service. CounterStore implements it.
type Counter interface {
	ReadByID(ctx context.Context, q store.Queryer, id int64) (Item, error)
	Increment(ctx context.Context, q store.Queryer, id, delta int64) (int64, error)
	ReadCountByID(ctx context.Context, q store.Queryer, id int64) (int64, error)
}

// Delayer holds the backend for a number of milliseconds. Injector implements it.
type Delayer interface {
	Delay(ctx context.Context, q store.Queryer, ms int) error
}

// Service runs the delay → mutate → verify workload. It keeps no state of
// its own; consistency between concurrent callers comes from the backend's
// transaction isolation, so one Service may be shared by any number of
// goroutines.
type Service struct {
	db      Database
	counter Counter
	delayer Delayer
	logger  *log.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithCounter replaces the row access.
func WithCounter(c Counter) Option {
	return func(s *Service) { s.counter = c }
}

// WithDelayer replaces the latency injector.
func WithDelayer(d Delayer) Option {
	return func(s *Service) { s.delayer = d }
}

// NewService builds a Service on db, using the SQL counter store and the
// injector for dialect.
func NewService(db Database, dialect store.Dialect, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		db:      db,
		counter: CounterStore{},
		delayer: NewInjector(dialect),
		logger:  logger.WithPrefix("bench"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadWithDelay sleeps on the backend for delayMs, then reads row id. Each
// step is its own round trip; nothing is mutated, so no transaction is
// opened. The sleep statement is issued even for a zero delay.
func (s *Service) ReadWithDelay(ctx context.Context, id int64, delayMs int) (ReadResult, error) {
	if err := validateSleep(delayMs); err != nil {
		return ReadResult{}, err
	}

	if err := s.delayer.Delay(ctx, s.db, delayMs); err != nil {
		return ReadResult{}, err
	}

	item, err := s.counter.ReadByID(ctx, s.db, id)
	if errors.Is(err, ErrNotFound) {
		return ReadResult{}, notFound(id)
	}
	if err != nil {
		return ReadResult{}, err
	}

	return ReadResult{
		ID:          item.ID,
		Payload:     item.Payload,
		Count:       item.Count,
		SleepMillis: delayMs,
	}, nil
}

// IncrementInTransaction applies req inside one transaction: optional sleep,
// increment, then a readback of the new count through the same handle. Any
// failure rolls the whole transaction back, including an increment that
// matched no row. Unlike ReadWithDelay, a zero delay skips the sleep
// statement entirely.
func (s *Service) IncrementInTransaction(ctx context.Context, req IncrementRequest, delayMs int) (IncrementResult, error) {
	if err := validateSleep(delayMs); err != nil {
		return IncrementResult{}, err
	}

	var res IncrementResult
	err := s.db.InTx(ctx, func(tx store.Queryer) error {
		if delayMs > 0 {
			if err := s.delayer.Delay(ctx, tx, delayMs); err != nil {
				return err
			}
		}

		updated, err := s.counter.Increment(ctx, tx, req.ID, req.Delta)
		if err != nil {
			return err
		}
		if updated == 0 {
			return notFound(req.ID)
		}

		cnt, err := s.counter.ReadCountByID(ctx, tx, req.ID)
		if errors.Is(err, ErrNotFound) {
			return notFoundAfterUpdate(req.ID)
		}
		if err != nil {
			return err
		}

		res = IncrementResult{
			ID:          req.ID,
			Count:       cnt,
			Delta:       req.Delta,
			SleepMillis: delayMs,
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("transaction rolled back", "id", req.ID, "delta", req.Delta, "sleep_ms", delayMs, "err", err)
		return IncrementResult{}, err
	}
	return res, nil
}
