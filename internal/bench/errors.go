package bench

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument marks caller input rejected before any backend call.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks a bench row that does not exist.
	ErrNotFound = errors.New("bench item not found")
)

// StateError reports a row that was missing when the operation needed it.
type StateError struct {
	Msg string
	ID  int64
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s. id=%d", e.Msg, e.ID)
}

// Unwrap lets errors.Is(err, ErrNotFound) match every StateError.
func (e *StateError) Unwrap() error {
	return ErrNotFound
}

func notFound(id int64) error {
	return &StateError{Msg: "bench item not found", ID: id}
}

func notFoundAfterUpdate(id int64) error {
	return &StateError{Msg: "bench item not found after update", ID: id}
}

// Kind classifies an error returned by Service.
type Kind string

const (
	KindNone            Kind = ""
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindTimeout         Kind = "timeout"
	KindCanceled        Kind = "canceled"
	KindBackend         Kind = "backend_failure"
)

// KindOf maps err onto the failure taxonomy. Anything that is not a caller
// or state error is a backend failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindBackend
	}
}

func validateSleep(ms int) error {
	if ms < 0 {
		return errors.Wrapf(ErrInvalidArgument, "sleepMs must be >= 0, got %d", ms)
	}
	return nil
}
