package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/SmitUplenchwar2687/Stall/internal/bench"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

// errorBody is the JSON shape of every failed bench response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	ID    *int64 `json:"id,omitempty"`
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	rec := s.newRecord(r, recorder.OpRead)

	id, err := queryInt64(r, "id", true)
	if err == nil {
		rec.ID = id
		rec.SleepMs, err = queryInt(r, "sleepMs")
	}
	if err != nil {
		s.fail(w, &rec, err)
		return
	}
	if !s.admit(w, r, &rec) {
		return
	}

	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	done := s.track()
	res, err := s.bench.ReadWithDelay(ctx, rec.ID, rec.SleepMs)
	done()

	if err != nil {
		s.fail(w, &rec, err)
		return
	}
	rec.Count = res.Count
	rec.Status = http.StatusOK
	writeJSON(w, http.StatusOK, res)
	s.observe(rec)
}

func (s *Server) handleTx(w http.ResponseWriter, r *http.Request) {
	rec := s.newRecord(r, recorder.OpTx)

	sleepMs, err := queryInt(r, "sleepMs")
	if err != nil {
		s.fail(w, &rec, err)
		return
	}
	rec.SleepMs = sleepMs

	var req bench.IncrementRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.fail(w, &rec, errors.Wrapf(bench.ErrInvalidArgument, "invalid request body: %v", err))
		return
	}
	rec.ID, rec.Delta = req.ID, req.Delta
	if !s.admit(w, r, &rec) {
		return
	}

	ctx, cancel := s.opContext(r.Context())
	defer cancel()
	done := s.track()
	res, err := s.bench.IncrementInTransaction(ctx, req, sleepMs)
	done()

	if err != nil {
		s.fail(w, &rec, err)
		return
	}
	rec.Count = res.Count
	rec.Status = http.StatusOK
	writeJSON(w, http.StatusOK, res)
	s.observe(rec)
}

func (s *Server) newRecord(r *http.Request, op recorder.Op) recorder.OpRecord {
	return recorder.OpRecord{
		Timestamp: s.clock.Now(),
		RequestID: RequestIDFrom(r.Context()),
		Op:        op,
	}
}

func (s *Server) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(parent, s.timeout)
	}
	return context.WithCancel(parent)
}

func (s *Server) track() func() {
	if s.metrics == nil {
		return func() {}
	}
	return s.metrics.track()
}

// fail writes err with the status of its kind and observes the record.
func (s *Server) fail(w http.ResponseWriter, rec *recorder.OpRecord, err error) {
	kind := bench.KindOf(err)
	status := statusFor(kind)
	body := errorBody{Error: err.Error(), Kind: string(kind)}

	var stateErr *bench.StateError
	if errors.As(err, &stateErr) {
		id := stateErr.ID
		body.ID = &id
	}
	if kind == bench.KindBackend || kind == bench.KindTimeout {
		s.logger.Warn("bench operation failed", "op", rec.Op, "id", rec.ID, "kind", kind, "err", err)
	}

	rec.Status = status
	rec.Kind = string(kind)
	writeJSON(w, status, body)
	s.observe(*rec)
}

// statusFor maps an error kind to its HTTP status. Every kind gets its own
// status so clients can tell failures apart without parsing bodies.
func statusFor(kind bench.Kind) int {
	switch kind {
	case bench.KindInvalidArgument:
		return http.StatusBadRequest
	case bench.KindNotFound:
		return http.StatusNotFound
	case bench.KindTimeout:
		return http.StatusGatewayTimeout
	case bench.KindCanceled, bench.KindBackend:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// observe finishes rec and hands it to the recorder, metrics and hub.
func (s *Server) observe(rec recorder.OpRecord) {
	rec.Latency = s.clock.Since(rec.Timestamp)
	if s.recorder != nil {
		if err := s.recorder.Record(rec); err != nil {
			s.logger.Error("record failed", "err", err)
		}
	}
	if s.metrics != nil {
		s.metrics.Observe(rec)
	}
	s.hub.Broadcast(rec)
}

func queryInt64(r *http.Request, name string, required bool) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return 0, errors.Wrapf(bench.ErrInvalidArgument, "%s is required", name)
		}
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(bench.ErrInvalidArgument, "%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

// queryInt reads an optional int parameter; absent means 0. Delays have no
// upper bound, so the only limit is what fits in an int. Range checks are
// left to the bench service so negative delays fail the same way everywhere.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(bench.ErrInvalidArgument, "%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

func retryAfterSeconds(wait time.Duration) string {
	return fmt.Sprintf("%d", int(wait.Seconds())+1)
}
