package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// KindRateLimited marks operations rejected by admission control.
const KindRateLimited = "rate_limited"

type requestIDKey struct{}

// RequestIDFrom returns the id set by the request id middleware, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID keeps an incoming X-Request-ID or assigns a new one, and
// echoes it on the response.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
			"request_id", RequestIDFrom(r.Context()),
		)
	})
}

// statusWriter remembers the status code. It passes Hijack through so the
// WebSocket endpoints keep working behind it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// admit applies the admission limiter, keyed by operation. When denied it
// writes a 429 with rate limit headers and returns false.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, rec *recorder.OpRecord) bool {
	if s.limiter == nil {
		return true
	}
	d := s.limiter.Allow(r.Context(), string(rec.Op))

	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
	w.Header().Set("X-RateLimit-Reset", d.ResetAt.Format(time.RFC3339))
	if d.Allowed {
		return true
	}

	w.Header().Set("Retry-After", retryAfterSeconds(d.RetryAt.Sub(s.clock.Now())))
	rec.Status = http.StatusTooManyRequests
	rec.Kind = KindRateLimited
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error: "admission limit exceeded for " + string(rec.Op),
		Kind:  KindRateLimited,
	})
	s.observe(*rec)
	return false
}
