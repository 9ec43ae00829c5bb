package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/SmitUplenchwar2687/Stall/internal/bench"
	"github.com/SmitUplenchwar2687/Stall/internal/clock"
	"github.com/SmitUplenchwar2687/Stall/internal/limiter"
	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

// BenchService is the workload engine behind /api/db. bench.Service
// implements it.
type BenchService interface {
	ReadWithDelay(ctx context.Context, id int64, delayMs int) (bench.ReadResult, error)
	IncrementInTransaction(ctx context.Context, req bench.IncrementRequest, delayMs int) (bench.IncrementResult, error)
}

// Pinger reports database reachability for /health. *store.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options wires a Server. Bench is required; everything else is optional.
type Options struct {
	Bench    BenchService
	Chat     ChatHandler // nil disables /ws/chat
	DB       Pinger
	Hub      *Hub
	Recorder *recorder.Recorder
	Limiter  limiter.Limiter // admission control for bench operations
	Metrics  *Metrics
	Logger   *log.Logger
	Clock    clock.Clock

	// RequestTimeout bounds each bench operation. Zero means the caller's
	// connection is the only deadline.
	RequestTimeout time.Duration
}

// Server is the HTTP and WebSocket front end of the bench engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux

	bench    BenchService
	chat     ChatHandler
	db       Pinger
	hub      *Hub
	recorder *recorder.Recorder
	limiter  limiter.Limiter
	metrics  *Metrics
	logger   *log.Logger
	clock    clock.Clock
	timeout  time.Duration
}

// New creates a server listening on addr once started.
func New(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewReal()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	if opts.Metrics != nil && opts.Hub.connections == nil {
		opts.Hub.connections = opts.Metrics.WSConnections
	}

	s := &Server{
		mux:      http.NewServeMux(),
		bench:    opts.Bench,
		chat:     opts.Chat,
		db:       opts.DB,
		hub:      opts.Hub,
		recorder: opts.Recorder,
		limiter:  opts.Limiter,
		metrics:  opts.Metrics,
		logger:   opts.Logger.WithPrefix("server"),
		clock:    opts.Clock,
		timeout:  opts.RequestTimeout,
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withRequestID(s.withAccessLog(s.mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/db/read", s.handleRead)
	s.mux.HandleFunc("POST /api/db/tx", s.handleTx)
	s.mux.HandleFunc("GET /ws/events", s.hub.HandleWebSocket)
	if s.chat != nil {
		s.mux.HandleFunc("GET /ws/chat", s.handleChat)
	}
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler exposes the full middleware chain, mostly for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Hub returns the event hub fed by every served bench operation.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "stall",
		"status":  "running",
		"time":    s.clock.Now().Format(time.RFC3339),
		"endpoints": []string{
			"GET /api/db/read?id=&sleepMs=",
			"POST /api/db/tx?sleepMs=",
			"GET /ws/chat",
			"GET /ws/events",
			"GET /health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener serves on ln. Tests use it with an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.logger.Info("stall server listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown disconnects event subscribers and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
