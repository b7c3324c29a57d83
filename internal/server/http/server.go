package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opaline-ai/spyglass/internal/event"
	"github.com/opaline-ai/spyglass/internal/hub"
	"github.com/opaline-ai/spyglass/internal/telemetry"
	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// Options wires the server to its collaborators. Counters and Gatherer
// may be nil; the stream and REST surface degrade gracefully without
// them.
type Options struct {
	Logger   logpkg.Logger
	Hub      *hub.Hub
	Sampler  *telemetry.Sampler
	Counters *telemetry.Counters
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front of the diagnostics hub.
type Server struct {
	logger   logpkg.Logger
	hub      *hub.Hub
	sampler  *telemetry.Sampler
	counters *telemetry.Counters
	upgrader websocket.Upgrader
	srv      *http.Server
	lis      net.Listener
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	s := &Server{
		logger:   opts.Logger.With(logpkg.Component("http")),
		hub:      opts.Hub,
		sampler:  opts.Sampler,
		counters: opts.Counters,
		upgrader: websocket.Upgrader{
			// The dashboard is served from a different origin in dev.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		srv: &http.Server{Handler: cors(mux)},
	}
	mux.HandleFunc("/diagnostics/stream", s.handleStream)
	mux.HandleFunc("/diagnostics/logs", s.instrument(s.handleLogs))
	mux.HandleFunc("/diagnostics/metrics", s.instrument(s.handleMetrics))
	mux.HandleFunc("/diagnostics/events", s.instrument(s.handleSubmit))
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	return s
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http server listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close force-closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument feeds request counts and latency into the telemetry
// counters. The stream endpoint is not instrumented: a connection held
// open for hours is not a request latency sample.
func (s *Server) instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.counters == nil {
			next(w, r)
			return
		}
		s.counters.TaskStarted()
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		ms := uint64(time.Since(start).Milliseconds())
		if sw.status >= http.StatusInternalServerError {
			s.counters.RequestFailed(ms)
		} else {
			s.counters.RequestServed(ms)
		}
		s.counters.TaskDone()
	}
}

// handleStream upgrades to a websocket and registers the observer.
// An optional filter query parameter carries a CEL expression limiting
// delivery.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logpkg.Err(err))
		return
	}
	if err := s.hub.ServeWS(ws, r.URL.Query().Get("filter")); err != nil {
		s.logger.Warn("observer rejected", logpkg.Err(err))
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	events := s.hub.History(limit)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := s.sampler.Latest()
	if snap == nil {
		// No window has elapsed yet; serve an idle snapshot.
		snap = &telemetry.Snapshot{SuccessRatio: 1, SampledAt: time.Now().UTC()}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// handleSubmit accepts a wire envelope from an external producer and
// fans it out. Control types are not submittable.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body := http.MaxBytesReader(w, r.Body, 1<<20)
	var ev event.Event
	if err := json.NewDecoder(body).Decode(&ev); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	switch {
	case !ev.Type.Known():
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown event type"})
		return
	case ev.Type == event.TypePing || ev.Type == event.TypePong:
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "control events cannot be submitted"})
		return
	}
	s.hub.Submit(&ev)
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": ev.ID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": s.hub.Len(),
	})
}
