package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/T3chie-404/xand-mon-agent/internal/metrics"
)

// Server exposes the current measurement over HTTP. Handlers only read
// registry snapshots, so responses never wait on a probe.
type Server struct {
	registry *metrics.Registry
	router   chi.Router
	logger   *slog.Logger
}

// New creates a new Server and registers all routes.
func New(registry *metrics.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: registry,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(s.registry)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	r.Get("/health", s.handleOK)
	r.Get("/", s.handleOK)
}

// handleOK answers liveness checks for the agent itself. It says nothing
// about the monitored node; that is what node_health is for.
func (s *Server) handleOK(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// requestLogger logs at debug level; scrapers hit /metrics constantly and
// would drown the probe logs otherwise.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
