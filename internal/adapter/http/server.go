package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// EstimateLister returns the latest published estimate of every model.
type EstimateLister interface {
	Estimates() []domain.Estimate
}

// Server exposes health, readiness, estimate, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /estimates, and
// /metrics routes.
func NewServer(addr string, ready ReadinessChecker, estimates EstimateLister, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.HandleFunc("GET /estimates", handleEstimates(estimates))
	mux.HandleFunc("GET /estimates/{source_id}", handleEstimate(estimates))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleEstimates(lister EstimateLister) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"estimates": lister.Estimates()})
	}
}

func handleEstimate(lister EstimateLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := domain.ModelID(r.PathValue("source_id"))
		for _, est := range lister.Estimates() {
			if est.SourceID == model {
				sharedobs.WriteJSON(w, http.StatusOK, est)
				return
			}
		}
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error": "no estimate for " + string(model),
		})
	}
}
