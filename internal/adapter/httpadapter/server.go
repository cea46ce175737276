package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
	"github.com/couchcryptid/snow-drought-index/internal/observability"
)

// ResultStore provides read access to processed station results.
type ResultStore interface {
	Results(ctx context.Context) ([]domain.StationResult, error)
	Result(ctx context.Context, id string) (domain.StationResult, error)
}

// Server exposes health, readiness, metrics and the results API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes. table classifies seasons for the decade summary; nil uses
// the default thresholds.
func NewServer(addr string, ready sharedobs.ReadinessChecker, results ResultStore, table *domain.ThresholdTable, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if table == nil {
		table = domain.DefaultThresholds()
	}
	router := mux.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	router.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", sharedobs.ReadinessHandler(ready)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	h := &handler{results: results, table: table, metrics: metrics, logger: logger}
	for route, fn := range map[string]http.HandlerFunc{
		"/api/stations":           h.listStations,
		"/api/stations/{id}":      h.getStation,
		"/api/summary/decades":    h.decadeSummary,
		"/api/summary/elevation":  h.elevationSummary,
		"/api/summary/categories": h.categorySummary,
	} {
		router.HandleFunc(route, h.instrument(route, fn)).Methods(http.MethodGet)
	}
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})

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
