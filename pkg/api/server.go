package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-twinsec/pkg/config"
	"github.com/dd0wney/cluso-twinsec/pkg/logging"
	"github.com/dd0wney/cluso-twinsec/pkg/sim"
)

// Server is the read-only dashboard API. It serves committed snapshots
// and run-level aggregates; the only mutations it allows are the
// engine's lifecycle controls and recommendation application, both of
// which act at tick boundaries.
type Server struct {
	engine     *sim.Engine
	cfg        config.ServerConfig
	logger     logging.Logger
	httpServer *http.Server
	startTime  time.Time
}

// NewServer wires the API around a simulation engine
func NewServer(engine *sim.Engine, cfg config.ServerConfig, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Server{
		engine:    engine,
		cfg:       cfg,
		logger:    logger.With(logging.Component("api")),
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed separately so tests can drive
// it through httptest without binding a port.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metricsMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/snapshot", s.handleLatestSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/fleet", s.handleFleetScore).Methods(http.MethodGet)
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/recommendations/{id}/apply", s.handleApplyRecommendation).Methods(http.MethodPost)
	api.HandleFunc("/control/{action}", s.handleControl).Methods(http.MethodPost)

	checker := s.engine.HealthChecker()
	r.HandleFunc("/health", checker.HTTPHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ready", checker.ReadinessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/live", checker.LivenessHandler()).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(
		s.engine.Metrics().GetPrometheusRegistry(),
		promhttp.HandlerOpts{},
	)).Methods(http.MethodGet)

	return r
}

// Start blocks serving HTTP until Shutdown or a listener error
func (s *Server) Start() error {
	s.logger.Info("api listening", logging.String("addr", s.cfg.ListenAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
