package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/kano/internal/export"
	"github.com/inferloop/kano/internal/observability/metrics"
	"github.com/inferloop/kano/internal/privacy"
	"github.com/inferloop/kano/pkg/constants"
)

// Server represents the HTTP server
type Server struct {
	httpServer    *http.Server
	metricsServer *http.Server
	router        *mux.Router
	logger        *logrus.Logger
	config        *Config
	handlers      *Handlers
	metrics       *metrics.PrometheusMetrics
}

// NewServer creates a new HTTP server instance
func NewServer(config *Config, buildInfo BuildInfo, logger *logrus.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if logger == nil {
		logger = logrus.New()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	promMetrics, err := metrics.NewPrometheusMetrics(&metrics.PrometheusConfig{
		Enabled:           config.EnableMetrics,
		Port:              config.MetricsPort,
		Path:              "/metrics",
		Namespace:         constants.AppName,
		ProcessCollectors: true,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	exporter, err := export.NewExportEngine(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create export engine: %w", err)
	}

	anonymization := config.Anonymization
	anonymizer := privacy.NewAnonymizer(&anonymization, logger, promMetrics)

	server := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		config:   config,
		handlers: NewHandlers(anonymizer, exporter, config.MaxStepsLimit, buildInfo, logger),
		metrics:  promMetrics,
	}

	server.setupRoutes()
	server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	if config.EnableMetrics {
		server.setupMetricsServer()
	}

	return server, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Infof("Starting HTTP server on %s:%d", s.config.Host, s.config.Port)

	if s.metricsServer != nil {
		go func() {
			s.logger.Infof("Starting metrics server on port %d", s.config.MetricsPort)
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	var err error
	if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
		s.logger.Info("Starting HTTPS server")
		err = s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorf("Error shutting down metrics server: %v", err)
		}
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error shutting down HTTP server: %v", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// setupRoutes sets up the HTTP routes
func (s *Server) setupRoutes() {
	apiRouter := s.router.PathPrefix(constants.APIPrefix).Subrouter()

	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/version", s.handlers.Version).Methods("GET")

	apiRouter.HandleFunc("/anonymize", s.handlers.Anonymize).Methods("POST")
	apiRouter.HandleFunc("/inspect", s.handlers.Inspect).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
}

// setupMiddleware sets up HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.observeMiddleware)
	s.router.Use(s.recoveryMiddleware)

	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	s.router.Use(s.bodyLimitMiddleware)
}

// setupMetricsServer sets up the metrics server
func (s *Server) setupMetricsServer() {
	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	metricsRouter.HandleFunc("/health", s.handlers.Health).Methods("GET")

	s.metricsServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.MetricsPort),
		Handler:      metricsRouter,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// GetRouter returns the HTTP router
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetConfig returns the server configuration
func (s *Server) GetConfig() *Config {
	return s.config
}

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *metrics.PrometheusMetrics {
	return s.metrics
}
