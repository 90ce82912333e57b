package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gasmarket-eu/ingestor/internal/api/middleware"
	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

// Runner is the subset of Orchestrator the API surface depends on. Defined
// here (consumer side) so the handlers can be tested against a fake without
// pulling in the full ingestion package wiring.
type Runner interface {
	Run(ctx context.Context, datasetID string, params ingestion.FetchParams) error
}

// HealthChecker is the subset of storage.Connection the readiness probe
// depends on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the thin HTTP surface in front of the ingestion core: a trigger
// endpoint that kicks off a run in the background, health/readiness probes,
// and a read-only dataset listing. It does not implement the lineage or
// correlation REST surfaces of the repo this was adapted from; there are
// none of those concepts here.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	config     *ServerConfig
	startTime  time.Time
	runner     Runner
	registry   *ingestion.Registry
	health     HealthChecker
}

// NewServer wires the trigger/health/read handlers into an http.Server.
// runner executes ingestion runs (normally an *ingestion.Orchestrator);
// registry is consulted to validate trigger requests and list datasets;
// health is polled by the readiness probe (normally a *storage.Connection).
func NewServer(cfg *ServerConfig, runner Runner, registry *ingestion.Registry, health HealthChecker) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	mux := http.NewServeMux()

	server := &Server{
		logger:   logger,
		config:   cfg,
		runner:   runner,
		registry: registry,
		health:   health,
	}

	server.setupRoutes(mux)

	corsConfig := middleware.PermissiveCORS()
	handler := middleware.CorrelationID()(
		middleware.Recovery(logger)(
			middleware.RequestLogger(logger)(
				middleware.CORS(corsConfig)(mux),
			),
		),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until shutdown. It handles
// graceful shutdown on SIGINT and SIGTERM signals. Background ingestion
// runs started by the trigger handler are not tracked here: they are
// fire-and-forget, per the concurrency model (each run is an independent
// task that does not observe another's in-flight state).
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting ingestor API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed to start", slog.String("error", err.Error()))
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("initiating server shutdown", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server shutdown completed")

	return nil
}
