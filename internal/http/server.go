// Package http provides the HTTP API for brandflow.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/brandflow/internal/logging"
	"github.com/fyrsmithlabs/brandflow/internal/retrieval"
	"github.com/fyrsmithlabs/brandflow/internal/telemetry"
	"github.com/fyrsmithlabs/brandflow/internal/workflow"
)

// Runner executes one workflow request. *workflow.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, in workflow.Input) (*workflow.Execution, error)
}

// Server provides HTTP endpoints for brandflow.
type Server struct {
	echo      *echo.Echo
	runner    Runner
	store     retrieval.Store
	telemetry *telemetry.Telemetry
	metrics   *HTTPMetrics
	logger    *logging.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RequestTimeout bounds a single workflow run. Zero means no limit
	// beyond the client's own.
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       string
}

// Option configures a Server.
type Option func(*Server)

// WithStore exposes corpus ingestion and search backed by store.
func WithStore(store retrieval.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithTelemetry reports telemetry health on /health.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(s *Server) { s.telemetry = tel }
}

// WithHTTPMetrics records request metrics with m.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new HTTP server.
func NewServer(runner Runner, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "2M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		runner: runner,
		logger: logger.Named("http"),
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	// Errors are rendered here so outer middleware sees the final status.
	e.Use(s.requestContext)

	s.registerRoutes()
	return s, nil
}

// requestContext tags the request context with its id and logs the request.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(c.Request().Context(), rid)
		c.SetRequest(c.Request().WithContext(ctx))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/workflow", s.handleWorkflow)
	v1.POST("/corpora/:id/documents", s.handleIngest)
	v1.GET("/corpora/:id/search", s.handleSearch)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(ctx, "starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
