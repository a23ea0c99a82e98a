package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/brandflow/internal/http"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow HTTP API",
		Long: `Serve the workflow HTTP API.

Endpoints:
  GET  /health
  GET  /metrics
  POST /api/v1/workflow               {"input_as_text": "..."}
  POST /api/v1/corpora/:id/documents  {"documents": [...]}
  GET  /api/v1/corpora/:id/search?q=...&k=5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

// serve blocks until ctx is cancelled.
func serve(ctx context.Context) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			a.logger.Warn(shutdownCtx, "shutdown incomplete", zap.Error(err))
		}
	}()

	srv, err := httpserver.NewServer(a.engine, a.logger, &httpserver.Config{
		Host:            a.cfg.Server.Host,
		Port:            a.cfg.Server.Port,
		RequestTimeout:  a.cfg.Server.RequestTimeout.Duration(),
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout.Duration(),
	},
		httpserver.WithStore(a.store),
		httpserver.WithTelemetry(a.telemetry),
		httpserver.WithHTTPMetrics(httpserver.NewHTTPMetrics(a.telemetry.Meter("brandflow.http"), a.logger)),
	)
	if err != nil {
		return err
	}

	a.logger.Info(ctx, "starting brandflow",
		zap.String("version", version),
		zap.Int("port", a.cfg.Server.Port),
		zap.String("model", a.cfg.LLM.Model),
		zap.Bool("events", a.cfg.Events.Enabled),
		zap.Bool("web_search", a.cfg.Search.Enabled),
	)
	return srv.Start(ctx)
}
