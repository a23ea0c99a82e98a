package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/brandflow/internal/catalog"
	"github.com/fyrsmithlabs/brandflow/internal/config"
	"github.com/fyrsmithlabs/brandflow/internal/events"
	"github.com/fyrsmithlabs/brandflow/internal/llm"
	"github.com/fyrsmithlabs/brandflow/internal/logging"
	"github.com/fyrsmithlabs/brandflow/internal/retrieval"
	"github.com/fyrsmithlabs/brandflow/internal/search"
	"github.com/fyrsmithlabs/brandflow/internal/telemetry"
	"github.com/fyrsmithlabs/brandflow/internal/workflow"
)

// app holds the wired process dependencies.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     retrieval.Store
	publisher events.Publisher
	engine    *workflow.Engine
}

// newApp loads configuration and wires every dependency:
//  1. Config, telemetry and logger
//  2. Retrieval store and web search
//  3. LLM generator and stage personas
//  4. Dispatch tree, event publisher and engine
func newApp(ctx context.Context, path string) (*app, error) {
	cfg, src, err := config.LoadWithFile(path)
	if err != nil {
		return nil, err
	}

	telCfg := telemetry.NewDefaultConfig()
	if err := src.Unmarshal("telemetry", telCfg); err != nil {
		return nil, err
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return nil, err
	}

	logCfg := logging.NewDefaultConfig()
	if err := src.Unmarshal("logging", logCfg); err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, telemetry: tel, publisher: events.Nop{}}
	if err := a.wire(ctx, src); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, src *config.Source) error {
	cfg := a.cfg

	embedder, err := retrieval.NewEmbedder(cfg.Retrieval.Embeddings)
	if err != nil {
		return err
	}
	a.store, err = retrieval.NewStore(cfg.Retrieval, embedder, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create retrieval store: %w", err)
	}
	a.logger.Info(ctx, "retrieval store initialized", zap.String("provider", cfg.Retrieval.Provider))

	var searcher search.Searcher
	if cfg.Search.Enabled {
		ddg, err := search.NewDuckDuckGo(cfg.Search)
		if err != nil {
			return err
		}
		searcher = ddg
	} else {
		warnSearchDisabled(ctx, a.logger, catalog.WebSearchStages())
	}

	gen, err := llm.FromConfig(cfg, a.store, searcher, a.logger)
	if err != nil {
		return err
	}

	personas, err := catalog.LoadPersonas(src)
	if err != nil {
		return err
	}
	root, err := catalog.Build(gen, personas)
	if err != nil {
		return err
	}

	if cfg.Events.Enabled {
		pub, err := events.Connect(cfg.Events.URL, cfg.Events.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Events.URL, err)
		}
		a.publisher = pub
		a.logger.Info(ctx, "connected to NATS", zap.String("url", cfg.Events.URL))
	}

	a.engine, err = workflow.NewEngine(root,
		workflow.WithLogger(a.logger),
		workflow.WithTracerProvider(a.telemetry.TracerProvider()),
		workflow.WithMetrics(workflow.DefaultMetrics()),
		workflow.WithPublisher(a.publisher),
		workflow.WithStageSpans(cfg.Workflow.StageSpans),
		workflow.WithMaxInputBytes(cfg.Workflow.MaxInputBytes),
	)
	return err
}

// Close releases resources in reverse order of creation.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.telemetry.Shutdown(ctx))
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// warnSearchDisabled reports stages whose web search augmentation has no
// searcher behind it.
func warnSearchDisabled(ctx context.Context, logger *logging.Logger, stages []string) {
	if len(stages) == 0 {
		return
	}
	logger.Warn(ctx, "web search disabled; stages run without search results",
		zap.Strings("stages", stages),
		zap.String("enable", "search.enabled"))
}
