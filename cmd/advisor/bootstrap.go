package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"tradegraph/internal/filings"
	"tradegraph/internal/interfaces"
	"tradegraph/internal/llm/claude"
	"tradegraph/internal/llm/gemini"
	"tradegraph/internal/llm/llmobs"
	"tradegraph/internal/llm/noop"
	"tradegraph/internal/llm/openai"
	"tradegraph/internal/logger"
	"tradegraph/internal/market"
	"tradegraph/internal/market/marketobs"
	"tradegraph/internal/metrics"
	"tradegraph/internal/news"
	"tradegraph/internal/pipeline"
	"tradegraph/internal/pipeline/pipelineobs"
	"tradegraph/internal/recommend"
	"tradegraph/internal/runlog"
	"tradegraph/internal/store"
)

// app holds everything a command needs for one or more runs.
type app struct {
	cfg      *store.Config
	analyzer interfaces.Analyzer
	runs     *runlog.Log
	metrics  *http.Server
}

// initializeSystem loads .env and starts logging, which also starts
// tracing when LOG_TRACING_ENABLED allows it.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig reads path, or falls back to defaults when the file is absent
// and the path was not given explicitly.
func loadConfig(ctx context.Context, path string, explicit bool) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !explicit {
		logger.Info(ctx, "No config file, using defaults", "path", path)
		return store.Default(), nil
	}
	logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
	return nil, err
}

// newApp wires the providers named in cfg into an analyzer.
func newApp(ctx context.Context, cfg *store.Config) (*app, error) {
	a := &app{cfg: cfg, runs: runlog.New(cfg.RunLog.Dir)}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.Serve(cfg.Metrics.Addr)
		logger.Info(ctx, "Serving metrics", "addr", cfg.Metrics.Addr)
	} else {
		metrics.Register()
	}

	completer := initializeCompleter(ctx, cfg)

	mkt, err := initializeMarket(ctx, cfg)
	if err != nil {
		return nil, err
	}

	newsSvc := news.NewService(ctx, cfg, completer)

	var synthOpts []recommend.Option
	if cfg.LLM.EnrichFactors {
		synthOpts = append(synthOpts, recommend.WithEnricher(recommend.NewLLMEnricher(completer)))
	}

	orch := pipeline.New(pipeline.Sources{
		Market:    mkt,
		News:      newsSvc,
		Sentiment: newsSvc,
		Reports:   initializeReports(ctx, cfg, completer),
	}, recommend.New(synthOpts...), pipeline.Options{
		MaxConcurrent: cfg.Analysis.MaxConcurrentAgents,
		StageTimeout:  cfg.Analysis.AnalysisTimeout,
	})
	a.analyzer = pipelineobs.Wrap(orch)
	return a, nil
}

// initializeCompleter falls back to the noop completer, whose calls fail
// with llm.ErrDisabled, when no language model is configured or the
// configured one cannot start.
func initializeCompleter(ctx context.Context, cfg *store.Config) interfaces.Completer {
	var (
		c   interfaces.Completer
		err error
	)
	switch cfg.LLM.Provider {
	case "CLAUDE":
		c, err = claude.New(cfg)
	case "OPENAI":
		c, err = openai.New(cfg)
	case "GEMINI":
		c, err = gemini.New(ctx, cfg)
	default:
		logger.Info(ctx, "No LLM provider configured, using rule-based analysis only")
		return llmobs.Wrap(noop.New(), "NONE")
	}
	if err != nil {
		logger.Warn(ctx, "LLM provider unavailable, using rule-based analysis only", "provider", cfg.LLM.Provider, "error", err)
		return llmobs.Wrap(noop.New(), "NONE")
	}
	return llmobs.Wrap(c, cfg.LLM.Provider)
}

func initializeMarket(ctx context.Context, cfg *store.Config) (interfaces.MarketSource, error) {
	var src interfaces.MarketSource
	switch cfg.Market.Provider {
	case "KITE":
		k, err := market.NewKiteSource(cfg)
		if err != nil {
			return nil, fmt.Errorf("kite market source: %w", err)
		}
		src = k
	case "MOCK":
		logger.Warn(ctx, "Using MOCK market data")
		src = market.NewMockSource(cfg)
	default:
		src = market.NewYahooSource(cfg)
	}
	return marketobs.Wrap(src, cfg.Market.Provider), nil
}

func initializeReports(ctx context.Context, cfg *store.Config, completer interfaces.Completer) interfaces.ReportSource {
	if cfg.Filings.Provider == "MOCK" {
		logger.Warn(ctx, "Using MOCK filings")
		return filings.MockSource{}
	}
	return filings.NewService(cfg, completer)
}

// close flushes telemetry and stops the metrics listener.
func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush traces: %v\n", err)
	}
}
