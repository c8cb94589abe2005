package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tradegraph/internal/logger"
	"tradegraph/internal/pipeline"
	"tradegraph/internal/store"
	"tradegraph/internal/types"
)

type rootOptions struct {
	configFile string
}

type requestFlags struct {
	symbols        []string
	portfolioSize  float64
	risk           string
	horizon        string
	includeReports bool
	maxPositions   int
	windowHours    int
	maxNews        int
	reportTypes    []string
	noRunLog       bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "advisor",
		Short: "Multi-signal investment recommendations",
		Long: `advisor collects market data, news and SEC filings for a set of symbols,
scores them, and prints BUY/HOLD/SELL recommendations with a suggested
portfolio allocation.

Examples:
  advisor analyze --symbols AAPL,MSFT,NVDA
  advisor analyze --symbols AAPL --risk aggressive --include-reports
  advisor watch --cron "30 16 * * 1-5"`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "config.yaml", "config file")

	cmd.AddCommand(newAnalyzeCmd(opts), newWatchCmd(opts))
	return cmd
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVarP(&f.symbols, "symbols", "s", nil, "symbols to analyze (default: analysis.universe)")
	fs.Float64Var(&f.portfolioSize, "portfolio-size", 0, "portfolio size in currency units (default: analysis.default_portfolio_size)")
	fs.StringVar(&f.risk, "risk", "", "risk tolerance: conservative, medium or aggressive")
	fs.StringVar(&f.horizon, "horizon", "", "time horizon: SHORT_TERM, MEDIUM_TERM or LONG_TERM")
	fs.BoolVar(&f.includeReports, "include-reports", false, "analyze SEC filings")
	fs.IntVar(&f.maxPositions, "max-positions", 0, "maximum portfolio positions")
	fs.IntVar(&f.windowHours, "news-window", 0, "news lookback in hours")
	fs.IntVar(&f.maxNews, "max-news", 0, "maximum news items per symbol")
	fs.StringSliceVar(&f.reportTypes, "report-types", nil, "filing forms to analyze")
	fs.BoolVar(&f.noRunLog, "no-runlog", false, "do not persist the run")
}

// request builds an AnalysisRequest from config defaults overlaid with the
// flags that were set.
func (f *requestFlags) request(cfg *store.Config) types.AnalysisRequest {
	a := cfg.Analysis
	req := types.AnalysisRequest{
		Symbols:        a.Universe,
		PortfolioSize:  a.DefaultPortfolioSize,
		RiskTolerance:  types.RiskTolerance(a.DefaultRiskTolerance),
		TimeHorizon:    types.TimeHorizon(a.DefaultTimeHorizon),
		IncludeReports: a.IncludeReports || f.includeReports,
		MaxPositions:   a.MaxPositions,
		WindowHours:    a.NewsWindowHours,
		MaxNewsItems:   a.MaxNewsItems,
		ReportTypes:    a.ReportTypes,
	}
	if len(f.symbols) > 0 {
		req.Symbols = f.symbols
	}
	if f.portfolioSize != 0 {
		req.PortfolioSize = f.portfolioSize
	}
	if f.risk != "" {
		req.RiskTolerance = types.RiskTolerance(f.risk)
	}
	if f.horizon != "" {
		req.TimeHorizon = types.TimeHorizon(f.horizon)
	}
	if f.maxPositions != 0 {
		req.MaxPositions = f.maxPositions
	}
	if f.windowHours != 0 {
		req.WindowHours = f.windowHours
	}
	if f.maxNews != 0 {
		req.MaxNewsItems = f.maxNews
	}
	if len(f.reportTypes) > 0 {
		req.ReportTypes = f.reportTypes
	}
	return req
}

// setup initializes the process and wires an app from the config flag.
func setup(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	if err := initializeSystem(); err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx, opts.configFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

// runOnce executes one analysis, persists it unless disabled and writes the
// result as JSON to w.
func (a *app) runOnce(ctx context.Context, req types.AnalysisRequest, persist bool, w io.Writer) (*types.AnalysisResult, error) {
	if len(req.Symbols) == 0 {
		return nil, errors.New("no symbols: pass --symbols or set analysis.universe")
	}

	res, err := a.analyzer.Run(ctx, req, func(p types.Progress) {
		logger.Debug(ctx, "Progress", "stage", p.Stage, "percent", p.Percent, "message", p.Message)
	})
	if res == nil {
		return nil, err
	}
	if err != nil && !errors.Is(err, pipeline.ErrCancelled) {
		return res, err
	}

	if persist {
		a.persist(ctx, res)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(res); encErr != nil {
		return res, fmt.Errorf("write result: %w", encErr)
	}
	return res, err
}

func (a *app) persist(ctx context.Context, res *types.AnalysisResult) {
	if err := a.runs.Append(res); err != nil {
		logger.Warn(ctx, "Failed to append run log", "run_id", res.RunID, "error", err)
	}
	if p, err := a.runs.WriteDigest(res); err != nil {
		logger.Warn(ctx, "Failed to write allocation digest", "run_id", res.RunID, "error", err)
	} else if p != "" {
		logger.Info(ctx, "Allocation digest written", "run_id", res.RunID, "path", p)
	}
	if n, err := a.runs.CompressOlder(a.cfg.RunLog.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old run logs", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "Compressed old run logs", "files", n)
	}
}
