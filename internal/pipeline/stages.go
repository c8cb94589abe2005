package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"tradegraph/internal/logger"
	"tradegraph/internal/metrics"
	"tradegraph/internal/portfolio"
	"tradegraph/internal/recommend"
	"tradegraph/internal/types"
)

// allocationTolerance is how far the invested fraction may drift from 1
// before validation warns.
const allocationTolerance = 0.1

func (o *Orchestrator) collectNews(ctx context.Context, s *State) error {
	if o.src.News == nil || len(s.Symbols) == 0 {
		return nil
	}

	news, err := o.src.News.CollectNews(ctx, s.Symbols, s.Request.WindowHours, s.Request.MaxNewsItems)
	failed := s.symbolsFailed(ctx, types.SourceNews, err)

	total := 0
	for sym, arts := range news {
		if len(arts) > s.Request.MaxNewsItems {
			arts = arts[:s.Request.MaxNewsItems]
		}
		s.News[sym] = arts
		total += len(arts)
	}
	logger.Info(ctx, "News collected", "run_id", s.RunID, "articles", total, "symbols", len(news))

	// Per-symbol failures are already on the bundles; only a source that
	// produced nothing fails the stage.
	if err != nil && (!failed || len(news) == 0) {
		return fmt.Errorf("news collection failed: %w", err)
	}
	return nil
}

func (o *Orchestrator) analyzeFinancials(ctx context.Context, s *State) error {
	if len(s.Symbols) == 0 {
		return nil
	}

	var (
		market  map[string]types.SignalBundle
		reports map[string]types.ReportAnalysis
		repErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	if o.src.Market != nil {
		g.Go(func() error {
			market = o.src.Market.FetchMarketSignals(gctx, s.Symbols)
			return nil
		})
	}
	if o.src.Reports != nil && s.Request.IncludeReports {
		g.Go(func() error {
			reports, repErr = o.src.Reports.FetchReportAnalysis(gctx, s.Symbols, s.Request.ReportTypes)
			return nil
		})
	}
	_ = g.Wait()

	for sym, mb := range market {
		b := s.bundle(sym)
		b.Market, b.Fundamentals, b.Technical = mb.Market, mb.Fundamentals, mb.Technical
		for _, e := range mb.Errors {
			b.Errors = append(b.Errors, e)
			metrics.SourceFailures.WithLabelValues(e.Source).Inc()
			logger.Warn(ctx, "Signal source failed", "symbol", sym, "source", e.Source, "error", e.Message)
		}
	}

	// A filings outage degrades symbols but does not fail the stage; market
	// data above is already usable.
	if repErr != nil {
		logger.ErrorWithErr(ctx, "Report analysis failed", repErr, "run_id", s.RunID)
	}
	if repErr != nil && !s.symbolsFailed(ctx, types.SourceReports, repErr) {
		for _, sym := range s.Symbols {
			s.sourceFailed(sym, types.SourceReports, repErr)
			metrics.SourceFailures.WithLabelValues(types.SourceReports).Inc()
		}
	}
	for sym, r := range reports {
		s.bundle(sym).Report = &r
	}
	return nil
}

func (o *Orchestrator) analyzeSentiment(ctx context.Context, s *State) error {
	if o.src.Sentiment == nil || len(s.News) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MaxConcurrent)

	for _, sym := range s.Symbols {
		arts := s.News[sym]
		if len(arts) == 0 {
			continue
		}
		g.Go(func() error {
			res, err := o.src.Sentiment.AnalyzeSentiment(gctx, sym, arts)
			if err != nil {
				s.sourceFailed(sym, types.SourceSentiment, err)
				metrics.SourceFailures.WithLabelValues(types.SourceSentiment).Inc()
				logger.Warn(gctx, "Sentiment analysis failed", "symbol", sym, "error", err)
				return nil
			}
			if res.Symbol == "" {
				res.Symbol = sym
			}
			s.mu.Lock()
			s.bundle(sym).Sentiment = &res
			s.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) generateRecommendations(ctx context.Context, s *State) error {
	bundles := s.orderedBundles()
	if len(bundles) == 0 {
		return nil
	}

	s.Recommendations = o.synth.SynthesizeAll(ctx, bundles, s.Request.RiskTolerance)

	kept := make(map[string]bool, len(s.Recommendations))
	for _, r := range s.Recommendations {
		kept[r.Symbol] = true
		metrics.RecommendationsTotal.WithLabelValues(string(r.Recommendation)).Inc()
	}
	for _, b := range bundles {
		for _, e := range b.Errors {
			s.Warnings = append(s.Warnings, fmt.Sprintf("%s: %s unavailable: %s", b.Symbol, e.Source, e.Message))
		}
		if !kept[b.Symbol] {
			continue
		}
		for _, a := range recommend.Alerts(b) {
			logger.Risk(ctx, a.Symbol, a.Type, "message", a.Message, "urgency", a.Urgency, "price", a.CurrentPrice)
			s.Alerts = append(s.Alerts, a)
		}
	}

	if dropped := len(bundles) - len(s.Recommendations); dropped > 0 {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%d symbol(s) could not be scored and were skipped", dropped))
	}
	return nil
}

// symbolsFailed records each entry of a types.SymbolErrors carried by err as
// a source failure on that symbol's bundle. It reports whether err carried
// one.
func (s *State) symbolsFailed(ctx context.Context, source string, err error) bool {
	var perSymbol types.SymbolErrors
	if !errors.As(err, &perSymbol) {
		return false
	}
	for sym, e := range perSymbol {
		s.sourceFailed(sym, source, e)
		metrics.SourceFailures.WithLabelValues(source).Inc()
		logger.Warn(ctx, "Signal source failed", "run_id", s.RunID, "symbol", sym, "source", source, "error", e)
	}
	return true
}

func (o *Orchestrator) createPortfolio(ctx context.Context, s *State) error {
	s.Portfolio = portfolio.Optimize(s.Recommendations, portfolio.Constraints{
		MaxPositions:  s.Request.MaxPositions,
		PortfolioSize: s.Request.PortfolioSize,
	}, o.opts.Now())

	if s.Portfolio != nil {
		logger.Info(ctx, "Portfolio created",
			"run_id", s.RunID,
			"positions", len(s.Portfolio.Recommendations),
			"total_allocation", s.Portfolio.TotalAllocation,
			"overall_risk", s.Portfolio.OverallRisk,
		)
	}
	return nil
}

func (o *Orchestrator) validateRecommendations(ctx context.Context, s *State) error {
	if p := s.Portfolio; p != nil {
		total := 0.0
		for _, r := range p.Recommendations {
			total += r.Allocation
		}
		if math.Abs(total-1.0) > allocationTolerance {
			s.Warnings = append(s.Warnings, fmt.Sprintf("Total allocation is %.2f%%", total*100))
		}
	}

	actionable := 0
	for _, r := range s.Recommendations {
		if r.Recommendation.IsLong() || r.Recommendation.IsShort() {
			actionable++
		}
	}
	if actionable == 0 {
		s.Warnings = append(s.Warnings, "No buy or sell recommendations generated")
	}

	logger.Debug(ctx, "Validation completed", "run_id", s.RunID, "warnings", len(s.Warnings))
	return nil
}
