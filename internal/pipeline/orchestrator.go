// Package pipeline runs the fixed analysis stage sequence over one State.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/logger"
	"tradegraph/internal/metrics"
	"tradegraph/internal/recommend"
	"tradegraph/internal/trace"
	"tradegraph/internal/types"
)

// ErrCancelled is returned, with the partial result, when the caller's
// context ends between stages.
var ErrCancelled = errors.New("analysis cancelled")

// Stage names, in execution order.
const (
	StageCollectNews = "collect_news"
	StageFinancials  = "analyze_financials"
	StageSentiment   = "analyze_sentiment"
	StageRecommend   = "generate_recommendations"
	StagePortfolio   = "create_portfolio"
	StageValidate    = "validate_recommendations"
)

// Sources are the collaborators a run reads from. Any of them may be nil,
// which skips the corresponding work.
type Sources struct {
	Market    interfaces.MarketSource
	News      interfaces.NewsCollector
	Sentiment interfaces.SentimentAnalyzer
	Reports   interfaces.ReportSource
}

type Options struct {
	// MaxConcurrent bounds per-stage fan-out.
	MaxConcurrent int
	// StageTimeout bounds each stage. Zero means no bound.
	StageTimeout time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

type stage struct {
	name string
	run  func(ctx context.Context, s *State) error
}

// Orchestrator is stateless between runs; concurrent runs each get their own
// State.
type Orchestrator struct {
	src    Sources
	synth  *recommend.Synthesizer
	opts   Options
	stages []stage
}

var _ interfaces.Analyzer = (*Orchestrator)(nil)

func New(src Sources, synth *recommend.Synthesizer, opts Options) *Orchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if synth == nil {
		synth = recommend.New(recommend.WithClock(opts.Now))
	}
	o := &Orchestrator{src: src, synth: synth, opts: opts}
	o.stages = []stage{
		{StageCollectNews, o.collectNews},
		{StageFinancials, o.analyzeFinancials},
		{StageSentiment, o.analyzeSentiment},
		{StageRecommend, o.generateRecommendations},
		{StagePortfolio, o.createPortfolio},
		{StageValidate, o.validateRecommendations},
	}
	return o
}

// Stages lists the stage names in order.
func (o *Orchestrator) Stages() []string {
	out := make([]string, len(o.stages))
	for i, st := range o.stages {
		out[i] = st.name
	}
	return out
}

// Run executes every stage in order. A failing stage is recorded and the run
// moves on. Cancellation of ctx is honoured between stages only; the stage in
// flight finishes or hits its timeout.
func (o *Orchestrator) Run(ctx context.Context, req types.AnalysisRequest, progress types.ProgressFunc) (*types.AnalysisResult, error) {
	prepared, warnings, errs := PrepareRequest(req)

	st := newState(uuid.New().String(), prepared)
	ctx, span := trace.StartRunSpan(ctx, st.RunID, st.Symbols)
	defer span.End()
	st.Warnings = append(st.Warnings, warnings...)
	st.Errors = append(st.Errors, errs...)

	started := o.opts.Now()
	logger.Info(ctx, "Starting analysis run",
		"run_id", st.RunID,
		"symbols", st.Symbols,
		"portfolio_size", prepared.PortfolioSize,
		"risk_tolerance", prepared.RiskTolerance,
	)

	cancelled := false
	for i, stg := range o.stages {
		if ctx.Err() != nil {
			cancelled = true
			logger.Warn(ctx, "Analysis cancelled", "run_id", st.RunID, "next_stage", stg.name)
			break
		}

		err := o.runStage(ctx, stg, st)
		if err != nil {
			st.Errors = append(st.Errors, fmt.Sprintf("%s: %v", stg.name, err))
			logger.ErrorWithErr(ctx, "Stage failed, continuing", err, "run_id", st.RunID, "stage", stg.name)
		}
		st.Completed = append(st.Completed, stg.name)

		pct := (i + 1) * 100 / len(o.stages)
		logger.Stage(ctx, stg.name, pct, "run_id", st.RunID)
		if progress != nil {
			msg := "completed"
			if err != nil {
				msg = "failed: " + err.Error()
			}
			progress(types.Progress{Stage: stg.name, Percent: pct, Message: msg})
		}
	}

	res := st.result()
	res.StartedAt = started.UTC()
	res.FinishedAt = o.opts.Now().UTC()
	res.Cancelled = cancelled

	outcome := metrics.OutcomeCompleted
	switch {
	case cancelled:
		outcome = metrics.OutcomeCancelled
	case len(res.Errors) > 0:
		outcome = metrics.OutcomePartial
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()

	if cancelled {
		return res, ErrCancelled
	}
	return res, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stg stage, st *State) (err error) {
	// The stage in flight outlives caller cancellation but not its timeout.
	sctx := context.WithoutCancel(ctx)
	if o.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(sctx, o.opts.StageTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		metrics.ObserveStage(stg.name, time.Since(start), err)
	}()

	return stg.run(sctx, st)
}
