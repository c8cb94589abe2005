package pipelineobs

import (
	"context"
	"time"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/logger"
	"tradegraph/internal/trace"
	"tradegraph/internal/types"
)

// observableAnalyzer wraps an Analyzer with logging and tracing.
type observableAnalyzer struct {
	inner interfaces.Analyzer
}

var _ interfaces.Analyzer = (*observableAnalyzer)(nil)

// Wrap wraps an Analyzer with observability middleware.
func Wrap(a interfaces.Analyzer) interfaces.Analyzer {
	return &observableAnalyzer{inner: a}
}

func (o *observableAnalyzer) Run(ctx context.Context, req types.AnalysisRequest, progress types.ProgressFunc) (*types.AnalysisResult, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline.Run")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Analysis requested",
		"symbol_count", len(req.Symbols),
		"include_reports", req.IncludeReports,
	)
	start := time.Now()

	res, err := o.inner.Run(ctx, req, progress)

	fields := []any{"duration_ms", time.Since(start).Milliseconds()}
	if res != nil {
		fields = append(fields,
			"run_id", res.RunID,
			"recommendations", len(res.Recommendations),
			"alerts", len(res.Alerts),
			"errors", len(res.Errors),
			"warnings", len(res.Warnings),
			"has_portfolio", res.Portfolio != nil,
		)
	}

	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Analysis did not complete", err, fields...)
		return res, err
	}

	logger.InfoSkip(ctx, 1, "Analysis completed", fields...)
	return res, nil
}
