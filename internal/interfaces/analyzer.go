package interfaces

import (
	"context"

	"tradegraph/internal/types"
)

// Analyzer runs one full analysis. The returned result is always non-nil when
// err is nil.
type Analyzer interface {
	Run(ctx context.Context, req types.AnalysisRequest, progress types.ProgressFunc) (*types.AnalysisResult, error)
}
