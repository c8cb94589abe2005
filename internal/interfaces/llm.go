package interfaces

import (
	"context"

	"tradegraph/internal/types"
)

// Completer sends one system+user prompt to a language model and returns the
// raw reply text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// FactorEnricher produces narrative factors for a recommendation.
type FactorEnricher interface {
	Enrich(ctx context.Context, rec types.Recommendation, bundle types.SignalBundle) (types.Factors, error)
}
