package interfaces

import (
	"context"

	"tradegraph/internal/types"
)

// MarketSource fetches quotes, fundamentals and indicators. It never fails as a
// whole: a symbol whose fetch failed carries a SourceError in its bundle.
type MarketSource interface {
	FetchMarketSignals(ctx context.Context, symbols []string) map[string]types.SignalBundle
}
