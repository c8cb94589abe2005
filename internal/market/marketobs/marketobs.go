package marketobs

import (
	"context"
	"time"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/logger"
	"tradegraph/internal/trace"
	"tradegraph/internal/types"
)

type observableSource struct {
	inner    interfaces.MarketSource
	provider string
}

var _ interfaces.MarketSource = (*observableSource)(nil)

// Wrap wraps a market source with observability middleware.
func Wrap(s interfaces.MarketSource, provider string) interfaces.MarketSource {
	return &observableSource{inner: s, provider: provider}
}

func (o *observableSource) FetchMarketSignals(ctx context.Context, symbols []string) map[string]types.SignalBundle {
	ctx, span := trace.StartSpan(ctx, "market.FetchMarketSignals")
	defer span.End()

	start := time.Now()
	out := o.inner.FetchMarketSignals(ctx, symbols)

	failed := 0
	for _, b := range out {
		if len(b.Errors) > 0 {
			failed++
		}
	}
	logger.InfoSkip(ctx, 1, "Market signals fetched",
		"provider", o.provider,
		"symbols", len(symbols),
		"degraded", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}
