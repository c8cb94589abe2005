// Package market fetches quotes, fundamentals and technical indicators.
package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tradegraph/internal/store"
	"tradegraph/internal/types"
)

// ErrNoData means the provider answered but had nothing for the symbol.
var ErrNoData = errors.New("no market data")

// fetchFunc builds one symbol's bundle. Failures go into the bundle's Errors.
type fetchFunc func(ctx context.Context, symbol string) types.SignalBundle

// fetchAll runs fetch for every symbol with at most limit in flight.
func fetchAll(ctx context.Context, symbols []string, limit int, fetch fetchFunc) map[string]types.SignalBundle {
	out := make(map[string]types.SignalBundle, len(symbols))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for _, sym := range symbols {
		g.Go(func() error {
			b := fetch(ctx, sym)
			b.Symbol = sym
			mu.Lock()
			out[sym] = b
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func fail(b *types.SignalBundle, source string, err error) {
	b.Errors = append(b.Errors, types.SourceError{Source: source, Message: err.Error()})
}

// quoteFromCandles derives the latest quote from the last daily bar.
func quoteFromCandles(symbol string, candles []types.Candle) (*types.MarketData, error) {
	if len(candles) == 0 {
		return nil, ErrNoData
	}
	last := candles[len(candles)-1]
	md := &types.MarketData{
		Symbol:       symbol,
		CurrentPrice: last.Close,
		Change:       last.Close - last.Open,
		Volume:       last.Vol,
		Timestamp:    time.Unix(last.Ts, 0).UTC(),
	}
	if last.Open != 0 {
		md.ChangePercent = (last.Close - last.Open) / last.Open * 100
	}
	return md, nil
}

// attachFundamentals copies valuation fields the quote also reports.
func attachFundamentals(b *types.SignalBundle) {
	if b.Market == nil || b.Fundamentals == nil {
		return
	}
	if b.Market.MarketCap == nil {
		b.Market.MarketCap = b.Fundamentals.MarketCap
	}
	if b.Market.PERatio == nil {
		b.Market.PERatio = b.Fundamentals.PERatio
	}
}

func historyWindow(cfg *store.Config) int {
	return max(cfg.Market.HistoryDays, 90)
}
