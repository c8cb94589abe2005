package market

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"tradegraph/internal/store"
	"tradegraph/internal/ta"
	"tradegraph/internal/types"
)

var mockSectors = []string{"Technology", "Healthcare", "Financial Services", "Energy", "Consumer Cyclical", "Industrials"}

// MockSource generates a deterministic random walk and ratios per symbol, so
// the same symbol always yields the same signals.
type MockSource struct {
	days int
	end  time.Time
}

func NewMockSource(cfg *store.Config) *MockSource {
	return &MockSource{
		days: historyWindow(cfg),
		end:  time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC),
	}
}

func (m *MockSource) FetchMarketSignals(ctx context.Context, symbols []string) map[string]types.SignalBundle {
	out := make(map[string]types.SignalBundle, len(symbols))
	for _, sym := range symbols {
		out[sym] = m.bundle(sym)
	}
	return out
}

func seed(symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return int64(h.Sum64() & math.MaxInt64)
}

func (m *MockSource) bundle(symbol string) types.SignalBundle {
	r := rand.New(rand.NewSource(seed(symbol)))
	candles := m.walk(r)
	md, _ := quoteFromCandles(symbol, candles)

	b := types.SignalBundle{
		Symbol:    symbol,
		Market:    md,
		Technical: ta.Compute(symbol, candles),
	}
	if !types.IsCrypto(symbol) {
		b.Fundamentals = mockFundamentals(symbol, r)
		attachFundamentals(&b)
	}
	return b
}

func (m *MockSource) walk(r *rand.Rand) []types.Candle {
	price := 20 + r.Float64()*380
	drift := (r.Float64() - 0.5) * 0.004
	vol := 0.01 + r.Float64()*0.02

	start := m.end.AddDate(0, 0, -m.days)
	candles := make([]types.Candle, 0, m.days)
	for i := 0; i < m.days; i++ {
		open := price
		price *= 1 + drift + vol*r.NormFloat64()
		price = math.Max(price, 1)
		hi := math.Max(open, price) * (1 + r.Float64()*vol/2)
		lo := math.Min(open, price) * (1 - r.Float64()*vol/2)
		candles = append(candles, types.Candle{
			Ts:   start.AddDate(0, 0, i).Unix(),
			Open: open, High: hi, Low: lo, Close: price,
			Vol: math.Round(1e5 + r.Float64()*5e6),
		})
	}
	return candles
}

func mockFundamentals(symbol string, r *rand.Rand) *types.Fundamentals {
	between := func(lo, hi float64) *float64 { return types.Float(lo + r.Float64()*(hi-lo)) }
	return &types.Fundamentals{
		Symbol:         symbol,
		CompanyName:    symbol + " Inc.",
		Sector:         mockSectors[r.Intn(len(mockSectors))],
		MarketCap:      types.Float(math.Pow(10, 8.5+r.Float64()*4)),
		PERatio:        between(6, 45),
		EPS:            between(-1, 12),
		RevenueGrowth:  between(-0.1, 0.35),
		DebtToEquity:   between(0, 2),
		CurrentRatio:   between(0.6, 3),
		ReturnOnEquity: between(-0.05, 0.35),
		ReturnOnAssets: between(-0.02, 0.15),
		PriceToBook:    between(0.8, 12),
		DividendYield:  between(0, 0.05),
		Beta:           between(0.5, 2),
	}
}
