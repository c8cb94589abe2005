package market

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"golang.org/x/time/rate"

	"tradegraph/internal/logger"
	"tradegraph/internal/store"
	"tradegraph/internal/ta"
	"tradegraph/internal/types"
)

// kiteAPI is the part of the Kite Connect client the source uses.
type kiteAPI interface {
	GetQuote(instruments ...string) (kiteconnect.Quote, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// KiteSource reads quotes and daily candles from Zerodha Kite Connect. It
// has no fundamentals endpoint, so Fundamentals stay nil.
type KiteSource struct {
	kc          kiteAPI
	exchange    string
	historyDays int
	concurrency int
	limiter     *rate.Limiter
	now         func() time.Time
}

// NewKiteSource builds a source from the API key and access token named in
// the config.
func NewKiteSource(cfg *store.Config) (*KiteSource, error) {
	apiKey := os.Getenv(cfg.Market.Kite.APIKeyEnv)
	token := os.Getenv(cfg.Market.Kite.TokenEnv)
	if apiKey == "" || token == "" {
		return nil, fmt.Errorf("%s and %s must be set for the KITE provider", cfg.Market.Kite.APIKeyEnv, cfg.Market.Kite.TokenEnv)
	}
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(token)
	return newKiteSource(cfg, kc), nil
}

func newKiteSource(cfg *store.Config, kc kiteAPI) *KiteSource {
	return &KiteSource{
		kc:          kc,
		exchange:    cfg.Market.Kite.Exchange,
		historyDays: historyWindow(cfg),
		concurrency: cfg.Analysis.MaxConcurrentAgents,
		// Kite allows 3 historical requests per second.
		limiter: rate.NewLimiter(rate.Limit(min(cfg.Market.RequestsPerSecond, 3)), 1),
		now:     time.Now,
	}
}

func (k *KiteSource) FetchMarketSignals(ctx context.Context, symbols []string) map[string]types.SignalBundle {
	return fetchAll(ctx, symbols, k.concurrency, k.fetch)
}

func (k *KiteSource) fetch(ctx context.Context, symbol string) types.SignalBundle {
	b := types.SignalBundle{Symbol: symbol}
	if types.IsCrypto(symbol) {
		err := fmt.Errorf("%s is not listed on %s: %w", symbol, k.exchange, ErrNoData)
		fail(&b, types.SourceMarket, err)
		fail(&b, types.SourceTechnical, err)
		return b
	}

	instrument := k.exchange + ":" + symbol
	if err := k.limiter.Wait(ctx); err != nil {
		fail(&b, types.SourceMarket, err)
		return b
	}
	quotes, err := k.kc.GetQuote(instrument)
	if err != nil {
		fail(&b, types.SourceMarket, fmt.Errorf("quote %s: %w", instrument, err))
		fail(&b, types.SourceTechnical, errors.New("no instrument token without a quote"))
		return b
	}
	q, ok := quotes[instrument]
	if !ok || q.LastPrice <= 0 {
		err := fmt.Errorf("quote %s: %w", instrument, ErrNoData)
		fail(&b, types.SourceMarket, err)
		fail(&b, types.SourceTechnical, err)
		return b
	}

	md := &types.MarketData{
		Symbol:       symbol,
		CurrentPrice: q.LastPrice,
		Change:       q.NetChange,
		Volume:       float64(q.Volume),
		Timestamp:    k.now().UTC(),
	}
	if prev := q.LastPrice - q.NetChange; prev != 0 {
		md.ChangePercent = q.NetChange / prev * 100
	}
	b.Market = md

	candles, err := k.history(ctx, q.InstrumentToken)
	if err != nil {
		fail(&b, types.SourceTechnical, err)
		return b
	}
	b.Technical = ta.Compute(symbol, candles)
	if b.Technical == nil {
		logger.Debug(ctx, "Not enough history for indicators", "symbol", symbol, "bars", len(candles))
	}
	return b
}

func (k *KiteSource) history(ctx context.Context, token int) ([]types.Candle, error) {
	if err := k.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	to := k.now()
	from := to.AddDate(0, 0, -k.historyDays)
	rows, err := k.kc.GetHistoricalData(token, "day", from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("historical %d: %w", token, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("historical %d: %w", token, ErrNoData)
	}
	candles := make([]types.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, types.Candle{
			Ts:   r.Date.Unix(),
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close,
			Vol: float64(r.Volume),
		})
	}
	return candles, nil
}
