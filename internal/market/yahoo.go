package market

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"tradegraph/internal/api"
	"tradegraph/internal/logger"
	"tradegraph/internal/store"
	"tradegraph/internal/ta"
	"tradegraph/internal/types"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource reads daily history from the chart API and ratios from
// quoteSummary.
type YahooSource struct {
	client      *api.Client
	retry       *api.RetryConfig
	historyDays int
	concurrency int
	now         func() time.Time
}

type YahooOption func(*YahooSource)

// WithYahooBaseURL points the source at another host, mainly for tests.
func WithYahooBaseURL(u string) YahooOption {
	return func(y *YahooSource) {
		y.client = api.NewClient(api.WithBaseURL(u), api.WithHeaders(api.YahooFinanceHeaders()), api.WithLogging(true))
	}
}

// WithYahooRetry overrides the retry policy.
func WithYahooRetry(rc *api.RetryConfig) YahooOption {
	return func(y *YahooSource) { y.retry = rc }
}

func NewYahooSource(cfg *store.Config, opts ...YahooOption) *YahooSource {
	y := &YahooSource{
		client: api.NewClient(
			api.WithBaseURL(yahooBaseURL),
			api.WithTimeout(cfg.Market.Timeout),
			api.WithHeaders(api.YahooFinanceHeaders()),
			api.WithRateLimit(cfg.Market.RequestsPerSecond, 1),
			api.WithLogging(true),
		),
		retry:       api.DefaultRetryConfig(),
		historyDays: historyWindow(cfg),
		concurrency: cfg.Analysis.MaxConcurrentAgents,
		now:         time.Now,
	}
	for _, o := range opts {
		o(y)
	}
	return y
}

func (y *YahooSource) FetchMarketSignals(ctx context.Context, symbols []string) map[string]types.SignalBundle {
	return fetchAll(ctx, symbols, y.concurrency, y.fetch)
}

func (y *YahooSource) fetch(ctx context.Context, symbol string) types.SignalBundle {
	b := types.SignalBundle{Symbol: symbol}
	crypto := types.IsCrypto(symbol)
	query := symbol
	if crypto {
		query = types.CryptoBase(symbol) + "-USD"
	}

	candles, err := y.chart(ctx, query)
	if err != nil {
		fail(&b, types.SourceMarket, err)
		fail(&b, types.SourceTechnical, err)
	} else {
		b.Market, _ = quoteFromCandles(symbol, candles)
		b.Technical = ta.Compute(symbol, candles)
		if b.Technical == nil {
			logger.Debug(ctx, "Not enough history for indicators", "symbol", symbol, "bars", len(candles))
		}
	}

	if !crypto {
		f, err := y.summary(ctx, symbol)
		if err != nil {
			fail(&b, types.SourceFundamentals, err)
		} else {
			b.Fundamentals = f
			attachFundamentals(&b)
		}
	}
	return b
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *YahooSource) chart(ctx context.Context, query string) ([]types.Candle, error) {
	to := y.now()
	from := to.AddDate(0, 0, -y.historyDays)
	path := fmt.Sprintf("/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		url.PathEscape(query), from.Unix(), to.Unix())

	resp, err := y.client.GetWithRetry(ctx, path, y.retry)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", query, err)
	}
	var cr chartResponse
	if err := resp.ParseJSON(&cr); err != nil {
		return nil, fmt.Errorf("chart %s: %w", query, err)
	}
	if cr.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s: %w", query, cr.Chart.Error.Description, ErrNoData)
	}
	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart %s: %w", query, ErrNoData)
	}

	res := cr.Chart.Result[0]
	q := res.Indicators.Quote[0]
	candles := make([]types.Candle, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		o, h, l, c := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		// Yahoo leaves nulls for halted or partial sessions.
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		v := 0.0
		if p := at(q.Volume, i); p != nil {
			v = *p
		}
		candles = append(candles, types.Candle{Ts: ts, Open: *o, High: *h, Low: *l, Close: *c, Vol: v})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("chart %s: %w", query, ErrNoData)
	}
	return candles, nil
}

func at(s []*float64, i int) *float64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}

type rawNum struct {
	Raw *float64 `json:"raw"`
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				LongName  string `json:"longName"`
				MarketCap rawNum `json:"marketCap"`
			} `json:"price"`
			AssetProfile struct {
				Sector string `json:"sector"`
			} `json:"assetProfile"`
			SummaryDetail struct {
				MarketCap        rawNum `json:"marketCap"`
				TrailingPE       rawNum `json:"trailingPE"`
				DividendYield    rawNum `json:"dividendYield"`
				Beta             rawNum `json:"beta"`
				FiftyTwoWeekHigh rawNum `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow  rawNum `json:"fiftyTwoWeekLow"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				TrailingEps       rawNum `json:"trailingEps"`
				PriceToBook       rawNum `json:"priceToBook"`
				NetIncomeToCommon rawNum `json:"netIncomeToCommon"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				TotalRevenue   rawNum `json:"totalRevenue"`
				RevenueGrowth  rawNum `json:"revenueGrowth"`
				DebtToEquity   rawNum `json:"debtToEquity"`
				CurrentRatio   rawNum `json:"currentRatio"`
				ReturnOnEquity rawNum `json:"returnOnEquity"`
				ReturnOnAssets rawNum `json:"returnOnAssets"`
			} `json:"financialData"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

const summaryModules = "price,assetProfile,summaryDetail,defaultKeyStatistics,financialData"

func (y *YahooSource) summary(ctx context.Context, symbol string) (*types.Fundamentals, error) {
	path := fmt.Sprintf("/v10/finance/quoteSummary/%s?modules=%s", url.PathEscape(symbol), summaryModules)
	resp, err := y.client.GetWithRetry(ctx, path, y.retry)
	if err != nil {
		return nil, fmt.Errorf("quoteSummary %s: %w", symbol, err)
	}
	var sr summaryResponse
	if err := resp.ParseJSON(&sr); err != nil {
		return nil, fmt.Errorf("quoteSummary %s: %w", symbol, err)
	}
	if sr.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quoteSummary %s: %s: %w", symbol, sr.QuoteSummary.Error.Description, ErrNoData)
	}
	if len(sr.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("quoteSummary %s: %w", symbol, ErrNoData)
	}

	r := sr.QuoteSummary.Result[0]
	f := &types.Fundamentals{
		Symbol:           symbol,
		CompanyName:      r.Price.LongName,
		Sector:           r.AssetProfile.Sector,
		MarketCap:        r.SummaryDetail.MarketCap.Raw,
		PERatio:          r.SummaryDetail.TrailingPE.Raw,
		EPS:              r.DefaultKeyStatistics.TrailingEps.Raw,
		Revenue:          r.FinancialData.TotalRevenue.Raw,
		RevenueGrowth:    r.FinancialData.RevenueGrowth.Raw,
		NetIncome:        r.DefaultKeyStatistics.NetIncomeToCommon.Raw,
		CurrentRatio:     r.FinancialData.CurrentRatio.Raw,
		ReturnOnEquity:   r.FinancialData.ReturnOnEquity.Raw,
		ReturnOnAssets:   r.FinancialData.ReturnOnAssets.Raw,
		PriceToBook:      r.DefaultKeyStatistics.PriceToBook.Raw,
		DividendYield:    r.SummaryDetail.DividendYield.Raw,
		Beta:             r.SummaryDetail.Beta.Raw,
		FiftyTwoWeekHigh: r.SummaryDetail.FiftyTwoWeekHigh.Raw,
		FiftyTwoWeekLow:  r.SummaryDetail.FiftyTwoWeekLow.Raw,
	}
	if f.MarketCap == nil {
		f.MarketCap = r.Price.MarketCap.Raw
	}
	// Yahoo reports debt/equity as a percentage.
	if de := r.FinancialData.DebtToEquity.Raw; de != nil {
		f.DebtToEquity = types.Float(*de / 100)
	}
	return f, nil
}
