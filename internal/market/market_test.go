package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"tradegraph/internal/api"
	"tradegraph/internal/store"
	"tradegraph/internal/types"
)

func chartJSON(n int, start float64) string {
	ts := make([]int64, n)
	o, h, l, c, v := make([]any, n), make([]any, n), make([]any, n), make([]any, n), make([]any, n)
	for i := 0; i < n; i++ {
		p := start + float64(i)
		ts[i] = int64(1700000000 + i*86400)
		o[i], h[i], l[i], c[i], v[i] = p-0.5, p+1, p-1, p, 1000.0
	}
	// One halted session.
	c[n/2] = nil

	body := map[string]any{"chart": map[string]any{
		"result": []any{map[string]any{
			"timestamp":  ts,
			"indicators": map[string]any{"quote": []any{map[string]any{"open": o, "high": h, "low": l, "close": c, "volume": v}}},
		}},
		"error": nil,
	}}
	b, _ := json.Marshal(body)
	return string(b)
}

const summaryJSON = `{"quoteSummary":{"result":[{
  "price":{"longName":"Apple Inc.","marketCap":{"raw":3.0e12}},
  "assetProfile":{"sector":"Technology"},
  "summaryDetail":{"trailingPE":{"raw":28.5},"beta":{"raw":1.2}},
  "defaultKeyStatistics":{"trailingEps":{"raw":6.1}},
  "financialData":{"debtToEquity":{"raw":145.0},"returnOnEquity":{"raw":1.5},"revenueGrowth":{}}
}],"error":null}}`

func fastRetry() *api.RetryConfig {
	return &api.RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
}

type yahooStub struct {
	mu    sync.Mutex
	paths []string
}

func (y *yahooStub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		y.mu.Lock()
		y.paths = append(y.paths, r.URL.Path)
		y.mu.Unlock()
		switch {
		case r.URL.Path == "/v8/finance/chart/AAPL", r.URL.Path == "/v8/finance/chart/BTC-USD":
			assert.Equal(t, "1d", r.URL.Query().Get("interval"))
			_, _ = w.Write([]byte(chartJSON(60, 100)))
		case r.URL.Path == "/v10/finance/quoteSummary/AAPL":
			_, _ = w.Write([]byte(summaryJSON))
		default:
			http.Error(w, `{"chart":{"result":null,"error":{"code":"Not Found"}}}`, http.StatusNotFound)
		}
	})
}

func (y *yahooStub) saw(path string) bool {
	y.mu.Lock()
	defer y.mu.Unlock()
	for _, p := range y.paths {
		if p == path {
			return true
		}
	}
	return false
}

func newTestYahoo(t *testing.T) (*YahooSource, *yahooStub) {
	stub := &yahooStub{}
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)
	y := NewYahooSource(store.Default(), WithYahooBaseURL(srv.URL), WithYahooRetry(fastRetry()))
	y.now = func() time.Time { return time.Unix(1700000000+60*86400, 0) }
	return y, stub
}

func TestYahooEquity(t *testing.T) {
	y, _ := newTestYahoo(t)
	out := y.FetchMarketSignals(context.Background(), []string{"AAPL"})

	b := out["AAPL"]
	assert.Empty(t, b.Errors)
	require.NotNil(t, b.Market)
	assert.Equal(t, 159.0, b.Market.CurrentPrice)
	assert.Equal(t, 0.5, b.Market.Change)

	// 59 usable bars after dropping the null close.
	require.NotNil(t, b.Technical)
	require.NotNil(t, b.Technical.SMA20)

	require.NotNil(t, b.Fundamentals)
	assert.Equal(t, "Technology", b.Fundamentals.Sector)
	assert.InDelta(t, 1.45, *b.Fundamentals.DebtToEquity, 1e-12)
	assert.Nil(t, b.Fundamentals.RevenueGrowth)
	assert.InDelta(t, 3.0e12, *b.Fundamentals.MarketCap, 1)
	require.NotNil(t, b.Market.PERatio)
	assert.Equal(t, 28.5, *b.Market.PERatio)
}

func TestYahooCryptoSkipsFundamentals(t *testing.T) {
	y, stub := newTestYahoo(t)
	b := y.FetchMarketSignals(context.Background(), []string{"BTC"})["BTC"]

	assert.Empty(t, b.Errors)
	assert.NotNil(t, b.Market)
	assert.Nil(t, b.Fundamentals)
	assert.True(t, stub.saw("/v8/finance/chart/BTC-USD"))
	assert.False(t, stub.saw("/v10/finance/quoteSummary/BTC"))
}

func TestYahooFailureIsPerSymbol(t *testing.T) {
	y, _ := newTestYahoo(t)
	out := y.FetchMarketSignals(context.Background(), []string{"AAPL", "ZZZZ"})
	require.Len(t, out, 2)

	bad := out["ZZZZ"]
	assert.Nil(t, bad.Market)
	assert.True(t, bad.Failed(types.SourceMarket))
	assert.True(t, bad.Failed(types.SourceTechnical))
	assert.True(t, bad.Failed(types.SourceFundamentals))

	assert.Empty(t, out["AAPL"].Errors)
}

func TestMockIsDeterministic(t *testing.T) {
	m := NewMockSource(store.Default())
	a := m.FetchMarketSignals(context.Background(), []string{"MSFT", "ETH"})
	b := m.FetchMarketSignals(context.Background(), []string{"ETH", "MSFT"})
	assert.Equal(t, a, b)

	msft := a["MSFT"]
	require.NotNil(t, msft.Market)
	require.NotNil(t, msft.Technical)
	require.NotNil(t, msft.Fundamentals)
	assert.Greater(t, msft.Market.CurrentPrice, 0.0)
	assert.Equal(t, msft.Fundamentals.MarketCap, msft.Market.MarketCap)

	assert.Nil(t, a["ETH"].Fundamentals)
	assert.NotEqual(t, a["ETH"].Market.CurrentPrice, msft.Market.CurrentPrice)
}

type fakeKite struct {
	quotes   string
	quoteErr error
	rows     []kiteconnect.HistoricalData
}

func (f *fakeKite) GetQuote(instruments ...string) (kiteconnect.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	var q kiteconnect.Quote
	if err := json.Unmarshal([]byte(f.quotes), &q); err != nil {
		return nil, err
	}
	return q, nil
}

func (f *fakeKite) GetHistoricalData(int, string, time.Time, time.Time, bool, bool) ([]kiteconnect.HistoricalData, error) {
	return f.rows, nil
}

func kiteRows(n int) []kiteconnect.HistoricalData {
	rows := make([]kiteconnect.HistoricalData, n)
	for i := range rows {
		p := 1400 + float64(i)
		rows[i] = kiteconnect.HistoricalData{Open: p - 2, High: p + 5, Low: p - 5, Close: p, Volume: 1000}
	}
	return rows
}

func testKite(f *fakeKite) *KiteSource {
	cfg := store.Default()
	cfg.Market.RequestsPerSecond = 1000
	return newKiteSource(cfg, f)
}

func TestKiteQuoteAndHistory(t *testing.T) {
	f := &fakeKite{
		quotes: `{"NSE:INFY":{"instrument_token":408065,"last_price":1500,"net_change":15,"volume":250000}}`,
		rows:   kiteRows(60),
	}
	b := testKite(f).FetchMarketSignals(context.Background(), []string{"INFY"})["INFY"]

	assert.Empty(t, b.Errors)
	require.NotNil(t, b.Market)
	assert.Equal(t, 1500.0, b.Market.CurrentPrice)
	assert.InDelta(t, 15.0/1485*100, b.Market.ChangePercent, 1e-9)
	assert.Equal(t, 250000.0, b.Market.Volume)
	require.NotNil(t, b.Technical)
	assert.Nil(t, b.Fundamentals)
}

func TestKiteFailures(t *testing.T) {
	down := testKite(&fakeKite{quoteErr: errors.New("TokenException")})
	b := down.FetchMarketSignals(context.Background(), []string{"INFY"})["INFY"]
	assert.True(t, b.Failed(types.SourceMarket))
	assert.True(t, b.Failed(types.SourceTechnical))

	missing := testKite(&fakeKite{quotes: `{}`})
	b = missing.FetchMarketSignals(context.Background(), []string{"INFY"})["INFY"]
	require.NotEmpty(t, b.Errors)
	assert.True(t, strings.Contains(b.Errors[0].Message, ErrNoData.Error()))

	crypto := testKite(&fakeKite{})
	b = crypto.FetchMarketSignals(context.Background(), []string{"SOL"})["SOL"]
	assert.True(t, b.Failed(types.SourceMarket), fmt.Sprint(b.Errors))
}
