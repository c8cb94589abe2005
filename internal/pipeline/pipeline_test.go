package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegraph/internal/recommend"
	"tradegraph/internal/types"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

type fakeMarket struct {
	bundles map[string]types.SignalBundle
	calls   atomic.Int32
}

func (f *fakeMarket) FetchMarketSignals(_ context.Context, symbols []string) map[string]types.SignalBundle {
	f.calls.Add(1)
	out := map[string]types.SignalBundle{}
	for _, s := range symbols {
		if b, ok := f.bundles[s]; ok {
			out[s] = b
		}
	}
	return out
}

type fakeNews struct {
	articles map[string][]types.NewsArticle
	err      error
	// hook runs inside CollectNews, before returning.
	hook func()
	// untilDone holds CollectNews until its context ends, then returns the
	// articles gathered so far with the context error.
	untilDone bool
}

func (f *fakeNews) CollectNews(ctx context.Context, symbols []string, _, _ int) (map[string][]types.NewsArticle, error) {
	if f.hook != nil {
		f.hook()
	}
	if f.untilDone {
		<-ctx.Done()
		return f.articles, ctx.Err()
	}
	return f.articles, f.err
}

type fakeSentiment struct {
	results  map[string]types.SentimentResult
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeSentiment) AnalyzeSentiment(ctx context.Context, symbol string, _ []types.NewsArticle) (types.SentimentResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	r, ok := f.results[symbol]
	if !ok {
		return types.SentimentResult{}, errors.New("no sentiment")
	}
	return r, nil
}

type fakeReports struct {
	err    error
	failed types.SymbolErrors
}

func (f *fakeReports) FetchReportAnalysis(_ context.Context, symbols []string, _ []string) (map[string]types.ReportAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]types.ReportAnalysis{}
	for _, s := range symbols {
		if _, bad := f.failed[s]; bad {
			continue
		}
		out[s] = types.ReportAnalysis{Symbol: s, HealthScore: types.Float(8), RiskFactors: []string{"net loss"}}
	}
	if len(f.failed) > 0 {
		return out, f.failed
	}
	return out, nil
}

func article(sym string) []types.NewsArticle {
	return []types.NewsArticle{{Title: sym + " beats estimates", Symbols: []string{sym}, ImpactScore: 0.7}}
}

func newOrchestrator(src Sources) *Orchestrator {
	return New(src, recommend.New(recommend.WithClock(fixedNow)), Options{MaxConcurrent: 2, StageTimeout: time.Second, Now: fixedNow})
}

func TestRunEmptySymbols(t *testing.T) {
	m := &fakeMarket{}
	res, err := newOrchestrator(Sources{Market: m}).Run(context.Background(), types.AnalysisRequest{}, nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Portfolio)
	assert.Empty(t, res.Recommendations)
	assert.Empty(t, res.Errors)
	assert.Equal(t, int32(0), m.calls.Load())
	assert.Len(t, res.CompletedStages, 6)
}

func TestRunMarketFailureStillRecommends(t *testing.T) {
	market := &fakeMarket{bundles: map[string]types.SignalBundle{
		"AAPL": {Symbol: "AAPL", Errors: []types.SourceError{{Source: types.SourceMarket, Message: "timeout"}}},
	}}
	news := &fakeNews{articles: map[string][]types.NewsArticle{"AAPL": article("AAPL")}}
	sent := &fakeSentiment{results: map[string]types.SentimentResult{
		"AAPL": {Symbol: "AAPL", Score: 0.6, Confidence: 0.7, Label: types.Bullish, ArticleCount: 1},
	}}

	res, err := newOrchestrator(Sources{Market: market, News: news, Sentiment: sent}).
		Run(context.Background(), types.AnalysisRequest{Symbols: []string{"aapl"}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)

	rec := res.Recommendations[0]
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, 0.5, rec.FundamentalScore)
	assert.Equal(t, 0.5, rec.TechnicalScore)
	assert.InDelta(t, 0.5+(0.8-0.5)*0.7, rec.SentimentScore, 1e-9)
	require.NotNil(t, res.Portfolio)
	assert.Empty(t, res.Errors)
	assert.Contains(t, res.Warnings, "AAPL: market unavailable: timeout")
}

func TestRunStageFailureIsRecorded(t *testing.T) {
	news := &fakeNews{err: errors.New("all sources down")}
	res, err := newOrchestrator(Sources{Market: &fakeMarket{}, News: news}).
		Run(context.Background(), types.AnalysisRequest{Symbols: []string{"MSFT"}}, nil)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "collect_news: ")
	assert.Contains(t, res.Errors[0], "all sources down")
	assert.Len(t, res.CompletedStages, 6)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, types.Hold, res.Recommendations[0].Recommendation)
	assert.Contains(t, res.Warnings, "No buy or sell recommendations generated")
}

func TestRunCancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	news := &fakeNews{articles: map[string][]types.NewsArticle{}, hook: cancel}
	market := &fakeMarket{}

	var events []types.Progress
	res, err := newOrchestrator(Sources{Market: market, News: news}).
		Run(ctx, types.AnalysisRequest{Symbols: []string{"AAPL"}}, func(p types.Progress) { events = append(events, p) })

	assert.ErrorIs(t, err, ErrCancelled)
	require.NotNil(t, res)
	assert.True(t, res.Cancelled)
	// The stage in flight completes; nothing after it starts.
	assert.Equal(t, []string{StageCollectNews}, res.CompletedStages)
	assert.Equal(t, int32(0), market.calls.Load())
	require.Len(t, events, 1)
	assert.Equal(t, StageCollectNews, events[0].Stage)
}

func TestRunProgressAndReports(t *testing.T) {
	var mu sync.Mutex
	var events []types.Progress
	o := newOrchestrator(Sources{Market: &fakeMarket{}, Reports: &fakeReports{}})

	res, err := o.Run(context.Background(), types.AnalysisRequest{Symbols: []string{"IBM"}, IncludeReports: true}, func(p types.Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Len(t, events, 6)
	assert.Equal(t, o.Stages(), res.CompletedStages)
	assert.Equal(t, 100, events[5].Percent)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Percent, events[i-1].Percent)
	}

	require.Len(t, res.Recommendations, 1)
	rec := res.Recommendations[0]
	assert.InDelta(t, 0.8, rec.FundamentalScore, 1e-9)
	assert.Contains(t, rec.Risks, "Filing mentions net loss")
}

func TestRunReportOutageDegradesGracefully(t *testing.T) {
	o := newOrchestrator(Sources{Market: &fakeMarket{}, Reports: &fakeReports{err: errors.New("edgar 503")}})
	res, err := o.Run(context.Background(), types.AnalysisRequest{Symbols: []string{"IBM"}, IncludeReports: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, 0.5, res.Recommendations[0].FundamentalScore)
	assert.Contains(t, res.Warnings, "IBM: reports unavailable: edgar 503")
}

func TestRunPartialReportFailure(t *testing.T) {
	reports := &fakeReports{failed: types.SymbolErrors{"MSFT": errors.New("edgar 503")}}
	o := newOrchestrator(Sources{Market: &fakeMarket{}, Reports: reports})
	res, err := o.Run(context.Background(), types.AnalysisRequest{Symbols: []string{"IBM", "MSFT"}, IncludeReports: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	require.Len(t, res.Recommendations, 2)
	assert.InDelta(t, 0.8, res.Recommendations[0].FundamentalScore, 1e-9)
	assert.Equal(t, 0.5, res.Recommendations[1].FundamentalScore)
	assert.Contains(t, res.Warnings, "MSFT: reports unavailable: edgar 503")
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "IBM:")
	}
}

func TestRunNewsDeadlineKeepsCollectedArticles(t *testing.T) {
	news := &fakeNews{untilDone: true, articles: map[string][]types.NewsArticle{
		"AAPL": article("AAPL"),
		"MSFT": article("MSFT"),
	}}
	sent := &fakeSentiment{results: map[string]types.SentimentResult{
		"AAPL": {Symbol: "AAPL", Score: 0.6, Confidence: 0.7},
		"MSFT": {Symbol: "MSFT", Score: 0.6, Confidence: 0.7},
	}}
	o := New(Sources{News: news, Sentiment: sent}, recommend.New(recommend.WithClock(fixedNow)),
		Options{MaxConcurrent: 2, StageTimeout: 200 * time.Millisecond, Now: fixedNow})

	res, err := o.Run(context.Background(), types.AnalysisRequest{Symbols: []string{"AAPL", "SLOW", "MSFT"}}, nil)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "collect_news: ")
	assert.Contains(t, res.Errors[0], context.DeadlineExceeded.Error())

	require.Len(t, res.Recommendations, 3)
	scores := map[string]float64{}
	for _, r := range res.Recommendations {
		scores[r.Symbol] = r.SentimentScore
	}
	assert.InDelta(t, 0.5+(0.8-0.5)*0.7, scores["AAPL"], 1e-9)
	assert.InDelta(t, 0.5+(0.8-0.5)*0.7, scores["MSFT"], 1e-9)
	assert.Equal(t, 0.5, scores["SLOW"])
}

func TestRunPartialNewsFailureWarns(t *testing.T) {
	news := &fakeNews{
		articles: map[string][]types.NewsArticle{"AAPL": article("AAPL")},
		err:      types.SymbolErrors{"SLOW": context.DeadlineExceeded},
	}
	sent := &fakeSentiment{results: map[string]types.SentimentResult{
		"AAPL": {Symbol: "AAPL", Score: 0.6, Confidence: 0.7},
	}}

	res, err := newOrchestrator(Sources{News: news, Sentiment: sent}).
		Run(context.Background(), types.AnalysisRequest{Symbols: []string{"AAPL", "SLOW"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Contains(t, res.Warnings, "SLOW: news unavailable: context deadline exceeded")

	require.Len(t, res.Recommendations, 2)
	assert.InDelta(t, 0.5+(0.8-0.5)*0.7, res.Recommendations[0].SentimentScore, 1e-9)
	assert.Equal(t, 0.5, res.Recommendations[1].SentimentScore)
}

func TestSentimentFanOutIsBounded(t *testing.T) {
	syms := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF"}
	arts := map[string][]types.NewsArticle{}
	results := map[string]types.SentimentResult{}
	for _, s := range syms {
		arts[s] = article(s)
		results[s] = types.SentimentResult{Score: 0.1, Confidence: 0.5}
	}
	sent := &fakeSentiment{results: results, delay: 20 * time.Millisecond}

	res, err := newOrchestrator(Sources{News: &fakeNews{articles: arts}, Sentiment: sent}).
		Run(context.Background(), types.AnalysisRequest{Symbols: syms}, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, sent.peak.Load(), int32(2))
	require.Len(t, res.Recommendations, len(syms))
	for _, r := range res.Recommendations {
		assert.InDelta(t, 0.5+(0.55-0.5)*0.5, r.SentimentScore, 1e-9)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	market := &fakeMarket{bundles: map[string]types.SignalBundle{
		"AAPL": {Symbol: "AAPL", Market: &types.MarketData{CurrentPrice: 180, Volume: 1e6},
			Fundamentals: &types.Fundamentals{PERatio: types.Float(12), ReturnOnEquity: types.Float(0.2)},
			Technical:    &types.TechnicalIndicators{RSI: types.Float(25)}},
		"MSFT": {Symbol: "MSFT", Market: &types.MarketData{CurrentPrice: 400}},
	}}
	o := newOrchestrator(Sources{Market: market})
	req := types.AnalysisRequest{Symbols: []string{"AAPL", "MSFT"}}

	a, err := o.Run(context.Background(), req, nil)
	require.NoError(t, err)
	b, err := o.Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Recommendations, b.Recommendations)
	assert.Equal(t, a.Portfolio, b.Portfolio)
}

func TestPrepareRequest(t *testing.T) {
	req, warnings, errs := PrepareRequest(types.AnalysisRequest{
		Symbols:       []string{" aapl ", "MSFT", "TOOLONGX", "AAPL", "B2"},
		PortfolioSize: -10,
		RiskTolerance: "Aggressive",
		MaxPositions:  500,
		ReportTypes:   []string{"10-K", "S-1"},
	})

	assert.Equal(t, []string{"AAPL", "MSFT"}, req.Symbols)
	assert.Len(t, errs, 2)
	assert.Equal(t, types.Aggressive, req.RiskTolerance)
	assert.Equal(t, 100000.0, req.PortfolioSize)
	assert.Equal(t, 10, req.MaxPositions)
	assert.Equal(t, []string{"10-K", "10-Q"}, req.ReportTypes)
	assert.Equal(t, types.MediumTerm, req.TimeHorizon)
	assert.Equal(t, 24, req.WindowHours)
	assert.Len(t, warnings, 3)
}
