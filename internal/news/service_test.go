package news

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegraph/internal/store"
	"tradegraph/internal/types"
)

func TestArticleCache(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newArticleCache(time.Hour)
	cache.now = func() time.Time { return now }

	key := cacheKey("AAPL", 24)
	cache.set(key, []types.NewsArticle{{Title: "Apple beats"}})

	got, found := cache.get(key)
	if !found {
		t.Fatal("Expected to find cached articles")
	}
	if len(got) != 1 || got[0].Title != "Apple beats" {
		t.Errorf("Expected cached article, got %+v", got)
	}

	now = now.Add(2 * time.Hour)
	if _, found = cache.get(key); found {
		t.Error("Expected cache entry to be expired")
	}

	cache.set(cacheKey("MSFT", 24), nil)
	cache.mu.RLock()
	_, stale := cache.data[key]
	cache.mu.RUnlock()
	if stale {
		t.Error("Expected expired entry to be dropped on set")
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(store.Default())

	if cfg.MaxArticles != 15 {
		t.Errorf("Expected MaxArticles to be 15, got %d", cfg.MaxArticles)
	}
	if cfg.CacheDuration != time.Hour {
		t.Errorf("Expected CacheDuration to be 1 hour, got %v", cfg.CacheDuration)
	}
	if !cfg.Enabled {
		t.Error("Expected Enabled to be true")
	}
	if cfg.Concurrency != 5 {
		t.Errorf("Expected Concurrency to be 5, got %d", cfg.Concurrency)
	}
	if cfg.SymbolTimeout != 20*time.Second {
		t.Errorf("Expected SymbolTimeout to be 20s, got %v", cfg.SymbolTimeout)
	}

	raw := store.Default()
	raw.Analysis.MaxConcurrentAgents = 10
	if got := ConfigFrom(raw).Concurrency; got != maxConcurrency {
		t.Errorf("Expected Concurrency capped at %d, got %d", maxConcurrency, got)
	}
}

func TestNewServicePicksAnalyzer(t *testing.T) {
	cfg := store.Default()
	svc := NewService(context.Background(), cfg, stubCompleter{})
	assert.IsType(t, KeywordAnalyzer{}, svc.analyzer)

	cfg.News.Analyzer = "LLM"
	svc = NewService(context.Background(), cfg, stubCompleter{})
	assert.IsType(t, &LLMAnalyzer{}, svc.analyzer)

	svc = NewService(context.Background(), cfg, nil)
	assert.IsType(t, KeywordAnalyzer{}, svc.analyzer)
}

type fakeFetcher struct {
	calls atomic.Int32
	arts  map[string][]types.NewsArticle
	err   error
}

func (f *fakeFetcher) Scrape(_ context.Context, symbol string, _ time.Duration, _ int) ([]types.NewsArticle, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	src := f.arts[symbol]
	out := make([]types.NewsArticle, len(src))
	copy(out, src)
	return out, nil
}

func testConfig() ServiceConfig {
	return ServiceConfig{Enabled: true, MaxArticles: 15, CacheDuration: time.Hour}
}

func TestCollectNewsOrdersScoresAndCaches(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f := &fakeFetcher{arts: map[string][]types.NewsArticle{
		"AAPL": {
			{Title: "Old note", PublishedAt: t0},
			{Title: "AAPL earnings beat, strong growth", PublishedAt: t0.Add(2 * time.Hour)},
			{Title: "Analyst says sell", PublishedAt: t0.Add(time.Hour)},
		},
	}}
	svc := newService(f, KeywordAnalyzer{}, testConfig())

	out, err := svc.CollectNews(context.Background(), []string{"AAPL"}, 24, 2)
	require.NoError(t, err)
	arts := out["AAPL"]
	require.Len(t, arts, 2)
	assert.Equal(t, "AAPL earnings beat, strong growth", arts[0].Title)
	assert.InDelta(t, 0.85, arts[0].ImpactScore, 1e-9)
	assert.Equal(t, types.Bullish, arts[0].Sentiment)
	assert.Equal(t, types.Bearish, arts[1].Sentiment)

	_, err = svc.CollectNews(context.Background(), []string{"AAPL"}, 24, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, []string{"AAPL/24"}, svc.CachedSymbols())

	svc.ClearCache()
	assert.Empty(t, svc.CachedSymbols())
}

func TestCollectNewsFailures(t *testing.T) {
	f := &fakeFetcher{err: errors.New("blocked")}
	svc := newService(f, KeywordAnalyzer{}, testConfig())

	_, err := svc.CollectNews(context.Background(), []string{"AAPL", "MSFT"}, 24, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 symbols")
	var perSymbol types.SymbolErrors
	require.ErrorAs(t, err, &perSymbol)
	assert.Len(t, perSymbol, 2)

	disabled := newService(f, KeywordAnalyzer{}, ServiceConfig{})
	out, err := disabled.CollectNews(context.Background(), []string{"AAPL"}, 24, 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

// hangingFetcher blocks on HANG until its context ends and serves the rest
// from arts.
type hangingFetcher struct {
	fakeFetcher
}

func (f *hangingFetcher) Scrape(ctx context.Context, symbol string, window time.Duration, n int) ([]types.NewsArticle, error) {
	if symbol == "HANG" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.fakeFetcher.Scrape(ctx, symbol, window, n)
}

func TestCollectNewsSymbolTimeoutKeepsOthers(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f := &hangingFetcher{fakeFetcher{arts: map[string][]types.NewsArticle{
		"AAPL": {{Title: "Apple earnings beat", PublishedAt: t0}},
		"MSFT": {{Title: "Microsoft cloud growth", PublishedAt: t0}},
	}}}
	cfg := testConfig()
	cfg.Concurrency = 1
	cfg.SymbolTimeout = 50 * time.Millisecond
	svc := newService(f, KeywordAnalyzer{}, cfg)

	out, err := svc.CollectNews(context.Background(), []string{"AAPL", "HANG", "MSFT"}, 24, 5)
	require.Error(t, err)

	var perSymbol types.SymbolErrors
	require.ErrorAs(t, err, &perSymbol)
	require.Len(t, perSymbol, 1)
	assert.ErrorIs(t, perSymbol["HANG"], context.DeadlineExceeded)
	assert.NotContains(t, err.Error(), "unavailable for all")

	require.Len(t, out["AAPL"], 1)
	require.Len(t, out["MSFT"], 1)
	assert.NotContains(t, out, "HANG")
	assert.Equal(t, []string{"AAPL/24", "MSFT/24"}, svc.CachedSymbols())
}
