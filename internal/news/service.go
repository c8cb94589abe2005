// Package news collects articles per symbol and scores their sentiment.
package news

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/logger"
	"tradegraph/internal/store"
	"tradegraph/internal/types"
)

// fetcher is the scraping half of the service.
type fetcher interface {
	Scrape(ctx context.Context, symbol string, window time.Duration, maxArticles int) ([]types.NewsArticle, error)
}

// Service collects news with a TTL cache and delegates sentiment to an
// analyzer. It implements NewsCollector and SentimentAnalyzer.
type Service struct {
	fetch    fetcher
	analyzer interfaces.SentimentAnalyzer
	cache    *articleCache
	cfg      ServiceConfig
}

var (
	_ interfaces.NewsCollector     = (*Service)(nil)
	_ interfaces.SentimentAnalyzer = (*Service)(nil)
)

// ServiceConfig configures the news service
type ServiceConfig struct {
	Enabled       bool
	MaxArticles   int           // per-symbol ceiling on top of the request's
	CacheDuration time.Duration // how long scraped articles are reused
	Concurrency   int           // symbols scraped at once
	SymbolTimeout time.Duration // bound on one symbol's scrape; zero means none
}

// maxConcurrency caps parallel scrapes whatever the agent setting.
const maxConcurrency = 5

// ConfigFrom reads the news section of the config.
func ConfigFrom(cfg *store.Config) ServiceConfig {
	return ServiceConfig{
		Enabled:       cfg.News.Enabled,
		MaxArticles:   cfg.News.MaxArticles,
		CacheDuration: cfg.News.CacheDuration,
		Concurrency:   min(max(cfg.Analysis.MaxConcurrentAgents, 1), maxConcurrency),
		SymbolTimeout: cfg.News.SymbolTimeout,
	}
}

type articleCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	articles []types.NewsArticle
	stored   time.Time
}

func newArticleCache(ttl time.Duration) *articleCache {
	return &articleCache{data: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func cacheKey(symbol string, windowHours int) string {
	return fmt.Sprintf("%s/%d", symbol, windowHours)
}

func (c *articleCache) get(key string) ([]types.NewsArticle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || c.now().Sub(e.stored) > c.ttl {
		return nil, false
	}
	return e.articles, true
}

// set stores articles and drops expired entries.
func (c *articleCache) set(key string, articles []types.NewsArticle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.data {
		if now.Sub(e.stored) > c.ttl {
			delete(c.data, k)
		}
	}
	c.data[key] = cacheEntry{articles: articles, stored: now}
}

// NewService builds the service from config. With news.analyzer LLM the
// completer scores sentiment; otherwise keywords do.
func NewService(ctx context.Context, cfg *store.Config, completer interfaces.Completer) *Service {
	scraper := NewScraper(SelectSources(ctx, cfg.News.Sources), cfg.News.ScraperTimeout, cfg.Market.RequestsPerSecond)

	var analyzer interfaces.SentimentAnalyzer = KeywordAnalyzer{}
	if cfg.News.Analyzer == "LLM" && completer != nil {
		analyzer = NewLLMAnalyzer(completer)
	}
	return newService(scraper, analyzer, ConfigFrom(cfg))
}

func newService(f fetcher, a interfaces.SentimentAnalyzer, cfg ServiceConfig) *Service {
	return &Service{fetch: f, analyzer: a, cache: newArticleCache(cfg.CacheDuration), cfg: cfg}
}

// CollectNews returns recent articles per symbol, newest first, each with an
// impact score. Symbols are scraped concurrently, each under its own
// timeout. Symbols that failed are left out of the map and reported in a
// types.SymbolErrors next to it; when every symbol failed that error is
// wrapped.
func (s *Service) CollectNews(ctx context.Context, symbols []string, windowHours, maxItems int) (map[string][]types.NewsArticle, error) {
	out := make(map[string][]types.NewsArticle, len(symbols))
	if !s.cfg.Enabled {
		return out, nil
	}
	if s.cfg.MaxArticles > 0 {
		maxItems = min(maxItems, s.cfg.MaxArticles)
	}

	var (
		mu     sync.Mutex
		failed = types.SymbolErrors{}
	)
	g := new(errgroup.Group)
	g.SetLimit(max(s.cfg.Concurrency, 1))
	for _, sym := range symbols {
		g.Go(func() error {
			arts, err := s.collectSymbol(ctx, sym, windowHours, maxItems)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[sym] = err
				logger.Warn(ctx, "News collection failed", "symbol", sym, "error", err)
				return nil
			}
			out[sym] = arts
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case len(failed) == 0:
		return out, nil
	case len(failed) == len(symbols):
		return out, fmt.Errorf("news unavailable for all %d symbols: %w", len(failed), failed)
	default:
		return out, failed
	}
}

func (s *Service) collectSymbol(ctx context.Context, sym string, windowHours, maxItems int) ([]types.NewsArticle, error) {
	key := cacheKey(sym, windowHours)
	if cached, ok := s.cache.get(key); ok {
		logger.Debug(ctx, "Using cached news", "symbol", sym, "articles", len(cached))
		return limitArticles(cached, maxItems), nil
	}

	if s.cfg.SymbolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SymbolTimeout)
		defer cancel()
	}
	arts, err := s.fetch.Scrape(ctx, sym, time.Duration(windowHours)*time.Hour, maxItems)
	if err != nil {
		return nil, err
	}

	for i := range arts {
		arts[i].ImpactScore = Impact(arts[i], sym)
		arts[i].Sentiment = articleLabel(ArticleScore(arts[i]))
	}
	sort.SliceStable(arts, func(i, j int) bool { return arts[i].PublishedAt.After(arts[j].PublishedAt) })

	s.cache.set(key, arts)
	return limitArticles(arts, maxItems), nil
}

func (s *Service) AnalyzeSentiment(ctx context.Context, symbol string, articles []types.NewsArticle) (types.SentimentResult, error) {
	return s.analyzer.AnalyzeSentiment(ctx, symbol, articles)
}

// ClearCache removes all cached articles.
func (s *Service) ClearCache() {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	s.cache.data = make(map[string]cacheEntry)
}

// CachedSymbols returns the cache keys currently held, sorted.
func (s *Service) CachedSymbols() []string {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()

	keys := make([]string, 0, len(s.cache.data))
	for k := range s.cache.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func limitArticles(arts []types.NewsArticle, n int) []types.NewsArticle {
	if n > 0 && len(arts) > n {
		arts = arts[:n]
	}
	out := make([]types.NewsArticle, len(arts))
	copy(out, arts)
	return out
}
