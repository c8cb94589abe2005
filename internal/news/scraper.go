package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"tradegraph/internal/logger"
	"tradegraph/internal/types"
)

// Scraper collects headlines from financial news sites.
type Scraper struct {
	sources []Source
	timeout time.Duration
	limiter *rate.Limiter
	// fetchBodies follows article links whose listing snippet is too short.
	fetchBodies bool
	now         func() time.Time
}

// Source describes one news site.
type Source struct {
	Name       string
	BaseURL    string
	SearchPath string // e.g. "/quote/{symbol}/news"
	Selectors  ArticleSelectors
}

// ArticleSelectors defines CSS selectors for extracting article data
type ArticleSelectors struct {
	ArticleContainer string
	Title            string
	URL              string
	Content          string
	PublishedAt      string
}

// DefaultSources returns the built-in sites keyed by config name.
func DefaultSources() map[string]Source {
	return map[string]Source{
		"yahoo-finance": {
			Name:       "yahoo-finance",
			BaseURL:    "https://finance.yahoo.com",
			SearchPath: "/quote/{symbol}/news",
			Selectors: ArticleSelectors{
				ArticleContainer: "li.stream-item, div.news-item",
				Title:            "h3",
				URL:              "a",
				Content:          "p",
				PublishedAt:      "time",
			},
		},
		"reuters": {
			Name:       "reuters",
			BaseURL:    "https://www.reuters.com",
			SearchPath: "/markets/companies/{symbol}/",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.story-card, li[class*=story-collection]",
				Title:            "a",
				URL:              "a",
				Content:          "p",
				PublishedAt:      "time",
			},
		},
		"bloomberg": {
			Name:       "bloomberg",
			BaseURL:    "https://www.bloomberg.com",
			SearchPath: "/search?query={symbol}",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.storyItem",
				Title:            "a",
				URL:              "a",
				Content:          "p",
				PublishedAt:      "time",
			},
		},
		"marketwatch": {
			Name:       "marketwatch",
			BaseURL:    "https://www.marketwatch.com",
			SearchPath: "/investing/stock/{symbol}",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.article__content",
				Title:            "h3 a",
				URL:              "h3 a",
				Content:          "p.article__summary",
				PublishedAt:      "span.article__timestamp",
			},
		},
		"cnbc": {
			Name:       "cnbc",
			BaseURL:    "https://www.cnbc.com",
			SearchPath: "/quotes/{symbol}?tab=news",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.LatestNews-headlineWrapper",
				Title:            "a",
				URL:              "a",
				Content:          "p",
				PublishedAt:      "time",
			},
		},
	}
}

// SelectSources returns the named sources in the given order. Unknown names
// are logged and skipped.
func SelectSources(ctx context.Context, names []string) []Source {
	all := DefaultSources()
	out := make([]Source, 0, len(names))
	for _, n := range names {
		src, ok := all[strings.ToLower(n)]
		if !ok {
			logger.Warn(ctx, "Unknown news source", "source", n)
			continue
		}
		out = append(out, src)
	}
	return out
}

// NewScraper creates a scraper over sources. rps paces page requests across
// all sources.
func NewScraper(sources []Source, timeout time.Duration, rps float64) *Scraper {
	if rps <= 0 {
		rps = 1
	}
	return &Scraper{
		sources:     sources,
		timeout:     timeout,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		fetchBodies: true,
		now:         time.Now,
	}
}

// Scrape fetches up to maxArticles published within window for symbol,
// spread evenly over the sources. A failing source is logged and skipped.
func (s *Scraper) Scrape(ctx context.Context, symbol string, window time.Duration, maxArticles int) ([]types.NewsArticle, error) {
	if len(s.sources) == 0 {
		return nil, nil
	}
	logger.Debug(ctx, "Starting news scraping", "symbol", symbol, "sources", len(s.sources))

	perSource := max(maxArticles/len(s.sources), 1)
	cutoff := s.now().Add(-window)

	var all []types.NewsArticle
	failures := 0
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		arts, err := s.scrapeSource(ctx, src, symbol, perSource)
		if err != nil {
			failures++
			logger.Warn(ctx, "Failed to scrape source", "source", src.Name, "symbol", symbol, "error", err)
			continue
		}
		for _, a := range arts {
			if a.PublishedAt.Before(cutoff) {
				continue
			}
			all = append(all, a)
		}
	}
	if failures == len(s.sources) {
		return nil, fmt.Errorf("all %d news sources failed for %s", failures, symbol)
	}
	if len(all) > maxArticles {
		all = all[:maxArticles]
	}
	logger.Debug(ctx, "News scraping completed", "symbol", symbol, "articles", len(all))
	return all, nil
}

func (s *Scraper) collector() *colly.Collector {
	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	c.SetRequestTimeout(s.timeout)
	return c
}

func (s *Scraper) scrapeSource(ctx context.Context, src Source, symbol string, maxArticles int) ([]types.NewsArticle, error) {
	var articles []types.NewsArticle
	var visitErr error

	c := s.collector()
	c.OnHTML(src.Selectors.ArticleContainer, func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}
		title := strings.TrimSpace(e.ChildText(src.Selectors.Title))
		link := e.ChildAttr(src.Selectors.URL, "href")
		if title == "" || link == "" {
			return
		}
		articles = append(articles, types.NewsArticle{
			Title:       title,
			URL:         absoluteURL(src.BaseURL, link),
			Summary:     strings.TrimSpace(e.ChildText(src.Selectors.Content)),
			Source:      src.Name,
			PublishedAt: s.publishedAt(e, src.Selectors.PublishedAt),
			Symbols:     []string{symbol},
		})
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("%s returned %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	searchURL := src.BaseURL + strings.ReplaceAll(src.SearchPath, "{symbol}", url.PathEscape(strings.ToLower(symbol)))
	if err := c.Visit(searchURL); err != nil && visitErr == nil {
		visitErr = fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}
	c.Wait()
	if visitErr != nil {
		return nil, visitErr
	}

	if s.fetchBodies {
		for i := range articles {
			if len(articles[i].Summary) >= 100 {
				continue
			}
			if err := s.limiter.Wait(ctx); err != nil {
				break
			}
			articles[i].Content = s.fetchArticleContent(ctx, articles[i].URL)
		}
	}
	return articles, nil
}

// publishedAt reads a datetime attribute or the element text. Listings
// often show relative times, which count as now.
func (s *Scraper) publishedAt(e *colly.HTMLElement, selector string) time.Time {
	if selector != "" {
		for _, raw := range []string{e.ChildAttr(selector, "datetime"), strings.TrimSpace(e.ChildText(selector))} {
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "Jan 2, 2006"} {
				if t, err := time.Parse(layout, raw); err == nil {
					return t.UTC()
				}
			}
		}
	}
	return s.now().UTC()
}

// fetchArticleContent fetches the paragraphs of an article page.
func (s *Scraper) fetchArticleContent(ctx context.Context, articleURL string) string {
	c := s.collector()

	var paragraphs []string
	c.OnHTML("article, div.article-body, div.content-body, div.story-content", func(e *colly.HTMLElement) {
		e.ForEach("p", func(_ int, el *colly.HTMLElement) {
			if text := strings.TrimSpace(el.Text); len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
	})

	if err := c.Visit(articleURL); err != nil {
		logger.Debug(ctx, "Failed to fetch article content", "url", articleURL, "error", err)
		return ""
	}
	content := strings.Join(paragraphs, "\n\n")
	if len(content) > 2000 {
		content = content[:2000]
	}
	return content
}

func absoluteURL(base, link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	b, err := url.Parse(base)
	if err != nil {
		return base + link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return base + link
	}
	return b.ResolveReference(ref).String()
}
