package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<html><body>
<div class="item"><h3><a href="/news/1">AAPL earnings beat expectations</a></h3>
  <p>Apple reported record quarterly revenue with strong growth across services and wearables, beating estimates.</p>
  <time datetime="2024-05-01T08:00:00Z">1h ago</time></div>
<div class="item"><h3><a href="https://other.example/story">Old AAPL story</a></h3>
  <p>Short</p><time datetime="2024-04-01T08:00:00Z">a month ago</time></div>
<div class="item"><h3></h3><p>no title</p></div>
</body></html>`

func testSource(base string) Source {
	return Source{
		Name:       "test",
		BaseURL:    base,
		SearchPath: "/quote/{symbol}/news",
		Selectors: ArticleSelectors{
			ArticleContainer: "div.item",
			Title:            "h3",
			URL:              "h3 a",
			Content:          "p",
			PublishedAt:      "time",
		},
	}
}

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote/aapl/news" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	s := NewScraper([]Source{testSource(srv.URL)}, 5*time.Second, 1000)
	s.fetchBodies = false
	s.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

	arts, err := s.Scrape(context.Background(), "AAPL", 24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, arts, 1)

	a := arts[0]
	assert.Equal(t, "AAPL earnings beat expectations", a.Title)
	assert.Equal(t, srv.URL+"/news/1", a.URL)
	assert.Equal(t, "test", a.Source)
	assert.Equal(t, []string{"AAPL"}, a.Symbols)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), a.PublishedAt)
	assert.Contains(t, a.Summary, "record quarterly revenue")
}

func TestScrapeAllSourcesDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewScraper([]Source{testSource(srv.URL)}, 5*time.Second, 1000)
	_, err := s.Scrape(context.Background(), "AAPL", 24*time.Hour, 10)
	assert.Error(t, err)
}

func TestSelectSources(t *testing.T) {
	got := SelectSources(context.Background(), []string{"reuters", "nope", "CNBC"})
	require.Len(t, got, 2)
	assert.Equal(t, "reuters", got[0].Name)
	assert.Equal(t, "cnbc", got[1].Name)
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://www.reuters.com/a/b", absoluteURL("https://www.reuters.com", "/a/b"))
	assert.Equal(t, "https://x.example/y", absoluteURL("https://www.reuters.com", "https://x.example/y"))
}
