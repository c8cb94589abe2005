package news

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/llm"
	"tradegraph/internal/logger"
	"tradegraph/internal/trace"
	"tradegraph/internal/types"
)

var (
	bullishWords    = []string{"buy", "bullish", "positive", "growth", "profit", "strong", "gains", "upgrade"}
	bearishWords    = []string{"sell", "bearish", "negative", "loss", "decline", "weak", "downgrade", "risk"}
	highImpactWords = []string{"earnings", "merger", "acquisition", "partnership", "lawsuit", "fda approval"}
)

// labelThreshold separates bullish and bearish from neutral.
const labelThreshold = 0.1

func countWords(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func articleText(a types.NewsArticle) string {
	return strings.ToLower(a.Title + " " + a.Summary + " " + a.Content)
}

// ArticleScore is (bull-bear)/(bull+bear) over the distinct keywords found,
// or 0 when none are.
func ArticleScore(a types.NewsArticle) float64 {
	text := articleText(a)
	bull, bear := countWords(text, bullishWords), countWords(text, bearishWords)
	if bull+bear == 0 {
		return 0
	}
	return float64(bull-bear) / float64(bull+bear)
}

// Impact rates how much an article should move the symbol: base 0.5, a
// mention in the title or else the body, and each high-impact keyword.
func Impact(a types.NewsArticle, symbol string) float64 {
	title := strings.ToLower(a.Title)
	body := strings.ToLower(a.Summary + " " + a.Content)
	sym := strings.ToLower(symbol)

	score := 0.5
	switch {
	case sym != "" && strings.Contains(title, sym):
		score += 0.2
	case sym != "" && strings.Contains(body, sym):
		score += 0.1
	}
	for _, w := range highImpactWords {
		if strings.Contains(title, w) || strings.Contains(body, w) {
			score += 0.15
		}
	}
	return math.Min(score, 1.0)
}

// Label maps a score in [-1,1] to bullish, bearish or neutral.
func Label(score float64) string {
	switch {
	case score > labelThreshold:
		return types.Bullish
	case score < -labelThreshold:
		return types.Bearish
	default:
		return types.Neutral
	}
}

func articleLabel(score float64) string {
	switch {
	case score > 0:
		return types.Bullish
	case score < 0:
		return types.Bearish
	default:
		return types.Neutral
	}
}

// countConfidence grows with the number of articles.
func countConfidence(n int) float64 {
	switch {
	case n >= 10:
		return 0.9
	case n >= 5:
		return 0.7
	case n >= 3:
		return 0.5
	default:
		return 0.3
	}
}

// KeywordAnalyzer scores sentiment from fixed bullish and bearish word lists.
type KeywordAnalyzer struct{}

func (KeywordAnalyzer) AnalyzeSentiment(ctx context.Context, symbol string, articles []types.NewsArticle) (types.SentimentResult, error) {
	return Keyword(symbol, articles), nil
}

// Keyword aggregates per-article keyword scores, weighted by impact.
func Keyword(symbol string, articles []types.NewsArticle) types.SentimentResult {
	res := types.SentimentResult{Symbol: symbol, Label: types.Neutral}
	if len(articles) == 0 {
		res.Summary = "No articles found for analysis"
		return res
	}

	scored := make([]types.NewsArticle, len(articles))
	counts := map[string]int{}
	themes := map[string]bool{}
	var weighted, weights float64

	for i, a := range articles {
		s := ArticleScore(a)
		if a.ImpactScore <= 0 {
			a.ImpactScore = Impact(a, symbol)
		}
		a.Sentiment = articleLabel(s)
		counts[a.Sentiment]++
		weighted += s * a.ImpactScore
		weights += a.ImpactScore
		scored[i] = a

		text := articleText(a)
		for _, w := range highImpactWords {
			if strings.Contains(text, w) {
				themes[w] = true
			}
		}
	}

	if weights > 0 {
		res.Score = math.Max(-1, math.Min(1, weighted/weights))
	}
	res.Label = Label(res.Score)
	res.ArticleCount = len(articles)

	top := max(counts[types.Bullish], counts[types.Bearish], counts[types.Neutral])
	res.Confidence = countConfidence(len(articles)) * float64(top) / float64(len(articles))

	for _, w := range highImpactWords {
		if themes[w] {
			res.KeyThemes = append(res.KeyThemes, w)
		}
	}
	res.Drivers = drivers(scored, 3)
	res.Summary = fmt.Sprintf("Analyzed %d articles: %d bullish, %d bearish, %d neutral",
		len(articles), counts[types.Bullish], counts[types.Bearish], counts[types.Neutral])
	res.Articles = scored
	return res
}

// drivers returns the titles of the n most impactful non-neutral articles.
func drivers(articles []types.NewsArticle, n int) []string {
	idx := make([]int, 0, len(articles))
	for i, a := range articles {
		if a.Sentiment != types.Neutral {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return articles[idx[i]].ImpactScore > articles[idx[j]].ImpactScore
	})
	var out []string
	for _, i := range idx {
		if len(out) == n {
			break
		}
		out = append(out, articles[i].Title)
	}
	return out
}

const sentimentSystem = "You are a financial analyst expert at analyzing news sentiment for investment decisions. Respond ONLY with valid JSON."

// LLMAnalyzer asks a language model for sentiment and falls back to the
// keyword result when the model fails or replies with something unusable.
type LLMAnalyzer struct {
	c interfaces.Completer
}

func NewLLMAnalyzer(c interfaces.Completer) *LLMAnalyzer {
	return &LLMAnalyzer{c: c}
}

type sentimentReply struct {
	Score      *float64 `json:"sentiment_score"`
	Confidence *float64 `json:"confidence"`
	Label      string   `json:"sentiment_label"`
	Themes     []string `json:"key_themes"`
	Drivers    []string `json:"sentiment_drivers"`
	Summary    string   `json:"summary"`
}

func (a *LLMAnalyzer) AnalyzeSentiment(ctx context.Context, symbol string, articles []types.NewsArticle) (types.SentimentResult, error) {
	ctx, span := trace.StartSpan(ctx, "news.LLMSentiment")
	defer span.End()

	base := Keyword(symbol, articles)
	if len(articles) == 0 {
		return base, nil
	}

	reply, err := a.c.Complete(ctx, sentimentSystem, sentimentPrompt(symbol, base.Articles))
	if err != nil {
		logger.Debug(ctx, "LLM sentiment unavailable, using keywords", "symbol", symbol, "error", err)
		return base, nil
	}
	var r sentimentReply
	if err := llm.DecodeJSON(reply, &r); err != nil || r.Score == nil {
		logger.Warn(ctx, "Unusable LLM sentiment reply, using keywords", "symbol", symbol, "error", err)
		return base, nil
	}

	res := base
	res.Score = math.Max(-1, math.Min(1, *r.Score))
	res.Label = Label(res.Score)
	if r.Confidence != nil {
		res.Confidence = math.Max(0, math.Min(1, *r.Confidence))
	}
	if len(r.Themes) > 0 {
		res.KeyThemes = r.Themes
	}
	if len(r.Drivers) > 0 {
		res.Drivers = r.Drivers
	}
	if r.Summary != "" {
		res.Summary = r.Summary
	}
	return res, nil
}

func sentimentPrompt(symbol string, articles []types.NewsArticle) string {
	type item struct {
		Title   string `json:"title"`
		Source  string `json:"source"`
		Summary string `json:"summary,omitempty"`
	}
	items := make([]item, 0, len(articles))
	for _, a := range articles {
		s := a.Summary
		if s == "" {
			s = a.Content
		}
		if len(s) > 500 {
			s = s[:500] + "..."
		}
		items = append(items, item{Title: a.Title, Source: a.Source, Summary: s})
	}
	raw, _ := json.Marshal(items)

	return fmt.Sprintf(`Analyze the sentiment of these news articles about %s stock for investment purposes.

Articles:
%s

Respond ONLY with valid JSON matching this schema:
{"sentiment_score": -1.0 to 1.0, "confidence": 0.0 to 1.0, "sentiment_label": "bullish|bearish|neutral", "key_themes": ["..."], "sentiment_drivers": ["..."], "summary": "one or two sentences"}`, symbol, raw)
}
