package interfaces

import (
	"context"

	"tradegraph/internal/types"
)

// NewsCollector gathers recent articles per symbol. Symbols it could not
// serve may be reported as a types.SymbolErrors next to the partial map.
type NewsCollector interface {
	CollectNews(ctx context.Context, symbols []string, windowHours, maxItems int) (map[string][]types.NewsArticle, error)
}

// SentimentAnalyzer turns a symbol's articles into a sentiment result.
type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, symbol string, articles []types.NewsArticle) (types.SentimentResult, error)
}
