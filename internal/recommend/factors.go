package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/llm"
	"tradegraph/internal/types"
)

// FallbackFactors is used when no rule fires and no enrichment succeeded.
func FallbackFactors() types.Factors {
	return types.Factors{
		KeyFactors:   []string{"Analysis available"},
		Risks:        []string{"Market volatility"},
		Catalysts:    []string{"Market sentiment"},
		AnalystNotes: "Comprehensive analysis completed",
	}
}

// RuleFactors derives narrative factors from the same inputs the scores use.
func RuleFactors(rec types.Recommendation, b types.SignalBundle) types.Factors {
	var fx types.Factors

	if f := b.Fundamentals; f != nil {
		if pe := f.PERatio; pe != nil && *pe > 0 {
			switch {
			case *pe < 15:
				fx.KeyFactors = append(fx.KeyFactors, fmt.Sprintf("Attractive valuation (P/E %.1f)", *pe))
			case *pe >= 35:
				fx.Risks = append(fx.Risks, fmt.Sprintf("Rich valuation (P/E %.1f)", *pe))
			}
		}
		if roe := f.ReturnOnEquity; roe != nil {
			switch {
			case *roe > 0.15:
				fx.KeyFactors = append(fx.KeyFactors, fmt.Sprintf("Strong return on equity (%.0f%%)", *roe*100))
			case *roe < 0:
				fx.Risks = append(fx.Risks, "Negative return on equity")
			}
		}
		if de := f.DebtToEquity; de != nil {
			switch {
			case *de < 0.3:
				fx.KeyFactors = append(fx.KeyFactors, "Conservative balance sheet")
			case *de > 1.0:
				fx.Risks = append(fx.Risks, fmt.Sprintf("High leverage (debt/equity %.2f)", *de))
			}
		}
		if g := f.RevenueGrowth; g != nil && *g > 0.10 {
			fx.KeyFactors = append(fx.KeyFactors, fmt.Sprintf("Revenue growth of %.0f%%", *g*100))
		}
		if beta := f.Beta; beta != nil && *beta > 1.5 {
			fx.Risks = append(fx.Risks, fmt.Sprintf("High volatility (beta %.2f)", *beta))
		}
	}

	if t := b.Technical; t != nil {
		if t.SMA20 != nil && t.SMA50 != nil {
			switch {
			case *t.SMA20 > *t.SMA50:
				fx.KeyFactors = append(fx.KeyFactors, "Short-term average above long-term average")
			case *t.SMA20 < *t.SMA50:
				fx.Risks = append(fx.Risks, "Downtrend in moving averages")
			}
		}
		if rsi := t.RSI; rsi != nil {
			switch {
			case *rsi < 30:
				fx.Catalysts = append(fx.Catalysts, fmt.Sprintf("Oversold rebound potential (RSI %.1f)", *rsi))
			case *rsi > 70:
				fx.Risks = append(fx.Risks, fmt.Sprintf("Overbought (RSI %.1f)", *rsi))
			}
		}
		if t.MACD != nil && t.MACDSignal != nil && *t.MACD > *t.MACDSignal {
			fx.Catalysts = append(fx.Catalysts, "MACD above signal line")
		}
	}

	if s := b.Sentiment; s != nil && s.ArticleCount > 0 {
		switch s.Label {
		case types.Bullish:
			fx.Catalysts = append(fx.Catalysts, fmt.Sprintf("Bullish news flow across %d articles", s.ArticleCount))
		case types.Bearish:
			fx.Risks = append(fx.Risks, fmt.Sprintf("Bearish news flow across %d articles", s.ArticleCount))
		}
		fx.Catalysts = append(fx.Catalysts, s.KeyThemes...)
	}

	if r := b.Report; r != nil {
		for _, rf := range r.RiskFactors {
			fx.Risks = append(fx.Risks, "Filing mentions "+rf)
		}
		fx.KeyFactors = append(fx.KeyFactors, r.KeyFindings...)
	}

	fallback := FallbackFactors()
	if len(fx.KeyFactors) == 0 {
		fx.KeyFactors = fallback.KeyFactors
	}
	if len(fx.Risks) == 0 {
		fx.Risks = fallback.Risks
	}
	if len(fx.Catalysts) == 0 {
		fx.Catalysts = fallback.Catalysts
	}
	fx.AnalystNotes = notes(rec)
	return fx
}

func notes(rec types.Recommendation) string {
	if rec.Recommendation == "" {
		return FallbackFactors().AnalystNotes
	}
	return fmt.Sprintf("%s at %.0f%% confidence (fundamental %.2f, technical %.2f, sentiment %.2f), %s risk, %s horizon",
		rec.Recommendation, rec.Confidence*100, rec.FundamentalScore, rec.TechnicalScore, rec.SentimentScore,
		strings.ToLower(string(rec.RiskLevel)), strings.ToLower(strings.TrimSuffix(string(rec.TimeHorizon), "_TERM")))
}

const factorsSystem = "You are a financial analyst. Reply with a single JSON object and nothing else."

// LLMEnricher asks a language model for narrative factors.
type LLMEnricher struct {
	c interfaces.Completer
}

func NewLLMEnricher(c interfaces.Completer) *LLMEnricher {
	return &LLMEnricher{c: c}
}

type factorsReply struct {
	KeyFactors   []string `json:"key_factors"`
	Risks        []string `json:"risks"`
	Catalysts    []string `json:"catalysts"`
	AnalystNotes string   `json:"analyst_notes"`
}

// Enrich returns the model's factors. Any failure, including an unparseable
// reply, is returned as an error and the caller keeps its own factors.
func (e *LLMEnricher) Enrich(ctx context.Context, rec types.Recommendation, b types.SignalBundle) (types.Factors, error) {
	reply, err := e.c.Complete(ctx, factorsSystem, factorsPrompt(rec, b))
	if err != nil {
		return types.Factors{}, err
	}

	var r factorsReply
	if err := llm.DecodeJSON(reply, &r); err != nil {
		return types.Factors{}, fmt.Errorf("decode factors: %w", err)
	}
	if len(r.KeyFactors) == 0 && len(r.Risks) == 0 && len(r.Catalysts) == 0 {
		return types.Factors{}, fmt.Errorf("decode factors: empty reply")
	}

	return types.Factors{
		KeyFactors:   limit(r.KeyFactors, 5),
		Risks:        limit(r.Risks, 5),
		Catalysts:    limit(r.Catalysts, 5),
		AnalystNotes: r.AnalystNotes,
	}, nil
}

func factorsPrompt(rec types.Recommendation, b types.SignalBundle) string {
	data := map[string]any{
		"recommendation": rec.Recommendation,
		"confidence":     rec.Confidence,
		"fundamentals":   b.Fundamentals,
		"technical":      b.Technical,
		"sentiment":      b.Sentiment,
		"report":         b.Report,
	}
	raw, _ := json.Marshal(data)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on the following analysis data for %s, generate key investment factors.\n\n", rec.Symbol)
	sb.Write(raw)
	sb.WriteString("\n\nRespond in JSON format:\n")
	sb.WriteString(`{"key_factors": ["up to 5 positive factors"], "risks": ["up to 5 risks"], "catalysts": ["3-5 catalysts"], "analyst_notes": "brief thesis"}`)
	return sb.String()
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
