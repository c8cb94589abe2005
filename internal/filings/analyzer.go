package filings

import (
	"context"
	"fmt"
	"math"
	"strings"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/llm"
	"tradegraph/internal/logger"
	"tradegraph/internal/types"
)

// Analyzer turns a symbol's filings into a report analysis.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string, filings []Filing) (types.ReportAnalysis, error)
}

type phrase struct {
	text   string
	weight float64
}

// Order matters: risk factors are reported in this order.
var (
	riskPhrases = []phrase{
		{"going concern", -1.5},
		{"material weakness", -1.0},
		{"restatement", -1.0},
		{"net loss", -0.5},
		{"impairment", -0.5},
	}
	strengthPhrases = []phrase{
		{"record revenue", 1.0},
		{"increased revenue", 0.5},
		{"strong cash position", 0.5},
	}
)

const baseHealth = 5.0

// KeywordAnalyzer scores filings from fixed risk and strength phrases.
type KeywordAnalyzer struct{}

func (KeywordAnalyzer) Analyze(_ context.Context, symbol string, filings []Filing) (types.ReportAnalysis, error) {
	return Keyword(symbol, filings), nil
}

// Keyword starts from a neutral 5, applies each phrase found anywhere in
// the filings once, and clamps the result to [0,10].
func Keyword(symbol string, filings []Filing) types.ReportAnalysis {
	var sb strings.Builder
	for _, f := range filings {
		sb.WriteString(strings.ToLower(f.Text))
		sb.WriteByte(' ')
	}
	text := sb.String()

	score := baseHealth
	ra := types.ReportAnalysis{
		Symbol:          symbol,
		FilingsAnalyzed: len(filings),
		FilingTypes:     formsOf(filings),
		RiskFactors:     []string{},
	}
	for _, p := range riskPhrases {
		if strings.Contains(text, p.text) {
			score += p.weight
			ra.RiskFactors = append(ra.RiskFactors, p.text)
		}
	}
	for _, p := range strengthPhrases {
		if strings.Contains(text, p.text) {
			score += p.weight
			ra.KeyFindings = append(ra.KeyFindings, "Filing reports "+p.text)
		}
	}
	ra.HealthScore = types.Float(math.Max(0, math.Min(10, score)))
	ra.Summary = fmt.Sprintf("%d filing(s) reviewed: health %.1f/10, %d risk factor(s)",
		len(filings), *ra.HealthScore, len(ra.RiskFactors))
	return ra
}

func formsOf(filings []Filing) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range filings {
		if !seen[f.Form] {
			seen[f.Form] = true
			out = append(out, f.Form)
		}
	}
	return out
}

const (
	reportSystem      = "You are a financial analyst reviewing SEC filings. Reply with a single JSON object and nothing else."
	promptCharsPerDoc = 8000
)

// LLMAnalyzer asks a language model to assess the filings. Any failure
// falls back to the keyword analysis.
type LLMAnalyzer struct {
	c interfaces.Completer
}

func NewLLMAnalyzer(c interfaces.Completer) *LLMAnalyzer {
	return &LLMAnalyzer{c: c}
}

type reportReply struct {
	HealthScore *float64 `json:"financial_health_score"`
	RiskFactors []string `json:"risk_factors"`
	KeyFindings []string `json:"key_findings"`
	Summary     string   `json:"executive_summary"`
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, symbol string, filings []Filing) (types.ReportAnalysis, error) {
	base := Keyword(symbol, filings)
	if len(filings) == 0 {
		return base, nil
	}

	reply, err := a.c.Complete(ctx, reportSystem, reportPrompt(symbol, filings))
	if err != nil {
		logger.Debug(ctx, "LLM filing analysis unavailable, using keywords", "symbol", symbol, "error", err)
		return base, nil
	}
	var r reportReply
	if err := llm.DecodeJSON(reply, &r); err != nil || r.HealthScore == nil {
		logger.Warn(ctx, "Unusable LLM filing reply, using keywords", "symbol", symbol, "error", err)
		return base, nil
	}

	ra := base
	ra.HealthScore = types.Float(math.Max(0, math.Min(10, *r.HealthScore)))
	if r.RiskFactors != nil {
		ra.RiskFactors = limit(r.RiskFactors, 5)
	}
	if len(r.KeyFindings) > 0 {
		ra.KeyFindings = limit(r.KeyFindings, 5)
	}
	if r.Summary != "" {
		ra.Summary = r.Summary
	}
	return ra, nil
}

func reportPrompt(symbol string, filings []Filing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Assess the financial health of %s from these filings.\n", symbol)
	for _, f := range filings {
		text := f.Text
		if len(text) > promptCharsPerDoc {
			text = text[:promptCharsPerDoc]
		}
		fmt.Fprintf(&sb, "\n--- %s filed %s ---\n%s\n", f.Form, f.FiledAt.Format("2006-01-02"), text)
	}
	sb.WriteString(`
Respond in JSON format:
{"financial_health_score": 0.0-10.0, "risk_factors": ["top 5 risks"], "key_findings": ["top 5 findings"], "executive_summary": "2-3 sentences"}`)
	return sb.String()
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
