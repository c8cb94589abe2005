package types

import (
	"sort"
	"strings"
	"time"
)

// Candle is one OHLCV bar.
type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// RecommendationType is the 5-way recommendation class.
type RecommendationType string

const (
	StrongBuy  RecommendationType = "STRONG_BUY"
	Buy        RecommendationType = "BUY"
	Hold       RecommendationType = "HOLD"
	Sell       RecommendationType = "SELL"
	StrongSell RecommendationType = "STRONG_SELL"
)

// IsLong reports whether the class opens a long position.
func (r RecommendationType) IsLong() bool { return r == Buy || r == StrongBuy }

// IsShort reports whether the class opens a short position.
func (r RecommendationType) IsShort() bool { return r == Sell || r == StrongSell }

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

type TimeHorizon string

const (
	ShortTerm  TimeHorizon = "SHORT_TERM"
	MediumTerm TimeHorizon = "MEDIUM_TERM"
	LongTerm   TimeHorizon = "LONG_TERM"
)

// RiskTolerance is the caller's appetite; it scales position sizes.
type RiskTolerance string

const (
	Conservative RiskTolerance = "conservative"
	Moderate     RiskTolerance = "medium"
	Aggressive   RiskTolerance = "aggressive"
)

// MarketData is the latest quote for a symbol.
type MarketData struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"current_price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        float64   `json:"volume"`
	MarketCap     *float64  `json:"market_cap,omitempty"`
	PERatio       *float64  `json:"pe_ratio,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Fundamentals holds company financial ratios. Ratios are fractions
// (0.15 means 15%), debt/equity is a plain ratio.
type Fundamentals struct {
	Symbol           string   `json:"symbol"`
	CompanyName      string   `json:"company_name,omitempty"`
	Sector           string   `json:"sector,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	PERatio          *float64 `json:"pe_ratio,omitempty"`
	EPS              *float64 `json:"eps,omitempty"`
	Revenue          *float64 `json:"revenue,omitempty"`
	RevenueGrowth    *float64 `json:"revenue_growth,omitempty"`
	NetIncome        *float64 `json:"net_income,omitempty"`
	DebtToEquity     *float64 `json:"debt_to_equity,omitempty"`
	CurrentRatio     *float64 `json:"current_ratio,omitempty"`
	ReturnOnEquity   *float64 `json:"return_on_equity,omitempty"`
	ReturnOnAssets   *float64 `json:"return_on_assets,omitempty"`
	PriceToBook      *float64 `json:"price_to_book,omitempty"`
	DividendYield    *float64 `json:"dividend_yield,omitempty"`
	Beta             *float64 `json:"beta,omitempty"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low,omitempty"`
}

// TechnicalIndicators are derived from daily history. Nil fields were not
// computable.
type TechnicalIndicators struct {
	Symbol          string    `json:"symbol"`
	SMA20           *float64  `json:"sma_20,omitempty"`
	SMA50           *float64  `json:"sma_50,omitempty"`
	EMA12           *float64  `json:"ema_12,omitempty"`
	EMA26           *float64  `json:"ema_26,omitempty"`
	RSI             *float64  `json:"rsi,omitempty"`
	MACD            *float64  `json:"macd,omitempty"`
	MACDSignal      *float64  `json:"macd_signal,omitempty"`
	BollingerUpper  *float64  `json:"bollinger_upper,omitempty"`
	BollingerLower  *float64  `json:"bollinger_lower,omitempty"`
	SupportLevel    *float64  `json:"support_level,omitempty"`
	ResistanceLevel *float64  `json:"resistance_level,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

type NewsArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Symbols     []string  `json:"symbols"`
	Sentiment   string    `json:"sentiment,omitempty"`
	ImpactScore float64   `json:"impact_score"`
}

// Sentiment labels.
const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"
)

// SentimentResult aggregates news sentiment for one symbol. Score is in
// [-1,1], Confidence in [0,1].
type SentimentResult struct {
	Symbol       string        `json:"symbol"`
	Score        float64       `json:"sentiment_score"`
	Confidence   float64       `json:"confidence"`
	Label        string        `json:"sentiment_label"`
	ArticleCount int           `json:"article_count"`
	KeyThemes    []string      `json:"key_themes,omitempty"`
	Drivers      []string      `json:"sentiment_drivers,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	Articles     []NewsArticle `json:"articles,omitempty"`
}

// ReportAnalysis is the filing-derived view of a company. HealthScore is in
// [0,10] when present.
type ReportAnalysis struct {
	Symbol          string   `json:"symbol"`
	FilingsAnalyzed int      `json:"filings_analyzed"`
	FilingTypes     []string `json:"filing_types,omitempty"`
	HealthScore     *float64 `json:"financial_health_score,omitempty"`
	RiskFactors     []string `json:"risk_factors"`
	KeyFindings     []string `json:"key_findings,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

// Signal source names used in SourceError.
const (
	SourceMarket       = "market"
	SourceFundamentals = "fundamentals"
	SourceTechnical    = "technical"
	SourceSentiment    = "sentiment"
	SourceNews         = "news"
	SourceReports      = "reports"
)

// SourceError marks one failed signal source for one symbol.
type SourceError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (e SourceError) Error() string { return e.Source + ": " + e.Message }

// SymbolErrors is returned next to a partial result by a source that fans
// out per symbol. Each entry is one symbol that source could not serve.
type SymbolErrors map[string]error

func (e SymbolErrors) Error() string {
	syms := make([]string, 0, len(e))
	for sym := range e {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	parts := make([]string, len(syms))
	for i, sym := range syms {
		parts[i] = sym + ": " + e[sym].Error()
	}
	return strings.Join(parts, "; ")
}

// SignalBundle collects every optional input for one symbol. Any field may be
// nil; scoring degrades to neutral values.
type SignalBundle struct {
	Symbol       string               `json:"symbol"`
	Market       *MarketData          `json:"market_data,omitempty"`
	Fundamentals *Fundamentals        `json:"fundamentals,omitempty"`
	Technical    *TechnicalIndicators `json:"technical,omitempty"`
	Sentiment    *SentimentResult     `json:"sentiment,omitempty"`
	Report       *ReportAnalysis      `json:"report,omitempty"`
	Errors       []SourceError        `json:"errors,omitempty"`
}

// Failed reports whether the named source failed for this bundle.
func (b SignalBundle) Failed(source string) bool {
	for _, e := range b.Errors {
		if e.Source == source {
			return true
		}
	}
	return false
}

// Factors are the narrative parts of a recommendation.
type Factors struct {
	KeyFactors   []string `json:"key_factors"`
	Risks        []string `json:"risks"`
	Catalysts    []string `json:"catalysts"`
	AnalystNotes string   `json:"analyst_notes"`
}

type Recommendation struct {
	Symbol           string             `json:"symbol"`
	Recommendation   RecommendationType `json:"recommendation"`
	Confidence       float64            `json:"confidence_score"`
	CurrentPrice     float64            `json:"current_price"`
	TargetPrice      *float64           `json:"target_price,omitempty"`
	StopLoss         *float64           `json:"stop_loss,omitempty"`
	ExpectedReturn   *float64           `json:"expected_return,omitempty"`
	RiskScore        float64            `json:"risk_score"`
	RiskLevel        RiskLevel          `json:"risk_level"`
	TimeHorizon      TimeHorizon        `json:"time_horizon"`
	Allocation       float64            `json:"recommended_allocation"`
	FundamentalScore float64            `json:"fundamental_score"`
	TechnicalScore   float64            `json:"technical_score"`
	SentimentScore   float64            `json:"sentiment_score"`
	Sector           string             `json:"sector,omitempty"`
	Factors
	CreatedAt time.Time `json:"created_at"`
}

// Alert urgencies.
const (
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Alert is an actionable price or indicator condition.
type Alert struct {
	Symbol       string  `json:"symbol"`
	Type         string  `json:"alert_type"`
	Message      string  `json:"message"`
	Urgency      string  `json:"urgency"`
	CurrentPrice float64 `json:"current_price"`
	TriggerLevel float64 `json:"trigger_level,omitempty"`
}

type PortfolioRecommendation struct {
	Recommendations      []Recommendation   `json:"recommendations"`
	TotalConfidence      float64            `json:"total_confidence"`
	TotalAllocation      float64            `json:"total_allocation"`
	CashReserve          float64            `json:"cash_reserve"`
	DiversificationScore float64            `json:"diversification_score"`
	OverallRisk          RiskLevel          `json:"overall_risk_level"`
	ExpectedReturn       float64            `json:"expected_return"`
	PortfolioSize        float64            `json:"portfolio_size"`
	SectorWeights        map[string]float64 `json:"sector_weights"`
	Rebalancing          string             `json:"rebalancing_frequency"`
	CreatedAt            time.Time          `json:"created_at"`
}

// AnalysisRequest is the pipeline entry input. Zero fields take defaults.
type AnalysisRequest struct {
	Symbols        []string      `json:"symbols"`
	PortfolioSize  float64       `json:"portfolio_size" default:"100000" validate:"gt=0"`
	RiskTolerance  RiskTolerance `json:"risk_tolerance" default:"medium" validate:"oneof=conservative medium aggressive"`
	TimeHorizon    TimeHorizon   `json:"time_horizon" default:"MEDIUM_TERM" validate:"oneof=SHORT_TERM MEDIUM_TERM LONG_TERM"`
	IncludeReports bool          `json:"include_reports"`
	MaxPositions   int           `json:"max_positions" default:"10" validate:"gte=1,lte=50"`
	WindowHours    int           `json:"news_window_hours" default:"24" validate:"gte=1,lte=720"`
	MaxNewsItems   int           `json:"max_news_items" default:"20" validate:"gte=1,lte=100"`
	ReportTypes    []string      `json:"report_types" default:"[\"10-K\",\"10-Q\"]" validate:"dive,oneof=10-K 10-Q 8-K"`
}

// AnalysisResult is what a pipeline run returns. Portfolio is nil when no
// recommendation survived.
type AnalysisResult struct {
	RunID           string                   `json:"run_id"`
	Symbols         []string                 `json:"symbols"`
	Recommendations []Recommendation         `json:"recommendations"`
	Portfolio       *PortfolioRecommendation `json:"portfolio"`
	Alerts          []Alert                  `json:"alerts"`
	Errors          []string                 `json:"errors"`
	Warnings        []string                 `json:"warnings"`
	CompletedStages []string                 `json:"completed_stages"`
	Cancelled       bool                     `json:"cancelled"`
	StartedAt       time.Time                `json:"started_at"`
	FinishedAt      time.Time                `json:"finished_at"`
}

// Progress is emitted after each stage transition.
type Progress struct {
	Stage   string `json:"stage_name"`
	Percent int    `json:"percent_complete"`
	Message string `json:"message"`
}

// ProgressFunc receives progress events. It must not block.
type ProgressFunc func(Progress)

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Value dereferences p, returning def when p is nil.
func Value(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
