// Package scorer maps each signal category onto a [0,1] score. All functions
// are pure; missing inputs contribute nothing and leave the neutral base.
package scorer

import (
	"tradegraph/internal/types"
)

// Neutral is the score of a category with no usable input.
const Neutral = 0.5

// defaultPrice stands in for a missing quote so the trend rules stay
// comparable; it never reaches a recommendation's price fields.
const defaultPrice = 100.0

// Fundamental scores valuation, profitability, leverage and growth, shifted by
// the filing health score when a report exists.
func Fundamental(f *types.Fundamentals, r *types.ReportAnalysis) float64 {
	score := Neutral

	if f != nil {
		if pe := f.PERatio; pe != nil {
			switch {
			case *pe > 0 && *pe < 15:
				score += 0.10
			case *pe >= 15 && *pe < 25:
				score += 0.05
			case *pe >= 35:
				score -= 0.10
			}
		}

		if roe := f.ReturnOnEquity; roe != nil {
			switch {
			case *roe > 0.15:
				score += 0.10
			case *roe > 0.10:
				score += 0.05
			case *roe < 0:
				score -= 0.15
			}
		}

		// A debt/equity of exactly zero is a real reading, not a missing one.
		if de := f.DebtToEquity; de != nil {
			switch {
			case *de < 0.3:
				score += 0.05
			case *de > 1.0:
				score -= 0.10
			}
		}

		if g := f.RevenueGrowth; g != nil && *g > 0.10 {
			score += 0.10
		}
	}

	if r != nil && r.HealthScore != nil {
		score += (*r.HealthScore - 5.0) / 10.0
	}

	return Clamp(score, 0, 1)
}

// Technical scores trend, momentum, volume and proximity to support and
// resistance. Volume counts even when no indicators could be derived.
func Technical(m *types.MarketData, t *types.TechnicalIndicators) float64 {
	score := Neutral

	price := defaultPrice
	if m != nil && m.CurrentPrice > 0 {
		price = m.CurrentPrice
	}

	if t != nil {
		if t.SMA20 != nil && t.SMA50 != nil {
			sma20, sma50 := *t.SMA20, *t.SMA50
			switch {
			case price > sma20 && sma20 > sma50:
				score += 0.15
			case price > sma20:
				score += 0.10
			case price < sma20 && sma20 < sma50:
				score -= 0.15
			case price < sma20:
				score -= 0.10
			}
		}

		if rsi := t.RSI; rsi != nil {
			switch {
			case *rsi < 30:
				score += 0.10
			case *rsi > 70:
				score -= 0.10
			case *rsi >= 40 && *rsi <= 60:
				score += 0.05
			}
		}

		if t.MACD != nil && t.MACDSignal != nil {
			if *t.MACD > *t.MACDSignal {
				score += 0.05
			} else {
				score -= 0.05
			}
		}

		if t.SupportLevel != nil && t.ResistanceLevel != nil {
			switch {
			case price <= *t.SupportLevel*1.05:
				score += 0.05
			case price >= *t.ResistanceLevel*0.95:
				score -= 0.05
			}
		}
	}

	if m != nil && m.Volume > 0 {
		score += 0.02
	}

	return Clamp(score, 0, 1)
}

// Sentiment maps a [-1,1] score onto [0,1] and pulls it toward neutral by the
// lack of confidence.
func Sentiment(s *types.SentimentResult) float64 {
	if s == nil {
		return Neutral
	}
	raw := Clamp(s.Score, -1, 1)
	conf := Clamp(s.Confidence, 0, 1)
	normalized := (raw + 1) / 2
	return Clamp(Neutral+(normalized-Neutral)*conf, 0, 1)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
