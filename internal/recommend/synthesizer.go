// Package recommend turns scored signal bundles into recommendations.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/logger"
	"tradegraph/internal/scorer"
	"tradegraph/internal/types"
)

// ErrInvalidSignals marks a bundle whose numbers cannot be scored.
var ErrInvalidSignals = errors.New("invalid signals")

// defaultPrice stands in for a missing quote. Targets are never derived
// from it.
const defaultPrice = 100.0

// Synthesizer builds recommendations. It holds no per-run state and is safe
// for concurrent use.
type Synthesizer struct {
	enricher interfaces.FactorEnricher
	now      func() time.Time
}

type Option func(*Synthesizer)

// WithEnricher adds an advisory factor source. Its failures are ignored.
func WithEnricher(e interfaces.FactorEnricher) Option {
	return func(s *Synthesizer) { s.enricher = e }
}

// WithClock fixes CreatedAt, for reproducible output.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize scores one bundle and derives its recommendation.
func (s *Synthesizer) Synthesize(ctx context.Context, b types.SignalBundle, tolerance types.RiskTolerance) (types.Recommendation, error) {
	if err := validate(b); err != nil {
		return types.Recommendation{}, err
	}

	fund := scorer.Fundamental(b.Fundamentals, b.Report)
	tech := scorer.Technical(b.Market, b.Technical)
	sent := scorer.Sentiment(b.Sentiment)
	conf := Confidence(fund, tech, sent)

	class := Classify(conf)
	riskScore := RiskScore(b)
	level := Level(riskScore)

	price := defaultPrice
	var target, stop *float64
	if b.Market != nil && b.Market.CurrentPrice > 0 {
		price = b.Market.CurrentPrice
		target, stop = Targets(class, price, b.Technical, b.Fundamentals)
	}

	rec := types.Recommendation{
		Symbol:           b.Symbol,
		Recommendation:   class,
		Confidence:       conf,
		CurrentPrice:     price,
		TargetPrice:      target,
		StopLoss:         stop,
		ExpectedReturn:   ExpectedReturn(class, price, target),
		RiskScore:        riskScore,
		RiskLevel:        level,
		TimeHorizon:      Horizon(class, level, b.Technical),
		Allocation:       PositionSize(conf, level, tolerance),
		FundamentalScore: fund,
		TechnicalScore:   tech,
		SentimentScore:   sent,
		Sector:           "Unknown",
		CreatedAt:        s.now().UTC(),
	}
	if b.Fundamentals != nil && b.Fundamentals.Sector != "" {
		rec.Sector = b.Fundamentals.Sector
	}

	rec.Factors = RuleFactors(rec, b)
	if s.enricher != nil {
		if fx, err := s.enricher.Enrich(ctx, rec, b); err != nil {
			logger.Debug(ctx, "Factor enrichment failed, keeping rule factors", "symbol", b.Symbol, "error", err)
		} else {
			rec.Factors = fx
		}
	}

	return rec, nil
}

// SynthesizeAll synthesizes bundles in the given order. A symbol that fails,
// including by panicking, is logged and left out.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, bundles []types.SignalBundle, tolerance types.RiskTolerance) []types.Recommendation {
	out := make([]types.Recommendation, 0, len(bundles))
	for _, b := range bundles {
		rec, err := s.safeSynthesize(ctx, b, tolerance)
		if err != nil {
			logger.ErrorWithErr(ctx, "Dropping symbol from recommendations", err, "symbol", b.Symbol)
			continue
		}
		logger.Recommendation(ctx, rec.Symbol, string(rec.Recommendation), rec.Confidence, rec.AnalystNotes,
			"risk_level", rec.RiskLevel, "allocation", rec.Allocation)
		out = append(out, rec)
	}
	return out
}

func (s *Synthesizer) safeSynthesize(ctx context.Context, b types.SignalBundle, tolerance types.RiskTolerance) (rec types.Recommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("synthesize %s: panic: %v", b.Symbol, r)
		}
	}()
	return s.Synthesize(ctx, b, tolerance)
}

func validate(b types.SignalBundle) error {
	if b.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidSignals)
	}
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %s is not finite", ErrInvalidSignals, b.Symbol, name)
		}
		return nil
	}
	checkPtr := func(name string, p *float64) error {
		if p == nil {
			return nil
		}
		return check(name, *p)
	}

	if m := b.Market; m != nil {
		if err := check("current_price", m.CurrentPrice); err != nil {
			return err
		}
		if m.CurrentPrice < 0 {
			return fmt.Errorf("%w: %s negative price %.2f", ErrInvalidSignals, b.Symbol, m.CurrentPrice)
		}
		if err := check("volume", m.Volume); err != nil {
			return err
		}
	}
	if f := b.Fundamentals; f != nil {
		for name, p := range map[string]*float64{
			"pe_ratio": f.PERatio, "return_on_equity": f.ReturnOnEquity, "debt_to_equity": f.DebtToEquity,
			"revenue_growth": f.RevenueGrowth, "beta": f.Beta, "market_cap": f.MarketCap,
		} {
			if err := checkPtr(name, p); err != nil {
				return err
			}
		}
	}
	if t := b.Technical; t != nil {
		for name, p := range map[string]*float64{
			"sma_20": t.SMA20, "sma_50": t.SMA50, "rsi": t.RSI, "macd": t.MACD, "macd_signal": t.MACDSignal,
			"support_level": t.SupportLevel, "resistance_level": t.ResistanceLevel,
		} {
			if err := checkPtr(name, p); err != nil {
				return err
			}
		}
	}
	if st := b.Sentiment; st != nil {
		if err := check("sentiment_score", st.Score); err != nil {
			return err
		}
		if err := check("confidence", st.Confidence); err != nil {
			return err
		}
	}
	if r := b.Report; r != nil {
		if err := checkPtr("financial_health_score", r.HealthScore); err != nil {
			return err
		}
	}
	return nil
}
