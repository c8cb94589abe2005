package recommend

import (
	"tradegraph/internal/scorer"
	"tradegraph/internal/types"
)

// Confidence weights.
const (
	WeightFundamental = 0.4
	WeightTechnical   = 0.3
	WeightSentiment   = 0.3
)

// Fallbacks for absent inputs in the risk rules.
const (
	defaultBeta         = 1.0
	defaultDebtToEquity = 0.5
	defaultRSI          = 50.0
	defaultMarketCap    = 1e9
)

// sectorAveragePE anchors the valuation target for cheap stocks.
const sectorAveragePE = 18.0

// Confidence fuses the three category scores.
func Confidence(fundamental, technical, sentiment float64) float64 {
	c := WeightFundamental*fundamental + WeightTechnical*technical + WeightSentiment*sentiment
	return scorer.Clamp(c, 0, 1)
}

// Classify maps confidence onto a recommendation class. Everything from 0.35
// up to 0.65 is HOLD.
func Classify(confidence float64) types.RecommendationType {
	switch {
	case confidence >= 0.80:
		return types.StrongBuy
	case confidence >= 0.65:
		return types.Buy
	case confidence >= 0.35:
		return types.Hold
	case confidence >= 0.20:
		return types.Sell
	default:
		return types.StrongSell
	}
}

// RiskScore adds up beta, leverage, RSI extremity, size and filing risk
// factors for one symbol.
func RiskScore(b types.SignalBundle) float64 {
	var beta, de *float64
	var mcap *float64
	if b.Fundamentals != nil {
		beta, de, mcap = b.Fundamentals.Beta, b.Fundamentals.DebtToEquity, b.Fundamentals.MarketCap
	}
	if mcap == nil && b.Market != nil {
		mcap = b.Market.MarketCap
	}

	risk := 0.0

	switch v := types.Value(beta, defaultBeta); {
	case v > 1.5:
		risk += 1
	case v > 1.2:
		risk += 0.5
	}

	switch v := types.Value(de, defaultDebtToEquity); {
	case v > 1.0:
		risk += 1
	case v > 0.6:
		risk += 0.5
	}

	if rsi := rsiOf(b.Technical); rsi < 25 || rsi > 75 {
		risk += 0.5
	}

	switch v := types.Value(mcap, defaultMarketCap); {
	case v < 1e9:
		risk += 1
	case v < 10e9:
		risk += 0.5
	}

	if b.Report != nil {
		risk += 0.2 * float64(len(b.Report.RiskFactors))
	}

	return risk
}

// Level bands a risk score.
func Level(score float64) types.RiskLevel {
	switch {
	case score >= 2.5:
		return types.RiskVeryHigh
	case score >= 1.5:
		return types.RiskHigh
	case score >= 0.75:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// Horizon picks the holding period. Momentum extremes and very high risk
// shorten it, strong conviction lengthens it.
func Horizon(class types.RecommendationType, risk types.RiskLevel, t *types.TechnicalIndicators) types.TimeHorizon {
	if rsi := rsiOf(t); rsi < 30 || rsi > 70 {
		return types.ShortTerm
	}
	if risk == types.RiskVeryHigh {
		return types.ShortTerm
	}
	if class == types.StrongBuy || class == types.StrongSell {
		return types.LongTerm
	}
	return types.MediumTerm
}

var riskMultipliers = map[types.RiskLevel]float64{
	types.RiskLow:      1.5,
	types.RiskMedium:   1.0,
	types.RiskHigh:     0.7,
	types.RiskVeryHigh: 0.4,
}

var toleranceMultipliers = map[types.RiskTolerance]float64{
	types.Conservative: 0.6,
	types.Moderate:     1.0,
	types.Aggressive:   1.4,
}

// PositionSize returns the allocation fraction, always within [0.01, 0.25].
func PositionSize(confidence float64, risk types.RiskLevel, tolerance types.RiskTolerance) float64 {
	rm, ok := riskMultipliers[risk]
	if !ok {
		rm = 1.0
	}
	tm, ok := toleranceMultipliers[tolerance]
	if !ok {
		tm = 1.0
	}
	return scorer.Clamp(confidence*0.10*rm*tm, 0.01, 0.25)
}

// Targets returns target and stop-loss prices. HOLD gets neither.
func Targets(class types.RecommendationType, price float64, t *types.TechnicalIndicators, f *types.Fundamentals) (target, stop *float64) {
	var support, resistance *float64
	if t != nil {
		support, resistance = positive(t.SupportLevel), positive(t.ResistanceLevel)
	}

	switch {
	case class.IsLong():
		switch {
		case resistance != nil:
			target = types.Float(*resistance * 1.05)
		case f != nil && f.PERatio != nil && *f.PERatio > 0 && *f.PERatio < sectorAveragePE:
			target = types.Float(price * (sectorAveragePE / *f.PERatio))
		default:
			target = types.Float(price * 1.20)
		}
		if support != nil {
			stop = types.Float(*support * 0.95)
		} else {
			stop = types.Float(price * 0.90)
		}

	case class.IsShort():
		if support != nil {
			target = types.Float(*support * 0.95)
		} else {
			target = types.Float(price * 0.80)
		}
		if resistance != nil {
			stop = types.Float(*resistance * 1.05)
		} else {
			stop = types.Float(price * 1.10)
		}
	}
	return target, stop
}

// ExpectedReturn is the move to target in the direction of the position, nil
// without a target.
func ExpectedReturn(class types.RecommendationType, price float64, target *float64) *float64 {
	if target == nil || price <= 0 {
		return nil
	}
	switch {
	case class.IsLong():
		return types.Float((*target - price) / price)
	case class.IsShort():
		return types.Float((price - *target) / price)
	}
	return nil
}

func rsiOf(t *types.TechnicalIndicators) float64 {
	if t == nil {
		return defaultRSI
	}
	return types.Value(t.RSI, defaultRSI)
}

func positive(p *float64) *float64 {
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}
