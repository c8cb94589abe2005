// Package portfolio selects and sizes positions across recommendations.
package portfolio

import (
	"sort"
	"time"

	"tradegraph/internal/types"
)

// CashBuffer is the fraction kept uninvested when allocations must be
// scaled down.
const CashBuffer = 0.05

const rebalancing = "quarterly"

var riskValues = map[types.RiskLevel]float64{
	types.RiskLow:      1,
	types.RiskMedium:   2,
	types.RiskHigh:     3,
	types.RiskVeryHigh: 4,
}

// Constraints bound the portfolio.
type Constraints struct {
	MaxPositions  int
	PortfolioSize float64
}

// Optimize keeps the most confident recommendations and rescales their
// allocations so the total never exceeds 1. It returns nil for no input.
// The input slice is left untouched.
func Optimize(recs []types.Recommendation, c Constraints, now time.Time) *types.PortfolioRecommendation {
	if len(recs) == 0 {
		return nil
	}

	picked := make([]types.Recommendation, len(recs))
	copy(picked, recs)
	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Confidence > picked[j].Confidence
	})
	if c.MaxPositions > 0 && len(picked) > c.MaxPositions {
		picked = picked[:c.MaxPositions]
	}

	total := 0.0
	for _, r := range picked {
		total += r.Allocation
	}
	if total > 1.0 {
		scale := (1 - CashBuffer) / total
		total = 0
		for i := range picked {
			picked[i].Allocation *= scale
			total += picked[i].Allocation
		}
	}

	p := &types.PortfolioRecommendation{
		Recommendations:      picked,
		TotalAllocation:      total,
		CashReserve:          1 - total,
		DiversificationScore: Diversification(len(picked)),
		OverallRisk:          OverallRisk(picked),
		PortfolioSize:        c.PortfolioSize,
		SectorWeights:        map[string]float64{},
		Rebalancing:          rebalancing,
		CreatedAt:            now.UTC(),
	}

	sumConf := 0.0
	for _, r := range picked {
		sumConf += r.Confidence
		sector := r.Sector
		if sector == "" {
			sector = "Unknown"
		}
		p.SectorWeights[sector] += r.Allocation
		if r.ExpectedReturn != nil {
			p.ExpectedReturn += r.Allocation * *r.ExpectedReturn
		}
	}
	p.TotalConfidence = sumConf / float64(len(picked))

	return p
}

// Diversification grows with position count up to ten names.
func Diversification(n int) float64 {
	if n <= 1 {
		return 0
	}
	return min(1.0, float64(n)/10.0)
}

// OverallRisk averages the position risk levels and bands the mean.
func OverallRisk(recs []types.Recommendation) types.RiskLevel {
	if len(recs) == 0 {
		return types.RiskLow
	}
	sum := 0.0
	for _, r := range recs {
		v, ok := riskValues[r.RiskLevel]
		if !ok {
			v = riskValues[types.RiskMedium]
		}
		sum += v
	}
	avg := sum / float64(len(recs))
	switch {
	case avg >= 3.5:
		return types.RiskVeryHigh
	case avg >= 2.5:
		return types.RiskHigh
	case avg >= 1.5:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}
