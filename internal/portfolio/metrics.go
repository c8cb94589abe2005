package portfolio

import (
	"math"
)

// TradingDays annualizes daily statistics.
const TradingDays = 252

// SharpeRatio annualizes the mean excess daily return over its sample
// standard deviation. riskFree is the annual rate.
func SharpeRatio(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	daily := riskFree / TradingDays
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - daily
	}
	m, sd := meanStd(excess)
	if sd == 0 {
		return 0
	}
	return m / sd * math.Sqrt(TradingDays)
}

// MaxDrawdown is the deepest peak-to-trough fall of a price series, as a
// negative fraction (or 0).
func MaxDrawdown(prices []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			if dd := (p - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// Stats summarizes a daily return series.
type Stats struct {
	TotalReturn float64 `json:"total_return"`
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Metrics compounds daily returns into a value curve and reports its stats.
func Metrics(returns []float64) Stats {
	if len(returns) == 0 {
		return Stats{}
	}
	curve := make([]float64, 0, len(returns)+1)
	v := 1.0
	curve = append(curve, v)
	for _, r := range returns {
		v *= 1 + r
		curve = append(curve, v)
	}
	var vol float64
	if len(returns) > 1 {
		_, sd := meanStd(returns)
		vol = sd * math.Sqrt(TradingDays)
	}
	return Stats{
		TotalReturn: v - 1,
		Volatility:  vol,
		Sharpe:      SharpeRatio(returns, 0),
		MaxDrawdown: MaxDrawdown(curve),
	}
}

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(xs)-1))
	return mean, std
}
