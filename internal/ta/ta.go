package ta

import (
	"math"
	"time"

	"tradegraph/internal/types"
)

// MinHistory is the number of bars Compute needs for the slowest indicator.
const MinHistory = 50

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

// EMASeries returns the span-n exponential moving average at every point,
// weighted like an adjusted pandas ewm(span=n).
func EMASeries(vals []float64, n int) []float64 {
	if len(vals) == 0 || n <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(n) + 1.0)
	out := make([]float64, len(vals))
	num, den := 0.0, 0.0
	for i, v := range vals {
		num = v + (1-alpha)*num
		den = 1 + (1-alpha)*den
		out[i] = num / den
	}
	return out
}

func EMA(vals []float64, n int) float64 {
	s := EMASeries(vals, n)
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// RSI uses simple rolling means of gains and losses over the last period bars.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// MACD returns the fast-slow EMA difference and its signal-period EMA.
func MACD(closes []float64, fast, slow, signal int) (macd, sig float64) {
	if len(closes) < slow || fast <= 0 || slow <= 0 || signal <= 0 {
		return math.NaN(), math.NaN()
	}
	f := EMASeries(closes, fast)
	s := EMASeries(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = f[i] - s[i]
	}
	return line[len(line)-1], EMA(line, signal)
}

// StdDev is the sample standard deviation of the last n values.
func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 1 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n-1))
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	n := period
	if len(closes) < n+1 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		sum += math.Max(tr1, math.Max(tr2, tr3))
	}
	return sum / float64(n)
}

// SupportResistance returns the lowest low and highest high of the last n bars.
func SupportResistance(highs, lows []float64, n int) (support, resistance float64) {
	if len(highs) < n || len(lows) < n || n <= 0 {
		return math.NaN(), math.NaN()
	}
	support, resistance = math.Inf(1), math.Inf(-1)
	for i := len(lows) - n; i < len(lows); i++ {
		support = math.Min(support, lows[i])
	}
	for i := len(highs) - n; i < len(highs); i++ {
		resistance = math.Max(resistance, highs[i])
	}
	return support, resistance
}

// Compute derives the indicator set from daily candles, oldest first. It
// returns nil with fewer than MinHistory bars.
func Compute(symbol string, candles []types.Candle) *types.TechnicalIndicators {
	if len(candles) < MinHistory {
		return nil
	}
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], highs[i], lows[i] = c.Close, c.High, c.Low
	}

	macd, signal := MACD(closes, 12, 26, 9)
	_, upper, lower := Bollinger(closes, 20, 2)
	support, resistance := SupportResistance(highs, lows, 20)

	return &types.TechnicalIndicators{
		Symbol:          symbol,
		SMA20:           finite(SMA(closes, 20)),
		SMA50:           finite(SMA(closes, 50)),
		EMA12:           finite(EMA(closes, 12)),
		EMA26:           finite(EMA(closes, 26)),
		RSI:             finite(RSI(closes, 14)),
		MACD:            finite(macd),
		MACDSignal:      finite(signal),
		BollingerUpper:  finite(upper),
		BollingerLower:  finite(lower),
		SupportLevel:    finite(support),
		ResistanceLevel: finite(resistance),
		Timestamp:       time.Unix(candles[len(candles)-1].Ts, 0).UTC(),
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
