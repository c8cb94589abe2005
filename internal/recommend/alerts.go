package recommend

import (
	"fmt"

	"tradegraph/internal/types"
)

// Alert types.
const (
	AlertOversold   = "technical_oversold"
	AlertOverbought = "technical_overbought"
	AlertSupport    = "price_support"
	AlertResistance = "price_resistance"
)

// Alerts flags RSI extremes and prices pressing on support or resistance.
func Alerts(b types.SignalBundle) []types.Alert {
	var out []types.Alert

	price := 0.0
	if b.Market != nil {
		price = b.Market.CurrentPrice
	}

	rsi := rsiOf(b.Technical)
	switch {
	case rsi < 25:
		out = append(out, types.Alert{
			Symbol:       b.Symbol,
			Type:         AlertOversold,
			Message:      fmt.Sprintf("%s RSI at %.1f - potentially oversold", b.Symbol, rsi),
			Urgency:      types.UrgencyMedium,
			CurrentPrice: price,
			TriggerLevel: 25,
		})
	case rsi > 75:
		out = append(out, types.Alert{
			Symbol:       b.Symbol,
			Type:         AlertOverbought,
			Message:      fmt.Sprintf("%s RSI at %.1f - potentially overbought", b.Symbol, rsi),
			Urgency:      types.UrgencyMedium,
			CurrentPrice: price,
			TriggerLevel: 75,
		})
	}

	// Level alerts need a live quote.
	if b.Technical == nil || price <= 0 {
		return out
	}

	if s := positive(b.Technical.SupportLevel); s != nil && price <= *s*1.02 {
		out = append(out, types.Alert{
			Symbol:       b.Symbol,
			Type:         AlertSupport,
			Message:      fmt.Sprintf("%s near support level at $%.2f", b.Symbol, *s),
			Urgency:      types.UrgencyHigh,
			CurrentPrice: price,
			TriggerLevel: *s,
		})
	}
	if r := positive(b.Technical.ResistanceLevel); r != nil && price >= *r*0.98 {
		out = append(out, types.Alert{
			Symbol:       b.Symbol,
			Type:         AlertResistance,
			Message:      fmt.Sprintf("%s near resistance level at $%.2f", b.Symbol, *r),
			Urgency:      types.UrgencyHigh,
			CurrentPrice: price,
			TriggerLevel: *r,
		})
	}
	return out
}
