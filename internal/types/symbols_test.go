package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbols(t *testing.T) {
	valid, invalid := NormalizeSymbols([]string{" aapl ", "MSFT", "aapl", "TOOLONG", "BRK.B", "", "goog"})

	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, valid)
	assert.Equal(t, []string{"TOOLONG", "BRK.B", ""}, invalid)
}

func TestNormalizeSymbol(t *testing.T) {
	sym, ok := NormalizeSymbol("\ttsla\n")
	assert.True(t, ok)
	assert.Equal(t, "TSLA", sym)

	_, ok = NormalizeSymbol("T1")
	assert.False(t, ok, "digits are not allowed")
}

func TestIsCrypto(t *testing.T) {
	assert.True(t, IsCrypto("BTC"))
	assert.True(t, IsCrypto("eth"))
	assert.True(t, IsCrypto("SOL-USD"))
	assert.True(t, IsCrypto("DOGEUSDT"))
	assert.False(t, IsCrypto("AAPL"))
	assert.False(t, IsCrypto("MSFT"))
}

func TestCryptoBase(t *testing.T) {
	assert.Equal(t, "BTC", CryptoBase("btc-usd"))
	assert.Equal(t, "DOGE", CryptoBase("DOGEUSDT"))
	assert.Equal(t, "ETH", CryptoBase("ETH"))
}

func TestSignalBundleFailed(t *testing.T) {
	b := SignalBundle{Symbol: "AAPL", Errors: []SourceError{{Source: "market", Message: "timeout"}}}
	assert.True(t, b.Failed("market"))
	assert.False(t, b.Failed("news"))
	assert.Equal(t, "market: timeout", b.Errors[0].Error())
}

func TestSymbolErrors(t *testing.T) {
	errs := SymbolErrors{"MSFT": errors.New("503"), "AAPL": errors.New("timeout")}
	assert.Equal(t, "AAPL: timeout; MSFT: 503", errs.Error())

	wrapped := fmt.Errorf("news unavailable for all 2 symbols: %w", errs)
	var got SymbolErrors
	assert.ErrorAs(t, wrapped, &got)
	assert.Len(t, got, 2)
}

func TestRecommendationTypeDirection(t *testing.T) {
	assert.True(t, StrongBuy.IsLong())
	assert.True(t, Sell.IsShort())
	assert.False(t, Hold.IsLong())
	assert.False(t, Hold.IsShort())
}
