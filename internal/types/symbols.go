package types

import (
	"regexp"
	"strings"
)

var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// NormalizeSymbol trims and uppercases s and reports whether the result is a
// valid 1-5 letter ticker.
func NormalizeSymbol(s string) (string, bool) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	return sym, symbolPattern.MatchString(sym)
}

// NormalizeSymbols normalizes in, dropping duplicates while keeping first-seen
// order. Rejected inputs are returned as given.
func NormalizeSymbols(in []string) (valid, invalid []string) {
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		sym, ok := NormalizeSymbol(raw)
		if !ok {
			invalid = append(invalid, raw)
			continue
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		valid = append(valid, sym)
	}
	return valid, invalid
}

var majorCryptos = map[string]bool{
	"BTC": true, "ETH": true, "BNB": true, "ADA": true, "DOT": true, "XRP": true,
	"LINK": true, "LTC": true, "BCH": true, "UNI": true, "SOL": true, "AVAX": true,
	"MATIC": true, "ATOM": true, "FTT": true, "ALGO": true,
}

var cryptoMarkers = []string{"-USD", "-BTC", "-ETH", "USDT", "USD"}

// IsCrypto reports whether symbol names a cryptocurrency or a crypto pair.
func IsCrypto(symbol string) bool {
	s := strings.ToUpper(symbol)
	if majorCryptos[s] {
		return true
	}
	for _, m := range cryptoMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// CryptoBase strips pair suffixes: "BTC-USD" and "BTCUSDT" both become "BTC".
func CryptoBase(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, suffix := range []string{"-USD", "USDT", "/USD"} {
		if strings.Contains(s, suffix) {
			return strings.Replace(s, suffix, "", 1)
		}
	}
	return s
}
