package symbol

import (
	"strings"
)

// DefaultQuote is the settlement asset of every hedge pair.
const DefaultQuote = "USDT"

type Symbol struct {
	Base  string
	Quote string
}

// Pair renders the exchange trading pair, e.g. SOLUSDT.
func (s Symbol) Pair() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

func (s Symbol) String() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "USD1"}

// Parse accepts "SOL", "SOL/USDT", "SOLUSDT" or "sol/usdt:usdt".
// A bare base asset is paired with DefaultQuote.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{Base: s, Quote: DefaultQuote}
}

// PairOf maps a base asset or any accepted spelling to the trading pair.
func PairOf(s string) string {
	return Parse(s).Pair()
}

// BaseOf maps a trading pair back to its base asset.
func BaseOf(s string) string {
	return Parse(s).Base
}

func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		base := BaseOf(s)
		if base == "" {
			continue
		}
		if _, ok := seen[base]; ok {
			continue
		}
		seen[base] = struct{}{}
		out = append(out, base)
	}
	return out
}
