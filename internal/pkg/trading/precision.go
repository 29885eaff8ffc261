// Package trading holds the per-symbol exchange constraints and the rounding
// rules every order quantity and price goes through.
package trading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"hedgebot/internal/pkg/symbol"
)

// Spec describes one tradable symbol.
type Spec struct {
	Base              string          // base asset, e.g. SOL
	Pair              string          // exchange pair, e.g. SOLUSDT
	PricePrecision    int32           // decimal places of the tick
	QuantityPrecision int32           // decimal places of the lot
	MinOrderSize      decimal.Decimal // smallest accepted quantity
}

func (s Spec) Validate() error {
	if s.Pair == "" {
		return fmt.Errorf("symbol %s: pair is required", s.Base)
	}
	if s.PricePrecision < 0 || s.QuantityPrecision < 0 {
		return fmt.Errorf("symbol %s: precision must be >= 0", s.Base)
	}
	if s.MinOrderSize.IsNegative() {
		return fmt.Errorf("symbol %s: min_order_size must be >= 0", s.Base)
	}
	return nil
}

// FloorQuantity truncates toward zero at the lot precision without applying
// the minimum size.
func (s Spec) FloorQuantity(q decimal.Decimal) decimal.Decimal {
	return q.Abs().Truncate(s.QuantityPrecision)
}

// RoundQuantity floors q (sign dropped) to the lot precision and returns zero
// when the result is below the minimum order size. The result is therefore
// always either 0 or >= MinOrderSize.
func (s Spec) RoundQuantity(q decimal.Decimal) decimal.Decimal {
	rounded := s.FloorQuantity(q)
	if rounded.LessThan(s.MinOrderSize) || rounded.IsZero() {
		return decimal.Zero
	}
	return rounded
}

// RoundPrice truncates a quote to the tick precision.
func (s Spec) RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Truncate(s.PricePrecision)
}

// RoundPriceUp rounds toward +inf at the tick precision.
func (s Spec) RoundPriceUp(p decimal.Decimal) decimal.Decimal {
	return p.RoundCeil(s.PricePrecision)
}

// RoundPriceDown rounds toward -inf at the tick precision.
func (s Spec) RoundPriceDown(p decimal.Decimal) decimal.Decimal {
	return p.RoundFloor(s.PricePrecision)
}

// Registry maps base assets to their Spec.
type Registry map[string]Spec

// Lookup returns the spec for a base asset or pair. Unknown symbols get the
// conservative fallback the exchange accepts for most USDT pairs.
func (r Registry) Lookup(base string) Spec {
	if s, ok := r[base]; ok {
		return s
	}
	for _, s := range r {
		if s.Pair == base {
			return s
		}
	}
	sym := symbol.Parse(base)
	return Spec{
		Base:              sym.Base,
		Pair:              sym.Pair(),
		PricePrecision:    2,
		QuantityPrecision: 2,
		MinOrderSize:      decimal.RequireFromString("0.001"),
	}
}

// Notional is quantity x price.
func Notional(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Abs().Mul(price)
}
