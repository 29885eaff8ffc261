package executor

import (
	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/pkg/trading"
)

// ShouldReplace decides whether a resting post-only order should be pulled
// and re-quoted at best. A better price for us (higher ask when selling,
// lower bid when buying) always triggers; adverse drift only triggers once
// it exceeds tolerance relative to the resting price.
func ShouldReplace(side exchange.Side, resting, best, tolerance decimal.Decimal) bool {
	if resting.IsZero() || best.IsZero() {
		return false
	}
	switch side {
	case exchange.SideSell:
		if best.GreaterThan(resting) {
			return true
		}
	case exchange.SideBuy:
		if best.LessThan(resting) {
			return true
		}
	}
	drift := best.Sub(resting).Abs().Div(resting)
	return drift.GreaterThan(tolerance)
}

// quotePrice is where a post-only order rests: at the ask when selling and
// at the bid when buying, so it joins the front of our side of the book.
// makerQuote is the post-only price for side at the configured tick. The
// quote is rounded away from the spread so a book on a finer tick than the
// configured precision cannot turn it into a crossing order.
func makerQuote(spec trading.Spec, side exchange.Side, bid, ask decimal.Decimal) decimal.Decimal {
	if side == exchange.SideSell {
		return spec.RoundPriceUp(ask)
	}
	return spec.RoundPriceDown(bid)
}

func quotePrice(side exchange.Side, bid, ask decimal.Decimal) decimal.Decimal {
	if side == exchange.SideSell {
		return ask
	}
	return bid
}
