// Package position turns a target hedge allocation and the live exchange
// positions into the per-symbol deltas the executor works off.
package position

import (
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
)

// TargetPosition is the short size the hedge source wants for one symbol.
type TargetPosition struct {
	Symbol   string // base asset, e.g. SOL
	Amount   decimal.Decimal
	ValueUSD decimal.Decimal
	Price    decimal.Decimal
	Weight   decimal.Decimal
}

// CurrentPosition is what the exchange reports. Quantity is signed; hedge
// positions are short so it is normally negative.
type CurrentPosition struct {
	Symbol        string
	Quantity      decimal.Decimal
	MarkPrice     decimal.Decimal
	EntryPrice    decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Size is the absolute position size.
func (c CurrentPosition) Size() decimal.Decimal {
	return c.Quantity.Abs()
}

// Delta is target minus current short size. Positive means the short must
// grow (sell); negative means it must shrink (reduce-only buy).
type Delta struct {
	Symbol        string
	Target        decimal.Decimal
	Current       decimal.Decimal
	Delta         decimal.Decimal
	DeltaValueUSD decimal.Decimal
}

func (d Delta) Side() exchange.Side {
	if d.Delta.IsNegative() {
		return exchange.SideBuy
	}
	return exchange.SideSell
}

// ReduceOnly is true for the closing side.
func (d Delta) ReduceOnly() bool {
	return d.Delta.IsNegative()
}

// Status is one snapshot of an account's hedge.
type Status struct {
	Timestamp       time.Time
	BaseBalance     decimal.Decimal
	BaseValueUSD    decimal.Decimal
	Targets         map[string]TargetPosition
	Currents        map[string]CurrentPosition
	Deltas          map[string]Delta // every target symbol
	Rebalance       map[string]Delta // deltas that passed the filter
	TotalTargetUSD  decimal.Decimal
	TotalCurrentUSD decimal.Decimal
	HedgeRatio      decimal.Decimal
}

// NeedsRebalance reports whether any delta survived filtering.
func (s Status) NeedsRebalance() bool {
	return len(s.Rebalance) > 0
}
