// Package executor turns position deltas into exchange orders, either with a
// single taker order or with the post-only price-chasing maker loop.
package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomePartial Outcome = "PARTIAL"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeSkipped Outcome = "SKIPPED"
)

type Mode string

const (
	ModeMaker  Mode = "maker"
	ModeMarket Mode = "market"
)

// Result is the normalized outcome of one delta, whichever path ran.
type Result struct {
	Symbol         string
	Side           exchange.Side
	Mode           Mode
	Outcome        Outcome
	TargetQuantity decimal.Decimal
	FilledQuantity decimal.Decimal
	AveragePrice   decimal.Decimal
	Iterations     int
	Clips          int
	Elapsed        time.Duration
	Error          string
}

// FillRatio is filled / target, zero when nothing was targeted.
func (r Result) FillRatio() decimal.Decimal {
	if r.TargetQuantity.IsZero() {
		return decimal.Zero
	}
	return r.FilledQuantity.Div(r.TargetQuantity)
}

// FilledValue is the notional actually traded.
func (r Result) FilledValue() decimal.Decimal {
	return r.FilledQuantity.Mul(r.AveragePrice)
}

// Classify maps a fill ratio to an outcome. A zero target is SKIPPED.
func Classify(target, filled, threshold decimal.Decimal) Outcome {
	if target.IsZero() {
		return OutcomeSkipped
	}
	ratio := filled.Div(target)
	switch {
	case ratio.GreaterThanOrEqual(threshold):
		return OutcomeSuccess
	case filled.IsPositive():
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// LiveOrder is the single resting order a clip may have at a time.
type LiveOrder struct {
	OrderID  string
	ClientID string
	Side     exchange.Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Filled   decimal.Decimal // cumulative, as last reported
	Status   exchange.OrderStatus

	// quote is the cumulative notional of Filled as last reported.
	quote decimal.Decimal
	// accounted and accountedQuote are the part of Filled and quote already
	// folded into the clip total.
	accounted      decimal.Decimal
	accountedQuote decimal.Decimal
}

// MakerConfig drives the maker loop and the splitter.
type MakerConfig struct {
	OrderTimeout         time.Duration
	TotalTimeout         time.Duration
	CheckInterval        time.Duration
	PriceTolerance       decimal.Decimal
	MaxIterations        int
	PartialFillThreshold decimal.Decimal
	MinRemainingRatio    decimal.Decimal
	Split                SplitConfig
}

type SplitConfig struct {
	Enabled      bool
	ThresholdUSD decimal.Decimal
	MinClipUSD   decimal.Decimal
	MaxClipUSD   decimal.Decimal
	Randomize    bool
}

// DefaultMakerConfig mirrors the production defaults.
func DefaultMakerConfig() MakerConfig {
	return MakerConfig{
		OrderTimeout:         5 * time.Second,
		TotalTimeout:         600 * time.Second,
		CheckInterval:        200 * time.Millisecond,
		PriceTolerance:       decimal.RequireFromString("0.0002"),
		MaxIterations:        120,
		PartialFillThreshold: decimal.RequireFromString("0.95"),
		MinRemainingRatio:    decimal.RequireFromString("0.05"),
		Split: SplitConfig{
			Enabled:      true,
			ThresholdUSD: decimal.NewFromInt(500),
			MinClipUSD:   decimal.NewFromInt(100),
			MaxClipUSD:   decimal.NewFromInt(300),
			Randomize:    true,
		},
	}
}

// MarketConfig drives the taker path.
type MarketConfig struct {
	UseMarketOrder       bool
	Slippage             decimal.Decimal // IOC limit offset when UseMarketOrder is false
	PartialFillThreshold decimal.Decimal
	FillPollAttempts     int
	FillPollInterval     time.Duration
}

func DefaultMarketConfig() MarketConfig {
	return MarketConfig{
		UseMarketOrder:       true,
		Slippage:             decimal.RequireFromString("0.001"),
		PartialFillThreshold: decimal.RequireFromString("0.95"),
		FillPollAttempts:     3,
		FillPollInterval:     300 * time.Millisecond,
	}
}
