// Package risk inspects an account after each cycle and raises alerts for
// margin, funding, daily loss and hedge drift. It never trades.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/pkg/symbol"
)

type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

type AlertType string

const (
	AlertMarginHigh        AlertType = "margin_high"
	AlertFundingNegative   AlertType = "funding_negative"
	AlertPositionDeviation AlertType = "position_deviation"
	AlertDailyLoss         AlertType = "daily_loss"
	AlertAPIError          AlertType = "api_error"
)

type Alert struct {
	Type      AlertType
	Level     Level
	Symbol    string
	Message   string
	Value     decimal.Decimal
	Threshold decimal.Decimal
	Timestamp time.Time
}

type Metrics struct {
	MarginRatio        decimal.Decimal
	Equity             decimal.Decimal
	TotalUnrealizedPnL decimal.Decimal
	DailyPnL           decimal.Decimal
	FundingRates       map[string]decimal.Decimal
	PositionDeviation  decimal.Decimal
	Alerts             []Alert
}

// HasCritical reports whether any alert needs a human now.
func (m Metrics) HasCritical() bool {
	for _, a := range m.Alerts {
		if a.Level == LevelCritical {
			return true
		}
	}
	return false
}

type Config struct {
	// MaxMarginRatio is the maintenance margin / equity level that alerts.
	MaxMarginRatio       decimal.Decimal
	MaxFundingRate       decimal.Decimal
	MaxDailyLoss         decimal.Decimal
	MaxPositionDeviation decimal.Decimal
	// QuoteAsset is the wallet asset counted into equity next to the hedge.
	QuoteAsset string
}

func DefaultConfig() Config {
	return Config{
		MaxMarginRatio:       decimal.RequireFromString("0.5"),
		MaxFundingRate:       decimal.RequireFromString("0.001"),
		MaxDailyLoss:         decimal.RequireFromString("0.02"),
		MaxPositionDeviation: decimal.RequireFromString("0.05"),
		QuoteAsset:           symbol.DefaultQuote,
	}
}

// Input is what the caller already knows from the cycle's hedge status.
type Input struct {
	Symbols           []string // exchange pairs to check funding for
	BaseValueUSD      decimal.Decimal
	PositionDeviation decimal.Decimal
}
