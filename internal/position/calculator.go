package position

import (
	"github.com/shopspring/decimal"

	"hedgebot/internal/logger"
	"hedgebot/internal/pkg/trading"
)

// Calculator compares targets with live positions.
type Calculator struct {
	threshold decimal.Decimal
	symbols   trading.Registry
}

func NewCalculator(threshold decimal.Decimal, symbols trading.Registry) *Calculator {
	return &Calculator{threshold: threshold, symbols: symbols}
}

// Calculate returns one delta per target symbol. Positions without a target
// are left alone.
func (c *Calculator) Calculate(targets map[string]TargetPosition, currents map[string]CurrentPosition) map[string]Delta {
	deltas := make(map[string]Delta, len(targets))
	for sym, target := range targets {
		current := decimal.Zero
		if pos, ok := currents[sym]; ok {
			current = pos.Size()
		}
		delta := target.Amount.Sub(current)
		deltas[sym] = Delta{
			Symbol:        sym,
			Target:        target.Amount,
			Current:       current,
			Delta:         delta,
			DeltaValueUSD: delta.Mul(target.Price),
		}
		logger.Debugf("%s: target=%s current=%s delta=%s", sym, target.Amount, current, delta)
	}
	return deltas
}

// FilterSignificant keeps deltas that are both a large enough share of the
// target and at least the symbol's minimum order size.
func (c *Calculator) FilterSignificant(deltas map[string]Delta, targets map[string]TargetPosition) map[string]Delta {
	out := make(map[string]Delta)
	for sym, d := range deltas {
		target, ok := targets[sym]
		if !ok {
			continue
		}
		size := d.Delta.Abs()
		deviation := decimal.Zero
		if target.Amount.IsPositive() {
			deviation = size.Div(target.Amount)
		}
		if deviation.LessThan(c.threshold) {
			logger.Debugf("%s: deviation %s%% below threshold %s%%, skip",
				sym, deviation.Shift(2).StringFixed(2), c.threshold.Shift(2).StringFixed(2))
			continue
		}
		minSize := c.symbols.Lookup(sym).MinOrderSize
		if size.LessThan(minSize) {
			logger.Debugf("%s: delta %s below min order size %s, skip", sym, size, minSize)
			continue
		}
		out[sym] = d
		logger.Infof("%s: rebalance %s (deviation %s%%)", sym, d.Delta, deviation.Shift(2).StringFixed(2))
	}
	return out
}
