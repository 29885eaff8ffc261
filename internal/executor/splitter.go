package executor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/logger"
	"hedgebot/internal/pkg/trading"
)

// Splitter cuts a large order into clips sized in USD so a big rebalance
// does not sit on the book as one visible order.
type Splitter struct {
	cfg SplitConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSplitter(cfg SplitConfig, rng *rand.Rand) *Splitter {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Splitter{cfg: cfg, rng: rng}
}

// Split returns clip quantities whose sum never exceeds quantity. Every clip
// is floored to the symbol's lot precision and is either dropped or at least
// the minimum order size. When a clip rounds to zero splitting stops and the
// leftover is not sent.
func (s *Splitter) Split(spec trading.Spec, quantity, price decimal.Decimal) []decimal.Decimal {
	quantity = quantity.Abs()
	if !s.cfg.Enabled || !price.IsPositive() || quantity.IsZero() {
		return []decimal.Decimal{quantity}
	}
	notional := quantity.Mul(price)
	if notional.LessThan(s.cfg.ThresholdUSD) {
		return []decimal.Decimal{quantity}
	}

	var clips []decimal.Decimal
	remaining := quantity
	for remaining.IsPositive() {
		remainingValue := remaining.Mul(price)
		var clipValue decimal.Decimal
		switch {
		case remainingValue.LessThanOrEqual(s.cfg.MaxClipUSD):
			clipValue = remainingValue
		case s.cfg.Randomize:
			clipValue = s.uniform(s.cfg.MinClipUSD, s.cfg.MaxClipUSD)
		default:
			clipValue = s.cfg.MinClipUSD.Add(s.cfg.MaxClipUSD).Div(decimal.NewFromInt(2))
		}

		qty := spec.RoundQuantity(clipValue.Div(price))
		if qty.GreaterThan(remaining) {
			qty = spec.RoundQuantity(remaining)
		}
		if qty.IsZero() {
			if remaining.IsPositive() {
				logger.Debugf("split %s: leftover %s below lot size, dropped", spec.Pair, remaining)
			}
			break
		}
		clips = append(clips, qty)
		remaining = remaining.Sub(qty)
	}

	if len(clips) == 0 {
		return []decimal.Decimal{quantity}
	}
	logger.Infof("split %s: $%s -> %d clips %v", spec.Pair, notional.StringFixed(2), len(clips), clips)
	return clips
}

func (s *Splitter) uniform(lo, hi decimal.Decimal) decimal.Decimal {
	if !hi.GreaterThan(lo) {
		return lo
	}
	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()
	return lo.Add(hi.Sub(lo).Mul(decimal.NewFromFloat(f)))
}
