package executor

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"hedgebot/internal/logger"
	"hedgebot/internal/position"
)

// DeltaExecutor executes one delta and always reports a Result.
type DeltaExecutor interface {
	ExecuteDelta(ctx context.Context, d position.Delta) Result
}

// Flattener closes a position with a plain market order.
type Flattener interface {
	DeltaExecutor
	Flatten(ctx context.Context, d position.Delta) Result
}

// Dispatcher routes each delta to the maker engine or the taker path. The
// choice is fixed per account when the dispatcher is built.
type Dispatcher struct {
	maker        DeltaExecutor
	market       Flattener
	makerEnabled bool
	log          logger.Entry
}

func NewDispatcher(maker DeltaExecutor, market Flattener, makerEnabled bool, log logger.Entry) *Dispatcher {
	return &Dispatcher{
		maker:        maker,
		market:       market,
		makerEnabled: makerEnabled && maker != nil,
		log:          log,
	}
}

func (d *Dispatcher) MakerEnabled() bool { return d.makerEnabled }

func (d *Dispatcher) Execute(ctx context.Context, delta position.Delta) Result {
	if d.makerEnabled {
		return d.maker.ExecuteDelta(ctx, delta)
	}
	return d.market.ExecuteDelta(ctx, delta)
}

// ExecuteAll runs deltas one at a time in symbol order. A failed symbol does
// not stop the others; only cancellation does.
func (d *Dispatcher) ExecuteAll(ctx context.Context, deltas map[string]position.Delta) []Result {
	if len(deltas) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(deltas))
	for s := range deltas {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	results := make([]Result, 0, len(symbols))
	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			d.log.Warnf("execution interrupted before %s: %v", s, err)
			break
		}
		delta := deltas[s]
		d.log.Infof("execute %s: target=%s current=%s delta=%s ($%s)",
			s, delta.Target, delta.Current, delta.Delta, delta.DeltaValueUSD.StringFixed(2))
		results = append(results, d.Execute(ctx, delta))
	}
	d.logSummary(results)
	return results
}

// CloseAll buys back every short with reduce-only market orders.
func (d *Dispatcher) CloseAll(ctx context.Context, positions map[string]position.CurrentPosition) []Result {
	symbols := make([]string, 0, len(positions))
	for s, p := range positions {
		if p.Quantity.IsNegative() {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)
	results := make([]Result, 0, len(symbols))
	for _, s := range symbols {
		p := positions[s]
		d.log.Warnf("close all: buying back %s %s", p.Size(), s)
		results = append(results, d.market.Flatten(ctx, position.Delta{
			Symbol:  s,
			Current: p.Size(),
			Delta:   p.Size().Neg(),
		}))
	}
	d.logSummary(results)
	return results
}

func (d *Dispatcher) logSummary(results []Result) {
	if len(results) == 0 {
		return
	}
	counts := map[Outcome]int{}
	value := decimal.Zero
	for _, r := range results {
		counts[r.Outcome]++
		value = value.Add(r.FilledValue())
	}
	d.log.Infof("execution summary: total=%d success=%d partial=%d failed=%d skipped=%d traded=$%s",
		len(results), counts[OutcomeSuccess], counts[OutcomePartial], counts[OutcomeFailed],
		counts[OutcomeSkipped], value.StringFixed(2))
}
