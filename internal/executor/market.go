package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/logger"
	"hedgebot/internal/pkg/trading"
	"hedgebot/internal/position"
)

// MarketExecutor sends one taker order per delta and does not chase.
type MarketExecutor struct {
	gw      exchange.OrderGateway
	symbols trading.Registry
	cfg     MarketConfig
	clock   Clock
	log     logger.Entry
}

func NewMarketExecutor(gw exchange.OrderGateway, symbols trading.Registry, cfg MarketConfig, clock Clock) *MarketExecutor {
	if clock == nil {
		clock = realClock{}
	}
	return &MarketExecutor{
		gw:      gw,
		symbols: symbols,
		cfg:     cfg,
		clock:   clock,
		log:     logger.With("component", "market"),
	}
}

func (m *MarketExecutor) ExecuteDelta(ctx context.Context, d position.Delta) Result {
	return m.execute(ctx, d, m.cfg.UseMarketOrder)
}

// Flatten always uses a true market order.
func (m *MarketExecutor) Flatten(ctx context.Context, d position.Delta) Result {
	return m.execute(ctx, d, true)
}

func (m *MarketExecutor) execute(ctx context.Context, d position.Delta, market bool) (res Result) {
	started := m.clock.Now()
	spec := m.symbols.Lookup(d.Symbol)
	side := d.Side()
	qty := spec.RoundQuantity(d.Delta)
	res = Result{
		Symbol:         d.Symbol,
		Side:           side,
		Mode:           ModeMarket,
		TargetQuantity: qty,
		Clips:          1,
	}
	if qty.IsZero() {
		res.Outcome = OutcomeSkipped
		res.Error = exchange.ErrInsufficientQuantity.Error()
		return res
	}
	defer func() { res.Elapsed = m.clock.Now().Sub(started) }()

	req := exchange.OrderRequest{
		Symbol:        spec.Pair,
		Side:          side,
		Quantity:      qty,
		PositionSide:  exchange.PositionSideBoth,
		ReduceOnly:    d.ReduceOnly(),
		ClientOrderID: "hbmt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
	}
	if market {
		req.Type = exchange.OrderTypeMarket
	} else {
		price, err := m.limitPrice(ctx, spec, side)
		if err != nil {
			return m.fail(res, err)
		}
		req.Type = exchange.OrderTypeLimit
		req.TimeInForce = exchange.TimeInForceIOC
		req.Price = &price
	}

	placed, err := m.gw.PlaceOrder(ctx, req)
	if err != nil {
		return m.fail(res, fmt.Errorf("place %s %s %s: %w", spec.Pair, side, qty, err))
	}
	if !placed.Accepted() {
		return m.fail(res, fmt.Errorf("place %s %s %s: %w: %s", spec.Pair, side, qty, exchange.ErrRejected, placed.Error))
	}

	filled, avg := placed.FilledQuantity, placed.AveragePrice
	if !filled.IsPositive() && !placed.Status.Terminal() {
		filled, avg = m.pollFill(ctx, spec.Pair, placed.OrderID)
	}
	if filled.GreaterThan(qty) {
		filled = qty
	}
	res.FilledQuantity = filled
	res.AveragePrice = avg
	if !avg.IsPositive() && req.Price != nil {
		res.AveragePrice = *req.Price
	}
	res.Outcome = Classify(qty, filled, m.cfg.PartialFillThreshold)
	m.log.Infof("%s %s %s: %s filled=%s avg=%s", d.Symbol, side, qty, res.Outcome, filled, res.AveragePrice)
	return res
}

// pollFill covers exchanges that acknowledge a market order before it has
// been matched.
func (m *MarketExecutor) pollFill(ctx context.Context, symbol, orderID string) (decimal.Decimal, decimal.Decimal) {
	for i := 0; i < m.cfg.FillPollAttempts; i++ {
		if err := m.clock.Sleep(ctx, m.cfg.FillPollInterval); err != nil {
			break
		}
		state, err := m.gw.GetOrder(ctx, symbol, orderID)
		if err != nil {
			m.log.Warnf("status %s: %v", orderID, err)
			continue
		}
		if state.FilledQuantity.IsPositive() || state.Status.Terminal() {
			return state.FilledQuantity, state.AveragePrice
		}
	}
	return decimal.Zero, decimal.Zero
}

// limitPrice is the far side of the book pushed out by Slippage.
func (m *MarketExecutor) limitPrice(ctx context.Context, spec trading.Spec, side exchange.Side) (decimal.Decimal, error) {
	book, err := m.gw.Depth(ctx, spec.Pair, bookDepthLimit)
	if err != nil {
		return decimal.Zero, err
	}
	bid, ask, ok := book.Top()
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", spec.Pair, exchange.ErrEmptyBook)
	}
	one := decimal.NewFromInt(1)
	if side == exchange.SideSell {
		return spec.RoundPrice(bid.Mul(one.Sub(m.cfg.Slippage))), nil
	}
	return spec.RoundPrice(ask.Mul(one.Add(m.cfg.Slippage))), nil
}

func (m *MarketExecutor) fail(res Result, err error) Result {
	res.Outcome = OutcomeFailed
	res.Error = err.Error()
	m.log.Errorf("%s %s: %v", res.Symbol, res.Side, err)
	return res
}
