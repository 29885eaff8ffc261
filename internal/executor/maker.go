package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/logger"
	"hedgebot/internal/pkg/trading"
	"hedgebot/internal/position"
)

const (
	bookDepthLimit    = 5
	bookRetryDelay    = time.Second
	networkRetryDelay = 500 * time.Millisecond
	rejectRetryDelay  = 100 * time.Millisecond
	settleTimeout     = 10 * time.Second
)

// MakerEngine fills a quantity with post-only limit orders only. It quotes
// at the top of our side of the book, chases the book when it moves in our
// favour, tolerates small adverse moves, and replaces orders that rest too
// long. Each clip is bounded by OrderTimeout, TotalTimeout and MaxIterations.
type MakerEngine struct {
	gw       exchange.OrderGateway
	symbols  trading.Registry
	cfg      MakerConfig
	splitter *Splitter
	clock    Clock
	log      logger.Entry
	clientID func() string
}

type MakerOption func(*MakerEngine)

func WithClock(c Clock) MakerOption {
	return func(e *MakerEngine) { e.clock = c }
}

func WithSplitter(s *Splitter) MakerOption {
	return func(e *MakerEngine) { e.splitter = s }
}

func WithLogger(l logger.Entry) MakerOption {
	return func(e *MakerEngine) { e.log = l }
}

func WithClientIDFunc(fn func() string) MakerOption {
	return func(e *MakerEngine) { e.clientID = fn }
}

func NewMakerEngine(gw exchange.OrderGateway, symbols trading.Registry, cfg MakerConfig, opts ...MakerOption) *MakerEngine {
	e := &MakerEngine{
		gw:       gw,
		symbols:  symbols,
		cfg:      cfg,
		clock:    realClock{},
		log:      logger.With("component", "maker"),
		clientID: newClientOrderID,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.splitter == nil {
		e.splitter = NewSplitter(cfg.Split, nil)
	}
	return e
}

func newClientOrderID() string {
	return "hbmk_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// clipRun is the mutable state of one clip. It never outlives ExecuteClip.
type clipRun struct {
	spec       trading.Spec
	side       exchange.Side
	reduceOnly bool
	target     decimal.Decimal
	filled     decimal.Decimal
	value      decimal.Decimal
	iterations int
	start      time.Time
	live       *LiveOrder
	pending    *pendingOrder
	log        logger.Entry
}

// pendingOrder is a placement whose outcome is unknown because the request
// failed in transit. Retries resend it unchanged, client id included, so the
// exchange refuses a second copy.
type pendingOrder struct {
	clientID string
	price    decimal.Decimal
	qty      decimal.Decimal
}

func (r *clipRun) remaining() decimal.Decimal {
	return r.target.Sub(r.filled)
}

// fold moves newly reported fill of o into the clip total. cumulative is the
// order's total executed quantity and avgPrice its average over all of it;
// fill already accounted for is skipped so the same report can be folded any
// number of times. Each increment is valued at its own price, taken from the
// change in cumulative notional.
func (r *clipRun) fold(o *LiveOrder, cumulative, avgPrice decimal.Decimal) decimal.Decimal {
	if cumulative.GreaterThan(o.Filled) {
		if avgPrice.IsPositive() {
			o.quote = cumulative.Mul(avgPrice)
		} else {
			o.quote = o.quote.Add(cumulative.Sub(o.Filled).Mul(o.Price))
		}
		o.Filled = cumulative
	}
	unaccounted := o.Filled.Sub(o.accounted)
	if !unaccounted.IsPositive() {
		return decimal.Zero
	}
	fresh := unaccounted
	if rem := r.remaining(); fresh.GreaterThan(rem) {
		fresh = rem
	}
	if !fresh.IsPositive() {
		return decimal.Zero
	}
	value := o.quote.Sub(o.accountedQuote)
	if !fresh.Equal(unaccounted) {
		value = value.Mul(fresh).Div(unaccounted)
	}
	r.filled = r.filled.Add(fresh)
	r.value = r.value.Add(value)
	o.accounted = o.accounted.Add(fresh)
	o.accountedQuote = o.accountedQuote.Add(value)
	return fresh
}

// foldNotFound treats an order the exchange no longer knows as fully filled.
// Orders that completed and aged out answer this way; one cancelled by
// someone else and purged looks identical and would be over-counted here.
func (r *clipRun) foldNotFound(o *LiveOrder) {
	got := r.fold(o, o.Quantity, decimal.Zero)
	r.log.Warnf("order %s not found, assuming filled (+%s)", o.OrderID, got)
}

func (e *MakerEngine) Config() MakerConfig { return e.cfg }

// ExecuteDelta rounds the delta, splits it into clips and works them one at a
// time. A FAILED clip abandons the rest.
func (e *MakerEngine) ExecuteDelta(ctx context.Context, d position.Delta) Result {
	started := e.clock.Now()
	spec := e.symbols.Lookup(d.Symbol)
	side := d.Side()
	total := spec.RoundQuantity(d.Delta)
	agg := Result{
		Symbol:         d.Symbol,
		Side:           side,
		Mode:           ModeMaker,
		TargetQuantity: total,
	}
	if total.IsZero() {
		agg.Outcome = OutcomeSkipped
		agg.Error = exchange.ErrInsufficientQuantity.Error()
		e.log.Infof("%s delta %s rounds to zero, skipped", d.Symbol, d.Delta)
		return agg
	}

	clips := []decimal.Decimal{total}
	if bid, ask, err := e.topOfBook(ctx, spec); err != nil {
		e.log.Warnf("%s reference price unavailable, not splitting: %v", d.Symbol, err)
	} else {
		clips = e.splitter.Split(spec, total, quotePrice(side, bid, ask))
	}

	filled, value := decimal.Zero, decimal.Zero
	for i, qty := range clips {
		if err := ctx.Err(); err != nil {
			agg.Error = err.Error()
			break
		}
		e.log.Infof("%s clip %d/%d %s %s", d.Symbol, i+1, len(clips), side, qty)
		r := e.ExecuteClip(ctx, spec, side, qty, d.ReduceOnly())
		agg.Clips++
		agg.Iterations += r.Iterations
		filled = filled.Add(r.FilledQuantity)
		value = value.Add(r.FilledValue())
		if r.Outcome == OutcomeFailed {
			agg.Error = r.Error
			e.log.Warnf("%s clip %d failed, abandoning %d remaining clips", d.Symbol, i+1, len(clips)-i-1)
			break
		}
	}

	agg.FilledQuantity = filled
	if filled.IsPositive() {
		agg.AveragePrice = value.Div(filled)
	}
	agg.Outcome = Classify(total, filled, e.cfg.PartialFillThreshold)
	agg.Elapsed = e.clock.Now().Sub(started)
	return agg
}

// ExecuteClip works one clip to completion. It never returns with an order
// of its own left resting unless the exchange refused every cancel.
func (e *MakerEngine) ExecuteClip(ctx context.Context, spec trading.Spec, side exchange.Side, qty decimal.Decimal, reduceOnly bool) Result {
	res := Result{Symbol: spec.Base, Side: side, Mode: ModeMaker, Clips: 1}
	target := spec.RoundQuantity(qty)
	res.TargetQuantity = target
	if target.IsZero() {
		res.Outcome = OutcomeSkipped
		res.Error = exchange.ErrInsufficientQuantity.Error()
		return res
	}

	run := &clipRun{
		spec:       spec,
		side:       side,
		reduceOnly: reduceOnly,
		target:     target,
		filled:     decimal.Zero,
		value:      decimal.Zero,
		start:      e.clock.Now(),
		log:        e.log.With("symbol", spec.Pair, "side", string(side)),
	}
	err := e.runClip(ctx, run)
	if run.pending != nil && run.live == nil {
		e.resolvePendingOnExit(ctx, run)
	}
	if run.live != nil {
		e.settle(ctx, run)
	}

	res.FilledQuantity = run.filled
	if run.filled.IsPositive() {
		res.AveragePrice = run.value.Div(run.filled)
	}
	res.Iterations = run.iterations
	res.Elapsed = e.clock.Now().Sub(run.start)
	res.Outcome = Classify(target, run.filled, e.cfg.PartialFillThreshold)
	if err != nil {
		res.Error = err.Error()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			res.Outcome = OutcomeFailed
		}
	}
	run.log.Infof("clip done: %s filled=%s/%s avg=%s iterations=%d elapsed=%s",
		res.Outcome, res.FilledQuantity, target, res.AveragePrice.StringFixed(spec.PricePrecision),
		res.Iterations, res.Elapsed.Truncate(time.Millisecond))
	return res
}

// runClip is the NO_ORDER -> ORDER_LIVE -> RECONCILING -> DONE loop. A nil
// return means the clip ended by its own budget or by filling.
func (e *MakerEngine) runClip(ctx context.Context, run *clipRun) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !run.remaining().IsPositive() {
			return nil
		}
		if run.iterations >= e.cfg.MaxIterations {
			run.log.Warnf("iteration budget %d used up, remaining=%s", e.cfg.MaxIterations, run.remaining())
			return nil
		}
		if elapsed := e.clock.Now().Sub(run.start); elapsed >= e.cfg.TotalTimeout {
			run.log.Warnf("total timeout %s reached, remaining=%s", e.cfg.TotalTimeout, run.remaining())
			return nil
		}

		bid, ask, err := e.topOfBook(ctx, run.spec)
		if err != nil {
			run.log.Warnf("depth failed: %v", err)
			if err := e.clock.Sleep(ctx, bookRetryDelay); err != nil {
				return err
			}
			continue
		}
		price := makerQuote(run.spec, run.side, bid, ask)

		if run.live != nil {
			if !ShouldReplace(run.side, run.live.Price, price, e.cfg.PriceTolerance) {
				if err := e.awaitOrder(ctx, run); err != nil {
					return err
				}
				continue
			}
			run.log.Debugf("replace %s: resting=%s best=%s", run.live.OrderID, run.live.Price, price)
			run.iterations++
			if !e.cancelAndReconcile(ctx, run) {
				if err := e.clock.Sleep(ctx, e.cfg.CheckInterval); err != nil {
					return err
				}
				continue
			}
		}

		remaining := run.remaining()
		if !remaining.IsPositive() {
			continue
		}
		if run.filled.IsPositive() && e.cfg.MinRemainingRatio.IsPositive() &&
			remaining.Div(run.target).LessThan(e.cfg.MinRemainingRatio) {
			run.log.Infof("remaining %s below %s of target, stop", remaining, e.cfg.MinRemainingRatio)
			return nil
		}
		qty := run.spec.RoundQuantity(remaining)
		if qty.IsZero() {
			run.log.Infof("remaining %s below lot size, stop", remaining)
			return nil
		}

		placed, err := e.place(ctx, run, price, qty)
		switch {
		case err != nil && errors.Is(err, exchange.ErrNetwork):
			run.log.Warnf("place failed: %v", err)
			if err := e.clock.Sleep(ctx, networkRetryDelay); err != nil {
				return err
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("place %s %s@%s: %w", run.spec.Pair, qty, price, err)
		case !placed:
			if err := e.clock.Sleep(ctx, rejectRetryDelay); err != nil {
				return err
			}
			continue
		}
		if run.live == nil {
			continue
		}
		if err := e.awaitOrder(ctx, run); err != nil {
			return err
		}
	}
}

// place submits a post-only order. placed is false for a rejection, which is
// an expected outcome when the book moved between read and submit. After a
// transport failure the same order is resent with the same client id, and
// the exchange is first asked whether the earlier attempt arrived.
func (e *MakerEngine) place(ctx context.Context, run *clipRun, price, qty decimal.Decimal) (bool, error) {
	if run.pending != nil {
		found, err := e.adoptPending(ctx, run)
		if err != nil || found {
			return found, err
		}
	} else {
		run.pending = &pendingOrder{clientID: e.clientID(), price: price, qty: qty}
	}
	p := run.pending
	req := exchange.OrderRequest{
		Symbol:        run.spec.Pair,
		Side:          run.side,
		Type:          exchange.OrderTypeLimit,
		Quantity:      p.qty,
		Price:         &p.price,
		TimeInForce:   exchange.TimeInForceGTX,
		PositionSide:  exchange.PositionSideBoth,
		ReduceOnly:    run.reduceOnly,
		ClientOrderID: p.clientID,
	}
	res, err := e.gw.PlaceOrder(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, exchange.ErrNetwork):
			return false, err
		case errors.Is(err, exchange.ErrDuplicateOrder):
			found, lerr := e.adoptPending(ctx, run)
			if lerr != nil || found {
				return found, lerr
			}
			run.pending = nil
			return false, fmt.Errorf("client id %s reported duplicate but not found: %w", p.clientID, err)
		}
		run.pending = nil
		if errors.Is(err, exchange.ErrRejected) {
			run.log.Debugf("post-only rejected at %s: %v", p.price, err)
			return false, nil
		}
		return false, err
	}
	run.pending = nil
	if !res.Accepted() {
		run.log.Debugf("post-only rejected at %s: %s", p.price, res.Error)
		return false, nil
	}
	run.live = &LiveOrder{
		OrderID:  res.OrderID,
		ClientID: p.clientID,
		Side:     run.side,
		Price:    p.price,
		Quantity: p.qty,
		Status:   res.Status,
	}
	run.log.Debugf("placed %s %s@%s", res.OrderID, p.qty, p.price)
	if res.FilledQuantity.IsPositive() {
		run.fold(run.live, res.FilledQuantity, res.AveragePrice)
	}
	if res.Status.Terminal() {
		run.live = nil
	}
	return true, nil
}

// adoptPending asks the exchange whether the pending placement arrived. A
// found order becomes the live order and the placement counts as done.
// Without lookup support the answer is always "not found".
func (e *MakerEngine) adoptPending(ctx context.Context, run *clipRun) (bool, error) {
	p := run.pending
	lookup, ok := e.gw.(exchange.ClientOrderLookup)
	if !ok || p == nil {
		return false, nil
	}
	state, err := lookup.GetOrderByClientID(ctx, run.spec.Pair, p.clientID)
	if err != nil {
		return false, err
	}
	if state.Status == exchange.StatusNotFound || state.OrderID == "" {
		return false, nil
	}
	run.pending = nil
	run.live = &LiveOrder{
		OrderID:  state.OrderID,
		ClientID: p.clientID,
		Side:     run.side,
		Price:    p.price,
		Quantity: p.qty,
		Status:   state.Status,
	}
	run.log.Warnf("order %s from an unconfirmed placement is on the exchange, tracking it", state.OrderID)
	if state.FilledQuantity.IsPositive() {
		run.fold(run.live, state.FilledQuantity, state.AveragePrice)
	}
	if state.Status.Terminal() {
		run.live = nil
	}
	return true, nil
}

// resolvePendingOnExit makes a last attempt to find an order whose
// placement was never confirmed, so settle can pull it.
func (e *MakerEngine) resolvePendingOnExit(ctx context.Context, run *clipRun) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	clientID := run.pending.clientID
	if _, err := e.adoptPending(sctx, run); err != nil {
		run.log.Errorf("order with client id %s may rest on the book: %v", clientID, err)
	}
	run.pending = nil
}

// awaitOrder polls the live order until it ends, drifts, or rests for
// OrderTimeout. The wait never runs past the clip's TotalTimeout. On timeout
// the order is pulled and the iteration counted.
func (e *MakerEngine) awaitOrder(ctx context.Context, run *clipRun) error {
	deadline := e.clock.Now().Add(e.cfg.OrderTimeout)
	if clipEnd := run.start.Add(e.cfg.TotalTimeout); clipEnd.Before(deadline) {
		deadline = clipEnd
	}
	for {
		if err := e.clock.Sleep(ctx, e.cfg.CheckInterval); err != nil {
			return err
		}
		o := run.live
		state, err := e.gw.GetOrder(ctx, run.spec.Pair, o.OrderID)
		if err != nil {
			run.log.Warnf("status %s failed: %v", o.OrderID, err)
		} else {
			o.Status = state.Status
			switch {
			case state.Status == exchange.StatusNotFound:
				run.foldNotFound(o)
				run.live = nil
				return nil
			case state.Status.Terminal():
				run.fold(o, state.FilledQuantity, state.AveragePrice)
				run.live = nil
				return nil
			case state.Status == exchange.StatusPartiallyFilled:
				run.fold(o, state.FilledQuantity, state.AveragePrice)
				if bid, ask, err := e.topOfBook(ctx, run.spec); err == nil {
					best := makerQuote(run.spec, run.side, bid, ask)
					if ShouldReplace(run.side, o.Price, best, e.cfg.PriceTolerance) {
						return nil
					}
				}
			}
		}
		if !e.clock.Now().Before(deadline) {
			break
		}
	}
	run.log.Debugf("order %s timed out after %s, pulling it", run.live.OrderID, e.clock.Now().Sub(run.start))
	run.iterations++
	e.cancelAndReconcile(ctx, run)
	return nil
}

func (e *MakerEngine) topOfBook(ctx context.Context, spec trading.Spec) (decimal.Decimal, decimal.Decimal, error) {
	book, err := e.gw.Depth(ctx, spec.Pair, bookDepthLimit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	bid, ask, ok := book.Top()
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%s: %w", spec.Pair, exchange.ErrEmptyBook)
	}
	return bid, ask, nil
}
