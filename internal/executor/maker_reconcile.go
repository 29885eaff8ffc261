package executor

import (
	"context"

	"hedgebot/internal/gateway/exchange"
)

// cancelAndReconcile pulls the live order and settles its fill. The order's
// status is read before cancelling so a finished order is folded without a
// pointless cancel, and a failed cancel is always followed by another status
// read: a cancel usually fails because the order just filled. It returns true
// once the live slot is clear.
func (e *MakerEngine) cancelAndReconcile(ctx context.Context, run *clipRun) bool {
	o := run.live
	if o == nil {
		return true
	}
	symbol := run.spec.Pair

	if state, err := e.gw.GetOrder(ctx, symbol, o.OrderID); err == nil {
		o.Status = state.Status
		switch {
		case state.Status == exchange.StatusNotFound:
			run.foldNotFound(o)
			run.live = nil
			return true
		case state.Status.Terminal():
			run.fold(o, state.FilledQuantity, state.AveragePrice)
			run.live = nil
			return true
		default:
			run.fold(o, state.FilledQuantity, state.AveragePrice)
		}
	} else {
		run.log.Warnf("status %s before cancel failed: %v", o.OrderID, err)
	}

	ok, err := e.gw.CancelOrder(ctx, symbol, o.OrderID)
	if err == nil && ok {
		// A fill can land between the last read and the cancel.
		if state, err := e.gw.GetOrder(ctx, symbol, o.OrderID); err == nil && state.Status != exchange.StatusNotFound {
			run.fold(o, state.FilledQuantity, state.AveragePrice)
		}
		o.Status = exchange.StatusCanceled
		run.live = nil
		return true
	}
	if err != nil {
		run.log.Warnf("cancel %s: %v (%v)", o.OrderID, exchange.ErrCancelRace, err)
	} else {
		run.log.Warnf("cancel %s: %v", o.OrderID, exchange.ErrCancelRace)
	}

	state, err := e.gw.GetOrder(ctx, symbol, o.OrderID)
	if err != nil {
		run.log.Warnf("status %s after failed cancel: %v, keeping order", o.OrderID, err)
		return false
	}
	o.Status = state.Status
	switch state.Status {
	case exchange.StatusFilled:
		filled := state.FilledQuantity
		if !filled.IsPositive() {
			filled = o.Quantity
		}
		run.fold(o, filled, state.AveragePrice)
		run.live = nil
		return true
	case exchange.StatusNotFound:
		run.foldNotFound(o)
		run.live = nil
		return true
	case exchange.StatusCanceled, exchange.StatusExpired, exchange.StatusRejected:
		run.fold(o, state.FilledQuantity, state.AveragePrice)
		run.live = nil
		return true
	default:
		run.fold(o, state.FilledQuantity, state.AveragePrice)
		return false
	}
}

// settle runs on every exit path that still holds an order. It works on a
// context detached from cancellation so a stop request cannot strand a
// resting order.
func (e *MakerEngine) settle(ctx context.Context, run *clipRun) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	id := run.live.OrderID
	if !e.cancelAndReconcile(sctx, run) {
		run.log.Errorf("order %s could not be cancelled and may still rest on the book", id)
	}
}
