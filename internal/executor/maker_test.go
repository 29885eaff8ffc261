package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/position"
)

func TestExecuteClipFilledFirstTry(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r exchange.OrderRequest) bool {
		return r.Side == exchange.SideSell &&
			r.Type == exchange.OrderTypeLimit &&
			r.TimeInForce == exchange.TimeInForceGTX &&
			!r.ReduceOnly &&
			r.Quantity.Equal(dec("1")) &&
			r.Price.Equal(dec("100.00"))
	})).Return(accepted("1"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusFilled, "1", "100"), nil)

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.FilledQuantity.Equal(dec("1")))
	assert.True(t, res.AveragePrice.Equal(dec("100")))
	assert.Equal(t, 0, res.Iterations)
	gw.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertExpectations(t)
}

func TestExecuteClipChasesFavorableAsk(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil).Once()
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("100.01", "100.02"), nil)
	gw.On("PlaceOrder", mock.Anything, priceIs("100.00")).Return(accepted("1"), nil).Once()
	gw.On("PlaceOrder", mock.Anything, priceIs("100.02")).Return(accepted("2"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusPartiallyFilled, "0.4", "100"), nil).Twice()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusCanceled, "0.4", "100"), nil).Once()
	gw.On("CancelOrder", mock.Anything, "SOLUSDT", "1").Return(true, nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "2").Return(state("2", exchange.StatusFilled, "0.6", "100.02"), nil)

	cfg := testMakerConfig()
	cfg.PriceTolerance = dec("0.5")
	clock := newFakeClock()
	start := clock.Now()
	e := newTestMaker(gw, cfg, clock)
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.FilledQuantity.Equal(dec("1")), res.FilledQuantity.String())
	assert.True(t, res.AveragePrice.Equal(dec("100.012")), res.AveragePrice.String())
	assert.Equal(t, 1, res.Iterations)
	assert.Less(t, clock.Now().Sub(start), cfg.OrderTimeout)
	gw.AssertExpectations(t)
}

func TestExecuteClipPostOnlyRejectionIsRetried(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.OrderResult{Success: false, Status: exchange.StatusRejected, Error: "would immediately match"}, nil).Once()
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("7"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "7").Return(state("7", exchange.StatusFilled, "2", "100"), nil)

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("2"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 2, gw.callCount("PlaceOrder"))
	gw.AssertExpectations(t)
}

func TestExecuteClipFailedCancelTrustsRequery(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil).Once()
	// five polls in the wait window plus the read before cancelling
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusOpen, "0", "0"), nil).Times(6)
	gw.On("CancelOrder", mock.Anything, "SOLUSDT", "1").Return(false, nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusFilled, "1.5", "100"), nil).Once()

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1.5"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.FilledQuantity.Equal(dec("1.5")))
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, gw.callCount("PlaceOrder"))
	gw.AssertExpectations(t)
}

func TestExecuteClipNotFoundAssumedFilled(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(exchange.OrderState{OrderID: "1", Status: exchange.StatusNotFound}, nil)

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("3"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.FilledQuantity.Equal(dec("3")))
	assert.True(t, res.AveragePrice.Equal(dec("100")))
}

func TestExecuteClipTotalTimeoutLeavesNoOrder(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil)
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusOpen, "0", "0"), nil)
	gw.On("CancelOrder", mock.Anything, "SOLUSDT", "1").Return(true, nil)

	cfg := testMakerConfig()
	cfg.TotalTimeout = 2 * time.Second
	e := newTestMaker(gw, cfg, newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.FilledQuantity.IsZero())
	assert.Greater(t, gw.callCount("PlaceOrder"), 1)
	assert.Equal(t, gw.callCount("PlaceOrder"), gw.callCount("CancelOrder"))
}

func TestExecuteClipIterationBudget(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil)
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusOpen, "0", "0"), nil)
	gw.On("CancelOrder", mock.Anything, "SOLUSDT", "1").Return(true, nil)

	cfg := testMakerConfig()
	cfg.MaxIterations = 2
	cfg.TotalTimeout = time.Hour
	e := newTestMaker(gw, cfg, newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, gw.callCount("PlaceOrder"))
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestExecuteClipPartialFillBelowThreshold(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil)
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusPartiallyFilled, "0.4", "100"), nil)
	gw.On("CancelOrder", mock.Anything, "SOLUSDT", "1").Return(true, nil)

	cfg := testMakerConfig()
	cfg.MaxIterations = 1
	e := newTestMaker(gw, cfg, newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.True(t, res.FilledQuantity.Equal(dec("0.4")), res.FilledQuantity.String())
}

func TestExecuteClipCancelledContextPullsOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusOpen, "0", "0"), nil).
		Run(func(mock.Arguments) { cancel() })
	gw.On("CancelOrder", mock.Anything, "SOLUSDT", "1").Return(true, nil).Once()

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(ctx, solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Error, context.Canceled.Error())
	gw.AssertNumberOfCalls(t, "CancelOrder", 1)
}

func TestExecuteClipUnexpectedPlaceErrorFails(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(exchange.OrderResult{}, errors.New("invalid api key")).Once()

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Error, "invalid api key")
}

func TestExecuteClipNetworkErrorsAreRetried(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(exchange.Book{}, exchange.ErrNetwork).Once()
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(exchange.OrderResult{}, exchange.ErrNetwork).Once()
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusFilled, "1", "100"), nil)

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, res.Iterations)
}

func TestExecuteClipNetworkRetryReusesClientID(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil).Once()
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("100.01", "100.02"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(exchange.OrderResult{}, exchange.ErrNetwork).Once()
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusFilled, "1", "100"), nil)

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	require.Equal(t, OutcomeSuccess, res.Outcome)
	reqs := gw.placedRequests()
	require.Len(t, reqs, 2)
	assert.NotEmpty(t, reqs[0].ClientOrderID)
	assert.Equal(t, reqs[0].ClientOrderID, reqs[1].ClientOrderID)
	assert.True(t, reqs[0].Price.Equal(*reqs[1].Price), "a resend is the same order")
	assert.True(t, reqs[0].Quantity.Equal(reqs[1].Quantity))
	assert.Equal(t, exchange.PositionSideBoth, reqs[0].PositionSide, "one-way position mode")
}

func TestExecuteClipAdoptsOrderThatArrivedDespiteNetworkError(t *testing.T) {
	gw := new(lookupGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(exchange.OrderResult{}, exchange.ErrNetwork).Once()
	gw.On("GetOrderByClientID", mock.Anything, "SOLUSDT", "test_b").Return(state("9", exchange.StatusOpen, "0", "0"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "9").Return(state("9", exchange.StatusFilled, "1", "100"), nil)

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.FilledQuantity.Equal(dec("1")))
	assert.Equal(t, 1, gw.callCount("PlaceOrder"))
	assert.Equal(t, 0, gw.callCount("CancelOrder"))
	gw.AssertExpectations(t)
}

func TestExecuteClipDuplicateClientIDIsResolved(t *testing.T) {
	gw := new(lookupGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(exchange.OrderResult{}, exchange.ErrNetwork).Once()
	gw.On("GetOrderByClientID", mock.Anything, "SOLUSDT", "test_b").Return(exchange.OrderState{Status: exchange.StatusNotFound}, nil).Once()
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(exchange.OrderResult{}, exchange.ErrDuplicateOrder).Once()
	gw.On("GetOrderByClientID", mock.Anything, "SOLUSDT", "test_b").Return(state("9", exchange.StatusPartiallyFilled, "0.4", "100"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "9").Return(state("9", exchange.StatusFilled, "1", "100"), nil)

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.FilledQuantity.Equal(dec("1")), res.FilledQuantity.String())
	reqs := gw.placedRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "test_b", reqs[1].ClientOrderID)
	gw.AssertExpectations(t)
}

func TestExecuteClipWaitStopsAtTotalTimeout(t *testing.T) {
	for _, tc := range []struct {
		name       string
		total      time.Duration
		placements int
	}{
		{name: "budget equals one wait", total: 10 * time.Second, placements: 1},
		{name: "second wait is cut short", total: 15 * time.Second, placements: 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			gw := new(mockGateway)
			gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
			gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil)
			gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusOpen, "0", "0"), nil)
			gw.On("CancelOrder", mock.Anything, "SOLUSDT", "1").Return(true, nil)

			cfg := testMakerConfig()
			cfg.OrderTimeout = 10 * time.Second
			cfg.TotalTimeout = tc.total
			cfg.CheckInterval = time.Second
			cfg.MaxIterations = 100
			e := newTestMaker(gw, cfg, newFakeClock())
			res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

			assert.LessOrEqual(t, res.Elapsed, cfg.TotalTimeout+cfg.CheckInterval)
			assert.Equal(t, tc.placements, gw.callCount("PlaceOrder"))
			assert.Equal(t, tc.placements, gw.callCount("CancelOrder"))
			assert.Equal(t, OutcomeFailed, res.Outcome)
		})
	}
}

func TestExecuteClipFailedCancelKeepsOpenOrder(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil).Once()
	// five polls, the read before cancelling, the read after the failed cancel
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusOpen, "0", "0"), nil).Times(7)
	gw.On("CancelOrder", mock.Anything, "SOLUSDT", "1").Return(false, nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusFilled, "1", "100"), nil).Once()

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.FilledQuantity.Equal(dec("1")))
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, gw.callCount("PlaceOrder"), "the kept order is not re-placed")
	gw.AssertExpectations(t)
}

func TestExecuteClipCancelErrorKeepsPartiallyFilledOrder(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusOpen, "0", "0"), nil).Times(6)
	gw.On("CancelOrder", mock.Anything, "SOLUSDT", "1").Return(false, exchange.ErrNetwork).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusPartiallyFilled, "0.5", "100"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusFilled, "1", "100.02"), nil).Once()

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("1"), false)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.FilledQuantity.Equal(dec("1")))
	assert.True(t, res.AveragePrice.Equal(dec("100.02")), res.AveragePrice.String())
	assert.Equal(t, 1, gw.callCount("PlaceOrder"))
	assert.Equal(t, 1, gw.callCount("CancelOrder"))
	gw.AssertExpectations(t)
}

func TestExecuteClipBelowMinimumIsSkipped(t *testing.T) {
	gw := new(mockGateway)
	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteClip(context.Background(), solSpec(), exchange.SideSell, dec("0.005"), false)

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, gw.Calls)
}

func TestFoldIsIdempotent(t *testing.T) {
	run := &clipRun{target: dec("2"), filled: decimal.Zero, value: decimal.Zero}
	o := &LiveOrder{OrderID: "1", Price: dec("100"), Quantity: dec("2")}

	assert.True(t, run.fold(o, dec("1.5"), dec("100")).Equal(dec("1.5")))
	assert.True(t, run.fold(o, dec("1.5"), dec("100")).IsZero())
	assert.True(t, run.fold(o, dec("1.5"), dec("100")).IsZero())
	assert.True(t, run.filled.Equal(dec("1.5")))

	// a later, larger report folds only the increment and never past target
	assert.True(t, run.fold(o, dec("3"), dec("100")).Equal(dec("0.5")))
	assert.True(t, run.filled.Equal(dec("2")))
}

func TestFoldPricesEachIncrement(t *testing.T) {
	run := &clipRun{target: dec("2"), filled: decimal.Zero, value: decimal.Zero}
	o := &LiveOrder{OrderID: "1", Price: dec("100"), Quantity: dec("2")}

	run.fold(o, dec("1"), dec("100"))
	// cumulative average 101 over 2 means the second unit went at 102
	run.fold(o, dec("2"), dec("101"))
	assert.True(t, run.value.Equal(dec("202")), run.value.String())
	assert.True(t, run.value.Div(run.filled).Equal(dec("101")))

	capped := &clipRun{target: dec("1.5"), filled: decimal.Zero, value: decimal.Zero}
	o2 := &LiveOrder{OrderID: "2", Price: dec("100"), Quantity: dec("2")}
	capped.fold(o2, dec("1"), dec("100"))
	capped.fold(o2, dec("2"), dec("101"))
	assert.True(t, capped.filled.Equal(dec("1.5")))
	assert.True(t, capped.value.Equal(dec("151")), capped.value.String())
}

func TestExecuteDeltaSOLRoundsDown(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r exchange.OrderRequest) bool {
		return r.Quantity.Equal(dec("12.34")) && r.Side == exchange.SideSell
	})).Return(accepted("1"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusFilled, "12.34", "100"), nil)

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteDelta(context.Background(), position.Delta{Symbol: "SOL", Target: dec("12.345"), Delta: dec("12.345")})

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.True(t, res.TargetQuantity.Equal(dec("12.34")))
	assert.True(t, res.FilledQuantity.Equal(dec("12.34")))
	assert.Equal(t, exchange.SideSell, res.Side)
	assert.Equal(t, 1, res.Clips)
	gw.AssertExpectations(t)
}

func TestExecuteDeltaBuyQuotesBidReduceOnly(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r exchange.OrderRequest) bool {
		return r.Side == exchange.SideBuy && r.ReduceOnly && r.Price.Equal(dec("99.99"))
	})).Return(accepted("1"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusFilled, "2", "99.99"), nil)

	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteDelta(context.Background(), position.Delta{Symbol: "SOL", Target: dec("8"), Current: dec("10"), Delta: dec("-2")})

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, exchange.SideBuy, res.Side)
	gw.AssertExpectations(t)
}

func TestExecuteDeltaAbandonsClipsAfterFailure(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("99.99", "100.00"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("1"), nil).Once()
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(exchange.OrderResult{}, errors.New("margin is insufficient")).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "1").Return(state("1", exchange.StatusFilled, "2", "100"), nil)

	cfg := testMakerConfig()
	cfg.Split = SplitConfig{
		Enabled:      true,
		ThresholdUSD: dec("500"),
		MinClipUSD:   dec("100"),
		MaxClipUSD:   dec("300"),
	}
	e := newTestMaker(gw, cfg, newFakeClock())
	res := e.ExecuteDelta(context.Background(), position.Delta{Symbol: "SOL", Target: dec("10"), Delta: dec("10")})

	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, 2, res.Clips)
	assert.True(t, res.FilledQuantity.Equal(dec("2")))
	assert.True(t, res.TargetQuantity.Equal(dec("10")))
	assert.Contains(t, res.Error, "margin is insufficient")
	gw.AssertNumberOfCalls(t, "PlaceOrder", 2)
}

func TestExecuteDeltaZeroIsSkipped(t *testing.T) {
	gw := new(mockGateway)
	e := newTestMaker(gw, testMakerConfig(), newFakeClock())
	res := e.ExecuteDelta(context.Background(), position.Delta{Symbol: "SOL", Delta: dec("0.004")})

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, gw.Calls)
}
