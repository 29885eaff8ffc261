package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/position"
)

func testMarketConfig() MarketConfig {
	return MarketConfig{
		UseMarketOrder:       true,
		Slippage:             dec("0.001"),
		PartialFillThreshold: dec("0.95"),
		FillPollAttempts:     3,
		FillPollInterval:     100 * time.Millisecond,
	}
}

func TestMarketExecuteFillsImmediately(t *testing.T) {
	gw := new(mockGateway)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r exchange.OrderRequest) bool {
		return r.Type == exchange.OrderTypeMarket && r.Price == nil && r.Quantity.Equal(dec("12.34")) && r.Side == exchange.SideSell
	})).Return(exchange.OrderResult{
		Success: true, OrderID: "9", Status: exchange.StatusFilled,
		FilledQuantity: dec("12.34"), AveragePrice: dec("101.5"),
	}, nil).Once()

	m := NewMarketExecutor(gw, testRegistry(), testMarketConfig(), newFakeClock())
	res := m.ExecuteDelta(context.Background(), position.Delta{Symbol: "SOL", Delta: dec("12.345")})

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, ModeMarket, res.Mode)
	assert.True(t, res.FilledQuantity.Equal(dec("12.34")))
	assert.True(t, res.AveragePrice.Equal(dec("101.5")))
	gw.AssertExpectations(t)
}

func TestMarketExecutePollsWhenAckHasNoFill(t *testing.T) {
	gw := new(mockGateway)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(accepted("9"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "9").Return(state("9", exchange.StatusOpen, "0", "0"), nil).Once()
	gw.On("GetOrder", mock.Anything, "SOLUSDT", "9").Return(state("9", exchange.StatusFilled, "1", "100"), nil).Once()

	m := NewMarketExecutor(gw, testRegistry(), testMarketConfig(), newFakeClock())
	res := m.ExecuteDelta(context.Background(), position.Delta{Symbol: "SOL", Delta: dec("-1")})

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, exchange.SideBuy, res.Side)
	gw.AssertExpectations(t)
}

func TestMarketExecuteIOCLimitWithSlippage(t *testing.T) {
	gw := new(mockGateway)
	gw.On("Depth", mock.Anything, "SOLUSDT", bookDepthLimit).Return(book("100.00", "100.10"), nil)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r exchange.OrderRequest) bool {
		return r.Type == exchange.OrderTypeLimit && r.TimeInForce == exchange.TimeInForceIOC &&
			r.Price != nil && r.Price.Equal(dec("99.9"))
	})).Return(exchange.OrderResult{
		Success: true, OrderID: "3", Status: exchange.StatusExpired, FilledQuantity: dec("0.5"),
	}, nil).Once()

	cfg := testMarketConfig()
	cfg.UseMarketOrder = false
	m := NewMarketExecutor(gw, testRegistry(), cfg, newFakeClock())
	res := m.ExecuteDelta(context.Background(), position.Delta{Symbol: "SOL", Delta: dec("1")})

	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.True(t, res.AveragePrice.Equal(dec("99.9")))
	gw.AssertExpectations(t)
}

func TestMarketExecuteRejected(t *testing.T) {
	gw := new(mockGateway)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(exchange.OrderResult{Success: false, Error: "ReduceOnly Order is rejected"}, nil).Once()

	m := NewMarketExecutor(gw, testRegistry(), testMarketConfig(), newFakeClock())
	res := m.ExecuteDelta(context.Background(), position.Delta{Symbol: "SOL", Delta: dec("-1")})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Error, "ReduceOnly")
}

func TestMarketExecuteSkipsDust(t *testing.T) {
	gw := new(mockGateway)
	m := NewMarketExecutor(gw, testRegistry(), testMarketConfig(), newFakeClock())
	res := m.ExecuteDelta(context.Background(), position.Delta{Symbol: "SOL", Delta: dec("0.009")})
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, gw.Calls)
}

func TestFlattenForcesMarket(t *testing.T) {
	gw := new(mockGateway)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r exchange.OrderRequest) bool {
		return r.Type == exchange.OrderTypeMarket && r.ReduceOnly && r.Side == exchange.SideBuy
	})).Return(exchange.OrderResult{Success: true, OrderID: "4", Status: exchange.StatusFilled, FilledQuantity: dec("2"), AveragePrice: dec("100")}, nil).Once()

	cfg := testMarketConfig()
	cfg.UseMarketOrder = false
	m := NewMarketExecutor(gw, testRegistry(), cfg, newFakeClock())
	res := m.Flatten(context.Background(), position.Delta{Symbol: "SOL", Delta: dec("-2")})

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	gw.AssertExpectations(t)
}
