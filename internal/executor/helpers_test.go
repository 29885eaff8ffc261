package executor

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/pkg/trading"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Depth(ctx context.Context, symbol string, limit int) (exchange.Book, error) {
	args := m.Called(ctx, symbol, limit)
	return args.Get(0).(exchange.Book), args.Error(1)
}

func (m *mockGateway) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(exchange.OrderResult), args.Error(1)
}

func (m *mockGateway) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	args := m.Called(ctx, symbol, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGateway) GetOrder(ctx context.Context, symbol, orderID string) (exchange.OrderState, error) {
	args := m.Called(ctx, symbol, orderID)
	return args.Get(0).(exchange.OrderState), args.Error(1)
}

// lookupGateway also answers client-id queries.
type lookupGateway struct {
	mockGateway
}

func (m *lookupGateway) GetOrderByClientID(ctx context.Context, symbol, clientOrderID string) (exchange.OrderState, error) {
	args := m.Called(ctx, symbol, clientOrderID)
	return args.Get(0).(exchange.OrderState), args.Error(1)
}

func (m *mockGateway) placedRequests() []exchange.OrderRequest {
	var out []exchange.OrderRequest
	for _, c := range m.Calls {
		if c.Method == "PlaceOrder" {
			out = append(out, c.Arguments.Get(1).(exchange.OrderRequest))
		}
	}
	return out
}

func (m *mockGateway) callCount(method string) int {
	n := 0
	for _, c := range m.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func solSpec() trading.Spec {
	return trading.Spec{
		Base:              "SOL",
		Pair:              "SOLUSDT",
		PricePrecision:    2,
		QuantityPrecision: 2,
		MinOrderSize:      dec("0.01"),
	}
}

func testRegistry() trading.Registry {
	return trading.Registry{"SOL": solSpec()}
}

func book(bid, ask string) exchange.Book {
	return exchange.Book{
		Symbol: "SOLUSDT",
		Bids:   []exchange.Level{{Price: dec(bid), Size: dec("50")}},
		Asks:   []exchange.Level{{Price: dec(ask), Size: dec("50")}},
	}
}

func testMakerConfig() MakerConfig {
	return MakerConfig{
		OrderTimeout:         time.Second,
		TotalTimeout:         time.Minute,
		CheckInterval:        200 * time.Millisecond,
		PriceTolerance:       dec("0.0002"),
		MaxIterations:        10,
		PartialFillThreshold: dec("0.95"),
		MinRemainingRatio:    decimal.Zero,
	}
}

func accepted(id string) exchange.OrderResult {
	return exchange.OrderResult{Success: true, OrderID: id, Status: exchange.StatusOpen}
}

func state(id string, status exchange.OrderStatus, filled, avg string) exchange.OrderState {
	return exchange.OrderState{OrderID: id, Status: status, FilledQuantity: dec(filled), AveragePrice: dec(avg)}
}

func priceIs(p string) interface{} {
	return mock.MatchedBy(func(r exchange.OrderRequest) bool {
		return r.Price != nil && r.Price.Equal(dec(p))
	})
}

func newTestMaker(gw exchange.OrderGateway, cfg MakerConfig, clock Clock) *MakerEngine {
	n := 0
	return NewMakerEngine(gw, testRegistry(), cfg,
		WithClock(clock),
		WithClientIDFunc(func() string {
			n++
			return "test_" + string(rune('a'+n))
		}),
	)
}
