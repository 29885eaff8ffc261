package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderGateway is what the execution engine needs. Every call is a blocking
// network round trip; implementations must return an error wrapping
// ErrNetwork for transport failures and report exchange-level outcomes
// (rejections, unknown orders) as values.
type OrderGateway interface {
	Depth(ctx context.Context, symbol string, limit int) (Book, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	// CancelOrder returning false does not imply the order is still open.
	CancelOrder(ctx context.Context, symbol, orderID string) (bool, error)
	// GetOrder reports an order unknown to the exchange as StatusNotFound.
	GetOrder(ctx context.Context, symbol, orderID string) (OrderState, error)
}

// AccountGateway covers the read side used by the position manager and the
// risk monitor.
type AccountGateway interface {
	Balances(ctx context.Context) ([]Balance, error)
	Positions(ctx context.Context) ([]Position, error)
	Account(ctx context.Context) (AccountSummary, error)
	FundingRate(ctx context.Context, symbol string) (FundingRate, error)
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// ClientOrderLookup finds an order by the client id it was submitted with.
// The maker engine uses it to learn whether a placement that failed in
// transit reached the exchange. An unknown id is StatusNotFound.
type ClientOrderLookup interface {
	GetOrderByClientID(ctx context.Context, symbol, clientOrderID string) (OrderState, error)
}

// Gateway is the full exchange surface one account works against.
type Gateway interface {
	Name() string
	OrderGateway
	AccountGateway
}
