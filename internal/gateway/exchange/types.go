// Package exchange defines the contract between the rebalancing engine and a
// derivatives exchange. Adapters (AsterDex today) translate their wire formats
// into these types at the boundary so the engine only sees closed enums and
// decimal quantities.
package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceGTX TimeInForce = "GTX" // post-only
)

type PositionSide string

const (
	PositionSideBoth  PositionSide = "BOTH"
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// OrderStatus is the closed set of order states the engine reasons about.
type OrderStatus int

const (
	StatusUnknown OrderStatus = iota
	StatusOpen
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusExpired
	StatusRejected
	StatusNotFound
)

func (s OrderStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusExpired:
		return "EXPIRED"
	case StatusRejected:
		return "REJECTED"
	case StatusNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the exchange will never change the order again.
// NOT_FOUND is handled separately by callers and is not terminal here.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// ParseOrderStatus maps an exchange status string to OrderStatus.
func ParseOrderStatus(raw string) OrderStatus {
	switch raw {
	case "NEW", "OPEN":
		return StatusOpen
	case "PARTIALLY_FILLED":
		return StatusPartiallyFilled
	case "FILLED":
		return StatusFilled
	case "CANCELED", "CANCELLED", "PENDING_CANCEL":
		return StatusCanceled
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return StatusExpired
	case "REJECTED":
		return StatusRejected
	case "NOT_FOUND":
		return StatusNotFound
	default:
		return StatusUnknown
	}
}

// Level is one price level of the book.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Book is a depth snapshot, best level first on both sides.
type Book struct {
	Symbol string
	Bids   []Level
	Asks   []Level
}

// Top returns the best bid and ask. ok is false when either side is empty.
func (b Book) Top() (bid, ask decimal.Decimal, ok bool) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return b.Bids[0].Price, b.Asks[0].Price, true
}

// OrderRequest is everything needed to submit one order.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      decimal.Decimal
	Price         *decimal.Decimal // nil for market orders
	TimeInForce   TimeInForce
	PositionSide  PositionSide
	ReduceOnly    bool
	ClientOrderID string
}

// OrderResult is the synchronous answer to a placement. A post-only order
// that would have crossed comes back as Success=false or Status=REJECTED,
// never as an error.
type OrderResult struct {
	Success        bool
	OrderID        string
	ClientOrderID  string
	Symbol         string
	Status         OrderStatus
	Price          decimal.Decimal
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	AveragePrice   decimal.Decimal
	Error          string
}

// Accepted is true when the exchange holds (or held) the order.
func (r OrderResult) Accepted() bool {
	return r.Success && r.Status != StatusRejected && r.OrderID != ""
}

// OrderState is the answer to a status query. NOT_FOUND is a value.
type OrderState struct {
	OrderID        string
	Status         OrderStatus
	FilledQuantity decimal.Decimal
	AveragePrice   decimal.Decimal
}

type Balance struct {
	Asset              string
	Balance            decimal.Decimal
	AvailableBalance   decimal.Decimal
	CrossWalletBalance decimal.Decimal
	CrossUnrealizedPnL decimal.Decimal
}

type Position struct {
	Symbol        string
	PositionSide  string
	Quantity      decimal.Decimal // negative = short
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Leverage      int
}

// AccountSummary carries the margin figures risk checks need.
type AccountSummary struct {
	TotalInitialMargin    decimal.Decimal
	TotalMaintMargin      decimal.Decimal
	TotalWalletBalance    decimal.Decimal
	TotalUnrealizedProfit decimal.Decimal
	AvailableBalance      decimal.Decimal
	AssetWalletBalances   map[string]decimal.Decimal
}

type FundingRate struct {
	Symbol      string
	Rate        decimal.Decimal
	MarkPrice   decimal.Decimal
	NextFunding time.Time
}
