package aster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
)

// API error codes with a fixed meaning for the engine.
const (
	codeUnknown          = 0
	codeDisconnected     = -1001
	codeTooManyRequests  = -1003
	codeTimeout          = -1007
	codeServerBusy       = -1008
	codeUnknownOrderSent = -2011
	codeNoSuchOrder      = -2013
	codeDuplicateOrder   = -4116
	codePostOnlyReject   = -5022
)

// classifyError wraps err with the exchange sentinel that matches it.
// Anything that is not an API error is a transport failure.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w: %v", op, exchange.ErrNetwork, err)
	}
	switch apiErr.Code {
	case codeUnknown, codeDisconnected, codeTooManyRequests, codeTimeout, codeServerBusy:
		return fmt.Errorf("%s: %w: %v", op, exchange.ErrNetwork, apiErr)
	case codeNoSuchOrder, codeUnknownOrderSent:
		return fmt.Errorf("%s: %w: %v", op, exchange.ErrOrderNotFound, apiErr)
	case codePostOnlyReject:
		return fmt.Errorf("%s: %w: %v", op, exchange.ErrRejected, apiErr)
	case codeDuplicateOrder:
		return fmt.Errorf("%s: %w: %v", op, exchange.ErrDuplicateOrder, apiErr)
	default:
		return fmt.Errorf("%s: %w", op, apiErr)
	}
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toBook(symbol string, res *futures.DepthResponse) exchange.Book {
	book := exchange.Book{Symbol: symbol}
	if res == nil {
		return book
	}
	book.Bids = make([]exchange.Level, 0, len(res.Bids))
	for _, b := range res.Bids {
		book.Bids = append(book.Bids, exchange.Level{Price: parseDecimal(b.Price), Size: parseDecimal(b.Quantity)})
	}
	book.Asks = make([]exchange.Level, 0, len(res.Asks))
	for _, a := range res.Asks {
		book.Asks = append(book.Asks, exchange.Level{Price: parseDecimal(a.Price), Size: parseDecimal(a.Quantity)})
	}
	return book
}

// averagePrice prefers cumulative quote over executed quantity.
func averagePrice(cumQuote, executed, fallback string) decimal.Decimal {
	qty := parseDecimal(executed)
	quote := parseDecimal(cumQuote)
	if qty.IsPositive() && quote.IsPositive() {
		return quote.Div(qty)
	}
	return parseDecimal(fallback)
}

func toOrderResult(req exchange.OrderRequest, res *futures.CreateOrderResponse) exchange.OrderResult {
	status := exchange.ParseOrderStatus(string(res.Status))
	filled := parseDecimal(res.ExecutedQuantity)
	out := exchange.OrderResult{
		Success:        true,
		OrderID:        strconv.FormatInt(res.OrderID, 10),
		ClientOrderID:  res.ClientOrderID,
		Symbol:         res.Symbol,
		Status:         status,
		Price:          parseDecimal(res.Price),
		Quantity:       parseDecimal(res.OrigQuantity),
		FilledQuantity: filled,
		AveragePrice:   averagePrice(res.CumQuote, res.ExecutedQuantity, res.Price),
	}
	// a post-only order that would cross comes back EXPIRED with no fill
	if req.TimeInForce == exchange.TimeInForceGTX && status == exchange.StatusExpired && filled.IsZero() {
		out.Success = false
		out.Status = exchange.StatusRejected
		out.Error = "post-only order would have crossed"
	}
	return out
}

func toOrderState(o *futures.Order) exchange.OrderState {
	return exchange.OrderState{
		OrderID:        strconv.FormatInt(o.OrderID, 10),
		Status:         exchange.ParseOrderStatus(string(o.Status)),
		FilledQuantity: parseDecimal(o.ExecutedQuantity),
		AveragePrice:   averagePrice(o.CumQuote, o.ExecutedQuantity, o.AvgPrice),
	}
}

func toPosition(p *futures.PositionRisk) exchange.Position {
	lev, _ := strconv.Atoi(strings.TrimSpace(p.Leverage))
	return exchange.Position{
		Symbol:        p.Symbol,
		PositionSide:  p.PositionSide,
		Quantity:      parseDecimal(p.PositionAmt),
		EntryPrice:    parseDecimal(p.EntryPrice),
		MarkPrice:     parseDecimal(p.MarkPrice),
		UnrealizedPnL: parseDecimal(p.UnRealizedProfit),
		Leverage:      lev,
	}
}
