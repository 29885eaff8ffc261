package aster

import (
	"context"
	"errors"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"

	"hedgebot/internal/gateway/exchange"
)

func (g *Gateway) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	svc := g.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Type)).
		Quantity(req.Quantity.String()).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if req.PositionSide != "" {
		svc = svc.PositionSide(futures.PositionSideType(req.PositionSide))
	}
	if req.Type == exchange.OrderTypeLimit {
		tif := req.TimeInForce
		if tif == "" {
			tif = exchange.TimeInForceGTC
		}
		svc = svc.TimeInForce(futures.TimeInForceType(tif))
		if req.Price != nil {
			svc = svc.Price(req.Price.String())
		}
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}

	res, err := svc.Do(ctx, g.opts()...)
	if err != nil {
		classified := classifyError("place "+req.Symbol, err)
		if errors.Is(classified, exchange.ErrRejected) {
			return exchange.OrderResult{
				Success:       false,
				Symbol:        req.Symbol,
				ClientOrderID: req.ClientOrderID,
				Status:        exchange.StatusRejected,
				Error:         err.Error(),
			}, nil
		}
		return exchange.OrderResult{}, classified
	}
	out := toOrderResult(req, res)
	g.log.Debugf("place %s %s %s %s@%v -> %s %s", req.Symbol, req.Side, req.Type, req.Quantity, req.Price, out.OrderID, out.Status)
	return out, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return false, err
	}
	_, err = g.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx, g.opts()...)
	if err == nil {
		return true, nil
	}
	classified := classifyError("cancel "+symbol+" "+orderID, err)
	if errors.Is(classified, exchange.ErrOrderNotFound) {
		// already filled, cancelled or purged; the caller re-queries
		return false, nil
	}
	return false, classified
}

func (g *Gateway) GetOrder(ctx context.Context, symbol, orderID string) (exchange.OrderState, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return exchange.OrderState{}, err
	}
	o, err := g.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx, g.opts()...)
	if err != nil {
		classified := classifyError("order "+symbol+" "+orderID, err)
		if errors.Is(classified, exchange.ErrOrderNotFound) {
			return exchange.OrderState{OrderID: orderID, Status: exchange.StatusNotFound}, nil
		}
		return exchange.OrderState{}, classified
	}
	st := toOrderState(o)
	if st.OrderID == "" || st.OrderID == "0" {
		st.OrderID = strconv.FormatInt(id, 10)
	}
	return st, nil
}

func (g *Gateway) GetOrderByClientID(ctx context.Context, symbol, clientOrderID string) (exchange.OrderState, error) {
	o, err := g.client.NewGetOrderService().Symbol(symbol).OrigClientOrderID(clientOrderID).Do(ctx, g.opts()...)
	if err != nil {
		classified := classifyError("order "+symbol+" client "+clientOrderID, err)
		if errors.Is(classified, exchange.ErrOrderNotFound) {
			return exchange.OrderState{Status: exchange.StatusNotFound}, nil
		}
		return exchange.OrderState{}, classified
	}
	return toOrderState(o), nil
}
