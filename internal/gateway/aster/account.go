package aster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
)

func (g *Gateway) Balances(ctx context.Context) ([]exchange.Balance, error) {
	res, err := g.client.NewGetBalanceService().Do(ctx, g.opts()...)
	if err != nil {
		return nil, classifyError("balances", err)
	}
	out := make([]exchange.Balance, 0, len(res))
	for _, b := range res {
		if b == nil {
			continue
		}
		out = append(out, exchange.Balance{
			Asset:              strings.ToUpper(b.Asset),
			Balance:            parseDecimal(b.Balance),
			AvailableBalance:   parseDecimal(b.AvailableBalance),
			CrossWalletBalance: parseDecimal(b.CrossWalletBalance),
			CrossUnrealizedPnL: parseDecimal(b.CrossUnPnl),
		})
	}
	return out, nil
}

// Positions returns non-flat positions only.
func (g *Gateway) Positions(ctx context.Context) ([]exchange.Position, error) {
	res, err := g.client.NewGetPositionRiskService().Do(ctx, g.opts()...)
	if err != nil {
		return nil, classifyError("positions", err)
	}
	out := make([]exchange.Position, 0, len(res))
	for _, p := range res {
		if p == nil {
			continue
		}
		pos := toPosition(p)
		if pos.Quantity.IsZero() {
			continue
		}
		out = append(out, pos)
	}
	return out, nil
}

func (g *Gateway) Account(ctx context.Context) (exchange.AccountSummary, error) {
	acct, err := g.client.NewGetAccountService().Do(ctx, g.opts()...)
	if err != nil {
		return exchange.AccountSummary{}, classifyError("account", err)
	}
	out := exchange.AccountSummary{
		TotalInitialMargin:    parseDecimal(acct.TotalInitialMargin),
		TotalMaintMargin:      parseDecimal(acct.TotalMaintMargin),
		TotalWalletBalance:    parseDecimal(acct.TotalWalletBalance),
		TotalUnrealizedProfit: parseDecimal(acct.TotalUnrealizedProfit),
		AvailableBalance:      parseDecimal(acct.AvailableBalance),
		AssetWalletBalances:   make(map[string]decimal.Decimal, len(acct.Assets)),
	}
	for _, a := range acct.Assets {
		if a == nil {
			continue
		}
		out.AssetWalletBalances[strings.ToUpper(a.Asset)] = parseDecimal(a.WalletBalance)
	}
	return out, nil
}

func (g *Gateway) FundingRate(ctx context.Context, symbol string) (exchange.FundingRate, error) {
	res, err := g.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return exchange.FundingRate{}, classifyError("funding "+symbol, err)
	}
	for _, entry := range res {
		if entry == nil || !strings.EqualFold(entry.Symbol, symbol) {
			continue
		}
		return exchange.FundingRate{
			Symbol:      symbol,
			Rate:        parseDecimal(entry.LastFundingRate),
			MarkPrice:   parseDecimal(entry.MarkPrice),
			NextFunding: time.UnixMilli(entry.NextFundingTime),
		}, nil
	}
	return exchange.FundingRate{}, fmt.Errorf("funding rate not available for %s", symbol)
}

func (g *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if _, err := g.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx, g.opts()...); err != nil {
		return classifyError("leverage "+symbol, err)
	}
	g.log.Infof("%s leverage set to %dx", symbol, leverage)
	return nil
}
