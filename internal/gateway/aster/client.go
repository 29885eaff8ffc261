// Package aster is the AsterDex perpetual futures gateway. AsterDex serves the
// Binance USDⓈ-M futures REST API, so the go-binance futures client is pointed
// at its base URL and signs with the account's HMAC key pair.
package aster

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/logger"
)

type Gateway struct {
	cfg    Config
	client *futures.Client
	log    logger.Entry
}

var (
	_ exchange.Gateway           = (*Gateway)(nil)
	_ exchange.ClientOrderLookup = (*Gateway)(nil)
)

func New(cfg Config) (*Gateway, error) {
	final := cfg.withDefaults()
	if final.APIKey == "" || final.APISecret == "" {
		return nil, fmt.Errorf("aster: api key and secret are required: %w", exchange.ErrConfiguration)
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.BaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Gateway{
		cfg:    final,
		client: client,
		log:    logger.With("component", "aster"),
	}, nil
}

func (g *Gateway) Name() string { return "asterdex" }

func (g *Gateway) opts() []futures.RequestOption {
	return []futures.RequestOption{futures.WithRecvWindow(g.cfg.RecvWindow.Milliseconds())}
}

func (g *Gateway) Depth(ctx context.Context, symbol string, limit int) (exchange.Book, error) {
	res, err := g.client.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return exchange.Book{}, classifyError("depth "+symbol, err)
	}
	return toBook(symbol, res), nil
}

func (g *Gateway) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, classifyError("ticker "+symbol, err)
	}
	for _, p := range prices {
		if p != nil && p.Symbol == symbol {
			return parseDecimal(p.Price), nil
		}
	}
	return decimal.Zero, fmt.Errorf("ticker %s: no price returned", symbol)
}

func parseOrderID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order id %q: %w", id, err)
	}
	return n, nil
}
