package app

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/config"
	"hedgebot/internal/executor"
	"hedgebot/internal/gateway/aster"
	"hedgebot/internal/gateway/hedgeapi"
	"hedgebot/internal/pkg/trading"
	"hedgebot/internal/risk"
)

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func registryFromConfig(symbols map[string]config.SymbolConfig) trading.Registry {
	reg := make(trading.Registry, len(symbols))
	for base, s := range symbols {
		base = strings.ToUpper(base)
		reg[base] = trading.Spec{
			Base:              base,
			Pair:              s.Pair,
			PricePrecision:    int32(s.PricePrecision),
			QuantityPrecision: int32(s.QuantityPrecision),
			MinOrderSize:      decimal.NewFromFloat(s.MinOrderSize),
		}
	}
	return reg
}

func makerConfigFromConfig(m config.MakerOrderConfig) executor.MakerConfig {
	return executor.MakerConfig{
		OrderTimeout:         seconds(m.OrderTimeout),
		TotalTimeout:         seconds(m.TotalTimeout),
		CheckInterval:        seconds(m.CheckInterval),
		PriceTolerance:       decimal.NewFromFloat(m.PriceTolerance),
		MaxIterations:        m.MaxIterations,
		PartialFillThreshold: decimal.NewFromFloat(m.PartialFillThreshold),
		MinRemainingRatio:    decimal.NewFromFloat(m.MinRemainingRatio),
		Split: executor.SplitConfig{
			Enabled:      m.IsSplitEnabled(),
			ThresholdUSD: decimal.NewFromFloat(m.SplitThresholdUSD),
			MinClipUSD:   decimal.NewFromFloat(m.SplitMinClipUSD),
			MaxClipUSD:   decimal.NewFromFloat(m.SplitMaxClipUSD),
			Randomize:    m.IsRandomized(),
		},
	}
}

func marketConfigFromConfig(t config.TradingConfig) executor.MarketConfig {
	cfg := executor.DefaultMarketConfig()
	cfg.UseMarketOrder = t.UseMarketOrder
	cfg.Slippage = decimal.NewFromFloat(t.Slippage)
	cfg.PartialFillThreshold = decimal.NewFromFloat(t.MakerOrder.PartialFillThreshold)
	return cfg
}

func riskConfigFromConfig(r config.RiskConfig) risk.Config {
	cfg := risk.DefaultConfig()
	cfg.MaxFundingRate = decimal.NewFromFloat(r.MaxFundingRate)
	cfg.MaxMarginRatio = decimal.NewFromFloat(r.MaxMarginRatio)
	cfg.MaxDailyLoss = decimal.NewFromFloat(r.MaxDailyLoss)
	cfg.MaxPositionDeviation = decimal.NewFromFloat(r.MaxPositionDeviation)
	return cfg
}

func hedgeAPIConfigFromConfig(h config.HedgeConfig) hedgeapi.Config {
	return hedgeapi.Config{
		BaseURL:    h.APIURL,
		LicenseKey: h.LicenseKey,
		Timeout:    time.Duration(h.TimeoutSeconds) * time.Second,
		Retries:    h.Retries,
		RetryDelay: time.Duration(h.RetryDelaySeconds) * time.Second,
	}
}

func asterConfigFromConfig(ex config.ExchangeConfig, acc config.AccountConfig) aster.Config {
	return aster.Config{
		BaseURL:      ex.BaseURL,
		APIKey:       acc.APIKey,
		APISecret:    acc.APISecret,
		HTTPTimeout:  time.Duration(ex.HTTPTimeoutSeconds) * time.Second,
		RecvWindow:   time.Duration(ex.RecvWindowMS) * time.Millisecond,
		ProxyEnabled: ex.ProxyEnabled,
		ProxyURL:     ex.ProxyURL,
	}
}
