package config

import (
	"fmt"
	"strings"

	"hedgebot/internal/pkg/symbol"
)

const (
	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppHTTPAddr        = ":9991"
	defaultAppLogPath         = "/data/logs/hedgebot.log"
	defaultExchangeBaseURL    = "https://fapi.asterdex.com"
	defaultExchangeTimeout    = 15
	defaultExchangeRecvWindow = 5000
	defaultHedgeAPIURL        = "http://localhost:3000"
	defaultHedgeBaseAsset     = "JLP"
	defaultRebalanceInterval  = "10m"
	defaultRebalanceThreshold = 0.02
	defaultHedgeTimeout       = 10
	defaultHedgeRetries       = 3
	defaultHedgeRetryDelay    = 2
	defaultMaxFundingRate     = 0.001
	defaultMaxMarginRatio     = 0.5
	defaultMaxDailyLoss       = 0.02
	defaultMaxDeviation       = 0.05
	defaultStorePath          = "/data/db/hedgebot.db"
	defaultLeverage           = 1
	defaultSlippage           = 0.001
	defaultOrderTimeout       = 5.0
	defaultTotalTimeout       = 600.0
	defaultCheckInterval      = 0.2
	defaultPriceTolerance     = 0.0002
	defaultMaxIterations      = 120
	defaultPartialThreshold   = 0.95
	defaultMinRemainingRatio  = 0.05
	defaultSplitThresholdUSD  = 500.0
	defaultSplitMinClipUSD    = 100.0
	defaultSplitMaxClipUSD    = 300.0
)

// defaultSymbols is used when the file names no symbols at all.
func defaultSymbols() map[string]SymbolConfig {
	return map[string]SymbolConfig{
		"SOL": {Pair: "SOLUSDT", PricePrecision: 2, QuantityPrecision: 2, MinOrderSize: 0.01},
		"ETH": {Pair: "ETHUSDT", PricePrecision: 2, QuantityPrecision: 3, MinOrderSize: 0.001},
		"BTC": {Pair: "BTCUSDT", PricePrecision: 1, QuantityPrecision: 3, MinOrderSize: 0.001},
	}
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Hedge.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.applySymbolDefaults()
	for i := range c.Accounts {
		c.Accounts[i].applyDefaults(i)
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.base_url", &e.BaseURL, defaultExchangeBaseURL),
		intFieldDefault("exchange.http_timeout_seconds", &e.HTTPTimeoutSeconds, defaultExchangeTimeout),
		intFieldDefault("exchange.recv_window", &e.RecvWindowMS, defaultExchangeRecvWindow),
	)
}

func (h *HedgeConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("hedge.api_url", &h.APIURL, defaultHedgeAPIURL),
		stringFieldDefault("hedge.base_asset", &h.BaseAsset, defaultHedgeBaseAsset),
		stringFieldDefault("hedge.rebalance_interval", &h.RebalanceInterval, defaultRebalanceInterval),
		floatFieldDefault("hedge.rebalance_threshold", &h.RebalanceThreshold, defaultRebalanceThreshold),
		intFieldDefault("hedge.timeout_seconds", &h.TimeoutSeconds, defaultHedgeTimeout),
		intFieldDefault("hedge.retries", &h.Retries, defaultHedgeRetries),
		intFieldDefault("hedge.retry_delay_seconds", &h.RetryDelaySeconds, defaultHedgeRetryDelay),
		boolFieldDefault("hedge.run_immediately", &h.RunImmediately, true),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("risk.max_funding_rate", &r.MaxFundingRate, defaultMaxFundingRate),
		floatFieldDefault("risk.max_margin_ratio", &r.MaxMarginRatio, defaultMaxMarginRatio),
		floatFieldDefault("risk.max_daily_loss", &r.MaxDailyLoss, defaultMaxDailyLoss),
		floatFieldDefault("risk.max_position_deviation", &r.MaxPositionDeviation, defaultMaxDeviation),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("store.enabled", &s.Enabled, true),
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func (c *Config) applySymbolDefaults() {
	if len(c.Symbols) == 0 {
		c.Symbols = defaultSymbols()
		return
	}
	normalized := make(map[string]SymbolConfig, len(c.Symbols))
	for base, sym := range c.Symbols {
		base = symbol.BaseOf(base)
		if strings.TrimSpace(sym.Pair) == "" {
			sym.Pair = symbol.PairOf(base)
		}
		sym.Pair = strings.ToUpper(sym.Pair)
		normalized[base] = sym
	}
	c.Symbols = normalized
}

// Account sections are list items, so zero values stand for "unset".
func (a *AccountConfig) applyDefaults(idx int) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		a.Name = fmt.Sprintf("account_%d", idx+1)
	}
	t := &a.Trading
	if t.Leverage <= 0 {
		t.Leverage = defaultLeverage
	}
	if t.Slippage <= 0 {
		t.Slippage = defaultSlippage
	}
	m := &t.MakerOrder
	setFloat(&m.OrderTimeout, defaultOrderTimeout)
	setFloat(&m.TotalTimeout, defaultTotalTimeout)
	setFloat(&m.CheckInterval, defaultCheckInterval)
	setFloat(&m.PriceTolerance, defaultPriceTolerance)
	setFloat(&m.PartialFillThreshold, defaultPartialThreshold)
	setFloat(&m.MinRemainingRatio, defaultMinRemainingRatio)
	setFloat(&m.SplitThresholdUSD, defaultSplitThresholdUSD)
	setFloat(&m.SplitMinClipUSD, defaultSplitMinClipUSD)
	setFloat(&m.SplitMaxClipUSD, defaultSplitMaxClipUSD)
	if m.MaxIterations <= 0 {
		m.MaxIterations = defaultMaxIterations
	}
}

func setFloat(target *float64, def float64) {
	if *target <= 0 {
		*target = def
	}
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}
