package config

import "strings"

// Config is the root of hedgebot's configuration.
type Config struct {
	App      AppConfig               `toml:"app" yaml:"app"`
	Exchange ExchangeConfig          `toml:"exchange" yaml:"exchange"`
	Hedge    HedgeConfig             `toml:"hedge" yaml:"hedge"`
	Risk     RiskConfig              `toml:"risk" yaml:"risk"`
	Notify   NotifyConfig            `toml:"notify" yaml:"notify"`
	Store    StoreConfig             `toml:"store" yaml:"store"`
	Symbols  map[string]SymbolConfig `toml:"symbols" yaml:"symbols"`
	Accounts []AccountConfig         `toml:"accounts" yaml:"accounts"`
}

type AppConfig struct {
	Env      string `toml:"env" yaml:"env"`
	LogLevel string `toml:"log_level" yaml:"log_level"`
	HTTPAddr string `toml:"http_addr" yaml:"http_addr"`
	LogPath  string `toml:"log_path" yaml:"log_path"`
	// HTTPControl enables the trading endpoints of the status server.
	HTTPControl bool `toml:"http_control" yaml:"http_control"`
}

type ExchangeConfig struct {
	BaseURL            string `toml:"base_url" yaml:"base_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds" yaml:"http_timeout_seconds"`
	RecvWindowMS       int    `toml:"recv_window" yaml:"recv_window"`
	ProxyEnabled       bool   `toml:"proxy_enabled" yaml:"proxy_enabled"`
	ProxyURL           string `toml:"proxy_url" yaml:"proxy_url"`
}

// HedgeConfig controls where targets come from and how often to rebalance.
type HedgeConfig struct {
	APIURL             string  `toml:"api_url" yaml:"api_url"`
	LicenseKey         string  `toml:"license_key" yaml:"license_key"`
	BaseAsset          string  `toml:"base_asset" yaml:"base_asset"`
	RebalanceInterval  string  `toml:"rebalance_interval" yaml:"rebalance_interval"`
	RebalanceOffset    int     `toml:"rebalance_offset_seconds" yaml:"rebalance_offset_seconds"`
	RunImmediately     bool    `toml:"run_immediately" yaml:"run_immediately"`
	RebalanceThreshold float64 `toml:"rebalance_threshold" yaml:"rebalance_threshold"`
	TimeoutSeconds     int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Retries            int     `toml:"retries" yaml:"retries"`
	RetryDelaySeconds  int     `toml:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

type RiskConfig struct {
	MaxFundingRate       float64 `toml:"max_funding_rate" yaml:"max_funding_rate"`
	MaxMarginRatio       float64 `toml:"max_margin_ratio" yaml:"max_margin_ratio"`
	MaxDailyLoss         float64 `toml:"max_daily_loss" yaml:"max_daily_loss"`
	MaxPositionDeviation float64 `toml:"max_position_deviation" yaml:"max_position_deviation"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram" yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	BotToken string `toml:"bot_token" yaml:"bot_token"`
	ChatID   string `toml:"chat_id" yaml:"chat_id"`
}

type StoreConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// SymbolConfig is keyed by base asset (SOL, ETH, ...).
type SymbolConfig struct {
	Pair              string  `toml:"pair" yaml:"pair"`
	PricePrecision    int     `toml:"price_precision" yaml:"price_precision"`
	QuantityPrecision int     `toml:"quantity_precision" yaml:"quantity_precision"`
	MinOrderSize      float64 `toml:"min_order_size" yaml:"min_order_size"`
}

type AccountConfig struct {
	Name      string        `toml:"name" yaml:"name"`
	Enabled   *bool         `toml:"enabled" yaml:"enabled,omitempty"`
	APIKey    string        `toml:"api_key" yaml:"api_key"`
	APISecret string        `toml:"api_secret" yaml:"api_secret"`
	Trading   TradingConfig `toml:"trading" yaml:"trading"`
}

// IsEnabled treats a missing flag as enabled.
func (a AccountConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

type TradingConfig struct {
	Leverage       int              `toml:"leverage" yaml:"leverage"`
	Slippage       float64          `toml:"slippage" yaml:"slippage"`
	UseMarketOrder bool             `toml:"use_market_order" yaml:"use_market_order"`
	MakerOrder     MakerOrderConfig `toml:"maker_order" yaml:"maker_order"`
}

// MakerOrderConfig times are in seconds. Pointer flags default to true.
type MakerOrderConfig struct {
	Enabled              *bool   `toml:"enabled" yaml:"enabled,omitempty"`
	OrderTimeout         float64 `toml:"order_timeout" yaml:"order_timeout"`
	TotalTimeout         float64 `toml:"total_timeout" yaml:"total_timeout"`
	CheckInterval        float64 `toml:"check_interval" yaml:"check_interval"`
	PriceTolerance       float64 `toml:"price_tolerance" yaml:"price_tolerance"`
	MaxIterations        int     `toml:"max_iterations" yaml:"max_iterations"`
	PartialFillThreshold float64 `toml:"partial_fill_threshold" yaml:"partial_fill_threshold"`
	MinRemainingRatio    float64 `toml:"min_remaining_ratio" yaml:"min_remaining_ratio"`
	SplitEnabled         *bool   `toml:"split_enabled" yaml:"split_enabled,omitempty"`
	SplitThresholdUSD    float64 `toml:"split_threshold_usd" yaml:"split_threshold_usd"`
	SplitMinClipUSD      float64 `toml:"split_min_clip_usd" yaml:"split_min_clip_usd"`
	SplitMaxClipUSD      float64 `toml:"split_max_clip_usd" yaml:"split_max_clip_usd"`
	SplitRandomize       *bool   `toml:"split_randomize" yaml:"split_randomize,omitempty"`
}

func (m MakerOrderConfig) IsEnabled() bool      { return flag(m.Enabled) }
func (m MakerOrderConfig) IsSplitEnabled() bool { return flag(m.SplitEnabled) }
func (m MakerOrderConfig) IsRandomized() bool   { return flag(m.SplitRandomize) }

func flag(b *bool) bool { return b == nil || *b }

// EnabledAccounts returns the accounts that should run.
func (c *Config) EnabledAccounts() []AccountConfig {
	out := make([]AccountConfig, 0, len(c.Accounts))
	for _, acc := range c.Accounts {
		if acc.IsEnabled() {
			out = append(out, acc)
		}
	}
	return out
}

// Account finds an account by name, case-insensitively.
func (c *Config) Account(name string) (AccountConfig, bool) {
	for _, acc := range c.Accounts {
		if strings.EqualFold(acc.Name, name) {
			return acc, true
		}
	}
	return AccountConfig{}, false
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
