package config

import (
	"fmt"
	"strings"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/scheduler"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", exchange.ErrConfiguration, fmt.Sprintf(format, args...))
}

func validate(c *Config) error {
	if err := c.Hedge.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if c.Store.Enabled && strings.TrimSpace(c.Store.Path) == "" {
		return invalid("store.path cannot be empty when store is enabled")
	}
	for base, sym := range c.Symbols {
		if err := sym.validate(base); err != nil {
			return err
		}
	}
	if len(c.EnabledAccounts()) == 0 {
		return invalid("accounts requires at least one enabled account")
	}
	seen := make(map[string]bool, len(c.Accounts))
	for _, acc := range c.Accounts {
		key := strings.ToLower(acc.Name)
		if seen[key] {
			return invalid("accounts contains duplicate name %q", acc.Name)
		}
		seen[key] = true
		if !acc.IsEnabled() {
			continue
		}
		if err := acc.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (h *HedgeConfig) validate() error {
	if strings.TrimSpace(h.APIURL) == "" {
		return invalid("hedge.api_url cannot be empty")
	}
	if _, ok := scheduler.ParseIntervalDuration(h.RebalanceInterval); !ok {
		return invalid("hedge.rebalance_interval %q is not a valid interval", h.RebalanceInterval)
	}
	if h.RebalanceThreshold <= 0 || h.RebalanceThreshold >= 1 {
		return invalid("hedge.rebalance_threshold must be within (0,1)")
	}
	if h.RebalanceOffset < 0 {
		return invalid("hedge.rebalance_offset_seconds must be >= 0")
	}
	if h.Retries < 0 {
		return invalid("hedge.retries must be >= 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	checks := []struct {
		key string
		val float64
	}{
		{"risk.max_funding_rate", r.MaxFundingRate},
		{"risk.max_margin_ratio", r.MaxMarginRatio},
		{"risk.max_daily_loss", r.MaxDailyLoss},
		{"risk.max_position_deviation", r.MaxPositionDeviation},
	}
	for _, c := range checks {
		if c.val < 0 || c.val > 1 {
			return invalid("%s must be within [0,1]", c.key)
		}
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return invalid("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func (s SymbolConfig) validate(base string) error {
	if s.PricePrecision < 0 || s.QuantityPrecision < 0 {
		return invalid("symbols.%s precision must be >= 0", base)
	}
	if s.MinOrderSize <= 0 {
		return invalid("symbols.%s.min_order_size must be > 0", base)
	}
	return nil
}

func (a AccountConfig) validate() error {
	if strings.TrimSpace(a.APIKey) == "" || strings.TrimSpace(a.APISecret) == "" {
		return invalid("account %s requires api_key and api_secret", a.Name)
	}
	t := a.Trading
	if t.Leverage < 1 || t.Leverage > 125 {
		return invalid("account %s: trading.leverage must be within [1,125]", a.Name)
	}
	if t.Slippage >= 0.1 {
		return invalid("account %s: trading.slippage must be < 0.1", a.Name)
	}
	m := t.MakerOrder
	if m.TotalTimeout < m.OrderTimeout {
		return invalid("account %s: maker_order.total_timeout must be >= order_timeout", a.Name)
	}
	if m.CheckInterval > m.OrderTimeout {
		return invalid("account %s: maker_order.check_interval must be <= order_timeout", a.Name)
	}
	if m.PartialFillThreshold > 1 {
		return invalid("account %s: maker_order.partial_fill_threshold must be <= 1", a.Name)
	}
	if m.MinRemainingRatio >= 1 {
		return invalid("account %s: maker_order.min_remaining_ratio must be < 1", a.Name)
	}
	if m.SplitMinClipUSD > m.SplitMaxClipUSD {
		return invalid("account %s: maker_order.split_min_clip_usd must be <= split_max_clip_usd", a.Name)
	}
	return nil
}
