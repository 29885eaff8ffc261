package risk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/logger"
	"hedgebot/internal/pkg/symbol"
)

// equityJumpLimit guards the daily PnL against bad equity reads: a move
// larger than this resets the day's baseline instead of alerting.
var equityJumpLimit = decimal.RequireFromString("0.5")

type Monitor struct {
	account exchange.AccountGateway
	cfg     Config
	log     logger.Entry
	nowFn   func() time.Time

	mu          sync.Mutex
	dayStart    decimal.Decimal
	dayStartKey string
}

func NewMonitor(account exchange.AccountGateway, cfg Config, log logger.Entry) *Monitor {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = symbol.DefaultQuote
	}
	return &Monitor{account: account, cfg: cfg, log: log, nowFn: time.Now}
}

// CheckAll runs every check. Failing reads become alerts, not errors.
func (m *Monitor) CheckAll(ctx context.Context, in Input) Metrics {
	now := m.nowFn()
	out := Metrics{
		FundingRates:      make(map[string]decimal.Decimal, len(in.Symbols)),
		PositionDeviation: in.PositionDeviation,
	}

	acct, err := m.account.Account(ctx)
	if err != nil {
		m.log.Errorf("risk: account read failed: %v", err)
		out.Alerts = append(out.Alerts, Alert{
			Type:      AlertAPIError,
			Level:     LevelWarning,
			Message:   fmt.Sprintf("account read failed: %v", err),
			Timestamp: now,
		})
	} else {
		ratio, alert := m.checkMargin(acct, now)
		out.MarginRatio = ratio
		if alert != nil {
			out.Alerts = append(out.Alerts, *alert)
		}
		out.TotalUnrealizedPnL = acct.TotalUnrealizedProfit
		out.Equity = in.BaseValueUSD.Add(acct.AssetWalletBalances[m.cfg.QuoteAsset]).Add(acct.TotalUnrealizedProfit)
		pnl, alert := m.checkDailyPnL(out.Equity, now)
		out.DailyPnL = pnl
		if alert != nil {
			out.Alerts = append(out.Alerts, *alert)
		}
	}

	for _, sym := range in.Symbols {
		rate, alert, err := m.checkFunding(ctx, sym, now)
		if err != nil {
			m.log.Errorf("risk: funding %s: %v", sym, err)
			continue
		}
		out.FundingRates[sym] = rate
		if alert != nil {
			out.Alerts = append(out.Alerts, *alert)
		}
	}

	if in.PositionDeviation.GreaterThan(m.cfg.MaxPositionDeviation) {
		out.Alerts = append(out.Alerts, Alert{
			Type:      AlertPositionDeviation,
			Level:     LevelWarning,
			Message:   fmt.Sprintf("hedge deviation %s", pct(in.PositionDeviation)),
			Value:     in.PositionDeviation,
			Threshold: m.cfg.MaxPositionDeviation,
			Timestamp: now,
		})
	}
	return out
}

// checkMargin compares maintenance margin with equity, where equity is the
// margin in use plus what is still available.
func (m *Monitor) checkMargin(acct exchange.AccountSummary, now time.Time) (decimal.Decimal, *Alert) {
	equity := acct.TotalInitialMargin.Add(acct.AvailableBalance)
	ratio := decimal.NewFromInt(1)
	if equity.IsPositive() {
		ratio = acct.TotalMaintMargin.Div(equity)
	}
	if ratio.GreaterThan(m.cfg.MaxMarginRatio) {
		m.log.Warnf("risk: maintenance margin ratio %s (equity $%s)", pct(ratio), equity.StringFixed(2))
		return ratio, &Alert{
			Type:      AlertMarginHigh,
			Level:     LevelCritical,
			Message:   fmt.Sprintf("maintenance margin ratio %s (equity $%s)", pct(ratio), equity.StringFixed(2)),
			Value:     ratio,
			Threshold: m.cfg.MaxMarginRatio,
			Timestamp: now,
		}
	}
	m.log.Infof("risk: margin ratio %s (equity $%s, maint $%s)", pct(ratio), equity.StringFixed(2), acct.TotalMaintMargin.StringFixed(2))
	return ratio, nil
}

// checkFunding alerts on negative funding beyond the limit: shorts pay it.
func (m *Monitor) checkFunding(ctx context.Context, symbol string, now time.Time) (decimal.Decimal, *Alert, error) {
	fr, err := m.account.FundingRate(ctx, symbol)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if fr.Rate.LessThan(m.cfg.MaxFundingRate.Neg()) {
		m.log.Warnf("risk: %s funding %s", symbol, pct(fr.Rate))
		return fr.Rate, &Alert{
			Type:      AlertFundingNegative,
			Level:     LevelWarning,
			Symbol:    symbol,
			Message:   fmt.Sprintf("%s negative funding %s", symbol, pct(fr.Rate)),
			Value:     fr.Rate,
			Threshold: m.cfg.MaxFundingRate.Neg(),
			Timestamp: now,
		}, nil
	}
	return fr.Rate, nil, nil
}

// checkDailyPnL tracks equity against the first reading of the UTC day.
func (m *Monitor) checkDailyPnL(equity decimal.Decimal, now time.Time) (decimal.Decimal, *Alert) {
	if !equity.IsPositive() {
		m.log.Warnf("risk: equity is zero, daily pnl skipped")
		return decimal.Zero, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	day := now.UTC().Format("2006-01-02")
	if m.dayStartKey != day || !m.dayStart.IsPositive() {
		m.dayStartKey = day
		m.dayStart = equity
		m.log.Infof("risk: day start equity $%s", equity.StringFixed(2))
		return decimal.Zero, nil
	}
	pnl := equity.Sub(m.dayStart)
	ratio := pnl.Div(m.dayStart)
	if ratio.Abs().GreaterThan(equityJumpLimit) {
		m.log.Warnf("risk: equity moved %s since day start ($%s -> $%s), resetting baseline",
			pct(ratio), m.dayStart.StringFixed(2), equity.StringFixed(2))
		m.dayStart = equity
		return decimal.Zero, nil
	}
	if ratio.LessThan(m.cfg.MaxDailyLoss.Neg()) {
		return pnl, &Alert{
			Type:      AlertDailyLoss,
			Level:     LevelCritical,
			Message:   fmt.Sprintf("daily loss %s ($%s)", pct(ratio), pnl.StringFixed(2)),
			Value:     ratio,
			Threshold: m.cfg.MaxDailyLoss.Neg(),
			Timestamp: now,
		}
	}
	return pnl, nil
}

// FormatAlerts renders alerts one per line with a level marker.
func FormatAlerts(alerts []Alert) string {
	if len(alerts) == 0 {
		return "no alerts"
	}
	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		icon := "ℹ️"
		switch a.Level {
		case LevelWarning:
			icon = "⚠️"
		case LevelCritical:
			icon = "🚨"
		}
		lines = append(lines, icon+" "+a.Message)
	}
	return strings.Join(lines, "\n")
}

func pct(d decimal.Decimal) string {
	return d.Shift(2).StringFixed(2) + "%"
}
