package position

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/logger"
	"hedgebot/internal/pkg/trading"
)

// TargetSource supplies the desired short per symbol for a given holding of
// the base asset.
type TargetSource interface {
	Targets(ctx context.Context, baseAmount decimal.Decimal) (map[string]TargetPosition, error)
}

// Manager assembles a hedge Status from the account and the target source.
type Manager struct {
	account   exchange.AccountGateway
	targets   TargetSource
	calc      *Calculator
	symbols   trading.Registry
	baseAsset string
	log       logger.Entry
	nowFn     func() time.Time
}

func NewManager(account exchange.AccountGateway, targets TargetSource, calc *Calculator, symbols trading.Registry, baseAsset string, log logger.Entry) *Manager {
	return &Manager{
		account:   account,
		targets:   targets,
		calc:      calc,
		symbols:   symbols,
		baseAsset: strings.ToUpper(strings.TrimSpace(baseAsset)),
		log:       log,
		nowFn:     time.Now,
	}
}

// BaseBalance is the account's holding of the hedged asset. Missing means 0.
func (m *Manager) BaseBalance(ctx context.Context) (decimal.Decimal, error) {
	balances, err := m.account.Balances(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balances: %w", err)
	}
	for _, b := range balances {
		if strings.EqualFold(b.Asset, m.baseAsset) {
			m.log.Infof("%s balance: %s", m.baseAsset, b.Balance)
			return b.Balance, nil
		}
	}
	m.log.Warnf("%s balance not found", m.baseAsset)
	return decimal.Zero, nil
}

// CurrentPositions returns open positions keyed by base asset, restricted to
// configured symbols.
func (m *Manager) CurrentPositions(ctx context.Context) (map[string]CurrentPosition, error) {
	positions, err := m.account.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	byPair := make(map[string]string, len(m.symbols))
	for base, spec := range m.symbols {
		byPair[spec.Pair] = base
	}
	out := make(map[string]CurrentPosition)
	for _, p := range positions {
		base, ok := byPair[p.Symbol]
		if !ok {
			continue
		}
		cur := out[base]
		cur.Symbol = base
		cur.Quantity = cur.Quantity.Add(p.Quantity)
		cur.MarkPrice = p.MarkPrice
		cur.EntryPrice = p.EntryPrice
		cur.UnrealizedPnL = cur.UnrealizedPnL.Add(p.UnrealizedPnL)
		out[base] = cur
	}
	return out, nil
}

// Status runs one full read: base balance, targets, positions, deltas.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	st := Status{Timestamp: m.nowFn()}

	base, err := m.BaseBalance(ctx)
	if err != nil {
		return st, err
	}
	st.BaseBalance = base

	targets := map[string]TargetPosition{}
	if base.IsPositive() {
		targets, err = m.targets.Targets(ctx, base)
		if err != nil {
			return st, fmt.Errorf("targets: %w", err)
		}
	} else {
		m.log.Warnf("%s balance is zero, nothing to hedge", m.baseAsset)
	}
	st.Targets = targets

	currents, err := m.CurrentPositions(ctx)
	if err != nil {
		return st, err
	}
	st.Currents = currents

	st.Deltas = m.calc.Calculate(targets, currents)
	st.Rebalance = m.calc.FilterSignificant(st.Deltas, targets)

	totalTarget, totalWeight := decimal.Zero, decimal.Zero
	for _, t := range targets {
		totalTarget = totalTarget.Add(t.ValueUSD)
		totalWeight = totalWeight.Add(t.Weight)
	}
	totalCurrent := decimal.Zero
	for _, c := range currents {
		totalCurrent = totalCurrent.Add(c.Size().Mul(c.MarkPrice))
	}
	st.TotalTargetUSD = totalTarget
	st.TotalCurrentUSD = totalCurrent
	// targets are weight x holding value, so the holding value falls out of
	// the totals
	if totalWeight.IsPositive() {
		st.BaseValueUSD = totalTarget.Div(totalWeight)
	}
	if totalTarget.IsPositive() {
		st.HedgeRatio = totalCurrent.Div(totalTarget)
	}
	return st, nil
}
