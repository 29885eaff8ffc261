package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hedgebot/internal/executor"
	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/pkg/trading"
	"hedgebot/internal/position"
	"hedgebot/internal/risk"
	"hedgebot/internal/store"
)

type mockAccount struct {
	mock.Mock
}

func (m *mockAccount) Balances(ctx context.Context) ([]exchange.Balance, error) {
	args := m.Called(ctx)
	return args.Get(0).([]exchange.Balance), args.Error(1)
}

func (m *mockAccount) Positions(ctx context.Context) ([]exchange.Position, error) {
	args := m.Called(ctx)
	return args.Get(0).([]exchange.Position), args.Error(1)
}

func (m *mockAccount) Account(ctx context.Context) (exchange.AccountSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(exchange.AccountSummary), args.Error(1)
}

func (m *mockAccount) FundingRate(ctx context.Context, symbol string) (exchange.FundingRate, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(exchange.FundingRate), args.Error(1)
}

func (m *mockAccount) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockAccount) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return m.Called(ctx, symbol, leverage).Error(0)
}

type mockPositions struct {
	mock.Mock
}

func (m *mockPositions) Status(ctx context.Context) (position.Status, error) {
	args := m.Called(ctx)
	return args.Get(0).(position.Status), args.Error(1)
}

func (m *mockPositions) CurrentPositions(ctx context.Context) (map[string]position.CurrentPosition, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]position.CurrentPosition), args.Error(1)
}

func (m *mockPositions) BaseBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockExecutor struct {
	mock.Mock
	maker bool
}

func (m *mockExecutor) ExecuteAll(ctx context.Context, deltas map[string]position.Delta) []executor.Result {
	return m.Called(ctx, deltas).Get(0).([]executor.Result)
}

func (m *mockExecutor) CloseAll(ctx context.Context, positions map[string]position.CurrentPosition) []executor.Result {
	return m.Called(ctx, positions).Get(0).([]executor.Result)
}

func (m *mockExecutor) MakerEnabled() bool { return m.maker }

type mockRisk struct {
	mock.Mock
}

func (m *mockRisk) CheckAll(ctx context.Context, in risk.Input) risk.Metrics {
	return m.Called(ctx, in).Get(0).(risk.Metrics)
}

type mockJournal struct {
	mock.Mock
	store.Nop
}

func (m *mockJournal) RecordCycle(ctx context.Context, rec store.CycleRecord) error {
	return m.Called(ctx, rec).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	account   *mockAccount
	positions *mockPositions
	exec      *mockExecutor
	risk      *mockRisk
	journal   *mockJournal
	notifier  *mockNotifier
	runner    *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		account:   new(mockAccount),
		positions: new(mockPositions),
		exec:      &mockExecutor{maker: true},
		risk:      new(mockRisk),
		journal:   new(mockJournal),
		notifier:  new(mockNotifier),
	}
	r, err := NewRunner(RunnerParams{
		Name:      "main",
		Account:   f.account,
		Positions: f.positions,
		Executor:  f.exec,
		Risk:      f.risk,
		Journal:   f.journal,
		Notifier:  f.notifier,
		Symbols: trading.Registry{
			"SOL": {Base: "SOL", Pair: "SOLUSDT", PricePrecision: 2, QuantityPrecision: 2, MinOrderSize: dec("0.01")},
			"ETH": {Base: "ETH", Pair: "ETHUSDT", PricePrecision: 2, QuantityPrecision: 3, MinOrderSize: dec("0.001")},
		},
		Leverage: 2,
		Schedule: Schedule{Interval: time.Hour},
	})
	require.NoError(t, err)
	r.newID = func() string { return "cycle-1" }
	f.runner = r
	return f
}

func hedgeStatus() position.Status {
	sol := position.Delta{Symbol: "SOL", Target: dec("10"), Current: dec("8"), Delta: dec("2"), DeltaValueUSD: dec("200")}
	return position.Status{
		BaseBalance:     dec("1000"),
		BaseValueUSD:    dec("4000"),
		TotalTargetUSD:  dec("1000"),
		TotalCurrentUSD: dec("800"),
		HedgeRatio:      dec("0.8"),
		Deltas:          map[string]position.Delta{"SOL": sol},
		Rebalance:       map[string]position.Delta{"SOL": sol},
	}
}

func TestRunOnceExecutesAndRecords(t *testing.T) {
	f := newFixture(t)
	st := hedgeStatus()
	f.positions.On("Status", mock.Anything).Return(st, nil).Once()
	f.exec.On("ExecuteAll", mock.Anything, st.Rebalance).Return([]executor.Result{
		{Symbol: "SOL", Side: exchange.SideSell, Mode: executor.ModeMaker, Outcome: executor.OutcomeSuccess,
			TargetQuantity: dec("2"), FilledQuantity: dec("2"), AveragePrice: dec("100")},
	}).Once()
	f.risk.On("CheckAll", mock.Anything, mock.MatchedBy(func(in risk.Input) bool {
		return in.PositionDeviation.Equal(dec("0.2")) &&
			in.BaseValueUSD.Equal(dec("4000")) &&
			assert.ObjectsAreEqual([]string{"ETHUSDT", "SOLUSDT"}, in.Symbols)
	})).Return(risk.Metrics{}).Once()
	f.journal.On("RecordCycle", mock.Anything, mock.MatchedBy(func(rec store.CycleRecord) bool {
		return rec.ID == "cycle-1" && rec.Account == "main" && len(rec.Executions) == 1 &&
			rec.Executions[0].Outcome == "SUCCESS" && rec.HedgeRatio == "0.8000"
	})).Return(nil).Once()
	f.notifier.On("SendText", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "SOL SELL 2/2 (100.0%) SUCCESS @ 100.0000") && strings.Contains(text, "Orders (maker) · 1")
	})).Return(nil).Once()

	rep, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, executor.ModeMaker, rep.Mode)
	assert.Equal(t, 0, rep.Failed())

	snap := f.runner.Snapshot()
	assert.Equal(t, "cycle-1", snap.LastCycleID)
	assert.Equal(t, 1, snap.RebalanceCount)
	assert.True(t, snap.BaseBalance.Equal(dec("1000")))
	require.Len(t, snap.LastResults, 1)

	f.exec.AssertExpectations(t)
	f.journal.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestRunOnceWithinThresholdStaysQuiet(t *testing.T) {
	f := newFixture(t)
	st := hedgeStatus()
	st.Rebalance = map[string]position.Delta{}
	f.positions.On("Status", mock.Anything).Return(st, nil)
	f.risk.On("CheckAll", mock.Anything, mock.Anything).Return(risk.Metrics{})
	f.journal.On("RecordCycle", mock.Anything, mock.Anything).Return(nil)

	_, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	f.exec.AssertNotCalled(t, "ExecuteAll", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything)
	assert.Equal(t, 0, f.runner.Snapshot().RebalanceCount)
}

func TestRunOnceNotifiesRiskAlerts(t *testing.T) {
	f := newFixture(t)
	st := hedgeStatus()
	st.Rebalance = nil
	f.positions.On("Status", mock.Anything).Return(st, nil)
	f.risk.On("CheckAll", mock.Anything, mock.Anything).Return(risk.Metrics{Alerts: []risk.Alert{
		{Type: risk.AlertMarginHigh, Level: risk.LevelCritical, Message: "maintenance margin ratio 60.00%"},
	}})
	f.journal.On("RecordCycle", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	f.notifier.On("SendText", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.HasPrefix(text, "🚨") && strings.Contains(text, "[CRIT] maintenance margin ratio 60.00%")
	})).Return(nil).Once()

	_, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	f.notifier.AssertExpectations(t)
	assert.True(t, f.runner.Snapshot().Metrics.HasCritical())
}

func TestRunOnceStatusFailure(t *testing.T) {
	f := newFixture(t)
	f.positions.On("Status", mock.Anything).Return(position.Status{}, errors.New("hedge api down"))
	f.journal.On("RecordCycle", mock.Anything, mock.MatchedBy(func(rec store.CycleRecord) bool {
		return rec.Error == "hedge api down"
	})).Return(nil).Once()
	f.notifier.On("SendText", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Rebalance failed")
	})).Return(nil).Once()

	_, err := f.runner.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, "hedge api down", f.runner.Snapshot().LastError)
	f.risk.AssertNotCalled(t, "CheckAll", mock.Anything, mock.Anything)
	f.journal.AssertExpectations(t)
}

func TestRunOnceSkipsZeroBalance(t *testing.T) {
	f := newFixture(t)
	f.positions.On("Status", mock.Anything).Return(position.Status{BaseBalance: decimal.Zero}, nil)
	f.journal.On("RecordCycle", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	f.exec.AssertNotCalled(t, "ExecuteAll", mock.Anything, mock.Anything)
	f.risk.AssertNotCalled(t, "CheckAll", mock.Anything, mock.Anything)
}

func TestInitializeSetsLeverageAndTolerates(t *testing.T) {
	f := newFixture(t)
	f.account.On("SetLeverage", mock.Anything, "ETHUSDT", 2).Return(errors.New("no change")).Once()
	f.account.On("SetLeverage", mock.Anything, "SOLUSDT", 2).Return(nil).Once()
	f.positions.On("BaseBalance", mock.Anything).Return(dec("12.5"), nil).Once()

	require.NoError(t, f.runner.Initialize(context.Background()))
	f.account.AssertExpectations(t)
	assert.True(t, f.runner.Snapshot().BaseBalance.Equal(dec("12.5")))
}

func TestCloseAllUsesExecutor(t *testing.T) {
	f := newFixture(t)
	current := map[string]position.CurrentPosition{"SOL": {Symbol: "SOL", Quantity: dec("-3")}}
	f.positions.On("CurrentPositions", mock.Anything).Return(current, nil)
	f.exec.On("CloseAll", mock.Anything, current).Return([]executor.Result{
		{Symbol: "SOL", Side: exchange.SideBuy, Mode: executor.ModeMarket, Outcome: executor.OutcomeSuccess,
			TargetQuantity: dec("3"), FilledQuantity: dec("3"), AveragePrice: dec("101")},
	}).Once()
	f.journal.On("RecordCycle", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("SendText", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Close all")
	})).Return(nil).Once()

	rep, err := f.runner.CloseAll(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.CloseAll)
	f.exec.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestReconfigureSwapsExecutor(t *testing.T) {
	f := newFixture(t)
	next := &mockExecutor{maker: false}
	f.runner.Reconfigure(nil, next)

	st := hedgeStatus()
	f.positions.On("Status", mock.Anything).Return(st, nil)
	next.On("ExecuteAll", mock.Anything, st.Rebalance).Return([]executor.Result{}).Once()
	f.risk.On("CheckAll", mock.Anything, mock.Anything).Return(risk.Metrics{})
	f.journal.On("RecordCycle", mock.Anything, mock.Anything).Return(nil)

	rep, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, executor.ModeMarket, rep.Mode)
	next.AssertExpectations(t)
	f.exec.AssertNotCalled(t, "ExecuteAll", mock.Anything, mock.Anything)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.runner.schedule.RunImmediately = true
	f.account.On("SetLeverage", mock.Anything, mock.Anything, 2).Return(nil)
	f.positions.On("BaseBalance", mock.Anything).Return(dec("1"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	f.positions.On("Status", mock.Anything).Run(func(mock.Arguments) { cancel() }).
		Return(position.Status{}, context.Canceled).Once()
	f.journal.On("RecordCycle", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("SendText", mock.Anything, mock.Anything).Return(nil)

	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.False(t, f.runner.Snapshot().Running)
}

func TestNewRunnerRequiresDependencies(t *testing.T) {
	_, err := NewRunner(RunnerParams{Name: "x"})
	assert.ErrorIs(t, err, exchange.ErrConfiguration)
}
