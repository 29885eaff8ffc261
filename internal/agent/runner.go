// Package agent runs one account's rebalance cycle on a schedule and keeps
// the latest snapshot for the status surface.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hedgebot/internal/executor"
	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/gateway/notifier"
	"hedgebot/internal/logger"
	"hedgebot/internal/pkg/trading"
	"hedgebot/internal/position"
	"hedgebot/internal/risk"
	"hedgebot/internal/scheduler"
	"hedgebot/internal/store"
)

const journalTimeout = 5 * time.Second

// PositionSource reads the account's hedge state.
type PositionSource interface {
	Status(ctx context.Context) (position.Status, error)
	CurrentPositions(ctx context.Context) (map[string]position.CurrentPosition, error)
	BaseBalance(ctx context.Context) (decimal.Decimal, error)
}

// Executor turns deltas into orders.
type Executor interface {
	ExecuteAll(ctx context.Context, deltas map[string]position.Delta) []executor.Result
	CloseAll(ctx context.Context, positions map[string]position.CurrentPosition) []executor.Result
	MakerEnabled() bool
}

type RiskChecker interface {
	CheckAll(ctx context.Context, in risk.Input) risk.Metrics
}

type Schedule struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool
}

type RunnerParams struct {
	Name      string
	Account   exchange.AccountGateway
	Positions PositionSource
	Executor  Executor
	Risk      RiskChecker
	Journal   store.Journal
	Notifier  notifier.TextNotifier
	Symbols   trading.Registry
	Leverage  int
	Schedule  Schedule
}

// Runner owns one account. Cycles never overlap: a manual trigger waits for
// a scheduled cycle to finish.
type Runner struct {
	name     string
	account  exchange.AccountGateway
	risk     RiskChecker
	journal  store.Journal
	notifier notifier.TextNotifier
	symbols  trading.Registry
	leverage int
	schedule Schedule
	log      logger.Entry
	nowFn    func() time.Time
	newID    func() string

	cycleMu sync.Mutex

	mu        sync.RWMutex
	positions PositionSource
	exec      Executor
	snapshot  Snapshot
}

func NewRunner(p RunnerParams) (*Runner, error) {
	if p.Account == nil || p.Positions == nil || p.Executor == nil || p.Risk == nil {
		return nil, fmt.Errorf("%w: runner %s is missing a dependency", exchange.ErrConfiguration, p.Name)
	}
	if p.Journal == nil {
		p.Journal = store.Nop{}
	}
	if p.Notifier == nil {
		p.Notifier = notifier.Noop{}
	}
	if p.Leverage <= 0 {
		p.Leverage = 1
	}
	return &Runner{
		name:      p.Name,
		account:   p.Account,
		risk:      p.Risk,
		journal:   p.Journal,
		notifier:  p.Notifier,
		symbols:   p.Symbols,
		leverage:  p.Leverage,
		schedule:  p.Schedule,
		log:       logger.With("account", p.Name),
		nowFn:     time.Now,
		newID:     uuid.NewString,
		positions: p.Positions,
		exec:      p.Executor,
		snapshot:  Snapshot{Account: p.Name},
	}, nil
}

func (r *Runner) Name() string { return r.name }

// Reconfigure swaps the execution and position components. The running
// cycle keeps the ones it started with.
func (r *Runner) Reconfigure(positions PositionSource, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if positions != nil {
		r.positions = positions
	}
	if exec != nil {
		r.exec = exec
	}
	r.log.Infof("runner reconfigured (maker=%v)", r.exec.MakerEnabled())
}

func (r *Runner) components() (PositionSource, Executor) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.positions, r.exec
}

// pairs lists the exchange pairs this account trades, sorted.
func (r *Runner) pairs() []string {
	out := make([]string, 0, len(r.symbols))
	for _, spec := range r.symbols {
		out = append(out, spec.Pair)
	}
	sort.Strings(out)
	return out
}

// Initialize sets leverage on every pair and logs the starting balance.
// Leverage failures are logged; the account may already be configured.
func (r *Runner) Initialize(ctx context.Context) error {
	r.log.Infof("initializing (leverage %dx)", r.leverage)
	for _, pair := range r.pairs() {
		if err := r.account.SetLeverage(ctx, pair, r.leverage); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.log.Warnf("set leverage %s failed: %v", pair, err)
			continue
		}
		r.log.Infof("leverage %s set to %dx", pair, r.leverage)
	}
	positions, _ := r.components()
	balance, err := positions.BaseBalance(ctx)
	if err != nil {
		return fmt.Errorf("initial balance: %w", err)
	}
	r.log.Infof("base balance %s", balance)
	r.mu.Lock()
	r.snapshot.BaseBalance = balance
	r.mu.Unlock()
	return nil
}

// Run initializes, then cycles on the schedule until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Initialize(ctx); err != nil {
		return err
	}
	sched := scheduler.NewAlignedScheduler(r.name, r.schedule.Interval, r.schedule.Offset)
	sched.RunImmediately = r.schedule.RunImmediately
	r.setRunning(true)
	defer r.setRunning(false)
	sched.Start(ctx, func(ctx context.Context) {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Errorf("cycle failed: %v", err)
		}
	})
	return nil
}

func (r *Runner) setRunning(v bool) {
	r.mu.Lock()
	r.snapshot.Running = v
	r.mu.Unlock()
}

// RunOnce performs one cycle: read status, execute the significant deltas,
// check risk, journal and notify.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	positions, exec := r.components()
	rep := Report{ID: r.newID(), Account: r.name, StartedAt: r.nowFn()}
	log := r.log.With("cycle", rep.ID)
	log.Infof("rebalance check started")

	status, err := positions.Status(ctx)
	if err != nil {
		rep.FinishedAt = r.nowFn()
		rep.Err = err
		r.finish(ctx, rep)
		return rep, fmt.Errorf("hedge status: %w", err)
	}
	rep.Status = status
	if !status.BaseBalance.IsPositive() {
		log.Warnf("base balance is zero, skipping rebalance")
		rep.FinishedAt = r.nowFn()
		r.finish(ctx, rep)
		return rep, nil
	}
	log.Infof("base %s ($%s), hedge ratio %s",
		status.BaseBalance, status.BaseValueUSD.StringFixed(2), pct(status.HedgeRatio))

	if status.NeedsRebalance() {
		log.Infof("%d symbol(s) need rebalancing", len(status.Rebalance))
		rep.Results = exec.ExecuteAll(ctx, status.Rebalance)
		rep.Mode = executor.ModeMarket
		if exec.MakerEnabled() {
			rep.Mode = executor.ModeMaker
		}
		if failed := rep.Failed(); failed > 0 {
			log.Warnf("%d execution(s) failed", failed)
		}
	} else {
		log.Infof("deviation within threshold, nothing to do")
	}

	rep.Metrics = r.risk.CheckAll(ctx, risk.Input{
		Symbols:           r.pairs(),
		BaseValueUSD:      status.BaseValueUSD,
		PositionDeviation: deviation(status),
	})
	for _, a := range rep.Metrics.Alerts {
		log.Warnf("risk alert [%s] %s: %s", a.Level, a.Type, a.Message)
		if a.Level == risk.LevelCritical && a.Type == risk.AlertMarginHigh {
			log.Errorf("margin ratio critical, manual intervention advised")
		}
	}
	rep.FinishedAt = r.nowFn()
	r.finish(ctx, rep)
	return rep, nil
}

// CloseAll buys back every short on the account with market orders.
func (r *Runner) CloseAll(ctx context.Context) (Report, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	positions, exec := r.components()
	rep := Report{ID: r.newID(), Account: r.name, StartedAt: r.nowFn(), Mode: executor.ModeMarket, CloseAll: true}
	r.log.Warnf("close all requested (cycle %s)", rep.ID)
	current, err := positions.CurrentPositions(ctx)
	if err != nil {
		rep.Err = err
		rep.FinishedAt = r.nowFn()
		r.finish(ctx, rep)
		return rep, fmt.Errorf("positions: %w", err)
	}
	rep.Results = exec.CloseAll(ctx, current)
	rep.FinishedAt = r.nowFn()
	r.finish(ctx, rep)
	return rep, nil
}

// finish journals, notifies and publishes the report. Both survive ctx
// cancellation so an interrupted cycle is still recorded.
func (r *Runner) finish(ctx context.Context, rep Report) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if err := r.journal.RecordCycle(bg, rep.Record()); err != nil {
		r.log.Errorf("journal cycle %s failed: %v", rep.ID, err)
	}
	if rep.Notable() {
		if err := r.notifier.SendText(bg, rep.Message().RenderMarkdown()); err != nil {
			r.log.Warnf("notify failed: %v", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := &r.snapshot
	s.LastCycleID = rep.ID
	s.LastRun = rep.FinishedAt
	s.LastError = ""
	if rep.Err != nil {
		s.LastError = rep.Err.Error()
		return
	}
	if !rep.CloseAll {
		s.Status = rep.Status
		s.BaseBalance = rep.Status.BaseBalance
		s.Metrics = rep.Metrics
	}
	if len(rep.Results) > 0 {
		s.RebalanceCount++
		s.LastResults = rep.Results
	}
}

// Snapshot returns the state after the last cycle.
func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.snapshot
	s.LastResults = append([]executor.Result(nil), r.snapshot.LastResults...)
	return s
}

// deviation is |1 - current/target| over total USD value.
func deviation(st position.Status) decimal.Decimal {
	if !st.TotalTargetUSD.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Sub(st.TotalCurrentUSD.Div(st.TotalTargetUSD)).Abs()
}

func pct(d decimal.Decimal) string {
	return d.Shift(2).StringFixed(2) + "%"
}
