package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"hedgebot/internal/agent"
	"hedgebot/internal/config"
	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/logger"
	"hedgebot/internal/position"
	"hedgebot/internal/store"
	livehttp "hedgebot/internal/transport/http/live"
)

// App wires one runner per enabled account, the status server and the
// execution journal, and runs them until the context ends.
type App struct {
	cfg       *config.Config
	accounts  []*accountStack
	liveHTTP  *livehttp.Server
	journal   store.Journal
	watcher   *config.Watcher
	targetsFn func(config.HedgeConfig) (position.TargetSource, error)
	closeOnce sync.Once
	Summary   *StartupSummary
}

// NewApp builds the application from cfg without starting it. A non-empty
// path enables hot reload of the file the config came from.
func NewApp(cfg *config.Config, path string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, path)
}

// Run starts every account runner and the status server.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if len(a.accounts) == 0 {
		return fmt.Errorf("no enabled accounts")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)
	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	for _, st := range a.accounts {
		runner := st.runner
		group.Go(func() error {
			if err := runner.Run(ctx); err != nil {
				return fmt.Errorf("account %s: %w", runner.Name(), err)
			}
			return nil
		})
	}
	return group.Wait()
}

// RunOnce performs a single rebalance cycle on every account, one after
// another. Failures are collected; the remaining accounts still run.
func (a *App) RunOnce(ctx context.Context) ([]agent.Report, error) {
	defer a.Close()
	var (
		reports []agent.Report
		errs    []string
	)
	for _, st := range a.accounts {
		if err := st.runner.Initialize(ctx); err != nil {
			return reports, err
		}
		rep, err := st.runner.RunOnce(ctx)
		reports = append(reports, rep)
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return reports, fmt.Errorf("rebalance failed: %s", strings.Join(errs, "; "))
	}
	return reports, nil
}

// CloseAll flattens every position on the named account.
func (a *App) CloseAll(ctx context.Context, name string) (agent.Report, error) {
	defer a.Close()
	st := a.account(name)
	if st == nil {
		return agent.Report{}, fmt.Errorf("%w: unknown account %q", exchange.ErrConfiguration, name)
	}
	return st.runner.CloseAll(ctx)
}

// Runner returns the runner for an account name, case-insensitively.
func (a *App) Runner(name string) *agent.Runner {
	if st := a.account(name); st != nil {
		return st.runner
	}
	return nil
}

func (a *App) account(name string) *accountStack {
	for _, st := range a.accounts {
		if strings.EqualFold(st.name, strings.TrimSpace(name)) {
			return st
		}
	}
	return nil
}

// Close releases the journal. Safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.journal == nil {
			return
		}
		if err := a.journal.Close(); err != nil {
			logger.Warnf("close journal: %v", err)
		}
	})
}

// applyConfig rebuilds execution components after the config file changed.
// Gateways, credentials and the schedule stay as they were at startup.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	targets, err := a.targetsFn(cfg.Hedge)
	if err != nil {
		logger.Warnf("config reload ignored: hedge api: %v", err)
		return
	}
	registry := registryFromConfig(cfg.Symbols)
	for _, st := range a.accounts {
		acc, ok := cfg.Account(st.name)
		if !ok || !acc.IsEnabled() {
			logger.Warnf("config reload: account %s removed or disabled, restart to apply", st.name)
			continue
		}
		positions, exec := buildExecution(cfg, acc, st.gateway, targets, registry)
		st.runner.Reconfigure(positions, exec)
		logger.Infof("config reloaded for account %s (maker=%t)", st.name, exec.MakerEnabled())
	}
	a.cfg = cfg
}
