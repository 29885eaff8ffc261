package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/agent"
	"hedgebot/internal/config"
	"hedgebot/internal/executor"
	"hedgebot/internal/gateway/aster"
	"hedgebot/internal/gateway/exchange"
	"hedgebot/internal/gateway/hedgeapi"
	"hedgebot/internal/gateway/notifier"
	"hedgebot/internal/logger"
	"hedgebot/internal/pkg/trading"
	"hedgebot/internal/position"
	"hedgebot/internal/risk"
	"hedgebot/internal/scheduler"
	"hedgebot/internal/store"
	"hedgebot/internal/store/gormstore"
	livehttp "hedgebot/internal/transport/http/live"
)

// AppBuilder assembles the App. The *Fn hooks let tests swap the outer
// collaborators for fakes.
type AppBuilder struct {
	cfg     *config.Config
	cfgPath string

	gatewayFn  func(config.ExchangeConfig, config.AccountConfig) (exchange.Gateway, error)
	targetsFn  func(config.HedgeConfig) (position.TargetSource, error)
	journalFn  func(config.StoreConfig) (store.Journal, error)
	notifierFn func(config.TelegramConfig) notifier.TextNotifier
	watch      bool
}

type AppBuilderOption func(*AppBuilder)

// WithConfigPath enables hot reload from path.
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) {
		b.cfgPath = path
		b.watch = strings.TrimSpace(path) != ""
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		gatewayFn:  buildGateway,
		targetsFn:  buildTargets,
		journalFn:  buildJournal,
		notifierFn: buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildGateway(ex config.ExchangeConfig, acc config.AccountConfig) (exchange.Gateway, error) {
	return aster.New(asterConfigFromConfig(ex, acc))
}

func buildTargets(h config.HedgeConfig) (position.TargetSource, error) {
	return hedgeapi.New(hedgeAPIConfigFromConfig(h))
}

func buildJournal(s config.StoreConfig) (store.Journal, error) {
	if !s.Enabled {
		logger.Infof("execution journal disabled")
		return store.Nop{}, nil
	}
	return gormstore.NewGormStore(s.Path)
}

func buildNotifier(t config.TelegramConfig) notifier.TextNotifier {
	if !t.Enabled {
		return notifier.Noop{}
	}
	return notifier.NewTelegram(t.BotToken, t.ChatID)
}

// accountStack keeps what a hot reload needs to rebuild an account's
// execution components around the same gateway.
type accountStack struct {
	name    string
	gateway exchange.Gateway
	runner  *agent.Runner
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	journal, err := b.journalFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	targets, err := b.targetsFn(cfg.Hedge)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}
	tg := b.notifierFn(cfg.Notify.Telegram)
	registry := registryFromConfig(cfg.Symbols)
	schedule, err := scheduleFromConfig(cfg.Hedge)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	a := &App{cfg: cfg, journal: journal, targetsFn: b.targetsFn}
	for _, acc := range cfg.EnabledAccounts() {
		gw, err := b.gatewayFn(cfg.Exchange, acc)
		if err != nil {
			_ = journal.Close()
			return nil, fmt.Errorf("account %s: %w", acc.Name, err)
		}
		positions, exec := buildExecution(cfg, acc, gw, targets, registry)
		runner, err := agent.NewRunner(agent.RunnerParams{
			Name:      acc.Name,
			Account:   gw,
			Positions: positions,
			Executor:  exec,
			Risk:      risk.NewMonitor(gw, riskConfigFromConfig(cfg.Risk), logger.With("account", acc.Name, "component", "risk")),
			Journal:   journal,
			Notifier:  tg,
			Symbols:   registry,
			Leverage:  acc.Trading.Leverage,
			Schedule:  schedule,
		})
		if err != nil {
			_ = journal.Close()
			return nil, err
		}
		a.accounts = append(a.accounts, &accountStack{name: acc.Name, gateway: gw, runner: runner})
	}

	runners := make([]livehttp.AccountRunner, 0, len(a.accounts))
	for _, st := range a.accounts {
		runners = append(runners, st.runner)
	}
	if strings.TrimSpace(cfg.App.HTTPAddr) != "" {
		srv, err := livehttp.NewServer(livehttp.ServerConfig{
			Addr:         cfg.App.HTTPAddr,
			Runners:      runners,
			Journal:      journal,
			AllowControl: cfg.App.HTTPControl,
		})
		if err != nil {
			_ = journal.Close()
			return nil, err
		}
		a.liveHTTP = srv
	}

	if b.watch {
		w, err := config.NewWatcher(b.cfgPath, cfg)
		if err != nil {
			logger.Warnf("config hot reload disabled: %v", err)
		} else {
			w.Subscribe(a.applyConfig)
			a.watcher = w
		}
	}
	a.Summary = newStartupSummary(cfg, schedule)
	return a, nil
}

// buildExecution builds the per-account position manager and dispatcher.
// It runs again on every config reload.
func buildExecution(cfg *config.Config, acc config.AccountConfig, gw exchange.Gateway, targets position.TargetSource, registry trading.Registry) (*position.Manager, *executor.Dispatcher) {
	log := logger.With("account", acc.Name)
	calc := position.NewCalculator(decimal.NewFromFloat(cfg.Hedge.RebalanceThreshold), registry)
	manager := position.NewManager(gw, targets, calc, registry, cfg.Hedge.BaseAsset, log)

	maker := executor.NewMakerEngine(gw, registry, makerConfigFromConfig(acc.Trading.MakerOrder),
		executor.WithLogger(log.With("component", "maker")))
	market := executor.NewMarketExecutor(gw, registry, marketConfigFromConfig(acc.Trading), nil)
	return manager, executor.NewDispatcher(maker, market, acc.Trading.MakerOrder.IsEnabled(), log)
}

func scheduleFromConfig(h config.HedgeConfig) (agent.Schedule, error) {
	interval, ok := scheduler.ParseIntervalDuration(h.RebalanceInterval)
	if !ok {
		return agent.Schedule{}, fmt.Errorf("%w: rebalance interval %q", exchange.ErrConfiguration, h.RebalanceInterval)
	}
	return agent.Schedule{
		Interval:       interval,
		Offset:         time.Duration(h.RebalanceOffset) * time.Second,
		RunImmediately: h.RunImmediately,
	}, nil
}
