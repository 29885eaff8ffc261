package app

import (
	"fmt"
	"sort"
	"strings"

	"hedgebot/internal/agent"
	"hedgebot/internal/config"
)

type StartupSummary struct {
	BaseAsset string
	Interval  string
	Offset    string
	Threshold float64
	HTTPAddr  string
	Journal   string
	Symbols   []string
	Accounts  []AccountSummary
}

type AccountSummary struct {
	Name     string
	Mode     string
	Leverage int
	Split    bool
}

func newStartupSummary(cfg *config.Config, schedule agent.Schedule) *StartupSummary {
	s := &StartupSummary{
		BaseAsset: cfg.Hedge.BaseAsset,
		Interval:  schedule.Interval.String(),
		Offset:    schedule.Offset.String(),
		Threshold: cfg.Hedge.RebalanceThreshold,
		HTTPAddr:  cfg.App.HTTPAddr,
		Journal:   "disabled",
	}
	if cfg.Store.Enabled {
		s.Journal = cfg.Store.Path
	}
	for base, sym := range cfg.Symbols {
		s.Symbols = append(s.Symbols, fmt.Sprintf("%s(%s)", base, sym.Pair))
	}
	sort.Strings(s.Symbols)
	for _, acc := range cfg.EnabledAccounts() {
		mode := "maker"
		if !acc.Trading.MakerOrder.IsEnabled() {
			mode = "market"
		}
		s.Accounts = append(s.Accounts, AccountSummary{
			Name:     acc.Name,
			Mode:     mode,
			Leverage: acc.Trading.Leverage,
			Split:    acc.Trading.MakerOrder.IsSplitEnabled(),
		})
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("STARTUP SUMMARY")/2, "STARTUP SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[HEDGE]")
	fmt.Printf("  Base asset: %s\n", s.BaseAsset)
	fmt.Printf("  Interval:   %s (offset %s)\n", s.Interval, s.Offset)
	fmt.Printf("  Threshold:  %.2f%%\n", s.Threshold*100)
	fmt.Printf("  Symbols:    %s\n", formatList(s.Symbols))
	fmt.Println()

	fmt.Println("[ACCOUNTS]")
	if len(s.Accounts) == 0 {
		fmt.Println("  (none)")
	}
	for _, acc := range s.Accounts {
		fmt.Printf("  > %s  mode=%s leverage=%dx split=%t\n", acc.Name, acc.Mode, acc.Leverage, acc.Split)
	}
	fmt.Println()

	fmt.Println("[SERVICES]")
	fmt.Printf("  Status HTTP: %s\n", orDash(s.HTTPAddr))
	fmt.Printf("  Journal:     %s\n", s.Journal)
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
