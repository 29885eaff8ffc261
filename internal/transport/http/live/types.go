package livehttp

import (
	"sort"
	"time"

	"hedgebot/internal/agent"
	"hedgebot/internal/executor"
	"hedgebot/internal/store"
)

type accountView struct {
	Account        string            `json:"account"`
	Running        bool              `json:"running"`
	LastCycleID    string            `json:"last_cycle_id,omitempty"`
	LastRun        *time.Time        `json:"last_run,omitempty"`
	LastError      string            `json:"last_error,omitempty"`
	RebalanceCount int               `json:"rebalance_count"`
	BaseBalance    string            `json:"base_balance"`
	BaseValueUSD   string            `json:"base_value_usd"`
	HedgeRatio     string            `json:"hedge_ratio"`
	TotalTargetUSD string            `json:"total_target_usd"`
	TotalCurrent   string            `json:"total_current_usd"`
	MarginRatio    string            `json:"margin_ratio"`
	DailyPnL       string            `json:"daily_pnl"`
	Positions      []positionView    `json:"positions"`
	FundingRates   map[string]string `json:"funding_rates,omitempty"`
	Alerts         []alertView       `json:"alerts,omitempty"`
	LastResults    []resultView      `json:"last_results,omitempty"`
}

type positionView struct {
	Symbol  string `json:"symbol"`
	Target  string `json:"target"`
	Current string `json:"current"`
	Delta   string `json:"delta"`
	USD     string `json:"delta_usd"`
}

type alertView struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Symbol  string `json:"symbol,omitempty"`
	Message string `json:"message"`
}

type resultView struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Mode       string `json:"mode"`
	Outcome    string `json:"outcome"`
	Target     string `json:"target_quantity"`
	Filled     string `json:"filled_quantity"`
	AvgPrice   string `json:"average_price"`
	Iterations int    `json:"iterations"`
	Clips      int    `json:"clips"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	Error      string `json:"error,omitempty"`
}

type cycleView struct {
	ID         string                  `json:"id"`
	Account    string                  `json:"account"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	HedgeRatio string                  `json:"hedge_ratio"`
	Error      string                  `json:"error,omitempty"`
	Executions []store.ExecutionRecord `json:"executions,omitempty"`
}

func newAccountView(s agent.Snapshot) accountView {
	v := accountView{
		Account:        s.Account,
		Running:        s.Running,
		LastCycleID:    s.LastCycleID,
		LastError:      s.LastError,
		RebalanceCount: s.RebalanceCount,
		BaseBalance:    s.BaseBalance.String(),
		BaseValueUSD:   s.Status.BaseValueUSD.StringFixed(2),
		HedgeRatio:     s.Status.HedgeRatio.StringFixed(4),
		TotalTargetUSD: s.Status.TotalTargetUSD.StringFixed(2),
		TotalCurrent:   s.Status.TotalCurrentUSD.StringFixed(2),
		MarginRatio:    s.Metrics.MarginRatio.StringFixed(4),
		DailyPnL:       s.Metrics.DailyPnL.StringFixed(2),
		Positions:      []positionView{},
	}
	if !s.LastRun.IsZero() {
		t := s.LastRun.UTC()
		v.LastRun = &t
	}
	symbols := make([]string, 0, len(s.Status.Deltas))
	for sym := range s.Status.Deltas {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		d := s.Status.Deltas[sym]
		v.Positions = append(v.Positions, positionView{
			Symbol:  sym,
			Target:  d.Target.String(),
			Current: d.Current.String(),
			Delta:   d.Delta.String(),
			USD:     d.DeltaValueUSD.StringFixed(2),
		})
	}
	if len(s.Metrics.FundingRates) > 0 {
		v.FundingRates = make(map[string]string, len(s.Metrics.FundingRates))
		for pair, rate := range s.Metrics.FundingRates {
			v.FundingRates[pair] = rate.String()
		}
	}
	for _, a := range s.Metrics.Alerts {
		v.Alerts = append(v.Alerts, alertView{Type: string(a.Type), Level: string(a.Level), Symbol: a.Symbol, Message: a.Message})
	}
	v.LastResults = newResultViews(s.LastResults)
	return v
}

func newResultViews(results []executor.Result) []resultView {
	out := make([]resultView, 0, len(results))
	for _, r := range results {
		out = append(out, resultView{
			Symbol:     r.Symbol,
			Side:       string(r.Side),
			Mode:       string(r.Mode),
			Outcome:    string(r.Outcome),
			Target:     r.TargetQuantity.String(),
			Filled:     r.FilledQuantity.String(),
			AvgPrice:   r.AveragePrice.String(),
			Iterations: r.Iterations,
			Clips:      r.Clips,
			ElapsedMS:  r.Elapsed.Milliseconds(),
			Error:      r.Error,
		})
	}
	return out
}

func newCycleView(rec store.CycleRecord) cycleView {
	return cycleView{
		ID:         rec.ID,
		Account:    rec.Account,
		StartedAt:  rec.StartedAt.UTC(),
		FinishedAt: rec.FinishedAt.UTC(),
		HedgeRatio: rec.HedgeRatio,
		Error:      rec.Error,
		Executions: rec.Executions,
	}
}
