package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"hedgebot/internal/executor"
	"hedgebot/internal/gateway/notifier"
	"hedgebot/internal/position"
	"hedgebot/internal/risk"
	"hedgebot/internal/store"
)

// Report is everything one cycle produced.
type Report struct {
	ID         string
	Account    string
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       executor.Mode
	CloseAll   bool
	Status     position.Status
	Results    []executor.Result
	Metrics    risk.Metrics
	Err        error
}

// Snapshot is the runner's published state.
type Snapshot struct {
	Account        string
	Running        bool
	LastCycleID    string
	LastRun        time.Time
	LastError      string
	RebalanceCount int
	BaseBalance    decimal.Decimal
	Status         position.Status
	Metrics        risk.Metrics
	LastResults    []executor.Result
}

func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == executor.OutcomeFailed {
			n++
		}
	}
	return n
}

// Notable reports whether the cycle is worth a push: something traded,
// something failed, or risk raised an alert.
func (r Report) Notable() bool {
	return r.Err != nil || len(r.Results) > 0 || len(r.Metrics.Alerts) > 0
}

type snapshotDoc struct {
	Deltas map[string]deltaDoc `json:"deltas,omitempty"`
	Alerts []alertDoc          `json:"alerts,omitempty"`
	Margin string              `json:"margin_ratio,omitempty"`
}

type deltaDoc struct {
	Target  string `json:"target"`
	Current string `json:"current"`
	Delta   string `json:"delta"`
	USD     string `json:"delta_usd"`
}

type alertDoc struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Record converts the report into a journal row.
func (r Report) Record() store.CycleRecord {
	rec := store.CycleRecord{
		ID:              r.ID,
		Account:         r.Account,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		BaseBalance:     r.Status.BaseBalance.String(),
		TotalTargetUSD:  r.Status.TotalTargetUSD.StringFixed(2),
		TotalCurrentUSD: r.Status.TotalCurrentUSD.StringFixed(2),
		HedgeRatio:      r.Status.HedgeRatio.StringFixed(4),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	doc := snapshotDoc{Deltas: make(map[string]deltaDoc, len(r.Status.Deltas))}
	for sym, d := range r.Status.Deltas {
		doc.Deltas[sym] = deltaDoc{
			Target:  d.Target.String(),
			Current: d.Current.String(),
			Delta:   d.Delta.String(),
			USD:     d.DeltaValueUSD.StringFixed(2),
		}
	}
	for _, a := range r.Metrics.Alerts {
		doc.Alerts = append(doc.Alerts, alertDoc{Type: string(a.Type), Level: string(a.Level), Message: a.Message})
	}
	if !r.Metrics.MarginRatio.IsZero() {
		doc.Margin = r.Metrics.MarginRatio.StringFixed(4)
	}
	if raw, err := json.Marshal(doc); err == nil {
		rec.Snapshot = raw
	}
	for _, res := range r.Results {
		rec.Executions = append(rec.Executions, store.ExecutionRecord{
			Symbol:         res.Symbol,
			Side:           string(res.Side),
			Mode:           string(res.Mode),
			Outcome:        string(res.Outcome),
			TargetQuantity: res.TargetQuantity.String(),
			FilledQuantity: res.FilledQuantity.String(),
			AveragePrice:   res.AveragePrice.String(),
			Iterations:     res.Iterations,
			Clips:          res.Clips,
			ElapsedMS:      res.Elapsed.Milliseconds(),
			Error:          res.Error,
			CreatedAt:      r.FinishedAt,
		})
	}
	return rec
}

// Message renders the report as a push notification.
func (r Report) Message() notifier.StructuredMessage {
	msg := notifier.StructuredMessage{
		Title:     "Rebalance · " + r.Account,
		Timestamp: r.FinishedAt,
		Footer:    "cycle " + r.ID,
	}
	switch {
	case r.Err != nil:
		msg.Icon, msg.Title = "❌", "Rebalance failed · "+r.Account
		msg.AddSection("Error", r.Err.Error())
		return msg
	case r.CloseAll:
		msg.Icon, msg.Title = "🛑", "Close all · "+r.Account
	}
	if r.Failed() > 0 {
		msg.Escalate(notifier.SeverityWarning)
	}

	if !r.CloseAll {
		st := r.Status
		msg.AddSection("Hedge",
			fmt.Sprintf("base %s ($%s)", st.BaseBalance, st.BaseValueUSD.StringFixed(2)),
			fmt.Sprintf("target $%s / current $%s", st.TotalTargetUSD.StringFixed(2), st.TotalCurrentUSD.StringFixed(2)),
			"hedge ratio "+pct(st.HedgeRatio),
		)
	}
	if len(r.Results) > 0 {
		lines := make([]string, 0, len(r.Results))
		for _, res := range r.Results {
			line := notifier.FillLine(res.Symbol, string(res.Side), res.FilledQuantity, res.TargetQuantity, res.AveragePrice, string(res.Outcome))
			if res.Error != "" {
				line += " (" + res.Error + ")"
			}
			lines = append(lines, line)
		}
		msg.AddSection(fmt.Sprintf("Orders (%s) · %d", r.Mode, len(r.Results)), lines...)
	}
	if len(r.Metrics.Alerts) > 0 {
		lines := make([]string, 0, len(r.Metrics.Alerts))
		for _, a := range r.Metrics.Alerts {
			sev := notifier.ParseSeverity(string(a.Level))
			msg.Escalate(sev)
			lines = append(lines, notifier.AlertLine(sev, a.Message))
		}
		msg.AddSection("Risk", lines...)
	}
	if len(r.Metrics.FundingRates) > 0 {
		pairs := make([]string, 0, len(r.Metrics.FundingRates))
		for p := range r.Metrics.FundingRates {
			pairs = append(pairs, p)
		}
		sort.Strings(pairs)
		lines := make([]string, 0, len(pairs))
		for _, p := range pairs {
			lines = append(lines, fmt.Sprintf("%s %s", p, pct(r.Metrics.FundingRates[p])))
		}
		msg.AddSection("Funding", lines...)
	}
	return msg
}
