// Package store defines the append-only execution journal. Nothing reads it
// back into the engine; it exists for operators and the status surface.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// CycleRecord is one rebalance cycle of one account.
type CycleRecord struct {
	ID              string
	Account         string
	StartedAt       time.Time
	FinishedAt      time.Time
	BaseBalance     string
	TotalTargetUSD  string
	TotalCurrentUSD string
	HedgeRatio      string
	Error           string
	// Snapshot holds the deltas and alerts of the cycle as JSON.
	Snapshot   json.RawMessage
	Executions []ExecutionRecord
}

// ExecutionRecord is one per-symbol result inside a cycle.
type ExecutionRecord struct {
	CycleID        string    `json:"cycle_id"`
	Account        string    `json:"account"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Mode           string    `json:"mode"`
	Outcome        string    `json:"outcome"`
	TargetQuantity string    `json:"target_quantity"`
	FilledQuantity string    `json:"filled_quantity"`
	AveragePrice   string    `json:"average_price"`
	Iterations     int       `json:"iterations"`
	Clips          int       `json:"clips"`
	ElapsedMS      int64     `json:"elapsed_ms"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Journal interface {
	RecordCycle(ctx context.Context, rec CycleRecord) error
	RecentCycles(ctx context.Context, account string, limit int) ([]CycleRecord, error)
	RecentExecutions(ctx context.Context, account string, limit int) ([]ExecutionRecord, error)
	Close() error
}

// Nop discards everything; used when the journal is disabled.
type Nop struct{}

func (Nop) RecordCycle(context.Context, CycleRecord) error { return nil }

func (Nop) RecentCycles(context.Context, string, int) ([]CycleRecord, error) { return nil, nil }

func (Nop) RecentExecutions(context.Context, string, int) ([]ExecutionRecord, error) {
	return nil, nil
}

func (Nop) Close() error { return nil }
