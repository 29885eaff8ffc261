package gormstore

import (
	"time"

	"gorm.io/datatypes"

	"hedgebot/internal/store"
)

type cycleModel struct {
	ID              string         `gorm:"column:id;primaryKey"`
	Account         string         `gorm:"column:account;index:idx_cycle_account_started,priority:1"`
	StartedAtUnix   int64          `gorm:"column:started_at;index:idx_cycle_account_started,priority:2"`
	FinishedAtUnix  int64          `gorm:"column:finished_at"`
	BaseBalance     string         `gorm:"column:base_balance"`
	TotalTargetUSD  string         `gorm:"column:total_target_usd"`
	TotalCurrentUSD string         `gorm:"column:total_current_usd"`
	HedgeRatio      string         `gorm:"column:hedge_ratio"`
	Error           string         `gorm:"column:error"`
	SnapshotJSON    datatypes.JSON `gorm:"column:snapshot_json;type:TEXT"`
}

func (cycleModel) TableName() string { return "rebalance_cycles" }

type executionModel struct {
	ID             int64  `gorm:"column:id;primaryKey;autoIncrement"`
	CycleID        string `gorm:"column:cycle_id;index"`
	Account        string `gorm:"column:account;index:idx_exec_account_created,priority:1"`
	Symbol         string `gorm:"column:symbol"`
	Side           string `gorm:"column:side"`
	Mode           string `gorm:"column:mode"`
	Outcome        string `gorm:"column:outcome"`
	TargetQuantity string `gorm:"column:target_quantity"`
	FilledQuantity string `gorm:"column:filled_quantity"`
	AveragePrice   string `gorm:"column:average_price"`
	Iterations     int    `gorm:"column:iterations"`
	Clips          int    `gorm:"column:clips"`
	ElapsedMS      int64  `gorm:"column:elapsed_ms"`
	Error          string `gorm:"column:error"`
	CreatedAtUnix  int64  `gorm:"column:created_at;index:idx_exec_account_created,priority:2"`
}

func (executionModel) TableName() string { return "executions" }

func newCycleModel(rec store.CycleRecord) cycleModel {
	m := cycleModel{
		ID:              rec.ID,
		Account:         rec.Account,
		StartedAtUnix:   rec.StartedAt.UnixMilli(),
		FinishedAtUnix:  rec.FinishedAt.UnixMilli(),
		BaseBalance:     rec.BaseBalance,
		TotalTargetUSD:  rec.TotalTargetUSD,
		TotalCurrentUSD: rec.TotalCurrentUSD,
		HedgeRatio:      rec.HedgeRatio,
		Error:           rec.Error,
	}
	if len(rec.Snapshot) > 0 {
		m.SnapshotJSON = datatypes.JSON(rec.Snapshot)
	}
	return m
}

func (m cycleModel) toRecord() store.CycleRecord {
	return store.CycleRecord{
		ID:              m.ID,
		Account:         m.Account,
		StartedAt:       time.UnixMilli(m.StartedAtUnix),
		FinishedAt:      time.UnixMilli(m.FinishedAtUnix),
		BaseBalance:     m.BaseBalance,
		TotalTargetUSD:  m.TotalTargetUSD,
		TotalCurrentUSD: m.TotalCurrentUSD,
		HedgeRatio:      m.HedgeRatio,
		Error:           m.Error,
		Snapshot:        []byte(m.SnapshotJSON),
	}
}

func newExecutionModel(cycleID, account string, rec store.ExecutionRecord, now time.Time) executionModel {
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	return executionModel{
		CycleID:        cycleID,
		Account:        account,
		Symbol:         rec.Symbol,
		Side:           rec.Side,
		Mode:           rec.Mode,
		Outcome:        rec.Outcome,
		TargetQuantity: rec.TargetQuantity,
		FilledQuantity: rec.FilledQuantity,
		AveragePrice:   rec.AveragePrice,
		Iterations:     rec.Iterations,
		Clips:          rec.Clips,
		ElapsedMS:      rec.ElapsedMS,
		Error:          rec.Error,
		CreatedAtUnix:  created.UnixMilli(),
	}
}

func (m executionModel) toRecord() store.ExecutionRecord {
	return store.ExecutionRecord{
		CycleID:        m.CycleID,
		Account:        m.Account,
		Symbol:         m.Symbol,
		Side:           m.Side,
		Mode:           m.Mode,
		Outcome:        m.Outcome,
		TargetQuantity: m.TargetQuantity,
		FilledQuantity: m.FilledQuantity,
		AveragePrice:   m.AveragePrice,
		Iterations:     m.Iterations,
		Clips:          m.Clips,
		ElapsedMS:      m.ElapsedMS,
		Error:          m.Error,
		CreatedAt:      time.UnixMilli(m.CreatedAtUnix),
	}
}
