package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hedgebot/internal/store"

	_ "modernc.org/sqlite"
)

const defaultListLimit = 50

// GormStore is the SQLite-backed execution journal.
type GormStore struct {
	db    *gorm.DB
	nowFn func() time.Time
}

var _ store.Journal = (*GormStore)(nil)

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&cycleModel{}, &executionModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// WAL lets the status endpoint read while a runner writes.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db, nowFn: time.Now}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordCycle writes a cycle and its executions in one transaction.
// Records are never updated afterwards.
func (s *GormStore) RecordCycle(ctx context.Context, rec store.CycleRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("gorm store: cycle id is empty")
	}
	now := s.nowFn()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cycle := newCycleModel(rec)
		if err := tx.Create(&cycle).Error; err != nil {
			return fmt.Errorf("insert cycle %s: %w", rec.ID, err)
		}
		if len(rec.Executions) == 0 {
			return nil
		}
		rows := make([]executionModel, 0, len(rec.Executions))
		for _, ex := range rec.Executions {
			rows = append(rows, newExecutionModel(rec.ID, rec.Account, ex, now))
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert executions for %s: %w", rec.ID, err)
		}
		return nil
	})
}

// RecentCycles returns the newest cycles first, executions attached.
func (s *GormStore) RecentCycles(ctx context.Context, account string, limit int) ([]store.CycleRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if account != "" {
		q = q.Where("account = ?", account)
	}
	var cycles []cycleModel
	if err := q.Find(&cycles).Error; err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(cycles))
	for _, c := range cycles {
		ids = append(ids, c.ID)
	}
	var execs []executionModel
	if err := s.db.WithContext(ctx).Where("cycle_id IN ?", ids).Order("id ASC").Find(&execs).Error; err != nil {
		return nil, err
	}
	byCycle := make(map[string][]store.ExecutionRecord, len(cycles))
	for _, e := range execs {
		byCycle[e.CycleID] = append(byCycle[e.CycleID], e.toRecord())
	}
	out := make([]store.CycleRecord, 0, len(cycles))
	for _, c := range cycles {
		rec := c.toRecord()
		rec.Executions = byCycle[c.ID]
		out = append(out, rec)
	}
	return out, nil
}

// RecentExecutions returns the newest executions first.
func (s *GormStore) RecentExecutions(ctx context.Context, account string, limit int) ([]store.ExecutionRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if account != "" {
		q = q.Where("account = ?", account)
	}
	var rows []executionModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.ExecutionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}
