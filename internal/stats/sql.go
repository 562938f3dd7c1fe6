package stats

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OutcomeRow is the persisted form of an OutcomeRecord.
type OutcomeRow struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"index"`
	Idx       int
	Op        string `gorm:"index"`
	From      string `gorm:"column:from_addr;index"`
	To        string `gorm:"column:to_addr"`
	Token     string
	Success   bool `gorm:"index"`
	Failure   string
	Verdict   string
	TxHash    string
	GasUsed   uint64
	GasCost   string // decimal wei
	Value     string // decimal wei
	Err       string
	CreatedAt time.Time
}

// BatchRow is the persisted form of a BatchRecord.
type BatchRow struct {
	RunID      string `gorm:"primaryKey"`
	Op         string `gorm:"index"`
	Total      int
	Success    int
	Fail       int
	Chunks     int
	Cancelled  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// SQLStore is a row-per-outcome ledger in SQLite.
type SQLStore struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ Sink = (*SQLStore)(nil)

// OpenSQL opens (and migrates) a SQLite database at dsn, e.g. "stats.db"
// or "file::memory:?cache=shared".
func OpenSQL(dsn string, log *zap.Logger) (*SQLStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errors.Wrap(err, "open stats db")
	}
	if err := db.AutoMigrate(&OutcomeRow{}, &BatchRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate stats db")
	}
	return &SQLStore{db: db, log: log.Named("stats.sql")}, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (s *SQLStore) RecordOutcome(ctx context.Context, r OutcomeRecord) {
	row := OutcomeRow{
		RunID:     r.RunID,
		Idx:       r.Index,
		Op:        r.Op,
		From:      r.From,
		To:        r.To,
		Token:     r.Token,
		Success:   r.Success,
		Failure:   r.Failure,
		Verdict:   r.Verdict,
		TxHash:    r.TxHash,
		GasUsed:   r.GasUsed,
		GasCost:   decString(r.GasCost),
		Value:     decString(r.Value),
		Err:       r.Err,
		CreatedAt: r.At,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.log.Warn("insert outcome failed", zap.String("run", r.RunID), zap.Int("index", r.Index), zap.Error(err))
	}
}

func (s *SQLStore) RecordBatch(ctx context.Context, r BatchRecord) {
	row := BatchRow{
		RunID:      r.RunID,
		Op:         r.Op,
		Total:      r.Total,
		Success:    r.Success,
		Fail:       r.Fail,
		Chunks:     r.Chunks,
		Cancelled:  r.Cancelled,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		s.log.Warn("insert batch failed", zap.String("run", r.RunID), zap.Error(err))
	}
}

// Summary aggregates all rows per op. Sums are done in Go with uint256 so
// large wei totals stay exact.
func (s *SQLStore) Summary(ctx context.Context) ([]OpSummary, error) {
	var rows []OutcomeRow
	err := s.db.WithContext(ctx).
		Select("op", "success", "gas_used", "gas_cost", "value").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query outcomes")
	}
	acc := map[string]*totals{}
	for _, row := range rows {
		t, ok := acc[row.Op]
		if !ok {
			t = &totals{}
			acc[row.Op] = t
		}
		cost, _ := new(big.Int).SetString(row.GasCost, 10)
		val, _ := new(big.Int).SetString(row.Value, 10)
		t.add(OutcomeRecord{Success: row.Success, GasUsed: row.GasUsed, GasCost: cost, Value: val})
	}
	out := make([]OpSummary, 0, len(acc))
	for op, t := range acc {
		out = append(out, t.summary(op))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out, nil
}

// Outcomes returns the rows of one run ordered by index.
func (s *SQLStore) Outcomes(ctx context.Context, runID string) ([]OutcomeRow, error) {
	var rows []OutcomeRow
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("idx").Find(&rows).Error
	return rows, errors.Wrap(err, "query run")
}

// Batches returns the most recent batch rows, newest first.
func (s *SQLStore) Batches(ctx context.Context, limit int) ([]BatchRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []BatchRow
	err := s.db.WithContext(ctx).Order("finished_at desc").Limit(limit).Find(&rows).Error
	return rows, errors.Wrap(err, "query batches")
}
