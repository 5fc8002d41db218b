package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"modelwatch/internal/store"
	storemodel "modelwatch/internal/store/model"
	"modelwatch/internal/types"
)

const defaultHistoryPage = 50

// GormStore persists retraining state using Gorm + SQLite. It backs the
// orchestrator's durable history; active job state stays in memory.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (and migrates) the state database at path.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: state db path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&storemodel.RetrainingHistoryModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep the pool tiny so HTTP reads never pile up lock
	// contention against the orchestrator's writes.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close closes the underlying database connection.
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

var _ store.HistoryStore = (*GormStore)(nil)

// AppendRetrainingHistory inserts one attempt record.
func (s *GormStore) AppendRetrainingHistory(ctx context.Context, entry store.HistoryEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	m := storemodel.RetrainingHistoryModel{
		Direction:       entry.Model.Direction,
		Symbol:          entry.Model.Symbol,
		Timeframe:       entry.Model.Timeframe,
		RetrainedAtUnix: entry.LastRetrained.Unix(),
		Reason:          entry.Reason,
		Priority:        string(entry.Priority),
		TrainingSamples: entry.TrainingSamples,
		CreatedAtUnix:   time.Now().Unix(),
	}
	if entry.Success {
		m.Success = 1
	}
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal history details: %w", err)
		}
		m.DetailsJSON = datatypes.JSON(raw)
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// ListRetrainingHistory returns the newest entries first, optionally
// filtered to one model.
func (s *GormStore) ListRetrainingHistory(ctx context.Context, key *types.ModelKey, limit int) ([]store.HistoryEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = defaultHistoryPage
	}
	q := s.db.WithContext(ctx).Model(&storemodel.RetrainingHistoryModel{}).
		Order("retrained_at DESC").Limit(limit)
	if key != nil {
		q = q.Where("direction = ? AND symbol = ? AND timeframe = ?",
			key.Direction, key.Symbol, key.Timeframe)
	}
	var models []storemodel.RetrainingHistoryModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]store.HistoryEntry, 0, len(models))
	for _, m := range models {
		entry := store.HistoryEntry{
			Model: types.ModelKey{
				Direction: m.Direction,
				Symbol:    m.Symbol,
				Timeframe: m.Timeframe,
			},
			LastRetrained:   time.Unix(m.RetrainedAtUnix, 0).UTC(),
			Reason:          m.Reason,
			Priority:        types.ParsePriority(m.Priority),
			Success:         m.Success == 1,
			TrainingSamples: m.TrainingSamples,
		}
		if len(m.DetailsJSON) > 0 {
			details := make(map[string]any)
			if err := json.Unmarshal(m.DetailsJSON, &details); err == nil {
				entry.Details = details
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
