package model

import (
	"gorm.io/datatypes"
)

// RetrainingHistoryModel is the persisted form of one retraining attempt.
// Rows are append-only: they are inserted once and never updated.
type RetrainingHistoryModel struct {
	ID              int64          `gorm:"column:id;primaryKey"`
	Direction       string         `gorm:"column:direction;index:idx_history_model,priority:1"`
	Symbol          string         `gorm:"column:symbol;index:idx_history_model,priority:2"`
	Timeframe       string         `gorm:"column:timeframe;index:idx_history_model,priority:3"`
	RetrainedAtUnix int64          `gorm:"column:retrained_at;index"`
	Reason          string         `gorm:"column:reason"`
	Priority        string         `gorm:"column:priority"`
	Success         int            `gorm:"column:success"`
	TrainingSamples int            `gorm:"column:training_samples"`
	DetailsJSON     datatypes.JSON `gorm:"column:details_json;type:TEXT"`
	CreatedAtUnix   int64          `gorm:"column:created_at"`
}

func (RetrainingHistoryModel) TableName() string { return "retraining_history" }
