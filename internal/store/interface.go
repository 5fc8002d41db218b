package store

import (
	"context"
	"time"

	"modelwatch/internal/types"
)

// MetricsStore is the read-only view of the trading client's database. The
// trading client owns every row; this subsystem never writes through it.
type MetricsStore interface {
	// GetTradeOutcomes returns closed trades for one model inside
	// [start, end), oldest first.
	GetTradeOutcomes(ctx context.Context, key types.ModelKey, start, end time.Time) ([]types.TradeOutcome, error)
	// GetAllModelKeys lists the distinct models observed in trade
	// history, excluding test/placeholder identifiers.
	GetAllModelKeys(ctx context.Context) ([]types.ModelKey, error)
	// GetRecommendationPerformance aggregates recommendation outcomes
	// for a symbol/timeframe over the trailing number of days, grouped
	// by (model key, analysis method).
	GetRecommendationPerformance(ctx context.Context, symbol, timeframe string, days int) ([]types.RecommendationRow, error)
}

// HistoryEntry is one append-only record of a retraining attempt. Entries
// are never mutated after being written.
type HistoryEntry struct {
	Model           types.ModelKey `json:"model_key"`
	LastRetrained   time.Time      `json:"last_retrained"`
	Reason          string         `json:"reason"`
	Priority        types.Priority `json:"priority"`
	Success         bool           `json:"success"`
	TrainingSamples int            `json:"training_samples"`
	Details         map[string]any `json:"details,omitempty"`
}

// HistoryStore persists retraining history so operator visibility survives
// restarts. The in-memory job store remains the source of truth for active
// jobs; this is the durable tail.
type HistoryStore interface {
	AppendRetrainingHistory(ctx context.Context, entry HistoryEntry) error
	// ListRetrainingHistory returns the newest entries first; key is
	// optional and limit <= 0 means a default page.
	ListRetrainingHistory(ctx context.Context, key *types.ModelKey, limit int) ([]HistoryEntry, error)
}
