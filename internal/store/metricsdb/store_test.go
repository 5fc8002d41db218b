package metricsdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelwatch/internal/store"
	"modelwatch/internal/types"
)

func openTestDB(t *testing.T) *MetricsDB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "metrics.db"), store.RetryPolicy{MaxAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetTradeOutcomes_WindowAndOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	key := types.ModelKey{Direction: "long", Symbol: "BTCUSDT", Timeframe: "4h"}
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	fixtures := []types.TradeOutcome{
		{Model: key, ProfitLoss: 2.0, MLConfidence: 0.8, MLPrediction: 1, TradeTime: base.Add(48 * time.Hour)},
		{Model: key, ProfitLoss: -1.0, MLConfidence: 0.4, MLPrediction: 0, TradeTime: base},
		{Model: key, ProfitLoss: 0.5, MLConfidence: 0.6, MLPrediction: 1, TradeTime: base.Add(24 * time.Hour)},
		// Outside the queried window.
		{Model: key, ProfitLoss: 9.0, MLConfidence: 0.9, MLPrediction: 1, TradeTime: base.Add(200 * time.Hour)},
		// Different model, same window.
		{Model: types.ModelKey{Direction: "short", Symbol: "BTCUSDT", Timeframe: "4h"},
			ProfitLoss: 1.0, MLConfidence: 0.7, MLPrediction: 1, TradeTime: base},
	}
	require.NoError(t, db.InsertTradeOutcomes(ctx, fixtures))

	got, err := db.GetTradeOutcomes(ctx, key, base, base.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Oldest first.
	assert.Equal(t, base, got[0].TradeTime)
	assert.Equal(t, -1.0, got[0].ProfitLoss)
	assert.Equal(t, base.Add(48*time.Hour), got[2].TradeTime)
	for _, o := range got {
		assert.Equal(t, key, o.Model)
	}
}

func TestGetAllModelKeys_FiltersJunk(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	insert := func(direction, symbol, timeframe string) {
		require.NoError(t, db.InsertTradeOutcomes(ctx, []types.TradeOutcome{{
			Model:     types.ModelKey{Direction: direction, Symbol: symbol, Timeframe: timeframe},
			TradeTime: now,
		}}))
	}
	insert("long", "BTCUSDT", "4h")
	insert("long", "BTCUSDT", "4h") // duplicate, must collapse
	insert("short", "ETHUSDT", "1h")
	insert("long", "TEST_BTC", "4h")     // test symbol
	insert("long", "placeholder", "4h")  // placeholder row
	insert("sideways", "SOLUSDT", "15m") // unknown direction

	keys, err := db.GetAllModelKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.ModelKey{
		{Direction: "long", Symbol: "BTCUSDT", Timeframe: "4h"},
		{Direction: "short", Symbol: "ETHUSDT", Timeframe: "1h"},
	}, keys)
}

func TestGetRecommendationPerformance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	key := types.ModelKey{Direction: "long", Symbol: "BTCUSDT", Timeframe: "4h"}
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	db.SetNowFunc(func() time.Time { return now })

	boolPtr := func(b bool) *bool { return &b }
	require.NoError(t, db.InsertRecommendation(ctx, key, "indicator", 0.7, 0.8, boolPtr(true), 12.5, now.Add(-time.Hour)))
	require.NoError(t, db.InsertRecommendation(ctx, key, "indicator", 0.6, 0.7, boolPtr(false), -4.5, now.Add(-2*time.Hour)))
	require.NoError(t, db.InsertRecommendation(ctx, key, "indicator", 0.5, 0.6, nil, 0, now.Add(-3*time.Hour))) // ungraded
	// Old row outside the lookback.
	require.NoError(t, db.InsertRecommendation(ctx, key, "indicator", 0.9, 0.9, boolPtr(true), 99, now.AddDate(0, 0, -45)))

	rows, err := db.GetRecommendationPerformance(ctx, "BTCUSDT", "4h", 30)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, key, row.Model)
	assert.Equal(t, "indicator", row.AnalysisMethod)
	assert.Equal(t, 3, row.TotalRecommendations)
	assert.Equal(t, 1, row.CorrectRecommendations)
	assert.Equal(t, 1, row.IncorrectRecommendations)
	assert.InDelta(t, 0.7, row.AvgFinalConfidence, 1e-9)
	assert.InDelta(t, 8.0, row.TotalRecommendationValue.InexactFloat64(), 1e-9)
}

func TestGetTradeOutcomes_EmptyResult(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetTradeOutcomes(context.Background(),
		types.ModelKey{Direction: "long", Symbol: "NOSUCH", Timeframe: "4h"},
		time.Unix(0, 0), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}
