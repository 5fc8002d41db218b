package gormstore

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

func openTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func historyKey(symbol string) types.ModelKey {
	return types.ModelKey{Direction: "long", Symbol: symbol, Timeframe: "4h"}
}

func TestAppendAndListHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)

	entries := []store.HistoryEntry{
		{
			Model:           historyKey("BTCUSDT"),
			LastRetrained:   base,
			Reason:          "Low health score: 35/100",
			Priority:        types.PriorityMedium,
			Success:         true,
			TrainingSamples: 120,
		},
		{
			Model:           historyKey("ETHUSDT"),
			LastRetrained:   base.Add(time.Hour),
			Reason:          "Win rate 31.0% is below the 40% threshold",
			Priority:        types.PriorityHigh,
			Success:         false,
			TrainingSamples: 15,
			Details: map[string]any{
				"error":          "training routine reported failure",
				"enough_samples": false,
			},
		},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendRetrainingHistory(ctx, e))
	}

	got, err := s.ListRetrainingHistory(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, historyKey("ETHUSDT"), got[0].Model)
	assert.False(t, got[0].Success)
	assert.Equal(t, types.PriorityHigh, got[0].Priority)
	require.NotNil(t, got[0].Details)
	assert.Equal(t, "training routine reported failure", got[0].Details["error"])
	assert.Equal(t, false, got[0].Details["enough_samples"])

	assert.Equal(t, historyKey("BTCUSDT"), got[1].Model)
	assert.True(t, got[1].Success)
	assert.Equal(t, 120, got[1].TrainingSamples)
	assert.Equal(t, base, got[1].LastRetrained)
	assert.Nil(t, got[1].Details)
}

func TestListHistory_FilterAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendRetrainingHistory(ctx, store.HistoryEntry{
			Model:         historyKey("BTCUSDT"),
			LastRetrained: base.Add(time.Duration(i) * time.Hour),
			Reason:        "scheduled",
			Priority:      types.PriorityLow,
		}))
	}
	require.NoError(t, s.AppendRetrainingHistory(ctx, store.HistoryEntry{
		Model:         historyKey("ETHUSDT"),
		LastRetrained: base,
		Reason:        "scheduled",
		Priority:      types.PriorityLow,
	}))

	key := historyKey("BTCUSDT")
	got, err := s.ListRetrainingHistory(ctx, &key, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, e := range got {
		assert.Equal(t, key, e.Model)
	}
	// Newest of the filtered set comes first.
	assert.Equal(t, base.Add(4*time.Hour), got[0].LastRetrained)
}
