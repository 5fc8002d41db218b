package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelwatch/internal/types"
)

func trades(n, wins int, confidence float64) []types.TradeOutcome {
	out := make([]types.TradeOutcome, 0, n)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		pl := -1.0
		if i < wins {
			pl = 1.0
		}
		out = append(out, types.TradeOutcome{
			ProfitLoss:   pl,
			MLConfidence: confidence,
			TradeTime:    base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func TestAnalyze_Empty(t *testing.T) {
	report := NewAnalyzer(3).Analyze(nil)
	assert.False(t, report.HasData)
	assert.Equal(t, 0, report.TotalTrades)
	assert.Empty(t, report.Buckets)
}

func TestAnalyze_SparseBucketsDropped(t *testing.T) {
	// Two trades in one decile: below the minimum of three, so the report
	// carries no buckets and must read as no-data, not as a zero score.
	report := NewAnalyzer(3).Analyze(trades(2, 1, 0.55))
	assert.False(t, report.HasData)
	assert.Equal(t, 2, report.TotalTrades)
	assert.Empty(t, report.Buckets)
	assert.Zero(t, report.OverallScore)
}

func TestAnalyze_PerfectCalibration(t *testing.T) {
	// 20 trades at confidence 0.75 with 15 winners: expected equals actual.
	report := NewAnalyzer(3).Analyze(trades(20, 15, 0.75))

	require.True(t, report.HasData)
	require.Len(t, report.Buckets, 1)
	b := report.Buckets[0]
	assert.InDelta(t, 0.7, b.RangeLow, 1e-9)
	assert.InDelta(t, 0.8, b.RangeHigh, 1e-9)
	assert.InDelta(t, 0.75, b.ExpectedWinRate, 1e-9)
	assert.InDelta(t, 0.75, b.ActualWinRate, 1e-9)
	assert.InDelta(t, 0, b.CalibrationError, 1e-9)
	assert.Equal(t, types.CalibrationGood, b.Status)
	assert.InDelta(t, 100, report.OverallScore, 1e-9)
	assert.Equal(t, types.CalibrationGood, report.OverallStatus)
}

func TestAnalyze_WeightedError(t *testing.T) {
	// Bucket A: 10 trades at 0.85 confidence, 5 winners -> error 0.35.
	// Bucket B: 30 trades at 0.35 confidence, 12 winners -> error 0.05.
	// Weighted: (0.35*10 + 0.05*30) / 40 = 0.125 -> score 87.5.
	set := append(trades(10, 5, 0.85), trades(30, 12, 0.35)...)
	report := NewAnalyzer(3).Analyze(set)

	require.True(t, report.HasData)
	require.Len(t, report.Buckets, 2)
	assert.InDelta(t, 0.125, report.WeightedError, 1e-9)
	assert.InDelta(t, 87.5, report.OverallScore, 1e-9)
	assert.Equal(t, types.CalibrationGood, report.OverallStatus)
}

func TestAnalyze_BucketStatusThresholds(t *testing.T) {
	t.Run("moderate", func(t *testing.T) {
		// error 0.15
		report := NewAnalyzer(3).Analyze(trades(20, 10, 0.65))
		require.Len(t, report.Buckets, 1)
		assert.Equal(t, types.CalibrationModerate, report.Buckets[0].Status)
	})
	t.Run("poor", func(t *testing.T) {
		// error 0.45
		report := NewAnalyzer(3).Analyze(trades(20, 10, 0.95))
		require.Len(t, report.Buckets, 1)
		assert.Equal(t, types.CalibrationPoor, report.Buckets[0].Status)
	})
}

func TestAnalyze_InversionDetection(t *testing.T) {
	t.Run("detected when high bucket underperforms", func(t *testing.T) {
		set := append(trades(10, 4, 0.8), trades(10, 7, 0.3)...)
		report := NewAnalyzer(3).Analyze(set)
		assert.True(t, report.InversionDetected)
		assert.InDelta(t, 0.4, report.HighConfWinRate, 1e-9)
		assert.InDelta(t, 0.7, report.LowConfWinRate, 1e-9)
	})
	t.Run("equal rates are not an inversion", func(t *testing.T) {
		set := append(trades(10, 5, 0.8), trades(10, 5, 0.3)...)
		report := NewAnalyzer(3).Analyze(set)
		assert.False(t, report.InversionDetected)
	})
	t.Run("sparse side disables the check", func(t *testing.T) {
		set := append(trades(10, 4, 0.8), trades(2, 2, 0.3)...)
		report := NewAnalyzer(3).Analyze(set)
		assert.False(t, report.InversionDetected)
	})
}

func TestAnalyze_Deterministic(t *testing.T) {
	set := append(trades(15, 9, 0.72), trades(25, 8, 0.28)...)
	a := NewAnalyzer(3)
	first := a.Analyze(set)
	second := a.Analyze(set)
	assert.Equal(t, first, second)
}

func TestDecileIndex(t *testing.T) {
	assert.Equal(t, 0, decileIndex(0))
	assert.Equal(t, 0, decileIndex(-0.2))
	assert.Equal(t, 3, decileIndex(0.35))
	assert.Equal(t, 9, decileIndex(0.95))
	assert.Equal(t, 9, decileIndex(1.0))
	assert.Equal(t, 9, decileIndex(1.4))
}
