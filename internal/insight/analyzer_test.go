package insight

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelwatch/internal/config"
	"modelwatch/internal/types"
)

func insightKey() types.ModelKey {
	return types.ModelKey{Direction: "long", Symbol: "BTCUSDT", Timeframe: "4h"}
}

func insightCfg() config.InsightConfig {
	return config.InsightConfig{MinRecommendations: 20, CacheTTLMinutes: 5, LookbackDays: 30}
}

func row(total, correct, incorrect int, finalConf float64, value int64) types.RecommendationRow {
	return types.RecommendationRow{
		Model:                    insightKey(),
		AnalysisMethod:           "indicator",
		TotalRecommendations:     total,
		CorrectRecommendations:   correct,
		IncorrectRecommendations: incorrect,
		AvgFinalConfidence:       finalConf,
		TotalRecommendationValue: decimal.NewFromInt(value),
	}
}

// fakeMetrics serves canned recommendation rows and counts queries.
type fakeMetrics struct {
	rows    []types.RecommendationRow
	queries int
}

func (f *fakeMetrics) GetTradeOutcomes(context.Context, types.ModelKey, time.Time, time.Time) ([]types.TradeOutcome, error) {
	return nil, nil
}

func (f *fakeMetrics) GetAllModelKeys(context.Context) ([]types.ModelKey, error) {
	return nil, nil
}

func (f *fakeMetrics) GetRecommendationPerformance(context.Context, string, string, int) ([]types.RecommendationRow, error) {
	f.queries++
	return f.rows, nil
}

func TestEvaluate_VeryLowAccuracy(t *testing.T) {
	a := NewAnalyzer(&fakeMetrics{}, insightCfg())
	sug := a.Evaluate(insightKey(), []types.RecommendationRow{
		row(25, 10, 14, 0.5, 50),
	})

	assert.True(t, sug.ShouldRetrain)
	assert.Equal(t, types.PriorityCritical, sug.Priority)
	assert.InDelta(t, 41.7, sug.OverallAccuracy, 0.1)
	assert.Contains(t, sug.Reason, "Very low accuracy")
	assert.False(t, sug.InsufficientData)
}

func TestEvaluate_InsufficientDataOverride(t *testing.T) {
	// Same dismal accuracy but only 10 recommendations: the data gate must
	// win over every accuracy rule.
	a := NewAnalyzer(&fakeMetrics{}, insightCfg())
	sug := a.Evaluate(insightKey(), []types.RecommendationRow{
		row(10, 4, 6, 0.5, -20),
	})

	assert.False(t, sug.ShouldRetrain)
	assert.True(t, sug.InsufficientData)
	assert.Equal(t, types.PriorityLow, sug.Priority)
	assert.Equal(t, "Insufficient data: 10 recommendations (need 20)", sug.Reason)
}

func TestEvaluate_AllUngradedIsInsufficientData(t *testing.T) {
	// Plenty of recommendations but no graded outcomes yet: 0% accuracy here
	// is absence of evidence, not evidence of a broken model.
	a := NewAnalyzer(&fakeMetrics{}, insightCfg())
	sug := a.Evaluate(insightKey(), []types.RecommendationRow{
		row(25, 0, 0, 0.5, 10),
	})

	assert.False(t, sug.ShouldRetrain)
	assert.True(t, sug.InsufficientData)
	assert.Equal(t, types.PriorityLow, sug.Priority)
	assert.Equal(t, "Insufficient data: 25 recommendations, none graded yet", sug.Reason)
	assert.Zero(t, sug.OverallAccuracy)
}

func TestEvaluate_AccuracyTiers(t *testing.T) {
	a := NewAnalyzer(&fakeMetrics{}, insightCfg())
	cases := []struct {
		name     string
		correct  int
		retrain  bool
		priority types.Priority
	}{
		{"44 pct critical", 44, true, types.PriorityCritical},
		{"50 pct high", 50, true, types.PriorityHigh},
		{"60 pct medium", 60, true, types.PriorityMedium},
		{"70 pct acceptable", 70, false, types.PriorityLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sug := a.Evaluate(insightKey(), []types.RecommendationRow{
				row(100, tc.correct, 100-tc.correct, 0.5, 10),
			})
			assert.Equal(t, tc.retrain, sug.ShouldRetrain)
			assert.Equal(t, tc.priority, sug.Priority)
		})
	}
}

func TestEvaluate_ValueFloors(t *testing.T) {
	a := NewAnalyzer(&fakeMetrics{}, insightCfg())

	t.Run("below -100 escalates to at least high", func(t *testing.T) {
		sug := a.Evaluate(insightKey(), []types.RecommendationRow{
			row(100, 70, 30, 0.5, -150), // accuracy fine on its own
		})
		assert.True(t, sug.ShouldRetrain)
		assert.Equal(t, types.PriorityHigh, sug.Priority)
		assert.Contains(t, sug.Reason, "recommendation value $-150.00")
	})

	t.Run("negative escalates to at least medium", func(t *testing.T) {
		sug := a.Evaluate(insightKey(), []types.RecommendationRow{
			row(100, 70, 30, 0.5, -40),
		})
		assert.True(t, sug.ShouldRetrain)
		assert.Equal(t, types.PriorityMedium, sug.Priority)
	})

	t.Run("never downgrades an accuracy verdict", func(t *testing.T) {
		sug := a.Evaluate(insightKey(), []types.RecommendationRow{
			row(100, 40, 60, 0.5, -40), // critical accuracy, medium value floor
		})
		assert.Equal(t, types.PriorityCritical, sug.Priority)
	})
}

func TestEvaluate_ConfidenceIssues(t *testing.T) {
	a := NewAnalyzer(&fakeMetrics{}, insightCfg())
	cases := []struct {
		name     string
		conf     float64
		correct  int
		expected string
	}{
		{"overconfident", 0.85, 55, IssueOverconfident},
		{"underconfident", 0.3, 75, IssueUnderconfident},
		{"severely overconfident", 0.65, 45, IssueSeverelyOverconfident},
		{"no issue", 0.55, 65, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sug := a.Evaluate(insightKey(), []types.RecommendationRow{
				row(100, tc.correct, 100-tc.correct, tc.conf, 10),
			})
			assert.Equal(t, tc.expected, sug.ConfidenceIssue)
		})
	}
}

func TestEvaluate_FiltersOtherModels(t *testing.T) {
	a := NewAnalyzer(&fakeMetrics{}, insightCfg())
	other := row(100, 10, 90, 0.5, -500)
	other.Model = types.ModelKey{Direction: "short", Symbol: "BTCUSDT", Timeframe: "4h"}

	sug := a.Evaluate(insightKey(), []types.RecommendationRow{other})
	assert.True(t, sug.InsufficientData)
	assert.Equal(t, 0, sug.TotalRecommendations)
}

func TestAnalyze_CacheTTL(t *testing.T) {
	metrics := &fakeMetrics{rows: []types.RecommendationRow{row(100, 70, 30, 0.5, 10)}}
	a := NewAnalyzer(metrics, insightCfg())

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	a.SetNowFunc(func() time.Time { return now })

	_, err := a.Analyze(context.Background(), insightKey())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.queries)

	// Within the TTL: served from cache.
	now = now.Add(4 * time.Minute)
	_, err = a.Analyze(context.Background(), insightKey())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.queries)

	// Past the TTL: recomputed.
	now = now.Add(2 * time.Minute)
	_, err = a.Analyze(context.Background(), insightKey())
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.queries)
}
