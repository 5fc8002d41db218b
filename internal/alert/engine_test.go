package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelwatch/internal/config"
	"modelwatch/internal/health"
	"modelwatch/internal/types"
)

func defaultThresholds() config.ThresholdConfig {
	return config.ThresholdConfig{
		MinWinRatePct:            40,
		MaxAvgLoss:               -2.0,
		OverconfidenceConfidence: 0.7,
		OverconfidenceWinRatePct: 50,
		MinTradesForAlerts:       10,
		MinBucketTradesHealth:    5,
	}
}

func alertKey() types.ModelKey {
	return types.ModelKey{Direction: "short", Symbol: "ETHUSDT", Timeframe: "1h"}
}

func outcomes(n, wins int, confidence, winPL, lossPL float64) []types.TradeOutcome {
	out := make([]types.TradeOutcome, 0, n)
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		pl := lossPL
		if i < wins {
			pl = winPL
		}
		out = append(out, types.TradeOutcome{
			Model:        alertKey(),
			ProfitLoss:   pl,
			MLConfidence: confidence,
			TradeTime:    base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func score(th config.ThresholdConfig, out []types.TradeOutcome) health.Record {
	return health.NewScorer(th).Score(alertKey(), out)
}

func TestEvaluate_ZeroTradesSkipped(t *testing.T) {
	th := defaultThresholds()
	eng := NewEngine(th)
	assert.Nil(t, eng.Evaluate(score(th, nil), nil))
}

func TestEvaluate_HealthyModelNoAlerts(t *testing.T) {
	th := defaultThresholds()
	set := outcomes(40, 24, 0.6, 2.0, -1.0) // 60% win rate, positive P/L
	alerts := NewEngine(th).Evaluate(score(th, set), set)
	assert.Empty(t, alerts)
}

func TestEvaluate_ConfidenceInversion(t *testing.T) {
	th := defaultThresholds()

	t.Run("fires when high bucket strictly underperforms", func(t *testing.T) {
		set := append(outcomes(10, 4, 0.8, 3.0, -1.0), outcomes(10, 7, 0.3, 3.0, -1.0)...)
		alerts := NewEngine(th).Evaluate(score(th, set), set)
		a, ok := Find(alerts, TypeConfidenceInversion)
		require.True(t, ok)
		assert.Equal(t, types.AlertLevelCritical, a.Level)
		assert.Equal(t, "High-confidence trades win 40.0% vs 70.0% for low-confidence trades", a.Message)
	})

	t.Run("equal win rates do not fire", func(t *testing.T) {
		set := append(outcomes(10, 5, 0.8, 3.0, -1.0), outcomes(10, 5, 0.3, 3.0, -1.0)...)
		alerts := NewEngine(th).Evaluate(score(th, set), set)
		_, ok := Find(alerts, TypeConfidenceInversion)
		assert.False(t, ok)
	})

	t.Run("sparse bucket disables the check", func(t *testing.T) {
		set := append(outcomes(10, 4, 0.8, 3.0, -1.0), outcomes(4, 4, 0.3, 3.0, -1.0)...)
		alerts := NewEngine(th).Evaluate(score(th, set), set)
		_, ok := Find(alerts, TypeConfidenceInversion)
		assert.False(t, ok)
	})
}

func TestEvaluate_LowWinRate(t *testing.T) {
	th := defaultThresholds()
	set := outcomes(20, 7, 0.6, 4.0, -1.0) // 35%
	alerts := NewEngine(th).Evaluate(score(th, set), set)

	a, ok := Find(alerts, TypeLowWinRate)
	require.True(t, ok)
	assert.Equal(t, types.AlertLevelWarning, a.Level)
	assert.Contains(t, a.Message, "35.0%")
}

func TestEvaluate_HighAverageLoss(t *testing.T) {
	th := defaultThresholds()
	set := outcomes(20, 9, 0.6, 1.0, -6.0) // avg (9 - 66)/20 = -2.85
	alerts := NewEngine(th).Evaluate(score(th, set), set)

	a, ok := Find(alerts, TypeHighAverageLoss)
	require.True(t, ok)
	assert.Equal(t, types.AlertLevelWarning, a.Level)
	assert.Contains(t, a.Message, "$-2.85")
}

func TestEvaluate_ConfidenceMismatch(t *testing.T) {
	th := defaultThresholds()
	set := outcomes(20, 9, 0.85, 3.0, -1.0) // 45% win rate, avg conf 0.85
	alerts := NewEngine(th).Evaluate(score(th, set), set)

	a, ok := Find(alerts, TypeConfidenceMismatch)
	require.True(t, ok)
	assert.Equal(t, types.AlertLevelInfo, a.Level)
}

func TestEvaluate_InsufficientData(t *testing.T) {
	th := defaultThresholds()
	set := outcomes(6, 4, 0.6, 2.0, -1.0)
	alerts := NewEngine(th).Evaluate(score(th, set), set)

	a, ok := Find(alerts, TypeInsufficientData)
	require.True(t, ok)
	assert.Equal(t, types.AlertLevelInfo, a.Level)
	assert.Contains(t, a.Message, "Only 6 trades")
}

func TestEvaluate_CoOccurrenceAndOrdering(t *testing.T) {
	th := defaultThresholds()
	// Inverted confidence plus a win rate below 40%: both must fire, and
	// the critical inversion must sort first.
	set := append(outcomes(10, 2, 0.8, 1.0, -1.2), outcomes(10, 5, 0.3, 1.0, -1.2)...)
	alerts := NewEngine(th).Evaluate(score(th, set), set)

	require.NotEmpty(t, alerts)
	assert.Equal(t, TypeConfidenceInversion, alerts[0].Type)
	_, lowWR := Find(alerts, TypeLowWinRate)
	assert.True(t, lowWR)
	for i := 1; i < len(alerts); i++ {
		assert.GreaterOrEqual(t, alerts[i-1].Level.Severity(), alerts[i].Level.Severity())
	}
}

func TestAggregateLevel(t *testing.T) {
	assert.Equal(t, types.AlertLevel(""), AggregateLevel(nil))
	alerts := []Alert{
		{Level: types.AlertLevelInfo},
		{Level: types.AlertLevelCritical},
		{Level: types.AlertLevelWarning},
	}
	assert.Equal(t, types.AlertLevelCritical, AggregateLevel(alerts))
}
