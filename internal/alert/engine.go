package alert

import (
	"fmt"
	"sort"

	"modelwatch/internal/config"
	"modelwatch/internal/health"
	"modelwatch/internal/types"
)

// Type enumerates the alert taxonomy. Categories are independent; one model
// can carry several alerts at once.
type Type string

const (
	TypeConfidenceInversion Type = "confidence_inversion"
	TypeLowWinRate          Type = "low_win_rate"
	TypeHighAverageLoss     Type = "high_average_loss"
	TypeConfidenceMismatch  Type = "confidence_mismatch"
	TypeInsufficientData    Type = "insufficient_data"
)

// Alert is one detected problem with an operator-facing recommendation.
type Alert struct {
	Type           Type             `json:"type"`
	Level          types.AlertLevel `json:"level"`
	Message        string           `json:"message"`
	Recommendation string           `json:"recommendation"`
}

// Engine evaluates the fixed rule set over a short-window health record plus
// the raw trades behind it. Rules are checked in severity order; each
// category fires at most once.
type Engine struct {
	th config.ThresholdConfig
}

// NewEngine builds an engine with the given thresholds. Engines are cheap;
// the orchestrator constructs a fresh one per cycle so threshold reloads
// take effect without locking.
func NewEngine(th config.ThresholdConfig) *Engine {
	return &Engine{th: th}
}

// Evaluate returns the alerts for one model, most severe first. Models with
// zero trades in the window are skipped entirely (nil result); the health
// scorer is the component that reports no_data.
func (e *Engine) Evaluate(rec health.Record, outcomes []types.TradeOutcome) []Alert {
	if len(outcomes) == 0 {
		return nil
	}

	var alerts []Alert

	minBucket := e.th.MinBucketTradesHealth
	if minBucket <= 0 {
		minBucket = 5
	}
	if highWR, lowWR, ok := inversionWinRates(outcomes, minBucket); ok && highWR < lowWR {
		alerts = append(alerts, Alert{
			Type:  TypeConfidenceInversion,
			Level: types.AlertLevelCritical,
			Message: fmt.Sprintf("High-confidence trades win %.1f%% vs %.1f%% for low-confidence trades",
				highWR, lowWR),
			Recommendation: "Retrain immediately: the model's confidence signal is inverted",
		})
	}

	if rec.WinRate < e.th.MinWinRatePct {
		alerts = append(alerts, Alert{
			Type:  TypeLowWinRate,
			Level: types.AlertLevelWarning,
			Message: fmt.Sprintf("Win rate %.1f%% is below the %.0f%% threshold",
				rec.WinRate, e.th.MinWinRatePct),
			Recommendation: "Review recent market conditions and consider retraining",
		})
	}

	if rec.AvgProfitLoss < e.th.MaxAvgLoss {
		alerts = append(alerts, Alert{
			Type:  TypeHighAverageLoss,
			Level: types.AlertLevelWarning,
			Message: fmt.Sprintf("Average loss $%.2f exceeds the $%.2f threshold",
				rec.AvgProfitLoss, e.th.MaxAvgLoss),
			Recommendation: "Check exit settings and retrain with recent data",
		})
	}

	if rec.AvgConfidence > e.th.OverconfidenceConfidence && rec.WinRate < e.th.OverconfidenceWinRatePct {
		alerts = append(alerts, Alert{
			Type:  TypeConfidenceMismatch,
			Level: types.AlertLevelInfo,
			Message: fmt.Sprintf("Average confidence %.2f but win rate only %.1f%%",
				rec.AvgConfidence, rec.WinRate),
			Recommendation: "Model looks overconfident; check calibration before retraining",
		})
	}

	if rec.TotalTrades < e.th.MinTradesForAlerts {
		alerts = append(alerts, Alert{
			Type:  TypeInsufficientData,
			Level: types.AlertLevelInfo,
			Message: fmt.Sprintf("Only %d trades in the window (need %d for reliable signals)",
				rec.TotalTrades, e.th.MinTradesForAlerts),
			Recommendation: "Let the model accumulate more trades before acting",
		})
	}

	SortBySeverity(alerts)
	return alerts
}

// inversionWinRates splits trades at confidence 0.5 and returns both win
// rates in percent. ok is false when either side has too few trades.
func inversionWinRates(outcomes []types.TradeOutcome, minTrades int) (high, low float64, ok bool) {
	var highN, highWins, lowN, lowWins int
	for _, o := range outcomes {
		if o.MLConfidence >= 0.5 {
			highN++
			if o.Win() {
				highWins++
			}
		} else {
			lowN++
			if o.Win() {
				lowWins++
			}
		}
	}
	if highN < minTrades || lowN < minTrades {
		return 0, 0, false
	}
	return float64(highWins) / float64(highN) * 100,
		float64(lowWins) / float64(lowN) * 100, true
}

// SortBySeverity orders alerts most severe first, stable within a level.
func SortBySeverity(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Level.Severity() > alerts[j].Level.Severity()
	})
}

// AggregateLevel returns the highest severity present, or "" for none.
func AggregateLevel(alerts []Alert) types.AlertLevel {
	var level types.AlertLevel
	for _, a := range alerts {
		level = types.MaxAlertLevel(level, a.Level)
	}
	return level
}

// Find returns the first alert of the given type, if present.
func Find(alerts []Alert, t Type) (Alert, bool) {
	for _, a := range alerts {
		if a.Type == t {
			return a, true
		}
	}
	return Alert{}, false
}
