package calibration

import (
	"math"

	"modelwatch/internal/types"
)

// Bucket aggregates trades whose predicted confidence falls into one decile.
type Bucket struct {
	RangeLow         float64                 `json:"range_low"`
	RangeHigh        float64                 `json:"range_high"`
	TotalTrades      int                     `json:"total_trades"`
	WinningTrades    int                     `json:"winning_trades"`
	ActualWinRate    float64                 `json:"actual_win_rate"`
	ExpectedWinRate  float64                 `json:"expected_win_rate"`
	CalibrationError float64                 `json:"calibration_error"`
	Status           types.CalibrationStatus `json:"status"`
}

// Report is the calibration profile of one model over a date range. HasData
// distinguishes "no qualifying buckets" from a genuine zero score.
type Report struct {
	Buckets           []Bucket                `json:"buckets"`
	WeightedError     float64                 `json:"weighted_calibration_error"`
	OverallScore      float64                 `json:"overall_calibration_score"`
	OverallStatus     types.CalibrationStatus `json:"overall_status"`
	InversionDetected bool                    `json:"confidence_inversion_detected"`
	HighConfWinRate   float64                 `json:"high_confidence_win_rate"`
	LowConfWinRate    float64                 `json:"low_confidence_win_rate"`
	TotalTrades       int                     `json:"total_trades"`
	HasData           bool                    `json:"has_data"`
}

// Analyzer buckets trades into confidence deciles and measures how far each
// decile's empirical win rate drifts from its stated confidence.
type Analyzer struct {
	minBucketTrades int
}

// NewAnalyzer builds an analyzer; minBucketTrades below 1 falls back to 3.
func NewAnalyzer(minBucketTrades int) *Analyzer {
	if minBucketTrades < 1 {
		minBucketTrades = 3
	}
	return &Analyzer{minBucketTrades: minBucketTrades}
}

// Analyze is a pure function of its input: identical trade sets yield
// identical reports.
func (a *Analyzer) Analyze(outcomes []types.TradeOutcome) Report {
	report := Report{TotalTrades: len(outcomes)}
	if len(outcomes) == 0 {
		return report
	}

	type acc struct {
		total   int
		wins    int
		confSum float64
	}
	var deciles [10]acc
	for _, o := range outcomes {
		idx := decileIndex(o.MLConfidence)
		deciles[idx].total++
		deciles[idx].confSum += o.MLConfidence
		if o.Win() {
			deciles[idx].wins++
		}
	}

	var (
		weightedSum float64
		weightTotal int
	)
	for i, d := range deciles {
		if d.total < a.minBucketTrades {
			continue
		}
		actual := float64(d.wins) / float64(d.total)
		expected := d.confSum / float64(d.total)
		errVal := math.Abs(expected - actual)
		report.Buckets = append(report.Buckets, Bucket{
			RangeLow:         float64(i) / 10,
			RangeHigh:        float64(i+1) / 10,
			TotalTrades:      d.total,
			WinningTrades:    d.wins,
			ActualWinRate:    actual,
			ExpectedWinRate:  expected,
			CalibrationError: errVal,
			Status:           statusForError(errVal),
		})
		weightedSum += errVal * float64(d.total)
		weightTotal += d.total
	}

	if weightTotal == 0 {
		// No decile holds enough trades; callers must treat this as
		// "no data", not a score of zero.
		return report
	}

	report.HasData = true
	report.WeightedError = weightedSum / float64(weightTotal)
	report.OverallScore = math.Max(0, 100-report.WeightedError*100)
	report.OverallStatus = statusForScore(report.OverallScore)

	highWR, highN := splitWinRate(outcomes, true)
	lowWR, lowN := splitWinRate(outcomes, false)
	report.HighConfWinRate = highWR
	report.LowConfWinRate = lowWR
	if highN >= a.minBucketTrades && lowN >= a.minBucketTrades && highWR < lowWR {
		report.InversionDetected = true
	}
	return report
}

func decileIndex(confidence float64) int {
	if confidence < 0 {
		return 0
	}
	idx := int(confidence * 10)
	if idx > 9 {
		idx = 9
	}
	return idx
}

func statusForError(err float64) types.CalibrationStatus {
	switch {
	case err < 0.1:
		return types.CalibrationGood
	case err < 0.2:
		return types.CalibrationModerate
	default:
		return types.CalibrationPoor
	}
}

func statusForScore(score float64) types.CalibrationStatus {
	switch {
	case score >= 80:
		return types.CalibrationGood
	case score >= 60:
		return types.CalibrationModerate
	default:
		return types.CalibrationPoor
	}
}

func splitWinRate(outcomes []types.TradeOutcome, high bool) (float64, int) {
	var total, wins int
	for _, o := range outcomes {
		if (o.MLConfidence >= 0.5) != high {
			continue
		}
		total++
		if o.Win() {
			wins++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(wins) / float64(total), total
}
