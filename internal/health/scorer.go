package health

import (
	"fmt"

	"github.com/shopspring/decimal"

	"modelwatch/internal/config"
	"modelwatch/internal/types"
)

// Record is a freshly derived health snapshot for one model. Records are
// recomputed from the trailing trade window on every cycle and never
// persisted, so a restart cannot serve stale scores.
type Record struct {
	Model           types.ModelKey     `json:"model_key"`
	HealthScore     int                `json:"health_score"`
	WinRate         float64            `json:"win_rate"`
	AvgConfidence   float64            `json:"avg_confidence"`
	AvgProfitLoss   float64            `json:"avg_profit_loss"`
	TotalProfitLoss decimal.Decimal    `json:"total_profit_loss"`
	TotalTrades     int                `json:"total_trades"`
	Status          types.HealthStatus `json:"status"`
	Issues          []string           `json:"issues"`
}

// Scorer turns a window of trade outcomes into a 0-100 health score.
// Three additive components: win rate (0-40), profitability (0-30) and
// confidence correlation (0-30).
type Scorer struct {
	minBucketTrades int
}

// NewScorer builds a scorer from the monitor thresholds.
func NewScorer(th config.ThresholdConfig) *Scorer {
	min := th.MinBucketTradesHealth
	if min <= 0 {
		min = 5
	}
	return &Scorer{minBucketTrades: min}
}

// Score computes the health record for one model. An empty window yields a
// no_data record with score 0; that is a valid state, not an error.
func (s *Scorer) Score(key types.ModelKey, outcomes []types.TradeOutcome) Record {
	if len(outcomes) == 0 {
		return Record{
			Model:           key,
			Status:          types.HealthNoData,
			TotalProfitLoss: decimal.Zero,
			Issues:          []string{"No recent trades"},
		}
	}

	var (
		wins    int
		confSum float64
		plSum   float64
		totalPL = decimal.Zero
	)
	for _, o := range outcomes {
		if o.Win() {
			wins++
		}
		confSum += o.MLConfidence
		plSum += o.ProfitLoss
		totalPL = totalPL.Add(decimal.NewFromFloat(o.ProfitLoss))
	}
	total := len(outcomes)
	winRate := float64(wins) / float64(total) * 100
	avgPL := plSum / float64(total)

	var issues []string
	score := winRatePoints(winRate)
	if winRate < 30 {
		issues = append(issues, fmt.Sprintf("Low win rate: %.1f%%", winRate))
	}

	profitPts, profitIssue := profitabilityPoints(avgPL)
	score += profitPts
	if profitIssue != "" {
		issues = append(issues, profitIssue)
	}

	confPts, confIssue := s.confidenceCorrelationPoints(outcomes)
	score += confPts
	if confIssue != "" {
		issues = append(issues, confIssue)
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return Record{
		Model:           key,
		HealthScore:     score,
		WinRate:         winRate,
		AvgConfidence:   confSum / float64(total),
		AvgProfitLoss:   avgPL,
		TotalProfitLoss: totalPL,
		TotalTrades:     total,
		Status:          StatusForScore(score),
		Issues:          issues,
	}
}

// StatusForScore maps a health score to its status. Pure function; no_data
// is assigned separately for empty windows.
func StatusForScore(score int) types.HealthStatus {
	switch {
	case score >= 80:
		return types.HealthHealthy
	case score >= 60:
		return types.HealthWarning
	default:
		return types.HealthCritical
	}
}

func winRatePoints(winRate float64) int {
	switch {
	case winRate >= 60:
		return 40
	case winRate >= 50:
		return 30
	case winRate >= 40:
		return 20
	case winRate >= 30:
		return 10
	default:
		return 0
	}
}

func profitabilityPoints(avgPL float64) (int, string) {
	switch {
	case avgPL > 0:
		return 30, ""
	case avgPL > -1:
		return 20, ""
	case avgPL > -2:
		return 10, ""
	default:
		return 0, fmt.Sprintf("High average loss: $%.2f", avgPL)
	}
}

// confidenceCorrelationPoints checks whether high-confidence trades actually
// win more often than low-confidence ones. Buckets with fewer than
// minBucketTrades trades are dropped; without both buckets the component is
// neutral (15).
func (s *Scorer) confidenceCorrelationPoints(outcomes []types.TradeOutcome) (int, string) {
	highWR, highOK := bucketWinRate(outcomes, true, s.minBucketTrades)
	lowWR, lowOK := bucketWinRate(outcomes, false, s.minBucketTrades)
	if !highOK || !lowOK {
		return 15, ""
	}
	switch {
	case highWR > lowWR:
		return 30, ""
	case highWR == lowWR:
		return 15, ""
	default:
		return 0, "Higher confidence trades perform worse"
	}
}

func bucketWinRate(outcomes []types.TradeOutcome, high bool, minTrades int) (float64, bool) {
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
	if total < minTrades {
		return 0, false
	}
	return float64(wins) / float64(total) * 100, true
}
