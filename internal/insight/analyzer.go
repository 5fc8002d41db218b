package insight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"modelwatch/internal/config"
	"modelwatch/internal/store"
	"modelwatch/internal/types"
)

// Confidence-issue tags, evaluated in order; the first match wins.
const (
	IssueOverconfident         = "overconfident"
	IssueUnderconfident        = "underconfident"
	IssueSeverelyOverconfident = "severely_overconfident"
)

// Suggestion is the analyzer's verdict on one model's recommendation track
// record. It feeds the retraining decision engine alongside health and
// alert signals.
type Suggestion struct {
	Model                types.ModelKey  `json:"model_key"`
	ShouldRetrain        bool            `json:"should_retrain"`
	Priority             types.Priority  `json:"priority"`
	Reason               string          `json:"reason"`
	OverallAccuracy      float64         `json:"overall_accuracy"`
	ConfidenceIssue      string          `json:"confidence_issue,omitempty"`
	TotalRecommendations int             `json:"total_recommendations"`
	TotalValue           decimal.Decimal `json:"total_recommendation_value"`
	InsufficientData     bool            `json:"insufficient_data"`
	RecommendedActions   []string        `json:"recommended_actions,omitempty"`
}

type cacheEntry struct {
	suggestion Suggestion
	storedAt   time.Time
}

// Analyzer aggregates recommendation-performance rows into retraining
// signals. Results are cached per model key with a short TTL; stale entries
// are evicted lazily on read, there is no background sweep.
type Analyzer struct {
	metrics      store.MetricsStore
	minRecs      int
	lookbackDays int
	ttl          time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
	nowFn func() time.Time
}

// NewAnalyzer builds an analyzer backed by the metrics store.
func NewAnalyzer(metrics store.MetricsStore, cfg config.InsightConfig) *Analyzer {
	return &Analyzer{
		metrics:      metrics,
		minRecs:      cfg.MinRecommendations,
		lookbackDays: cfg.LookbackDays,
		ttl:          cfg.CacheTTL(),
		cache:        make(map[string]cacheEntry),
		nowFn:        time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (a *Analyzer) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		a.nowFn = fn
	}
}

// Analyze returns the cached suggestion when fresh, otherwise queries the
// store and recomputes.
func (a *Analyzer) Analyze(ctx context.Context, key types.ModelKey) (Suggestion, error) {
	if sug, ok := a.cached(key); ok {
		return sug, nil
	}
	rows, err := a.metrics.GetRecommendationPerformance(ctx, key.Symbol, key.Timeframe, a.lookbackDays)
	if err != nil {
		return Suggestion{}, fmt.Errorf("recommendation performance for %s: %w", key, err)
	}
	sug := a.Evaluate(key, rows)
	a.put(key, sug)
	return sug, nil
}

func (a *Analyzer) cached(key types.ModelKey) (Suggestion, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.cache[key.String()]
	if !ok {
		return Suggestion{}, false
	}
	if a.ttl > 0 && a.nowFn().Sub(entry.storedAt) >= a.ttl {
		delete(a.cache, key.String())
		return Suggestion{}, false
	}
	return entry.suggestion, true
}

func (a *Analyzer) put(key types.ModelKey, sug Suggestion) {
	a.mu.Lock()
	a.cache[key.String()] = cacheEntry{suggestion: sug, storedAt: a.nowFn()}
	a.mu.Unlock()
}

// Evaluate computes a suggestion from raw rows. Pure; exported so the
// decision path can be exercised without a store.
func (a *Analyzer) Evaluate(key types.ModelKey, rows []types.RecommendationRow) Suggestion {
	var (
		totalRecs  int
		correct    int
		incorrect  int
		confWeight float64
		totalValue = decimal.Zero
	)
	for _, row := range rows {
		if row.Model != key {
			continue
		}
		totalRecs += row.TotalRecommendations
		correct += row.CorrectRecommendations
		incorrect += row.IncorrectRecommendations
		confWeight += row.AvgFinalConfidence * float64(row.TotalRecommendations)
		totalValue = totalValue.Add(row.TotalRecommendationValue)
	}

	sug := Suggestion{
		Model:                key,
		Priority:             types.PriorityLow,
		TotalRecommendations: totalRecs,
		TotalValue:           totalValue,
	}

	// Data sufficiency is a hard gate: too few recommendations force a
	// low-priority no-op even when the accuracy numbers look alarming.
	if totalRecs < a.minRecs {
		sug.InsufficientData = true
		sug.Reason = fmt.Sprintf("Insufficient data: %d recommendations (need %d)", totalRecs, a.minRecs)
		sug.RecommendedActions = []string{"Wait for more recommendations before judging this model"}
		return sug
	}

	// Ungraded recommendations carry no accuracy signal. Without this gate
	// an all-ungraded model would read as 0% accuracy and trigger a
	// critical retrain on no evidence.
	graded := correct + incorrect
	if graded == 0 {
		sug.InsufficientData = true
		sug.Reason = fmt.Sprintf("Insufficient data: %d recommendations, none graded yet", totalRecs)
		sug.RecommendedActions = []string{"Wait for recommendation outcomes to be graded"}
		return sug
	}

	accuracy := float64(correct) / float64(graded) * 100
	avgFinalConf := confWeight / float64(totalRecs)
	sug.OverallAccuracy = accuracy
	sug.ConfidenceIssue = classifyConfidenceIssue(avgFinalConf, accuracy)

	switch {
	case accuracy < 45:
		sug.ShouldRetrain = true
		sug.Priority = types.PriorityCritical
		sug.Reason = fmt.Sprintf("Very low accuracy: %.1f%%", accuracy)
	case accuracy < 55:
		sug.ShouldRetrain = true
		sug.Priority = types.PriorityHigh
		sug.Reason = fmt.Sprintf("Low accuracy: %.1f%%", accuracy)
	case accuracy < 65:
		sug.ShouldRetrain = true
		sug.Priority = types.PriorityMedium
		sug.Reason = fmt.Sprintf("Moderate accuracy: %.1f%%", accuracy)
	default:
		sug.Reason = fmt.Sprintf("Accuracy acceptable: %.1f%%", accuracy)
	}

	// Losing money on followed recommendations escalates priority even
	// when accuracy alone would not trigger retraining.
	if totalValue.LessThan(decimal.NewFromInt(-100)) {
		sug.ShouldRetrain = true
		sug.Priority = types.MaxPriority(sug.Priority, types.PriorityHigh)
		sug.Reason = fmt.Sprintf("%s; recommendation value $%s", sug.Reason, totalValue.StringFixed(2))
	} else if totalValue.IsNegative() {
		sug.ShouldRetrain = true
		sug.Priority = types.MaxPriority(sug.Priority, types.PriorityMedium)
		sug.Reason = fmt.Sprintf("%s; recommendation value $%s", sug.Reason, totalValue.StringFixed(2))
	}

	if sug.ShouldRetrain {
		sug.RecommendedActions = append(sug.RecommendedActions, "Retrain with recent trade outcomes")
	}
	switch sug.ConfidenceIssue {
	case IssueOverconfident, IssueSeverelyOverconfident:
		sug.RecommendedActions = append(sug.RecommendedActions, "Recalibrate confidence outputs")
	case IssueUnderconfident:
		sug.RecommendedActions = append(sug.RecommendedActions, "Confidence is understated; review calibration")
	}
	return sug
}

func classifyConfidenceIssue(avgFinalConf, accuracy float64) string {
	switch {
	case avgFinalConf > 0.8 && accuracy < 60:
		return IssueOverconfident
	case avgFinalConf < 0.4 && accuracy > 70:
		return IssueUnderconfident
	case avgFinalConf > 0.6 && accuracy < 50:
		return IssueSeverelyOverconfident
	default:
		return ""
	}
}
