package decision

import (
	"fmt"
	"time"

	"modelwatch/internal/alert"
	"modelwatch/internal/health"
	"modelwatch/internal/insight"
	"modelwatch/internal/types"
)

// Input gathers every signal the engine merges for one model. Insight is
// optional; a nil pointer means the analyzer had nothing usable this cycle.
type Input struct {
	Model   types.ModelKey
	Alerts  []alert.Alert
	Health  health.Record
	Insight *insight.Suggestion

	// InProgressSince is set when a retraining job is currently running
	// for this model; it short-circuits every other rule.
	InProgressSince *time.Time
	Now             time.Time
}

// Verdict is the engine's retrain-or-skip decision.
type Verdict struct {
	Model              types.ModelKey `json:"model_key"`
	ShouldRetrain      bool           `json:"should_retrain"`
	Priority           types.Priority `json:"priority"`
	Reason             string         `json:"reason"`
	RecommendedActions []string       `json:"recommended_actions,omitempty"`
}

// Engine converts alerts, health and insight signals into a single verdict.
// Rules are evaluated strictly top to bottom; the first applicable one wins.
type Engine struct {
	lowHealthScore int
}

// NewEngine builds an engine. lowHealthScore below 1 falls back to 50.
func NewEngine(lowHealthScore int) *Engine {
	if lowHealthScore < 1 {
		lowHealthScore = 50
	}
	return &Engine{lowHealthScore: lowHealthScore}
}

// Decide resolves the verdict for one model.
func (e *Engine) Decide(in Input) Verdict {
	v := Verdict{Model: in.Model, Priority: types.PriorityLow}

	// A running job takes precedence over every signal below.
	if in.InProgressSince != nil {
		now := in.Now
		if now.IsZero() {
			now = time.Now()
		}
		elapsed := now.Sub(*in.InProgressSince).Hours()
		v.Reason = fmt.Sprintf("Retraining already in progress (started %.1f hours ago)", elapsed)
		return v
	}

	if a, ok := alert.Find(in.Alerts, alert.TypeConfidenceInversion); ok {
		v.ShouldRetrain = true
		v.Priority = types.PriorityCritical
		v.Reason = a.Message
		v.RecommendedActions = []string{a.Recommendation}
		return v
	}

	if a, ok := firstWarning(in.Alerts); ok {
		v.ShouldRetrain = true
		v.Priority = types.PriorityHigh
		v.Reason = a.Message
		v.RecommendedActions = []string{a.Recommendation}
		return v
	}

	// no_data is a distinct state, never treated as a low score.
	if in.Health.Status != types.HealthNoData && in.Health.HealthScore < e.lowHealthScore {
		v.ShouldRetrain = true
		v.Priority = types.PriorityMedium
		v.Reason = fmt.Sprintf("Low health score: %d/100", in.Health.HealthScore)
		return v
	}

	if in.Insight != nil && in.Insight.ShouldRetrain {
		v.ShouldRetrain = true
		v.Priority = in.Insight.Priority
		v.Reason = in.Insight.Reason
		v.RecommendedActions = in.Insight.RecommendedActions
		return v
	}

	v.Reason = "Model performing within thresholds"
	return v
}

func firstWarning(alerts []alert.Alert) (alert.Alert, bool) {
	for _, a := range alerts {
		if a.Level == types.AlertLevelWarning {
			return a, true
		}
	}
	return alert.Alert{}, false
}
