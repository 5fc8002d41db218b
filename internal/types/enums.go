package types

import "strings"

// AlertLevel is the severity of a single alert. Ordering is explicit via
// Severity; never compare the string values directly.
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Severity returns the rank of the level; higher means more severe.
func (l AlertLevel) Severity() int {
	switch l {
	case AlertLevelCritical:
		return 3
	case AlertLevelWarning:
		return 2
	case AlertLevelInfo:
		return 1
	default:
		return 0
	}
}

// MaxAlertLevel returns the more severe of two levels.
func MaxAlertLevel(a, b AlertLevel) AlertLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// Priority ranks retraining urgency: critical > high > medium > low.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns the numeric rank of the priority; higher means more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// MaxPriority returns the more urgent of two priorities.
func MaxPriority(a, b Priority) Priority {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParsePriority normalizes a priority string; unknown values map to low.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "medium":
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// HealthStatus classifies a model's health score. NoData is a distinct state,
// not a zero score: callers must render it differently.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthNoData   HealthStatus = "no_data"
)

// JobStatus tracks a retraining job's lifecycle. A job transitions exactly
// once out of in_progress.
type JobStatus string

const (
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CalibrationStatus classifies calibration quality for a bucket or a model.
type CalibrationStatus string

const (
	CalibrationGood     CalibrationStatus = "well_calibrated"
	CalibrationModerate CalibrationStatus = "moderately_calibrated"
	CalibrationPoor     CalibrationStatus = "poorly_calibrated"
)
