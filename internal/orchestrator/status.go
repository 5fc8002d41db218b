package orchestrator

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"modelwatch/internal/alert"
	"modelwatch/internal/calibration"
	"modelwatch/internal/health"
	"modelwatch/internal/logger"
	"modelwatch/internal/store"
	"modelwatch/internal/types"
)

// HealthOverview is the operator summary across all models.
type HealthOverview struct {
	Totals  map[types.HealthStatus]int `json:"totals"`
	Records []health.Record            `json:"records"`
	Skipped int                        `json:"skipped"`
}

// ModelAlerts pairs one model with its current alerts.
type ModelAlerts struct {
	Model  types.ModelKey   `json:"model_key"`
	Level  types.AlertLevel `json:"alert_level"`
	Alerts []alert.Alert    `json:"alerts"`
}

// AlertsOverview is the alert summary across all models.
type AlertsOverview struct {
	Counts  map[types.AlertLevel]int `json:"counts"`
	Models  []ModelAlerts            `json:"models"`
	Skipped int                      `json:"skipped"`
}

// ModelEligibility reports whether a model could start a job right now.
type ModelEligibility struct {
	Model    types.ModelKey `json:"model_key"`
	Eligible bool           `json:"eligible"`
	Reason   string         `json:"reason,omitempty"`
}

// StatusReport is the retraining-status payload: live jobs, durable history
// and per-model eligibility.
type StatusReport struct {
	ActiveJobs  []Job                `json:"active_jobs"`
	RecentJobs  []Job                `json:"recent_jobs"`
	History     []store.HistoryEntry `json:"history"`
	Eligibility []ModelEligibility   `json:"eligibility,omitempty"`
}

// HealthOverview scores every model over the health window, worst first.
// no_data models sort last: they carry no signal, not the worst signal.
func (o *Orchestrator) HealthOverview(ctx context.Context) (HealthOverview, error) {
	overview := HealthOverview{Totals: make(map[types.HealthStatus]int)}
	keys, err := o.metrics.GetAllModelKeys(ctx)
	if err != nil {
		return overview, err
	}
	mon := o.monitorFn()
	records := make([]*health.Record, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreConcurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			now := o.nowFn()
			outcomes, err := o.metrics.GetTradeOutcomes(gctx, key, now.AddDate(0, 0, -mon.HealthWindowDays), now)
			if err != nil {
				logger.Warnf("health overview, model %s skipped: %v", key, err)
				return nil
			}
			rec := health.NewScorer(mon.Thresholds).Score(key, outcomes)
			records[i] = &rec
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range records {
		if rec == nil {
			overview.Skipped++
			continue
		}
		overview.Totals[rec.Status]++
		overview.Records = append(overview.Records, *rec)
	}
	sort.SliceStable(overview.Records, func(i, j int) bool {
		a, b := overview.Records[i], overview.Records[j]
		if (a.Status == types.HealthNoData) != (b.Status == types.HealthNoData) {
			return b.Status == types.HealthNoData
		}
		return a.HealthScore < b.HealthScore
	})
	return overview, nil
}

// AlertsOverview evaluates the alert rules for every model over the short
// window. Models without recent trades produce no entry.
func (o *Orchestrator) AlertsOverview(ctx context.Context) (AlertsOverview, error) {
	overview := AlertsOverview{Counts: make(map[types.AlertLevel]int)}
	keys, err := o.metrics.GetAllModelKeys(ctx)
	if err != nil {
		return overview, err
	}
	mon := o.monitorFn()
	results := make([]*ModelAlerts, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreConcurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			now := o.nowFn()
			outcomes, err := o.metrics.GetTradeOutcomes(gctx, key, now.AddDate(0, 0, -mon.AlertWindowDays), now)
			if err != nil {
				logger.Warnf("alert overview, model %s skipped: %v", key, err)
				return nil
			}
			record := health.NewScorer(mon.Thresholds).Score(key, outcomes)
			alerts := alert.NewEngine(mon.Thresholds).Evaluate(record, outcomes)
			if len(alerts) == 0 {
				return nil
			}
			results[i] = &ModelAlerts{
				Model:  key,
				Level:  alert.AggregateLevel(alerts),
				Alerts: alerts,
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res == nil {
			continue
		}
		overview.Models = append(overview.Models, *res)
		for _, a := range res.Alerts {
			overview.Counts[a.Level]++
		}
	}
	sort.SliceStable(overview.Models, func(i, j int) bool {
		return overview.Models[i].Level.Severity() > overview.Models[j].Level.Severity()
	})
	return overview, nil
}

// Calibration profiles one model over [start, end); zero times fall back to
// the configured calibration window.
func (o *Orchestrator) Calibration(ctx context.Context, key types.ModelKey, start, end time.Time) (calibration.Report, error) {
	mon := o.monitorFn()
	if end.IsZero() {
		end = o.nowFn()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -mon.CalibrationWindowDays)
	}
	outcomes, err := o.metrics.GetTradeOutcomes(ctx, key, start, end)
	if err != nil {
		return calibration.Report{}, err
	}
	return calibration.NewAnalyzer(mon.Thresholds.MinBucketTradesCalibration).Analyze(outcomes), nil
}

// Status assembles the retraining-status payload, optionally filtered to
// one model.
func (o *Orchestrator) Status(ctx context.Context, key *types.ModelKey) (StatusReport, error) {
	report := StatusReport{}
	for _, job := range o.jobs.Snapshot(key) {
		if job.Status == types.JobInProgress {
			report.ActiveJobs = append(report.ActiveJobs, job)
		} else {
			report.RecentJobs = append(report.RecentJobs, job)
		}
	}
	if o.history != nil {
		entries, err := o.history.ListRetrainingHistory(ctx, key, 0)
		if err != nil {
			return report, err
		}
		report.History = entries
	}
	if key != nil {
		eligible, reason := o.jobs.Eligibility(*key)
		report.Eligibility = []ModelEligibility{{Model: *key, Eligible: eligible, Reason: reason}}
	}
	return report, nil
}
