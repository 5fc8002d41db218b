package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"modelwatch/internal/alert"
	"modelwatch/internal/config"
	"modelwatch/internal/decision"
	"modelwatch/internal/health"
	"modelwatch/internal/insight"
	"modelwatch/internal/logger"
	"modelwatch/internal/store"
	"modelwatch/internal/telemetry"
	"modelwatch/internal/training"
	"modelwatch/internal/types"
)

// scoreConcurrency bounds the fan-out when scoring models within one cycle.
// Scoring is read-only so models can be scored in parallel safely.
const scoreConcurrency = 4

// Params collects the orchestrator's dependencies.
type Params struct {
	Metrics    store.MetricsStore
	History    store.HistoryStore
	Insights   *insight.Analyzer
	Trainer    training.Trainer
	Features   training.FeatureBuilder
	Retraining config.RetrainingConfig
	// MonitorFn returns the current monitor config; it is a function so
	// threshold hot-reloads take effect on the next cycle.
	MonitorFn func() config.MonitorConfig
	Telemetry *telemetry.Metrics
}

// Orchestrator owns the periodic scoring pass and all retraining job state.
type Orchestrator struct {
	metrics    store.MetricsStore
	history    store.HistoryStore
	insights   *insight.Analyzer
	trainer    training.Trainer
	features   training.FeatureBuilder
	retraining config.RetrainingConfig
	monitorFn  func() config.MonitorConfig
	telem      *telemetry.Metrics

	jobs    *JobStore
	workers sync.WaitGroup
	nowFn   func() time.Time
}

// New validates params and builds an orchestrator with empty job state.
func New(p Params) (*Orchestrator, error) {
	if p.Metrics == nil {
		return nil, fmt.Errorf("orchestrator requires a metrics store")
	}
	if p.Trainer == nil {
		return nil, fmt.Errorf("orchestrator requires a trainer")
	}
	if p.Features == nil {
		return nil, fmt.Errorf("orchestrator requires a feature builder")
	}
	if p.MonitorFn == nil {
		return nil, fmt.Errorf("orchestrator requires a monitor config source")
	}
	return &Orchestrator{
		metrics:    p.Metrics,
		history:    p.History,
		insights:   p.Insights,
		trainer:    p.Trainer,
		features:   p.Features,
		retraining: p.Retraining,
		monitorFn:  p.MonitorFn,
		telem:      p.Telemetry,
		jobs: NewJobStore(p.Retraining.MaxConcurrent,
			p.Retraining.Cooldown(), p.Retraining.JobRetention()),
		nowFn: time.Now,
	}, nil
}

// SetNowFunc overrides the clock for the orchestrator and its job store.
func (o *Orchestrator) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	o.nowFn = fn
	o.jobs.SetNowFunc(fn)
}

// Jobs exposes the job store for status reads.
func (o *Orchestrator) Jobs() *JobStore { return o.jobs }

// WaitForJobs blocks until all in-flight training workers return. Used on
// shutdown and by tests.
func (o *Orchestrator) WaitForJobs() { o.workers.Wait() }

// CycleSummary is the partial-failure report for one orchestration pass.
type CycleSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Processed int           `json:"processed"`
	Retrained int           `json:"retrained"`
	Skipped   int           `json:"skipped"`
	Errored   int           `json:"errored"`
}

// modelSnapshot is one model's scored state within a cycle.
type modelSnapshot struct {
	key      types.ModelKey
	health   health.Record
	alerts   []alert.Alert
	insight  *insight.Suggestion
	outcomes []types.TradeOutcome
	err      error
}

// RunCycle executes one orchestration pass: score every model, decide, and
// start training jobs up to the concurrency cap. One model's failure never
// aborts the rest of the batch.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleSummary, error) {
	start := o.nowFn()
	summary := CycleSummary{StartedAt: start}
	if o.telem != nil {
		o.telem.CyclesTotal.Inc()
	}
	defer func() {
		summary.Duration = o.nowFn().Sub(start)
		if o.telem != nil {
			o.telem.ObserveCycle(start)
		}
	}()

	if purged := o.jobs.Purge(); purged > 0 {
		logger.Debugf("purged %d stale retraining jobs", purged)
	}

	keys, err := o.metrics.GetAllModelKeys(ctx)
	if err != nil {
		logger.Errorf("cycle aborted, cannot list models: %v", err)
		return summary, err
	}

	mon := o.monitorFn()
	snapshots := make([]*modelSnapshot, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreConcurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			snapshots[i] = o.collect(gctx, mon, key)
			return nil
		})
	}
	_ = g.Wait()

	eng := decision.NewEngine(mon.Thresholds.LowHealthScore)
	for _, snap := range snapshots {
		if snap == nil {
			continue
		}
		if snap.err != nil {
			summary.Errored++
			if o.telem != nil {
				o.telem.CycleErrorsTotal.Inc()
			}
			logger.Warnf("model %s skipped this cycle: %v", snap.key, snap.err)
			continue
		}
		summary.Processed++
		if o.telem != nil {
			o.telem.ModelsScoredTotal.Inc()
		}

		verdict := eng.Decide(decision.Input{
			Model:           snap.key,
			Alerts:          snap.alerts,
			Health:          snap.health,
			Insight:         snap.insight,
			InProgressSince: o.jobs.InProgressSince(snap.key),
			Now:             o.nowFn(),
		})
		if !verdict.ShouldRetrain {
			summary.Skipped++
			continue
		}

		job, err := o.jobs.StartJob(snap.key, verdict.Reason, verdict.Priority)
		if err != nil {
			// Cap and cooldown rejections are normal flow, not errors;
			// the candidate is re-evaluated next cycle.
			summary.Skipped++
			logger.Infof("model %s not started: %v", snap.key, err)
			continue
		}
		summary.Retrained++
		logger.Infof("retraining %s [%s]: %s", snap.key, verdict.Priority, verdict.Reason)
		o.launch(ctx, job, snap.outcomes)
	}

	logger.Infof("cycle done: processed=%d retrained=%d skipped=%d errored=%d in %s",
		summary.Processed, summary.Retrained, summary.Skipped, summary.Errored,
		o.nowFn().Sub(start).Truncate(time.Millisecond))
	return summary, nil
}

// collect scores one model: health over the long window, alerts over the
// short window, plus the recommendation insight. Store errors mark the
// snapshot failed without touching other models.
func (o *Orchestrator) collect(ctx context.Context, mon config.MonitorConfig, key types.ModelKey) *modelSnapshot {
	snap := &modelSnapshot{key: key}
	now := o.nowFn()
	healthStart := now.AddDate(0, 0, -mon.HealthWindowDays)
	outcomes, err := o.metrics.GetTradeOutcomes(ctx, key, healthStart, now)
	if err != nil {
		snap.err = err
		return snap
	}
	snap.outcomes = outcomes

	alertStart := now.AddDate(0, 0, -mon.AlertWindowDays)
	alertOutcomes := filterSince(outcomes, alertStart)

	scorer := health.NewScorer(mon.Thresholds)
	snap.health = scorer.Score(key, outcomes)
	alertRecord := scorer.Score(key, alertOutcomes)
	snap.alerts = alert.NewEngine(mon.Thresholds).Evaluate(alertRecord, alertOutcomes)

	if o.insights != nil {
		if sug, err := o.insights.Analyze(ctx, key); err != nil {
			// Insight is an optional signal; decide without it.
			logger.Warnf("insight unavailable for %s: %v", key, err)
		} else {
			snap.insight = &sug
		}
	}
	return snap
}

// ForceRetrain starts a job immediately, bypassing the decision engine but
// not the concurrency cap or cooldown.
func (o *Orchestrator) ForceRetrain(ctx context.Context, key types.ModelKey, reason string) (Job, error) {
	if reason == "" {
		reason = "Manual retraining requested"
	}
	job, err := o.jobs.StartJob(key, reason, types.PriorityHigh)
	if err != nil {
		return Job{}, err
	}
	mon := o.monitorFn()
	now := o.nowFn()
	outcomes, ferr := o.metrics.GetTradeOutcomes(ctx, key, now.AddDate(0, 0, -mon.HealthWindowDays), now)
	if ferr != nil {
		diag := training.Diagnose(training.TrainingSet{}, o.retraining.MinTrainingSamples)
		o.finishJob(ctx, job, training.TrainingSet{}, &diag,
			fmt.Errorf("loading training data: %w", ferr))
		return job, nil
	}
	o.launch(ctx, job, outcomes)
	return job, nil
}

// launch runs the training attempt on a worker so the control loop never
// blocks on a slow fit. The worker is detached from the cycle context:
// shutdown drains in-flight fits via WaitForJobs instead of cancelling
// them into spurious failed attempts (which would also arm the cooldown).
// The trainer's own request timeout still bounds each fit.
func (o *Orchestrator) launch(ctx context.Context, job Job, outcomes []types.TradeOutcome) {
	if o.telem != nil {
		o.telem.JobsStartedTotal.Inc()
		o.telem.ActiveJobs.Set(float64(o.jobs.ActiveCount()))
	}
	trainCtx := context.WithoutCancel(ctx)
	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		o.runTraining(trainCtx, job, outcomes)
	}()
}

func (o *Orchestrator) runTraining(ctx context.Context, job Job, outcomes []types.TradeOutcome) {
	set, err := o.features(job.Model, outcomes)
	if err != nil {
		diag := training.Diagnose(set, o.retraining.MinTrainingSamples)
		o.finishJob(ctx, job, set, &diag, fmt.Errorf("feature engineering: %w", err))
		return
	}

	res, err := o.trainer.Train(ctx, job.Model, set)
	if err != nil {
		diag := training.Diagnose(set, o.retraining.MinTrainingSamples)
		o.finishJob(ctx, job, set, &diag, err)
		return
	}
	if !res.Success {
		diag := training.Diagnose(set, o.retraining.MinTrainingSamples)
		msg := res.Message
		if msg == "" {
			msg = "training routine reported failure"
		}
		o.finishJob(ctx, job, set, &diag, fmt.Errorf("%s", msg))
		return
	}

	if ferr := o.jobs.Complete(job.ID); ferr != nil {
		logger.Errorf("completing job %s: %v", job.ID, ferr)
	}
	samples := res.Samples
	if samples == 0 {
		samples = set.SampleCount()
	}
	o.appendHistory(ctx, store.HistoryEntry{
		Model:           job.Model,
		LastRetrained:   o.nowFn(),
		Reason:          job.Reason,
		Priority:        job.Priority,
		Success:         true,
		TrainingSamples: samples,
	})
	if o.telem != nil {
		o.telem.JobsFinishedTotal.WithLabelValues("completed").Inc()
		o.telem.ActiveJobs.Set(float64(o.jobs.ActiveCount()))
	}
	logger.Infof("retraining %s completed (%d samples, accuracy %.2f)",
		job.Model, samples, res.Accuracy)
}

func (o *Orchestrator) finishJob(ctx context.Context, job Job, set training.TrainingSet, diag *training.Diagnostics, cause error) {
	msg := cause.Error()
	if ferr := o.jobs.Fail(job.ID, msg, diag); ferr != nil {
		logger.Errorf("failing job %s: %v", job.ID, ferr)
	}
	entry := store.HistoryEntry{
		Model:           job.Model,
		LastRetrained:   o.nowFn(),
		Reason:          job.Reason,
		Priority:        job.Priority,
		TrainingSamples: set.SampleCount(),
	}
	diagSummary := "no diagnostics"
	if diag != nil {
		entry.Details = diag.Map()
		entry.Details["error"] = msg
		diagSummary = diag.Summary()
	}
	o.appendHistory(ctx, entry)
	if o.telem != nil {
		o.telem.JobsFinishedTotal.WithLabelValues("failed").Inc()
		o.telem.ActiveJobs.Set(float64(o.jobs.ActiveCount()))
	}
	logger.Warnf("retraining %s failed: %s (%s)", job.Model, msg, diagSummary)
}

func (o *Orchestrator) appendHistory(ctx context.Context, entry store.HistoryEntry) {
	if o.history == nil {
		return
	}
	if err := o.history.AppendRetrainingHistory(ctx, entry); err != nil {
		logger.Errorf("recording retraining history for %s: %v", entry.Model, err)
	}
}

func filterSince(outcomes []types.TradeOutcome, since time.Time) []types.TradeOutcome {
	out := make([]types.TradeOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.TradeTime.Before(since) {
			out = append(out, o)
		}
	}
	return out
}
