package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"modelwatch/internal/config"
	"modelwatch/internal/logger"
	"modelwatch/internal/orchestrator"
	"modelwatch/internal/scheduler"
	"modelwatch/internal/store/gormstore"
	"modelwatch/internal/store/metricsdb"
	monitorhttp "modelwatch/internal/transport/http/monitor"
)

// App wires the whole service: stores, orchestrator, scheduler and the HTTP
// surface. Build with NewApp, start with Run.
type App struct {
	cfg       *config.Config
	metrics   *metricsdb.MetricsDB
	history   *gormstore.GormStore
	orch      *orchestrator.Orchestrator
	httpSrv   *monitorhttp.Server
	watcher   *config.ThresholdWatcher
	monitorFn func() config.MonitorConfig
}

// NewApp builds the application from config. configPath is watched for
// threshold hot-reloads; pass "" to disable watching.
func NewApp(cfg *config.Config, configPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(cfg, configPath)
}

// Orchestrator exposes the orchestrator, for tests and replay harnesses.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orch
}

// Run starts the HTTP server and the orchestration loop and blocks until
// ctx is cancelled or either fails. In-flight training jobs are drained
// before Run returns.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	a.printSummary()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("monitor http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		sched := scheduler.NewIntervalScheduler(ctx, a.cfg.Retraining.CheckInterval())
		sched.RunImmediately = a.cfg.Retraining.RunImmediately
		sched.Start(func() {
			if _, err := a.orch.RunCycle(ctx); err != nil {
				logger.Errorf("orchestration cycle failed: %v", err)
			}
		})
		return nil
	})

	err := group.Wait()

	logger.Infof("waiting for in-flight training jobs to finish")
	a.orch.WaitForJobs()
	return err
}

func (a *App) close() {
	if a.metrics != nil {
		if err := a.metrics.Close(); err != nil {
			logger.Warnf("closing metrics db: %v", err)
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.Warnf("closing state db: %v", err)
		}
	}
}

func (a *App) printSummary() {
	r := a.cfg.Retraining
	m := a.monitorFn()
	logger.InfoBlock(fmt.Sprintf(
		"modelwatch starting\n"+
			"- metrics db: %s\n"+
			"- state db: %s\n"+
			"- http: %s\n"+
			"- check interval: %s (run immediately: %v)\n"+
			"- cooldown: %s, max concurrent: %d\n"+
			"- windows: health %dd, alerts %dd, calibration %dd\n"+
			"- training service: %s",
		a.cfg.Store.MetricsDBPath,
		a.cfg.Store.StateDBPath,
		a.cfg.App.HTTPAddr,
		r.CheckInterval(), r.RunImmediately,
		r.Cooldown(), r.MaxConcurrent,
		m.HealthWindowDays, m.AlertWindowDays, m.CalibrationWindowDays,
		r.ServiceURL,
	))
}
