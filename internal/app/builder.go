package app

import (
	"fmt"

	"modelwatch/internal/config"
	"modelwatch/internal/insight"
	"modelwatch/internal/logger"
	"modelwatch/internal/orchestrator"
	"modelwatch/internal/store"
	"modelwatch/internal/store/gormstore"
	"modelwatch/internal/store/metricsdb"
	"modelwatch/internal/telemetry"
	"modelwatch/internal/training"
	monitorhttp "modelwatch/internal/transport/http/monitor"
)

// buildApp assembles all dependencies. Construction order matters: stores
// first, then the orchestrator, then the HTTP surface on top of it.
func buildApp(cfg *config.Config, configPath string) (*App, error) {
	metrics, err := metricsdb.New(cfg.Store.MetricsDBPath, store.RetryPolicyFromConfig(cfg.Store.Retry))
	if err != nil {
		return nil, fmt.Errorf("opening metrics db: %w", err)
	}
	history, err := gormstore.NewGormStore(cfg.Store.StateDBPath)
	if err != nil {
		_ = metrics.Close()
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	monitorFn := func() config.MonitorConfig { return cfg.Monitor }
	var watcher *config.ThresholdWatcher
	if configPath != "" {
		watcher, err = config.WatchThresholds(configPath, cfg.Monitor, nil)
		if err != nil {
			logger.Warnf("threshold hot-reload disabled: %v", err)
		} else {
			monitorFn = watcher.Current
		}
	}

	telem := telemetry.New()
	insights := insight.NewAnalyzer(metrics, cfg.Insight)

	orch, err := orchestrator.New(orchestrator.Params{
		Metrics:    metrics,
		History:    history,
		Insights:   insights,
		Trainer:    training.NewHTTPTrainer(cfg.Retraining.ServiceURL, cfg.Retraining.TrainTimeout()),
		Features:   training.OutcomeFeatures,
		Retraining: cfg.Retraining,
		MonitorFn:  monitorFn,
		Telemetry:  telem,
	})
	if err != nil {
		_ = metrics.Close()
		_ = history.Close()
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}

	httpSrv, err := monitorhttp.NewServer(monitorhttp.ServerConfig{
		Addr:         cfg.App.HTTPAddr,
		Orchestrator: orch,
		Telemetry:    telem,
	})
	if err != nil {
		_ = metrics.Close()
		_ = history.Close()
		return nil, fmt.Errorf("building http server: %w", err)
	}

	return &App{
		cfg:       cfg,
		metrics:   metrics,
		history:   history,
		orch:      orch,
		httpSrv:   httpSrv,
		watcher:   watcher,
		monitorFn: monitorFn,
	}, nil
}
