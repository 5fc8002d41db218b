package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9993"
	defaultAppLogPath  = ""

	defaultMetricsDBPath = "/data/db/trading_metrics.db"
	defaultStateDBPath   = "/data/db/modelwatch_state.db"
	defaultRetryAttempts = 3
	defaultRetryMinMS    = 200
	defaultRetryMaxMS    = 5000
	defaultRetryFactor   = 2.0

	defaultHealthWindowDays      = 30
	defaultAlertWindowDays       = 7
	defaultCalibrationWindowDays = 90

	defaultMinWinRatePct            = 40
	defaultMaxAvgLoss               = -2.0
	defaultOverconfidenceConfidence = 0.7
	defaultOverconfidenceWinRate    = 50
	defaultMinTradesForAlerts       = 10
	defaultMinBucketCalibration     = 3
	defaultMinBucketHealth          = 5
	defaultLowHealthScore           = 50

	defaultCheckIntervalMinutes = 60
	defaultCooldownHours        = 12
	defaultMaxConcurrent        = 1
	defaultMinTrainingSamples   = 20
	defaultJobRetentionHours    = 24
	defaultTrainServiceURL      = "http://127.0.0.1:8001/internal/retrain"
	defaultTrainTimeoutMinutes  = 30

	defaultInsightMinRecs      = 20
	defaultInsightCacheTTLMins = 5
	defaultInsightLookbackDays = 30
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Monitor.applyDefaults(keys)
	c.Retraining.applyDefaults(keys)
	c.Insight.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.metrics_db_path", &s.MetricsDBPath, defaultMetricsDBPath),
		stringFieldDefault("store.state_db_path", &s.StateDBPath, defaultStateDBPath),
		intFieldDefault("store.retry.max_attempts", &s.Retry.MaxAttempts, defaultRetryAttempts),
		intFieldDefault("store.retry.backoff_min_ms", &s.Retry.BackoffMinMS, defaultRetryMinMS),
		intFieldDefault("store.retry.backoff_max_ms", &s.Retry.BackoffMaxMS, defaultRetryMaxMS),
		fieldDefault{
			key:   "store.retry.backoff_factor",
			need:  func() bool { return s.Retry.BackoffFactor <= 1 },
			apply: func() { s.Retry.BackoffFactor = defaultRetryFactor },
		},
	)
}

func (m *MonitorConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("monitor.health_window_days", &m.HealthWindowDays, defaultHealthWindowDays),
		intFieldDefault("monitor.alert_window_days", &m.AlertWindowDays, defaultAlertWindowDays),
		intFieldDefault("monitor.calibration_window_days", &m.CalibrationWindowDays, defaultCalibrationWindowDays),
	)
	m.Thresholds.applyDefaults(keys)
}

func (t *ThresholdConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "monitor.thresholds.min_win_rate_pct",
			need:  func() bool { return t.MinWinRatePct <= 0 },
			apply: func() { t.MinWinRatePct = defaultMinWinRatePct },
		},
		fieldDefault{
			key:   "monitor.thresholds.max_avg_loss",
			need:  func() bool { return t.MaxAvgLoss == 0 },
			apply: func() { t.MaxAvgLoss = defaultMaxAvgLoss },
		},
		fieldDefault{
			key:   "monitor.thresholds.overconfidence_confidence",
			need:  func() bool { return t.OverconfidenceConfidence <= 0 },
			apply: func() { t.OverconfidenceConfidence = defaultOverconfidenceConfidence },
		},
		fieldDefault{
			key:   "monitor.thresholds.overconfidence_win_rate_pct",
			need:  func() bool { return t.OverconfidenceWinRatePct <= 0 },
			apply: func() { t.OverconfidenceWinRatePct = defaultOverconfidenceWinRate },
		},
		intFieldDefault("monitor.thresholds.min_trades_for_alerts", &t.MinTradesForAlerts, defaultMinTradesForAlerts),
		intFieldDefault("monitor.thresholds.min_bucket_trades_calibration", &t.MinBucketTradesCalibration, defaultMinBucketCalibration),
		intFieldDefault("monitor.thresholds.min_bucket_trades_health", &t.MinBucketTradesHealth, defaultMinBucketHealth),
		intFieldDefault("monitor.thresholds.low_health_score", &t.LowHealthScore, defaultLowHealthScore),
	)
}

func (r *RetrainingConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("retraining.check_interval_minutes", &r.CheckIntervalMinutes, defaultCheckIntervalMinutes),
		intFieldDefault("retraining.cooldown_hours", &r.CooldownHours, defaultCooldownHours),
		intFieldDefault("retraining.max_concurrent", &r.MaxConcurrent, defaultMaxConcurrent),
		intFieldDefault("retraining.min_training_samples", &r.MinTrainingSamples, defaultMinTrainingSamples),
		intFieldDefault("retraining.job_retention_hours", &r.JobRetentionHours, defaultJobRetentionHours),
		stringFieldDefault("retraining.service_url", &r.ServiceURL, defaultTrainServiceURL),
		intFieldDefault("retraining.train_timeout_minutes", &r.TrainTimeoutMinutes, defaultTrainTimeoutMinutes),
	)
}

func (i *InsightConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("insight.min_recommendations", &i.MinRecommendations, defaultInsightMinRecs),
		intFieldDefault("insight.cache_ttl_minutes", &i.CacheTTLMinutes, defaultInsightCacheTTLMins),
		intFieldDefault("insight.lookback_days", &i.LookbackDays, defaultInsightLookbackDays),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
