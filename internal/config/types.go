package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration carrier.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Store      StoreConfig      `yaml:"store"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Retraining RetrainingConfig `yaml:"retraining"`
	Insight    InsightConfig    `yaml:"insight"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`
	LogPath  string `yaml:"log_path"`
}

// StoreConfig describes both database paths: the metrics database is the
// trading client's sqlite file (read only here), the state database holds
// retraining history.
type StoreConfig struct {
	MetricsDBPath string      `yaml:"metrics_db_path"`
	StateDBPath   string      `yaml:"state_db_path"`
	Retry         RetryConfig `yaml:"retry"`
}

// RetryConfig bounds the retry-with-backoff policy used for metrics reads.
type RetryConfig struct {
	MaxAttempts   int     `yaml:"max_attempts"`
	BackoffMinMS  int     `yaml:"backoff_min_ms"`
	BackoffMaxMS  int     `yaml:"backoff_max_ms"`
	BackoffFactor float64 `yaml:"backoff_factor"`
}

func (r RetryConfig) BackoffMin() time.Duration {
	return time.Duration(r.BackoffMinMS) * time.Millisecond
}

func (r RetryConfig) BackoffMax() time.Duration {
	return time.Duration(r.BackoffMaxMS) * time.Millisecond
}

// MonitorConfig controls the scoring windows and alert thresholds.
type MonitorConfig struct {
	HealthWindowDays      int             `yaml:"health_window_days"`
	AlertWindowDays       int             `yaml:"alert_window_days"`
	CalibrationWindowDays int             `yaml:"calibration_window_days"`
	Thresholds            ThresholdConfig `yaml:"thresholds"`
}

// ThresholdConfig holds the overridable alert/health constants. All values
// have sensible defaults; they exist so operators can tune alerting without
// a rebuild.
type ThresholdConfig struct {
	MinWinRatePct              float64 `yaml:"min_win_rate_pct"`
	MaxAvgLoss                 float64 `yaml:"max_avg_loss"`
	OverconfidenceConfidence   float64 `yaml:"overconfidence_confidence"`
	OverconfidenceWinRatePct   float64 `yaml:"overconfidence_win_rate_pct"`
	MinTradesForAlerts         int     `yaml:"min_trades_for_alerts"`
	MinBucketTradesCalibration int     `yaml:"min_bucket_trades_calibration"`
	MinBucketTradesHealth      int     `yaml:"min_bucket_trades_health"`
	LowHealthScore             int     `yaml:"low_health_score"`
}

// RetrainingConfig controls the orchestration loop and the boundary to the
// external training service that performs the actual model fits.
type RetrainingConfig struct {
	CheckIntervalMinutes int    `yaml:"check_interval_minutes"`
	CooldownHours        int    `yaml:"cooldown_hours"`
	MaxConcurrent        int    `yaml:"max_concurrent"`
	MinTrainingSamples   int    `yaml:"min_training_samples"`
	JobRetentionHours    int    `yaml:"job_retention_hours"`
	RunImmediately       bool   `yaml:"run_immediately"`
	ServiceURL           string `yaml:"service_url"`
	TrainTimeoutMinutes  int    `yaml:"train_timeout_minutes"`
}

func (r RetrainingConfig) CheckInterval() time.Duration {
	return time.Duration(r.CheckIntervalMinutes) * time.Minute
}

func (r RetrainingConfig) Cooldown() time.Duration {
	return time.Duration(r.CooldownHours) * time.Hour
}

func (r RetrainingConfig) JobRetention() time.Duration {
	return time.Duration(r.JobRetentionHours) * time.Hour
}

func (r RetrainingConfig) TrainTimeout() time.Duration {
	return time.Duration(r.TrainTimeoutMinutes) * time.Minute
}

// InsightConfig controls the recommendation-insight analyzer.
type InsightConfig struct {
	MinRecommendations int `yaml:"min_recommendations"`
	CacheTTLMinutes    int `yaml:"cache_ttl_minutes"`
	LookbackDays       int `yaml:"lookback_days"`
}

func (i InsightConfig) CacheTTL() time.Duration {
	return time.Duration(i.CacheTTLMinutes) * time.Minute
}

// keySet tracks which config paths were explicitly set in the file, so that
// defaults never clobber an intentional zero or negative value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
