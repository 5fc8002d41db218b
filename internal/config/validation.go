package config

import (
	"fmt"
	"strings"
)

// validate performs basic sanity checks after defaults are applied.
func validate(c *Config) error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Monitor.validate(); err != nil {
		return err
	}
	if err := c.Retraining.validate(); err != nil {
		return err
	}
	if err := c.Insight.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if s.MetricsDBPath == "" {
		return fmt.Errorf("store.metrics_db_path cannot be empty")
	}
	if s.StateDBPath == "" {
		return fmt.Errorf("store.state_db_path cannot be empty")
	}
	if s.Retry.MaxAttempts < 1 {
		return fmt.Errorf("store.retry.max_attempts must be >= 1")
	}
	if s.Retry.BackoffMinMS > s.Retry.BackoffMaxMS {
		return fmt.Errorf("store.retry.backoff_min_ms must not exceed backoff_max_ms")
	}
	return nil
}

func (m *MonitorConfig) validate() error {
	if m.AlertWindowDays > m.HealthWindowDays {
		return fmt.Errorf("monitor.alert_window_days must not exceed health_window_days")
	}
	t := m.Thresholds
	if t.MinWinRatePct < 0 || t.MinWinRatePct > 100 {
		return fmt.Errorf("monitor.thresholds.min_win_rate_pct must be within [0,100]")
	}
	if t.MaxAvgLoss >= 0 {
		return fmt.Errorf("monitor.thresholds.max_avg_loss must be negative")
	}
	if t.OverconfidenceConfidence <= 0 || t.OverconfidenceConfidence >= 1 {
		return fmt.Errorf("monitor.thresholds.overconfidence_confidence must be within (0,1)")
	}
	if t.LowHealthScore < 0 || t.LowHealthScore > 100 {
		return fmt.Errorf("monitor.thresholds.low_health_score must be within [0,100]")
	}
	return nil
}

func (r *RetrainingConfig) validate() error {
	if r.CheckIntervalMinutes < 1 {
		return fmt.Errorf("retraining.check_interval_minutes must be >= 1")
	}
	if r.CooldownHours < 0 {
		return fmt.Errorf("retraining.cooldown_hours must be >= 0")
	}
	if r.MaxConcurrent < 1 {
		return fmt.Errorf("retraining.max_concurrent must be >= 1")
	}
	if strings.TrimSpace(r.ServiceURL) == "" {
		return fmt.Errorf("retraining.service_url cannot be empty")
	}
	return nil
}

func (i *InsightConfig) validate() error {
	if i.MinRecommendations < 1 {
		return fmt.Errorf("insight.min_recommendations must be >= 1")
	}
	if i.CacheTTLMinutes < 0 {
		return fmt.Errorf("insight.cache_ttl_minutes must be >= 0")
	}
	return nil
}
