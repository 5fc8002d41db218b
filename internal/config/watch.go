package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"modelwatch/internal/logger"
)

// ThresholdWatcher re-reads the config file whenever it changes on disk and
// publishes the monitor section, so alert thresholds can be tuned without a
// restart. Edits that fail validation keep the previous thresholds.
type ThresholdWatcher struct {
	mu      sync.RWMutex
	current MonitorConfig
	onSwap  func(MonitorConfig)
}

// WatchThresholds starts watching path. onSwap (optional) is invoked after
// every successful reload with the new monitor config.
func WatchThresholds(path string, initial MonitorConfig, onSwap func(MonitorConfig)) (*ThresholdWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("threshold watcher: config path cannot be empty")
	}
	w := &ThresholdWatcher{current: initial, onSwap: onSwap}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("threshold watcher: initial read failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Warnf("threshold reload skipped (%s): %v", evt.Name, err)
			return
		}
		w.swap(cfg.Monitor)
		logger.Infof("monitor thresholds reloaded from %s", evt.Name)
	})
	v.WatchConfig()
	return w, nil
}

func (w *ThresholdWatcher) swap(m MonitorConfig) {
	w.mu.Lock()
	w.current = m
	w.mu.Unlock()
	if w.onSwap != nil {
		w.onSwap(m)
	}
}

// Current returns the most recently loaded monitor config.
func (w *ThresholdWatcher) Current() MonitorConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
