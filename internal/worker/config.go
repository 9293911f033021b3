package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background maintenance worker.
type Config struct {
	// Interval is how often the maintenance pass runs.
	// Default: 1 hour
	Interval time.Duration

	// RunTimeout is the maximum time one maintenance pass is allowed to
	// take. The pass's context is canceled when it is exceeded.
	// Default: 1 minute
	RunTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for an in-flight pass to
	// finish before giving up.
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// DailyRetention is how long per-day usage rows are kept. Rows older
	// than this are pruned; the monthly counters on usage_records are
	// unaffected.
	// Default: 90 days
	DailyRetention time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Interval:        1 * time.Hour,
		RunTimeout:      1 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		DailyRetention:  90 * 24 * time.Hour,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Interval < 1*time.Minute {
		return fmt.Errorf("interval must be at least 1 minute, got %v", c.Interval)
	}
	if c.RunTimeout < 1*time.Second {
		return fmt.Errorf("run timeout must be at least 1 second, got %v", c.RunTimeout)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	if c.DailyRetention < 24*time.Hour {
		return fmt.Errorf("daily retention must be at least 24 hours, got %v", c.DailyRetention)
	}
	return nil
}
