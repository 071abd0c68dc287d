package scheduler

import (
	"time"
)

// Config controls sweep intervals and batch sizes.
type Config struct {
	RunInterval       time.Duration
	BatchSize         int
	StaleRunThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       15 * time.Minute,
		BatchSize:         100,
		StaleRunThreshold: 15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.StaleRunThreshold <= 0 {
		c.StaleRunThreshold = defaults.StaleRunThreshold
	}
	return c
}
