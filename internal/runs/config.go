package runs

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config controls the background scheduler and the run timeout.
type Config struct {
	Enabled       *bool  `toml:"enabled"`
	TickInterval  string `toml:"tick_interval"`
	BatchSize     int    `toml:"batch_size"`
	MaxConcurrent int    `toml:"max_concurrent"`
	RunTimeout    string `toml:"run_timeout"`
	SweepRetry    string `toml:"sweep_retry"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled       string
	TickInterval  string
	BatchSize     string
	MaxConcurrent string
	RunTimeout    string
	SweepRetry    string
}

// IsEnabled reports whether the scheduler loop runs in this process.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TickIntervalDuration returns TickInterval as a time.Duration.
func (c *Config) TickIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.TickInterval)
	return d
}

// RunTimeoutDuration returns RunTimeout as a time.Duration.
func (c *Config) RunTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RunTimeout)
	return d
}

// SweepRetryDuration returns SweepRetry as a time.Duration.
func (c *Config) SweepRetryDuration() time.Duration {
	d, _ := time.ParseDuration(c.SweepRetry)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	if overlay.TickInterval != "" {
		c.TickInterval = overlay.TickInterval
	}
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
	if overlay.MaxConcurrent != 0 {
		c.MaxConcurrent = overlay.MaxConcurrent
	}
	if overlay.RunTimeout != "" {
		c.RunTimeout = overlay.RunTimeout
	}
	if overlay.SweepRetry != "" {
		c.SweepRetry = overlay.SweepRetry
	}
}

func (c *Config) loadDefaults() {
	if c.TickInterval == "" {
		c.TickInterval = "500ms"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 4
	}
	if c.RunTimeout == "" {
		c.RunTimeout = "120s"
	}
	if c.SweepRetry == "" {
		c.SweepRetry = "2s"
	}
}

func (c *Config) loadEnv(env *Env) error {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.Enabled, err)
			}
			c.Enabled = &b
		}
	}
	if env.TickInterval != "" {
		if v := os.Getenv(env.TickInterval); v != "" {
			c.TickInterval = v
		}
	}
	if env.BatchSize != "" {
		if v := os.Getenv(env.BatchSize); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.BatchSize, err)
			}
			c.BatchSize = n
		}
	}
	if env.MaxConcurrent != "" {
		if v := os.Getenv(env.MaxConcurrent); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.MaxConcurrent, err)
			}
			c.MaxConcurrent = n
		}
	}
	if env.RunTimeout != "" {
		if v := os.Getenv(env.RunTimeout); v != "" {
			c.RunTimeout = v
		}
	}
	if env.SweepRetry != "" {
		if v := os.Getenv(env.SweepRetry); v != "" {
			c.SweepRetry = v
		}
	}
	return nil
}

func (c *Config) validate() error {
	durations := []struct {
		name  string
		value string
	}{
		{"tick_interval", c.TickInterval},
		{"run_timeout", c.RunTimeout},
		{"sweep_retry", c.SweepRetry},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1")
	}
	return nil
}
