package extraction

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/vetrecords/pkg/formatting"
	"github.com/JaimeStill/vetrecords/pkg/pdftext"
)

// Config bounds the work spent extracting one document.
type Config struct {
	ParseTimeout   string `toml:"parse_timeout"`
	MaxTokens      int    `toml:"max_tokens"`
	MaxArrayItems  int    `toml:"max_array_items"`
	MaxStreamSize  string `toml:"max_stream_size"`
	PrimaryEnabled *bool  `toml:"primary_enabled"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ParseTimeout   string
	MaxTokens      string
	MaxArrayItems  string
	MaxStreamSize  string
	PrimaryEnabled string
}

// ParseTimeoutDuration returns ParseTimeout as a time.Duration.
func (c *Config) ParseTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ParseTimeout)
	return d
}

// MaxStreamSizeBytes returns MaxStreamSize parsed as a byte count.
func (c *Config) MaxStreamSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxStreamSize)
	return n
}

// Primary reports whether the pdfcpu-backed extractor is attempted first.
func (c *Config) Primary() bool {
	return c.PrimaryEnabled == nil || *c.PrimaryEnabled
}

// Options converts the config into parser limits with the given deadline.
func (c *Config) Options(deadline time.Time) pdftext.Options {
	return pdftext.Options{
		Deadline:       deadline,
		MaxTokens:      c.MaxTokens,
		MaxArrayItems:  c.MaxArrayItems,
		MaxStreamBytes: int(c.MaxStreamSizeBytes()),
	}
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
	if overlay.ParseTimeout != "" {
		c.ParseTimeout = overlay.ParseTimeout
	}
	if overlay.MaxTokens != 0 {
		c.MaxTokens = overlay.MaxTokens
	}
	if overlay.MaxArrayItems != 0 {
		c.MaxArrayItems = overlay.MaxArrayItems
	}
	if overlay.MaxStreamSize != "" {
		c.MaxStreamSize = overlay.MaxStreamSize
	}
	if overlay.PrimaryEnabled != nil {
		c.PrimaryEnabled = overlay.PrimaryEnabled
	}
}

func (c *Config) loadDefaults() {
	d := pdftext.DefaultOptions()
	if c.ParseTimeout == "" {
		c.ParseTimeout = "30s"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.MaxArrayItems == 0 {
		c.MaxArrayItems = d.MaxArrayItems
	}
	if c.MaxStreamSize == "" {
		c.MaxStreamSize = "16MB"
	}
}

func (c *Config) loadEnv(env *Env) error {
	if env.ParseTimeout != "" {
		if v := os.Getenv(env.ParseTimeout); v != "" {
			c.ParseTimeout = v
		}
	}
	if env.MaxTokens != "" {
		if v := os.Getenv(env.MaxTokens); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.MaxTokens, err)
			}
			c.MaxTokens = n
		}
	}
	if env.MaxArrayItems != "" {
		if v := os.Getenv(env.MaxArrayItems); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.MaxArrayItems, err)
			}
			c.MaxArrayItems = n
		}
	}
	if env.MaxStreamSize != "" {
		if v := os.Getenv(env.MaxStreamSize); v != "" {
			c.MaxStreamSize = v
		}
	}
	if env.PrimaryEnabled != "" {
		if v := os.Getenv(env.PrimaryEnabled); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", env.PrimaryEnabled, err)
			}
			c.PrimaryEnabled = &b
		}
	}
	return nil
}

func (c *Config) validate() error {
	if d, err := time.ParseDuration(c.ParseTimeout); err != nil {
		return fmt.Errorf("invalid parse_timeout: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("parse_timeout must be positive")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	if c.MaxArrayItems < 0 {
		return fmt.Errorf("max_array_items must not be negative")
	}
	if _, err := formatting.ParseBytes(c.MaxStreamSize); err != nil {
		return fmt.Errorf("invalid max_stream_size: %w", err)
	}
	return nil
}
