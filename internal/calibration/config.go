package calibration

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the calibration policy inputs.
type Config struct {
	PolicyVersion       string  `toml:"policy_version"`
	LowBandCutoff       float64 `toml:"low_band_cutoff"`
	MidBandCutoff       float64 `toml:"mid_band_cutoff"`
	NeutralConfidence   float64 `toml:"neutral_confidence"`
	ContextVersion      string  `toml:"context_version"`
	DefaultDocumentType string  `toml:"default_document_type"`
	DefaultLanguage     string  `toml:"default_language"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	PolicyVersion       string
	LowBandCutoff       string
	MidBandCutoff       string
	NeutralConfidence   string
	ContextVersion      string
	DefaultDocumentType string
	DefaultLanguage     string
}

// Policy returns the policy described by the config.
func (c *Config) Policy() Policy {
	return Policy{
		Version:           c.PolicyVersion,
		LowBandCutoff:     c.LowBandCutoff,
		MidBandCutoff:     c.MidBandCutoff,
		NeutralConfidence: c.NeutralConfidence,
		ContextVersion:    c.ContextVersion,
		DocumentType:      c.DefaultDocumentType,
		Language:          c.DefaultLanguage,
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
	if overlay.PolicyVersion != "" {
		c.PolicyVersion = overlay.PolicyVersion
	}
	if overlay.LowBandCutoff != 0 {
		c.LowBandCutoff = overlay.LowBandCutoff
	}
	if overlay.MidBandCutoff != 0 {
		c.MidBandCutoff = overlay.MidBandCutoff
	}
	if overlay.NeutralConfidence != 0 {
		c.NeutralConfidence = overlay.NeutralConfidence
	}
	if overlay.ContextVersion != "" {
		c.ContextVersion = overlay.ContextVersion
	}
	if overlay.DefaultDocumentType != "" {
		c.DefaultDocumentType = overlay.DefaultDocumentType
	}
	if overlay.DefaultLanguage != "" {
		c.DefaultLanguage = overlay.DefaultLanguage
	}
}

func (c *Config) loadDefaults() {
	if c.PolicyVersion == "" {
		c.PolicyVersion = "v1"
	}
	if c.LowBandCutoff == 0 {
		c.LowBandCutoff = 0.50
	}
	if c.MidBandCutoff == 0 {
		c.MidBandCutoff = 0.75
	}
	if c.NeutralConfidence == 0 {
		c.NeutralConfidence = 0.50
	}
	if c.ContextVersion == "" {
		c.ContextVersion = "v1"
	}
	if c.DefaultDocumentType == "" {
		c.DefaultDocumentType = "veterinary_record"
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "es"
	}
}

func (c *Config) loadEnv(env *Env) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{env.PolicyVersion, &c.PolicyVersion},
		{env.ContextVersion, &c.ContextVersion},
		{env.DefaultDocumentType, &c.DefaultDocumentType},
		{env.DefaultLanguage, &c.DefaultLanguage},
	}
	for _, s := range strs {
		if s.name == "" {
			continue
		}
		if v := os.Getenv(s.name); v != "" {
			*s.dst = v
		}
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{env.LowBandCutoff, &c.LowBandCutoff},
		{env.MidBandCutoff, &c.MidBandCutoff},
		{env.NeutralConfidence, &c.NeutralConfidence},
	}
	for _, f := range floats {
		if f.name == "" {
			continue
		}
		if v := os.Getenv(f.name); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", f.name, err)
			}
			*f.dst = n
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.LowBandCutoff <= 0 || c.LowBandCutoff >= 1 {
		return fmt.Errorf("low_band_cutoff must be within (0, 1)")
	}
	if c.MidBandCutoff <= c.LowBandCutoff || c.MidBandCutoff >= 1 {
		return fmt.Errorf("mid_band_cutoff must be within (low_band_cutoff, 1)")
	}
	if c.NeutralConfidence < 0 || c.NeutralConfidence > 1 {
		return fmt.Errorf("neutral_confidence must be within [0, 1]")
	}
	return nil
}
