// Package calibration scores field confidence and keeps the review-driven
// counters that shift it.
//
// Every machine field carries a candidate confidence from mining. Human
// review accumulates accept and edit counts per (context key, field key,
// mapping id, policy version); once a scope has enough volume its
// Laplace-smoothed acceptance rate moves future confidence by up to 15
// percentage points in either direction.
package calibration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"
)

const (
	// MaxAdjustment bounds the review history adjustment in percentage
	// points.
	MaxAdjustment = 15.0
	// MinVolume is the accept plus edit count below which no adjustment
	// applies.
	MinVolume = 3
)

// Adjustment returns the review history adjustment for a scope with the
// given counts, in percentage points rounded to one decimal.
func Adjustment(accept, edit int) float64 {
	accept, edit = max(accept, 0), max(edit, 0)
	volume := accept + edit
	if volume < MinVolume {
		return 0
	}
	posterior := float64(accept+1) / float64(volume+2)
	centered := clamp((posterior-0.5)*2, -1, 1)
	return math.Round(centered*MaxAdjustment*10) / 10
}

// ClampConfidence bounds c to [0, 1].
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return clamp(c, 0, 1)
}

// MappingConfidence composes a candidate confidence with an adjustment in
// percentage points. The result is always within [0, 1].
func MappingConfidence(candidate, adjustment float64) float64 {
	adjustment = clamp(adjustment, -MaxAdjustment, MaxAdjustment)
	return ClampConfidence(ClampConfidence(candidate) + adjustment/100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ContextInput identifies the document context a calibration scope belongs
// to. Empty values fall back to the policy defaults.
type ContextInput struct {
	ContextVersion string `json:"context_version"`
	DocumentType   string `json:"document_type"`
	Language       string `json:"language"`
}

// ContextKey returns the sha256 hex digest of the lower-cased canonical JSON
// of in. Identical contexts always hash to the same key.
func (p Policy) ContextKey(in ContextInput) string {
	norm := func(v, fallback string) string {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			return strings.ToLower(fallback)
		}
		return v
	}
	canonical := map[string]string{
		"context_version": norm(in.ContextVersion, p.ContextVersion),
		"document_type":   norm(in.DocumentType, p.DocumentType),
		"language":        norm(in.Language, p.Language),
	}
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Band names a confidence level for display.
type Band string

const (
	BandLow  Band = "low"
	BandMid  Band = "mid"
	BandHigh Band = "high"
)

// Policy is the calibration policy in force. It is built from configuration
// and handed to the components that score fields.
type Policy struct {
	Version           string
	LowBandCutoff     float64
	MidBandCutoff     float64
	NeutralConfidence float64
	ContextVersion    string
	DocumentType      string
	Language          string
}

// Band classifies a mapping confidence against the policy cutoffs.
func (p Policy) Band(confidence float64) Band {
	switch {
	case confidence < p.LowBandCutoff:
		return BandLow
	case confidence < p.MidBandCutoff:
		return BandMid
	}
	return BandHigh
}

// Scope identifies one calibration counter within a context and policy.
// MappingID is empty for fields produced without a mapping id.
type Scope struct {
	FieldKey  string
	MappingID string
}

// Counts are the accumulated review signals of a scope.
type Counts struct {
	Accept int
	Edit   int
}

// Table holds the counters of one context key and policy version.
type Table map[Scope]Counts

// Adjustment returns the adjustment for a field scope; unknown scopes get 0.
func (t Table) Adjustment(fieldKey, mappingID string) float64 {
	c, ok := t[Scope{FieldKey: fieldKey, MappingID: mappingID}]
	if !ok {
		return 0
	}
	return Adjustment(c.Accept, c.Edit)
}
