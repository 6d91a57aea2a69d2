// Package interpretations stores the versioned interpretation artifacts of
// processing runs and applies human edits to them.
//
// Every version is a separate run_artifacts row. Versions are never updated;
// an edit validates its base version against the current one and appends
// the next version together with one change-log row per real change.
package interpretations

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/internal/mining"
	"github.com/JaimeStill/vetrecords/internal/schema"
)

// ArtifactType is the run_artifacts type of interpretation versions.
const ArtifactType = "INTERPRETATION"

// Origin records who produced a field value.
type Origin string

const (
	OriginMachine Origin = "machine"
	OriginHuman   Origin = "human"
)

// Evidence points at the page and text a machine field was read from.
type Evidence struct {
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
}

// Field is one typed value of an interpretation. Fields are immutable once
// written into a version.
type Field struct {
	ID                      string           `json:"field_id"`
	Key                     string           `json:"key"`
	Value                   *string          `json:"value"`
	ValueType               schema.ValueType `json:"value_type"`
	CandidateConfidence     float64          `json:"field_candidate_confidence"`
	ReviewHistoryAdjustment float64          `json:"field_review_history_adjustment"`
	MappingConfidence       float64          `json:"field_mapping_confidence"`
	Band                    calibration.Band `json:"confidence_band"`
	ContextKey              string           `json:"context_key"`
	MappingID               *string          `json:"mapping_id"`
	PolicyVersion           string           `json:"policy_version"`
	IsCritical              bool             `json:"is_critical"`
	Origin                  Origin           `json:"origin"`
	Evidence                *Evidence        `json:"evidence,omitempty"`
}

// Empty reports whether the field has no value.
func (f Field) Empty() bool {
	return f.Value == nil || *f.Value == ""
}

func (f Field) mappingID() string {
	if f.MappingID == nil {
		return ""
	}
	return *f.MappingID
}

// SchemaEntry is one key of the global schema projection with the values
// the interpretation holds for it.
type SchemaEntry struct {
	Key        string           `json:"key"`
	ValueType  schema.ValueType `json:"value_type"`
	Repeatable bool             `json:"repeatable"`
	Critical   bool             `json:"critical"`
	Values     []string         `json:"values"`
	FieldIDs   []string         `json:"field_ids"`
}

// Payload is the data of one interpretation version.
type Payload struct {
	SchemaVersion string           `json:"schema_version"`
	PolicyVersion string           `json:"policy_version"`
	ContextKey    string           `json:"context_key"`
	Language      string           `json:"language"`
	Fields        []Field          `json:"fields"`
	GlobalSchema  []SchemaEntry    `json:"global_schema"`
	Canonical     mining.Canonical `json:"canonical"`
}

// Interpretation is one stored version of a run's interpretation.
type Interpretation struct {
	ID               uuid.UUID `json:"id"`
	RunID            uuid.UUID `json:"run_id"`
	InterpretationID uuid.UUID `json:"interpretation_id"`
	VersionNumber    int       `json:"version_number"`
	Payload          Payload   `json:"payload"`
	CreatedBy        *string   `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// Version summarizes a stored version without its payload.
type Version struct {
	InterpretationID uuid.UUID `json:"interpretation_id"`
	VersionNumber    int       `json:"version_number"`
	Fields           int       `json:"fields"`
	CreatedBy        *string   `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// Op is the kind of a field change.
type Op string

const (
	OpAdd    Op = "ADD"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Change is one requested field change. UPDATE and DELETE locate the field
// by FieldID, or by Key when FieldID is empty. ADD requires Key.
type Change struct {
	Op        Op               `json:"op"`
	FieldID   string           `json:"field_id,omitempty"`
	Key       string           `json:"key,omitempty"`
	Value     *string          `json:"value"`
	ValueType schema.ValueType `json:"value_type,omitempty"`
}

// EditCommand carries a batch of changes against a base version.
type EditCommand struct {
	BaseVersionNumber int      `json:"base_version_number"`
	Changes           []Change `json:"changes"`
	EditedBy          string   `json:"edited_by"`
}

// ChangeLog is the audit record of one real field change.
type ChangeLog struct {
	ID               int64            `json:"id"`
	RunID            uuid.UUID        `json:"run_id"`
	InterpretationID uuid.UUID        `json:"interpretation_id"`
	VersionNumber    int              `json:"version_number"`
	FieldID          string           `json:"field_id"`
	FieldKey         string           `json:"field_key"`
	MappingID        *string          `json:"mapping_id"`
	Op               Op               `json:"op"`
	OldValue         *string          `json:"old_value"`
	NewValue         *string          `json:"new_value"`
	ValueType        schema.ValueType `json:"value_type"`
	ChangedBy        string           `json:"changed_by"`
	CreatedAt        time.Time        `json:"created_at"`
}
