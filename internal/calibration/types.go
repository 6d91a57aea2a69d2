package calibration

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate is one calibration counter row.
type Aggregate struct {
	ContextKey    string    `json:"context_key"`
	FieldKey      string    `json:"field_key"`
	MappingID     *string   `json:"mapping_id"`
	PolicyVersion string    `json:"policy_version"`
	AcceptCount   int       `json:"accept_count"`
	EditCount     int       `json:"edit_count"`
	Adjustment    float64   `json:"adjustment"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Signal names the review event a delta came from.
type Signal string

const (
	SignalAcceptedUnchanged Signal = "accepted_unchanged"
	SignalEdited            Signal = "edited"
)

// Delta is one counter change. Reverting a delta applies its inverse.
type Delta struct {
	Signal        Signal `json:"signal"`
	ContextKey    string `json:"context_key"`
	FieldKey      string `json:"field_key"`
	MappingID     string `json:"mapping_id,omitempty"`
	PolicyVersion string `json:"policy_version"`
	Accept        int    `json:"accept"`
	Edit          int    `json:"edit"`
}

// Inverse returns the delta that undoes d.
func (d Delta) Inverse() Delta {
	d.Accept, d.Edit = -d.Accept, -d.Edit
	return d
}

// SnapshotStatus tracks whether a snapshot's deltas are still applied.
type SnapshotStatus string

const (
	StatusApplied  SnapshotStatus = "APPLIED"
	StatusReverted SnapshotStatus = "REVERTED"
)

// Snapshot durably records the deltas of one review event so that they can
// be replayed in reverse exactly once.
type Snapshot struct {
	ID         uuid.UUID      `json:"id"`
	DocumentID uuid.UUID      `json:"document_id"`
	RunID      uuid.UUID      `json:"run_id"`
	Source     string         `json:"source"`
	Status     SnapshotStatus `json:"status"`
	Deltas     []Delta        `json:"deltas"`
	CreatedAt  time.Time      `json:"created_at"`
	RevertedAt *time.Time     `json:"reverted_at"`
}

// SnapshotCommand carries the deltas of a review event.
type SnapshotCommand struct {
	DocumentID uuid.UUID
	RunID      uuid.UUID
	Source     string
	Deltas     []Delta
}
