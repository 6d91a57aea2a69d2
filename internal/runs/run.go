// Package runs owns processing runs: their state machine, step history, the
// extraction and interpretation pipeline, and the background scheduler that
// starts queued runs.
package runs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a run. COMPLETED, FAILED and TIMED_OUT
// are terminal.
type State string

const (
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// FailureType categorizes a FAILED run.
type FailureType string

const (
	FailureExtraction        FailureType = "EXTRACTION_FAILED"
	FailureLowQuality        FailureType = "EXTRACTION_LOW_QUALITY"
	FailureInterpretation    FailureType = "INTERPRETATION_FAILED"
	FailureProcessTerminated FailureType = "PROCESS_TERMINATED"
	FailureUnknown           FailureType = "UNKNOWN_ERROR"
)

// StepName identifies a pipeline step.
type StepName string

const (
	StepExtraction     StepName = "EXTRACTION"
	StepInterpretation StepName = "INTERPRETATION"
)

// StepStatus is the status carried by one step record.
type StepStatus string

const (
	StepRunning   StepStatus = "RUNNING"
	StepSucceeded StepStatus = "SUCCEEDED"
	StepFailed    StepStatus = "FAILED"
)

// ArtifactQualityReport is the artifact type of the extraction quality report.
const ArtifactQualityReport = "EXTRACTION_QUALITY"

// Run is one processing attempt for a document.
type Run struct {
	ID          uuid.UUID    `json:"id"`
	DocumentID  uuid.UUID    `json:"document_id"`
	State       State        `json:"state"`
	FailureType *FailureType `json:"failure_type"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at"`
}

// Step is one append-only step status record.
type Step struct {
	ID        int64           `json:"id"`
	RunID     uuid.UUID       `json:"run_id"`
	Step      StepName        `json:"step"`
	Status    StepStatus      `json:"status"`
	Attempt   int             `json:"attempt"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at"`
	ErrorCode *string         `json:"error_code"`
	Details   json.RawMessage `json:"details"`
}

// StepRecord is the input for appending a step record.
type StepRecord struct {
	RunID     uuid.UUID
	Step      StepName
	Status    StepStatus
	Attempt   int
	StartedAt time.Time
	EndedAt   *time.Time
	ErrorCode string
	Details   map[string]any
}

// RawTextKey is the storage key of the raw text extracted by a run.
func RawTextKey(documentID, runID uuid.UUID) string {
	return fmt.Sprintf("documents/%s/runs/%s/raw-text.txt", documentID, runID)
}
