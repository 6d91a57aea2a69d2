package runs

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/pkg/pagination"
)

// System defines the public contract for processing run operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Run], error)

	Find(ctx context.Context, id uuid.UUID) (*Run, error)
	Steps(ctx context.Context, runID uuid.UUID) ([]Step, error)

	// Latest returns the most recently created run of a document.
	Latest(ctx context.Context, documentID uuid.UUID) (*Run, error)

	// LatestCompleted returns the most recently created COMPLETED run of a
	// document.
	LatestCompleted(ctx context.Context, documentID uuid.UUID) (*Run, error)

	// HasRunning reports whether any run of the document is RUNNING.
	HasRunning(ctx context.Context, documentID uuid.UUID) (bool, error)

	// Enqueue creates a QUEUED run for an existing document.
	Enqueue(ctx context.Context, documentID uuid.UUID) (*Run, error)

	// ListQueued returns up to limit QUEUED runs, oldest first, skipping
	// documents that already have a RUNNING run.
	ListQueued(ctx context.Context, limit int) ([]Run, error)

	// TryStart moves a QUEUED run to RUNNING when no other run of the same
	// document is RUNNING. It reports false when the guard rejects the start.
	TryStart(ctx context.Context, id uuid.UUID) (*Run, bool, error)

	// Complete moves a RUNNING run to a terminal state.
	Complete(ctx context.Context, id uuid.UUID, state State, failure *FailureType) (*Run, error)

	AppendStep(ctx context.Context, rec StepRecord) (*Step, error)

	// SaveArtifact stores a non-versioned artifact produced by the pipeline.
	SaveArtifact(ctx context.Context, runID uuid.UUID, artifactType string, payload any) error

	// StorageKey resolves the stored original file of a document.
	StorageKey(ctx context.Context, documentID uuid.UUID) (string, error)

	// SweepOrphans fails every run left RUNNING by a previous process.
	SweepOrphans(ctx context.Context) (int, error)

	// RawText opens the raw text persisted by a run. The caller must close it.
	RawText(ctx context.Context, runID uuid.UUID) (io.ReadCloser, error)
}
