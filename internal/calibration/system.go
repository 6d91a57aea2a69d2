package calibration

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/pkg/pagination"
)

// System defines the public contract for calibration operations.
type System interface {
	Handler() *Handler
	Policy() Policy

	// Lookup loads every counter of a context key and policy version.
	Lookup(ctx context.Context, contextKey, policyVersion string) (Table, error)

	// Apply adds each delta to its counter and records a snapshot, inside tx.
	Apply(ctx context.Context, tx *sql.Tx, cmd SnapshotCommand) (*Snapshot, error)

	// Revert replays the inverse of every applied snapshot of a document
	// inside tx and marks them reverted. Reverted snapshots are skipped.
	Revert(ctx context.Context, tx *sql.Tx, documentID uuid.UUID) ([]Snapshot, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Aggregate], error)

	Snapshots(ctx context.Context, documentID uuid.UUID) ([]Snapshot, error)
}
