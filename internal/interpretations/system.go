package interpretations

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract for interpretation operations.
type System interface {
	Handler() *Handler

	// Interpret builds version 1 of a run's interpretation from raw text.
	Interpret(ctx context.Context, runID, documentID uuid.UUID, text string) error

	Latest(ctx context.Context, runID uuid.UUID) (*Interpretation, error)
	Version(ctx context.Context, runID uuid.UUID, number int) (*Interpretation, error)
	Versions(ctx context.Context, runID uuid.UUID) ([]Version, error)

	// Edit appends the next version when cmd holds at least one real
	// change. Otherwise it returns the current version unchanged.
	Edit(ctx context.Context, runID uuid.UUID, cmd EditCommand) (*Interpretation, error)

	Changes(ctx context.Context, runID uuid.UUID) ([]ChangeLog, error)

	// ExportXLSX renders the latest version as a spreadsheet workbook.
	ExportXLSX(ctx context.Context, runID uuid.UUID) ([]byte, error)
}
