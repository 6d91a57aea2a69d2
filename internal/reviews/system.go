package reviews

import (
	"context"

	"github.com/google/uuid"
)

// System defines the review transitions of a document.
type System interface {
	Handler() *Handler

	// Review marks an IN_REVIEW document REVIEWED against its latest
	// completed run and applies the resulting calibration snapshot.
	Review(ctx context.Context, documentID uuid.UUID, cmd ReviewCommand) (*Result, error)

	// Reopen reverts every applied snapshot of a REVIEWED document and
	// returns it to IN_REVIEW.
	Reopen(ctx context.Context, documentID uuid.UUID) (*Result, error)
}
