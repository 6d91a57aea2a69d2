package documents

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/runs"
	"github.com/JaimeStill/vetrecords/pkg/pagination"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)

	// Create stores the file and registers the document together with its
	// first QUEUED run.
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)

	// Open streams the original file of a document. The caller must close it.
	Open(ctx context.Context, id uuid.UUID) (*Document, io.ReadCloser, error)

	// Reprocess queues a new run for an existing document whose original is
	// still in storage.
	Reprocess(ctx context.Context, id uuid.UUID) (*runs.Run, error)
}
