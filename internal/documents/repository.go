package documents

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/runs"
	"github.com/JaimeStill/vetrecords/pkg/pagination"
	"github.com/JaimeStill/vetrecords/pkg/query"
	"github.com/JaimeStill/vetrecords/pkg/repository"
	"github.com/JaimeStill/vetrecords/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a document repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "ReviewedBy")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Document, error) {
	id := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload document blob: %w", err)
	}

	q := `
		INSERT INTO documents(id, filename, content_type, size_bytes, page_count, storage_key, review_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + documentColumns

	insertArgs := []any{
		id,
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
		StatusInReview,
	}

	run, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*runs.Run, error) {
		if _, err := repository.QueryOne(ctx, tx, q, insertArgs, scanRecord); err != nil {
			return nil, err
		}
		return runs.Insert(ctx, tx, id)
	})

	if err != nil {
		if delErr := r.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document created", "id", id, "filename", cmd.Filename, "run_id", run.ID)
	return r.Find(ctx, id)
}

func (r *repo) Open(ctx context.Context, id uuid.UUID) (*Document, io.ReadCloser, error) {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := r.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrFileMissing
		}
		return nil, nil, fmt.Errorf("download document blob: %w", err)
	}
	return doc, rc, nil
}

func (r *repo) Reprocess(ctx context.Context, id uuid.UUID) (*runs.Run, error) {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := r.storage.Exists(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("check document blob: %w", err)
	}
	if !ok {
		return nil, ErrFileMissing
	}

	run, err := runs.Insert(ctx, r.db, id)
	if err != nil {
		if errors.Is(err, runs.ErrDocumentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("queue run: %w", err)
	}

	r.logger.Info("document reprocess queued", "id", id, "run_id", run.ID)
	return run, nil
}

// Lock reads a document inside tx and holds its row lock until tx ends.
func Lock(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`

	d, err := repository.QueryOne(ctx, tx, q, []any{id}, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

// MarkReviewed records a completed review of runID by reviewer inside tx.
func MarkReviewed(ctx context.Context, tx *sql.Tx, id uuid.UUID, reviewer string, runID uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, tx, `
		UPDATE documents
		SET review_status = $2, reviewed_by = $3, reviewed_at = NOW(), reviewed_run_id = $4, updated_at = NOW()
		WHERE id = $1`,
		id, StatusReviewed, reviewer, runID,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

// MarkInReview returns a document to IN_REVIEW inside tx and clears the
// reviewer fields.
func MarkInReview(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, tx, `
		UPDATE documents
		SET review_status = $2, reviewed_by = NULL, reviewed_at = NULL, reviewed_run_id = NULL, updated_at = NOW()
		WHERE id = $1`,
		id, StatusInReview,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/original/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == string(filepath.Separator) {
		name = "document.pdf"
	}
	return url.PathEscape(name)
}
