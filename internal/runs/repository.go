package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

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

// New creates a run repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "runs"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Run], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "State", "FailureType")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Run, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	run, err := repository.QueryOne(ctx, r.db, q, args, scanRun)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &run, nil
}

func (r *repo) Steps(ctx context.Context, runID uuid.UUID) ([]Step, error) {
	if _, err := r.Find(ctx, runID); err != nil {
		return nil, err
	}

	q := `SELECT ` + stepColumns + ` FROM run_steps WHERE run_id = $1 ORDER BY id`
	steps, err := repository.QueryMany(ctx, r.db, q, []any{runID}, scanStep)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	return steps, nil
}

func (r *repo) Latest(ctx context.Context, documentID uuid.UUID) (*Run, error) {
	return queryLatest(ctx, r.db, documentID, nil)
}

func (r *repo) LatestCompleted(ctx context.Context, documentID uuid.UUID) (*Run, error) {
	return QueryLatestCompleted(ctx, r.db, documentID)
}

// QueryLatestCompleted returns the most recent COMPLETED run of the document
// using q, or ErrNotFound.
func QueryLatestCompleted(ctx context.Context, q repository.Querier, documentID uuid.UUID) (*Run, error) {
	state := string(StateCompleted)
	return queryLatest(ctx, q, documentID, &state)
}

func queryLatest(ctx context.Context, db repository.Querier, documentID uuid.UUID, state *string) (*Run, error) {
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("DocumentID", documentID).
		WhereEquals("State", state).
		BuildPage(1, 1)

	items, err := repository.QueryMany(ctx, db, q, args, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

func (r *repo) HasRunning(ctx context.Context, documentID uuid.UUID) (bool, error) {
	return HasRunning(ctx, r.db, documentID)
}

// HasRunning reports whether any run of the document is RUNNING, using q so
// that callers can check inside their own transaction.
func HasRunning(ctx context.Context, q repository.Querier, documentID uuid.UUID) (bool, error) {
	var running bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processing_runs WHERE document_id = $1 AND state = $2)`,
		documentID, StateRunning,
	).Scan(&running)
	if err != nil {
		return false, fmt.Errorf("check running run: %w", err)
	}
	return running, nil
}

func (r *repo) Enqueue(ctx context.Context, documentID uuid.UUID) (*Run, error) {
	run, err := Insert(ctx, r.db, documentID)
	if err != nil {
		return nil, err
	}

	r.logger.Info("run queued", "run_id", run.ID, "document_id", documentID)
	return run, nil
}

// Insert creates a QUEUED run for documentID using q, which may be a
// transaction owned by the caller.
func Insert(ctx context.Context, q repository.Querier, documentID uuid.UUID) (*Run, error) {
	stmt := `
		INSERT INTO processing_runs(id, document_id, state)
		VALUES ($1, $2, $3)
		RETURNING ` + runColumns

	run, err := repository.QueryOne(ctx, q, stmt, []any{uuid.New(), documentID, StateQueued}, scanRun)
	if err != nil {
		err = repository.MapForeignKey(err, ErrDocumentNotFound)
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &run, nil
}

func (r *repo) ListQueued(ctx context.Context, limit int) ([]Run, error) {
	q := `
		SELECT ` + runColumns + `
		FROM processing_runs r
		WHERE r.state = $1
		  AND NOT EXISTS (
			SELECT 1 FROM processing_runs o
			WHERE o.document_id = r.document_id AND o.state = $2
		  )
		ORDER BY r.created_at, r.id
		LIMIT $3`

	items, err := repository.QueryMany(ctx, r.db, q, []any{StateQueued, StateRunning, limit}, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query queued runs: %w", err)
	}
	return items, nil
}

func (r *repo) TryStart(ctx context.Context, id uuid.UUID) (*Run, bool, error) {
	q := `
		UPDATE processing_runs r
		SET state = $2, started_at = NOW()
		WHERE r.id = $1
		  AND r.state = $3
		  AND NOT EXISTS (
			SELECT 1 FROM processing_runs o
			WHERE o.document_id = r.document_id AND o.state = $2
		  )
		RETURNING ` + runColumns

	run, err := repository.QueryOne(ctx, r.db, q, []any{id, StateRunning, StateQueued}, scanRun)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsUniqueViolation(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("start run %s: %w", id, err)
	}

	r.logger.Info("run started", "run_id", run.ID, "document_id", run.DocumentID)
	return &run, true, nil
}

func (r *repo) Complete(ctx context.Context, id uuid.UUID, state State, failure *FailureType) (*Run, error) {
	if !state.Terminal() {
		return nil, fmt.Errorf("complete run %s: %s is not a terminal state", id, state)
	}

	q := `
		UPDATE processing_runs
		SET state = $2, failure_type = $3, completed_at = NOW()
		WHERE id = $1 AND state = $4
		RETURNING ` + runColumns

	run, err := repository.QueryOne(ctx, r.db, q, []any{id, state, failure, StateRunning}, scanRun)
	if err != nil {
		return nil, repository.MapError(err, ErrNotRunning, ErrDuplicate)
	}

	r.logger.Info("run completed",
		"run_id", run.ID,
		"document_id", run.DocumentID,
		"state", run.State,
	)
	return &run, nil
}

func (r *repo) AppendStep(ctx context.Context, rec StepRecord) (*Step, error) {
	details, err := marshalDetails(rec.Details)
	if err != nil {
		return nil, err
	}

	var code *string
	if rec.ErrorCode != "" {
		code = &rec.ErrorCode
	}

	q := `
		INSERT INTO run_steps(run_id, step, status, attempt, started_at, ended_at, error_code, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + stepColumns

	args := []any{rec.RunID, rec.Step, rec.Status, rec.Attempt, rec.StartedAt, rec.EndedAt, code, details}
	step, err := repository.QueryOne(ctx, r.db, q, args, scanStep)
	if err != nil {
		if repository.IsCheckViolation(err) {
			return nil, fmt.Errorf("append step: %s/%s: %w", rec.Step, rec.Status, ErrInvalidStep)
		}
		err = repository.MapForeignKey(err, ErrNotFound)
		return nil, fmt.Errorf("append step: %w", err)
	}
	return &step, nil
}

func (r *repo) SaveArtifact(ctx context.Context, runID uuid.UUID, artifactType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s artifact: %w", artifactType, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO run_artifacts(id, run_id, artifact_type, version_number, payload)
		VALUES ($1, $2, $3, 1, $4)`,
		uuid.New(), runID, artifactType, data,
	)
	if err != nil {
		return fmt.Errorf("insert %s artifact: %w", artifactType, repository.MapError(err, ErrNotFound, ErrDuplicate))
	}
	return nil
}

func (r *repo) StorageKey(ctx context.Context, documentID uuid.UUID) (string, error) {
	var key string
	err := r.db.QueryRowContext(ctx,
		`SELECT storage_key FROM documents WHERE id = $1`, documentID,
	).Scan(&key)
	if err != nil {
		return "", repository.MapError(err, ErrDocumentNotFound, ErrDuplicate)
	}
	return key, nil
}

func (r *repo) SweepOrphans(ctx context.Context) (int, error) {
	swept, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]uuid.UUID, error) {
		ids, err := repository.QueryMany(ctx, tx, `
			UPDATE processing_runs
			SET state = $1, failure_type = $2, completed_at = NOW()
			WHERE state = $3
			RETURNING id`,
			[]any{StateFailed, FailureProcessTerminated, StateRunning},
			func(s repository.Scanner) (uuid.UUID, error) {
				var id uuid.UUID
				err := s.Scan(&id)
				return id, err
			},
		)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			if err := closeOpenStep(ctx, tx, id); err != nil {
				return nil, err
			}
		}
		return ids, nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep orphaned runs: %w", err)
	}

	if len(swept) > 0 {
		r.logger.Warn("orphaned runs swept", "count", len(swept))
	}
	return len(swept), nil
}

// closeOpenStep appends a FAILED record for the step a swept run was in.
func closeOpenStep(ctx context.Context, tx *sql.Tx, runID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO run_steps(run_id, step, status, attempt, started_at, ended_at, error_code)
		SELECT run_id, step, $2, attempt, started_at, NOW(), $3
		FROM (
			SELECT run_id, step, status, attempt, started_at
			FROM run_steps
			WHERE run_id = $1
			ORDER BY id DESC
			LIMIT 1
		) last
		WHERE last.status = $4`,
		runID, StepFailed, CodeProcessTerminated, StepRunning,
	)
	if err != nil {
		return fmt.Errorf("close open step of %s: %w", runID, err)
	}
	return nil
}

func (r *repo) RawText(ctx context.Context, runID uuid.UUID) (io.ReadCloser, error) {
	run, err := r.Find(ctx, runID)
	if err != nil {
		return nil, err
	}

	rc, err := r.storage.Download(ctx, RawTextKey(run.DocumentID, run.ID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRawTextNotFound
		}
		return nil, fmt.Errorf("download raw text: %w", err)
	}
	return rc, nil
}
