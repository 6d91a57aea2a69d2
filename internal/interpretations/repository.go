package interpretations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/internal/runs"
	"github.com/JaimeStill/vetrecords/pkg/repository"
)

type repo struct {
	db          *sql.DB
	builder     *Builder
	calibration calibration.System
	logger      *slog.Logger
}

// New creates an interpretation repository implementing the System
// interface. Interpretations are scored against the policy of cal.
func New(db *sql.DB, builder *Builder, cal calibration.System, logger *slog.Logger) System {
	return &repo{
		db:          db,
		builder:     builder,
		calibration: cal,
		logger:      logger.With("system", "interpretations"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Interpret(ctx context.Context, runID, documentID uuid.UUID, text string) error {
	_, contextKey := r.builder.Context(text)

	table, err := r.calibration.Lookup(ctx, contextKey, r.builder.policy.Version)
	if err != nil {
		return fmt.Errorf("load calibration: %w", err)
	}

	payload := r.builder.Build(text, table)
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := EncodePayload(payload)
	if err != nil {
		return runs.NewStepError(runs.CodeSchemaValidationFailed, err)
	}

	interp, err := insertVersion(ctx, r.db, runID, uuid.New(), 1, data, nil)
	if err != nil {
		return err
	}

	r.logger.Info("interpretation built",
		"run_id", runID,
		"document_id", documentID,
		"interpretation_id", interp.InterpretationID,
		"fields", len(payload.Fields),
	)
	return nil
}

func (r *repo) Latest(ctx context.Context, runID uuid.UUID) (*Interpretation, error) {
	if err := runExists(ctx, r.db, runID); err != nil {
		return nil, err
	}
	return QueryLatest(ctx, r.db, runID)
}

// QueryLatest returns the current version of a run's interpretation using q,
// which may be a transaction owned by the caller.
func QueryLatest(ctx context.Context, q repository.Querier, runID uuid.UUID) (*Interpretation, error) {
	stmt := `
		SELECT ` + artifactColumns + `
		FROM run_artifacts
		WHERE run_id = $1 AND artifact_type = $2
		ORDER BY version_number DESC
		LIMIT 1`

	interp, err := repository.QueryOne(ctx, q, stmt, []any{runID, ArtifactType}, scanInterpretation)
	if err != nil {
		return nil, mapQueryError(err)
	}
	return &interp, nil
}

func (r *repo) Version(ctx context.Context, runID uuid.UUID, number int) (*Interpretation, error) {
	if err := runExists(ctx, r.db, runID); err != nil {
		return nil, err
	}

	q := `
		SELECT ` + artifactColumns + `
		FROM run_artifacts
		WHERE run_id = $1 AND artifact_type = $2 AND version_number = $3`

	interp, err := repository.QueryOne(ctx, r.db, q, []any{runID, ArtifactType, number}, scanInterpretation)
	if err != nil {
		return nil, mapQueryError(err)
	}
	return &interp, nil
}

func (r *repo) Versions(ctx context.Context, runID uuid.UUID) ([]Version, error) {
	if err := runExists(ctx, r.db, runID); err != nil {
		return nil, err
	}

	q := `
		SELECT interpretation_id, version_number,
			jsonb_array_length(payload->'fields'), created_by, created_at
		FROM run_artifacts
		WHERE run_id = $1 AND artifact_type = $2
		ORDER BY version_number`

	versions, err := repository.QueryMany(ctx, r.db, q, []any{runID, ArtifactType}, scanVersion)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	return versions, nil
}

func (r *repo) Edit(ctx context.Context, runID uuid.UUID, cmd EditCommand) (*Interpretation, error) {
	if cmd.EditedBy == "" {
		return nil, fmt.Errorf("%w: edited_by is required", ErrInvalidChange)
	}

	var changed []FieldChange
	interp, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*Interpretation, error) {
		var (
			documentID uuid.UUID
			state      runs.State
		)
		err := tx.QueryRowContext(ctx,
			`SELECT document_id, state FROM processing_runs WHERE id = $1 FOR UPDATE`, runID,
		).Scan(&documentID, &state)
		if err != nil {
			return nil, repository.MapError(err, ErrRunNotFound, ErrRunNotFound)
		}

		running, err := runs.HasRunning(ctx, tx, documentID)
		if err != nil {
			return nil, err
		}
		if running {
			return nil, ErrRunInProgress
		}
		if state != runs.StateCompleted {
			return nil, ErrRunNotCompleted
		}

		current, err := QueryLatest(ctx, tx, runID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNoInterpretation
			}
			return nil, err
		}
		if cmd.BaseVersionNumber != current.VersionNumber {
			return nil, fmt.Errorf("%w: base %d, current %d",
				ErrStaleVersion, cmd.BaseVersionNumber, current.VersionNumber)
		}

		next, fcs, err := r.builder.Edit(current.Payload, cmd.Changes)
		if err != nil {
			return nil, err
		}
		if len(fcs) == 0 {
			return current, nil
		}

		data, err := EncodePayload(next)
		if err != nil {
			return nil, err
		}

		version := current.VersionNumber + 1
		interp, err := insertVersion(ctx, tx, runID, current.InterpretationID, version, data, &cmd.EditedBy)
		if err != nil {
			if errors.Is(err, ErrDuplicateVersion) {
				return nil, ErrStaleVersion
			}
			return nil, err
		}

		for _, fc := range fcs {
			if err := insertChange(ctx, tx, interp, fc, cmd.EditedBy); err != nil {
				return nil, err
			}
		}

		changed = fcs
		return interp, nil
	})
	if err != nil {
		return nil, err
	}

	if len(changed) > 0 {
		r.logger.Info("interpretation edited",
			"run_id", runID,
			"version", interp.VersionNumber,
			"changes", len(changed),
			"edited_by", cmd.EditedBy,
		)
	}
	return interp, nil
}

func (r *repo) Changes(ctx context.Context, runID uuid.UUID) ([]ChangeLog, error) {
	if err := runExists(ctx, r.db, runID); err != nil {
		return nil, err
	}
	return QueryChanges(ctx, r.db, runID)
}

// QueryChanges returns the change log of a run in the order changes were
// made, using q which may be a transaction owned by the caller.
func QueryChanges(ctx context.Context, q repository.Querier, runID uuid.UUID) ([]ChangeLog, error) {
	stmt := `SELECT ` + changeColumns + ` FROM field_change_log WHERE run_id = $1 ORDER BY id`

	changes, err := repository.QueryMany(ctx, q, stmt, []any{runID}, scanChange)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	return changes, nil
}

func (r *repo) ExportXLSX(ctx context.Context, runID uuid.UUID) ([]byte, error) {
	interp, err := r.Latest(ctx, runID)
	if err != nil {
		return nil, err
	}

	data, err := Workbook(interp)
	if err != nil {
		return nil, err
	}

	r.logger.Info("interpretation exported",
		"run_id", runID,
		"version", interp.VersionNumber,
		"bytes", len(data),
	)
	return data, nil
}

func insertVersion(
	ctx context.Context,
	q repository.Querier,
	runID, interpretationID uuid.UUID,
	version int,
	payload []byte,
	createdBy *string,
) (*Interpretation, error) {
	stmt := `
		INSERT INTO run_artifacts(id, run_id, artifact_type, interpretation_id, version_number, payload, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + artifactColumns

	args := []any{uuid.New(), runID, ArtifactType, interpretationID, version, payload, createdBy}
	interp, err := repository.QueryOne(ctx, q, stmt, args, scanInterpretation)
	if err != nil {
		err = repository.MapForeignKey(err, ErrRunNotFound)
		return nil, fmt.Errorf("insert version %d: %w", version, repository.MapError(err, ErrNotFound, ErrDuplicateVersion))
	}
	return &interp, nil
}

func insertChange(ctx context.Context, tx *sql.Tx, interp *Interpretation, fc FieldChange, changedBy string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO field_change_log(
			run_id, interpretation_id, version_number, field_id, field_key,
			mapping_id, op, old_value, new_value, value_type, changed_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		interp.RunID, interp.InterpretationID, interp.VersionNumber, fc.FieldID, fc.FieldKey,
		fc.MappingID, fc.Op, fc.OldValue, fc.NewValue, fc.ValueType, changedBy,
	)
	if err != nil {
		return fmt.Errorf("insert change of %s: %w", fc.FieldKey, err)
	}
	return nil
}

func runExists(ctx context.Context, q repository.Querier, runID uuid.UUID) error {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processing_runs WHERE id = $1)`, runID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if !exists {
		return ErrRunNotFound
	}
	return nil
}

func mapQueryError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
