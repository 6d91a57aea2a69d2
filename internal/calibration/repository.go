package calibration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/pkg/pagination"
	"github.com/JaimeStill/vetrecords/pkg/query"
	"github.com/JaimeStill/vetrecords/pkg/repository"
)

type repo struct {
	db         *sql.DB
	policy     Policy
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a calibration repository implementing the System interface.
func New(
	db *sql.DB,
	policy Policy,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		policy:     policy,
		logger:     logger.With("system", "calibration"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Policy() Policy {
	return r.policy
}

func (r *repo) Lookup(ctx context.Context, contextKey, policyVersion string) (Table, error) {
	q := `
		SELECT field_key, mapping_id, accept_count, edit_count
		FROM calibration_aggregates
		WHERE context_key = $1 AND policy_version = $2`

	type row struct {
		scope  Scope
		counts Counts
	}

	rows, err := repository.QueryMany(ctx, r.db, q, []any{contextKey, policyVersion},
		func(s repository.Scanner) (row, error) {
			var rw row
			err := s.Scan(&rw.scope.FieldKey, &rw.scope.MappingID, &rw.counts.Accept, &rw.counts.Edit)
			return rw, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("lookup calibration: %w", err)
	}

	table := make(Table, len(rows))
	for _, rw := range rows {
		table[rw.scope] = rw.counts
	}
	return table, nil
}

const upsertQ = `
	INSERT INTO calibration_aggregates(
		context_key, field_key, mapping_id, policy_version, accept_count, edit_count
	)
	VALUES ($1, $2, $3, $4, GREATEST($5, 0), GREATEST($6, 0))
	ON CONFLICT (context_key, field_key, mapping_id, policy_version) DO UPDATE SET
		accept_count = GREATEST(calibration_aggregates.accept_count + $5, 0),
		edit_count = GREATEST(calibration_aggregates.edit_count + $6, 0),
		updated_at = NOW()`

func applyDelta(ctx context.Context, tx *sql.Tx, d Delta) error {
	_, err := tx.ExecContext(ctx, upsertQ,
		d.ContextKey, d.FieldKey, d.MappingID, d.PolicyVersion, d.Accept, d.Edit,
	)
	if err != nil {
		return fmt.Errorf("upsert aggregate %s/%s: %w", d.FieldKey, d.MappingID, err)
	}
	return nil
}

func (r *repo) Apply(ctx context.Context, tx *sql.Tx, cmd SnapshotCommand) (*Snapshot, error) {
	if len(cmd.Deltas) == 0 {
		return nil, ErrEmptySnapshot
	}

	for _, d := range cmd.Deltas {
		if err := applyDelta(ctx, tx, d); err != nil {
			return nil, err
		}
	}

	deltas, err := json.Marshal(cmd.Deltas)
	if err != nil {
		return nil, fmt.Errorf("marshal deltas: %w", err)
	}

	q := `
		INSERT INTO calibration_snapshots(id, document_id, run_id, source, status, deltas)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + snapshotColumns

	snap, err := repository.QueryOne(ctx, tx, q,
		[]any{uuid.New(), cmd.DocumentID, cmd.RunID, cmd.Source, StatusApplied, deltas},
		scanSnapshot,
	)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	r.logger.Info("calibration applied",
		"snapshot_id", snap.ID,
		"document_id", cmd.DocumentID,
		"deltas", len(cmd.Deltas),
	)
	return &snap, nil
}

func (r *repo) Revert(ctx context.Context, tx *sql.Tx, documentID uuid.UUID) ([]Snapshot, error) {
	q := `
		SELECT ` + snapshotColumns + `
		FROM calibration_snapshots
		WHERE document_id = $1 AND status = $2
		ORDER BY created_at
		FOR UPDATE`

	applied, err := repository.QueryMany(ctx, tx, q, []any{documentID, StatusApplied}, scanSnapshot)
	if err != nil {
		return nil, fmt.Errorf("query applied snapshots: %w", err)
	}

	reverted := make([]Snapshot, 0, len(applied))
	for _, snap := range applied {
		if err := repository.ExecExpectOne(ctx, tx,
			`UPDATE calibration_snapshots
			 SET status = $1, reverted_at = NOW()
			 WHERE id = $2 AND status = $3`,
			StatusReverted, snap.ID, StatusApplied,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("mark snapshot %s reverted: %w", snap.ID, err)
		}

		for _, d := range snap.Deltas {
			if err := applyDelta(ctx, tx, d.Inverse()); err != nil {
				return nil, err
			}
		}

		snap.Status = StatusReverted
		reverted = append(reverted, snap)
	}

	if len(reverted) > 0 {
		r.logger.Info("calibration reverted",
			"document_id", documentID,
			"snapshots", len(reverted),
		)
	}
	return reverted, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Aggregate], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "FieldKey", "MappingID")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count aggregates: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanAggregate)
	if err != nil {
		return nil, fmt.Errorf("query aggregates: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Snapshots(ctx context.Context, documentID uuid.UUID) ([]Snapshot, error) {
	q := `
		SELECT ` + snapshotColumns + `
		FROM calibration_snapshots
		WHERE document_id = $1
		ORDER BY created_at`

	snaps, err := repository.QueryMany(ctx, r.db, q, []any{documentID}, scanSnapshot)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	return snaps, nil
}
