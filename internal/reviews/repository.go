package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/calibration"
	"github.com/JaimeStill/vetrecords/internal/documents"
	"github.com/JaimeStill/vetrecords/internal/interpretations"
	"github.com/JaimeStill/vetrecords/internal/runs"
	"github.com/JaimeStill/vetrecords/pkg/repository"
)

type repo struct {
	db          *sql.DB
	documents   documents.System
	calibration calibration.System
	logger      *slog.Logger
}

// New creates the review system. Transitions run in one transaction that
// holds the document row lock.
func New(
	db *sql.DB,
	docs documents.System,
	cal calibration.System,
	logger *slog.Logger,
) System {
	return &repo{
		db:          db,
		documents:   docs,
		calibration: cal,
		logger:      logger.With("system", "reviews"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Review(ctx context.Context, documentID uuid.UUID, cmd ReviewCommand) (*Result, error) {
	reviewer := strings.TrimSpace(cmd.ReviewedBy)
	if reviewer == "" {
		return nil, ErrMissingReviewer
	}

	type reviewed struct {
		runID    uuid.UUID
		snapshot *calibration.Snapshot
	}

	out, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (reviewed, error) {
		doc, err := documents.Lock(ctx, tx, documentID)
		if err != nil {
			return reviewed{}, err
		}
		if doc.ReviewStatus != documents.StatusInReview {
			return reviewed{}, ErrNotInReview
		}

		running, err := runs.HasRunning(ctx, tx, documentID)
		if err != nil {
			return reviewed{}, err
		}
		if running {
			return reviewed{}, ErrRunInProgress
		}

		run, err := runs.QueryLatestCompleted(ctx, tx, documentID)
		if err != nil {
			if errors.Is(err, runs.ErrNotFound) {
				return reviewed{}, ErrNoCompletedRun
			}
			return reviewed{}, err
		}

		interp, err := interpretations.QueryLatest(ctx, tx, run.ID)
		if err != nil {
			if errors.Is(err, interpretations.ErrNotFound) {
				return reviewed{}, ErrNoInterpretation
			}
			return reviewed{}, err
		}

		changes, err := interpretations.QueryChanges(ctx, tx, run.ID)
		if err != nil {
			return reviewed{}, err
		}

		res := reviewed{runID: run.ID}
		if deltas := Signals(interp, changes); len(deltas) > 0 {
			res.snapshot, err = r.calibration.Apply(ctx, tx, calibration.SnapshotCommand{
				DocumentID: documentID,
				RunID:      run.ID,
				Source:     SnapshotSource,
				Deltas:     deltas,
			})
			if err != nil {
				return reviewed{}, err
			}
		}

		if err := documents.MarkReviewed(ctx, tx, documentID, reviewer, run.ID); err != nil {
			return reviewed{}, err
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("document reviewed",
		"document_id", documentID,
		"run_id", out.runID,
		"reviewed_by", reviewer,
	)

	result := &Result{Snapshots: []calibration.Snapshot{}}
	if out.snapshot != nil {
		result.Snapshots = append(result.Snapshots, *out.snapshot)
	}
	return r.withDocument(ctx, documentID, result)
}

func (r *repo) Reopen(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	reverted, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]calibration.Snapshot, error) {
		doc, err := documents.Lock(ctx, tx, documentID)
		if err != nil {
			return nil, err
		}
		if doc.ReviewStatus != documents.StatusReviewed {
			return nil, ErrNotReviewed
		}

		reverted, err := r.calibration.Revert(ctx, tx, documentID)
		if err != nil {
			return nil, err
		}

		if err := documents.MarkInReview(ctx, tx, documentID); err != nil {
			return nil, err
		}
		return reverted, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("document reopened", "document_id", documentID, "reverted", len(reverted))

	return r.withDocument(ctx, documentID, &Result{Snapshots: reverted})
}

func (r *repo) withDocument(ctx context.Context, documentID uuid.UUID, result *Result) (*Result, error) {
	doc, err := r.documents.Find(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("reload document: %w", err)
	}
	result.Document = doc
	return result, nil
}
