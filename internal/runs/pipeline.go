package runs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/extraction"
	"github.com/JaimeStill/vetrecords/pkg/quality"
)

// Store is the subset of System the pipeline writes through.
type Store interface {
	StorageKey(ctx context.Context, documentID uuid.UUID) (string, error)
	AppendStep(ctx context.Context, rec StepRecord) (*Step, error)
	SaveArtifact(ctx context.Context, runID uuid.UUID, artifactType string, payload any) error
	Complete(ctx context.Context, id uuid.UUID, state State, failure *FailureType) (*Run, error)
}

// Blobs reads original files and persists raw text.
type Blobs interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Interpret builds interpretation version 1 of a run from its raw text.
type Interpret func(ctx context.Context, runID, documentID uuid.UUID, text string) error

// QualityArtifact is the payload of the extraction quality artifact.
type QualityArtifact struct {
	Extractor extraction.Extractor `json:"extractor"`
	Pages     int                  `json:"pages"`
	Truncated bool                 `json:"truncated"`
	Threshold float64              `json:"threshold"`
	Report    quality.Report       `json:"report"`
}

// Pipeline executes the steps of one run and always finalizes it.
type Pipeline struct {
	store     Store
	blobs     Blobs
	extract   extraction.Extract
	interpret Interpret
	timeout   time.Duration
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline. timeout bounds the whole run.
func NewPipeline(
	store Store,
	blobs Blobs,
	extract extraction.Extract,
	interpret Interpret,
	timeout time.Duration,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:     store,
		blobs:     blobs,
		extract:   extract,
		interpret: interpret,
		timeout:   timeout,
		logger:    logger.With("system", "pipeline"),
	}
}

// Execute runs EXTRACTION then INTERPRETATION for a RUNNING run and moves it
// to its terminal state. Terminal writes survive cancellation of ctx.
func (p *Pipeline) Execute(ctx context.Context, run Run) (*Run, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.execute(runCtx, run)
	state, failure := outcome(err)

	if err != nil {
		p.logger.Warn("run failed",
			"run_id", run.ID,
			"document_id", run.DocumentID,
			"state", state,
			"error", err,
		)
	}

	final, cerr := p.store.Complete(context.WithoutCancel(ctx), run.ID, state, failure)
	if cerr != nil {
		return nil, fmt.Errorf("finalize run %s: %w", run.ID, cerr)
	}
	return final, nil
}

func (p *Pipeline) execute(ctx context.Context, run Run) error {
	var text string
	err := p.step(ctx, run, StepExtraction, func(ctx context.Context) error {
		t, err := p.extractText(ctx, run)
		text = t
		return err
	})
	if err != nil {
		return err
	}

	return p.step(ctx, run, StepInterpretation, func(ctx context.Context) error {
		return p.interpret(ctx, run.ID, run.DocumentID, text)
	})
}

func (p *Pipeline) extractText(ctx context.Context, run Run) (string, error) {
	key, err := p.store.StorageKey(ctx, run.DocumentID)
	if err != nil {
		return "", NewStepError(CodeExtractionFailed, err)
	}

	data, err := p.download(ctx, key)
	if err != nil {
		return "", err
	}

	result, err := p.extract(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", NewStepError(CodeExtractionFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	report := quality.Evaluate(result.Text)
	artifact := QualityArtifact{
		Extractor: result.Extractor,
		Pages:     result.Pages,
		Truncated: result.Truncated,
		Threshold: quality.Threshold,
		Report:    report,
	}
	if err := p.store.SaveArtifact(ctx, run.ID, ArtifactQualityReport, artifact); err != nil {
		return "", NewStepError(CodeExtractionFailed, err)
	}

	if !report.Pass {
		return "", &StepError{
			Code: CodeExtractionLowQuality,
			Detail: map[string]any{
				"score":   report.Score,
				"reasons": report.Reasons,
			},
			Err: fmt.Errorf("quality score %.2f below gate", report.Score),
		}
	}

	key = RawTextKey(run.DocumentID, run.ID)
	if err := p.blobs.Upload(ctx, key, strings.NewReader(result.Text), "text/plain; charset=utf-8"); err != nil {
		return "", NewStepError(CodeExtractionFailed, fmt.Errorf("save raw text: %w", err))
	}

	p.logger.Info("text extracted",
		"run_id", run.ID,
		"extractor", result.Extractor,
		"pages", result.Pages,
		"score", report.Score,
	)
	return result.Text, nil
}

func (p *Pipeline) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.blobs.Download(ctx, key)
	if err != nil {
		return nil, NewStepError(CodeExtractionFailed, fmt.Errorf("download original: %w", err))
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewStepError(CodeExtractionFailed, fmt.Errorf("read original: %w", err))
	}
	if len(data) == 0 {
		return nil, NewStepError(CodeExtractionFailed, extraction.ErrEmptyDocument)
	}
	return data, nil
}

// step appends the RUNNING record, runs fn and appends the closing record.
// Any failure comes back as a *StepError carrying its failure category.
func (p *Pipeline) step(ctx context.Context, run Run, name StepName, fn func(context.Context) error) error {
	started := time.Now()
	p.record(ctx, StepRecord{
		RunID:     run.ID,
		Step:      name,
		Status:    StepRunning,
		Attempt:   1,
		StartedAt: started,
	})

	err := guard(ctx, fn)

	ended := time.Now()
	rec := StepRecord{
		RunID:     run.ID,
		Step:      name,
		Status:    StepSucceeded,
		Attempt:   1,
		StartedAt: started,
		EndedAt:   &ended,
	}

	var se *StepError
	if err != nil {
		se = classify(ctx, name, err)
		rec.Status = StepFailed
		rec.ErrorCode = se.Code
		rec.Details = se.details()
	}

	p.record(context.WithoutCancel(ctx), rec)

	if se != nil {
		return se
	}
	return nil
}

func guard(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StepError{
				Code:     CodeUnknown,
				Err:      fmt.Errorf("panic: %v", r),
				category: FailureUnknown,
			}
		}
	}()
	return fn(ctx)
}

func (p *Pipeline) record(ctx context.Context, rec StepRecord) {
	if _, err := p.store.AppendStep(ctx, rec); err != nil {
		p.logger.Error("step record failed",
			"run_id", rec.RunID,
			"step", rec.Step,
			"status", rec.Status,
			"error", err,
		)
	}
}

// classify turns a step error into a *StepError with a code and category.
func classify(ctx context.Context, name StepName, err error) *StepError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &StepError{Code: CodeTimedOut, Err: err, timedOut: true}
	case errors.Is(err, context.Canceled):
		return &StepError{Code: CodeProcessTerminated, Err: err, category: FailureProcessTerminated}
	}

	var se *StepError
	if !errors.As(err, &se) {
		if name == StepInterpretation {
			return &StepError{Code: CodeInterpretationFailed, Err: err, category: FailureInterpretation}
		}
		return &StepError{Code: CodeUnknown, Err: err, category: FailureUnknown}
	}

	out := *se
	if out.category != "" {
		return &out
	}

	switch {
	case name == StepInterpretation:
		out.category = FailureInterpretation
	case out.Code == CodeExtractionLowQuality:
		out.category = FailureLowQuality
	case out.Code == CodeExtractionFailed:
		out.category = FailureExtraction
	default:
		out.category = FailureUnknown
	}
	return &out
}

// outcome maps the result of a run to its terminal state and category.
func outcome(err error) (State, *FailureType) {
	if err == nil {
		return StateCompleted, nil
	}

	var se *StepError
	if errors.As(err, &se) {
		if se.timedOut {
			return StateTimedOut, nil
		}
		if se.category != "" {
			category := se.category
			return StateFailed, &category
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return StateTimedOut, nil
	}

	unknown := FailureUnknown
	return StateFailed, &unknown
}
