package runs_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/internal/extraction"
	"github.com/JaimeStill/vetrecords/internal/runs"
	"github.com/JaimeStill/vetrecords/pkg/storage"
)

const recordText = "Paciente: Luna\n" +
	"Especie: Canino\n" +
	"Propietario: Ana Lopez\n" +
	"Microchip: 00023035139\n" +
	"Fecha: 14/03/2024\n" +
	"Diagnostico: otitis externa leve en oido derecho\n"

type fakeStore struct {
	mu         sync.Mutex
	keyErr     error
	steps      []runs.StepRecord
	artifacts  map[string]any
	final      *runs.Run
	completeFn func(ctx context.Context)
}

func (f *fakeStore) StorageKey(_ context.Context, documentID uuid.UUID) (string, error) {
	if f.keyErr != nil {
		return "", f.keyErr
	}
	return "documents/" + documentID.String() + "/record.pdf", nil
}

func (f *fakeStore) AppendStep(_ context.Context, rec runs.StepRecord) (*runs.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, rec)
	return &runs.Step{RunID: rec.RunID, Step: rec.Step, Status: rec.Status}, nil
}

func (f *fakeStore) SaveArtifact(_ context.Context, _ uuid.UUID, artifactType string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.artifacts == nil {
		f.artifacts = make(map[string]any)
	}
	f.artifacts[artifactType] = payload
	return nil
}

func (f *fakeStore) Complete(ctx context.Context, id uuid.UUID, state runs.State, failure *runs.FailureType) (*runs.Run, error) {
	if f.completeFn != nil {
		f.completeFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.final = &runs.Run{ID: id, State: state, FailureType: failure}
	return f.final, nil
}

func (f *fakeStore) lastStep() runs.StepRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.steps[len(f.steps)-1]
}

type fakeBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: make(map[string][]byte)}
}

func (f *fakeBlobs) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = data
	return nil
}

func (f *fakeBlobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobs) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok
}

func extractText(text string) extraction.Extract {
	return func(context.Context, []byte) (extraction.Result, error) {
		return extraction.Result{Text: text, Extractor: extraction.Fallback, Pages: 1}, nil
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	run   runs.Run
	store *fakeStore
	blobs *fakeBlobs
}

func newFixture(original []byte) *fixture {
	run := runs.Run{ID: uuid.New(), DocumentID: uuid.New(), State: runs.StateRunning}
	f := &fixture{run: run, store: &fakeStore{}, blobs: newFakeBlobs()}
	if original != nil {
		f.blobs.blobs["documents/"+run.DocumentID.String()+"/record.pdf"] = original
	}
	return f
}

func (f *fixture) execute(t *testing.T, ctx context.Context, extract extraction.Extract, interpret runs.Interpret, timeout time.Duration) *runs.Run {
	t.Helper()
	p := runs.NewPipeline(f.store, f.blobs, extract, interpret, timeout, discard())
	final, err := p.Execute(ctx, f.run)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return final
}

func TestPipelineCompleted(t *testing.T) {
	f := newFixture([]byte("%PDF-1.4"))

	var interpreted string
	interpret := func(_ context.Context, runID, documentID uuid.UUID, text string) error {
		if runID != f.run.ID || documentID != f.run.DocumentID {
			t.Errorf("Interpret ids = %v/%v, want %v/%v", runID, documentID, f.run.ID, f.run.DocumentID)
		}
		interpreted = text
		return nil
	}

	final := f.execute(t, context.Background(), extractText(recordText), interpret, time.Minute)

	if final.State != runs.StateCompleted {
		t.Errorf("State = %s, want COMPLETED", final.State)
	}
	if final.FailureType != nil {
		t.Errorf("FailureType = %v, want nil", *final.FailureType)
	}
	if interpreted != recordText {
		t.Errorf("interpreted text = %q, want record text", interpreted)
	}
	if !f.blobs.has(runs.RawTextKey(f.run.DocumentID, f.run.ID)) {
		t.Error("raw text not persisted")
	}
	if _, ok := f.store.artifacts[runs.ArtifactQualityReport]; !ok {
		t.Error("quality artifact not saved")
	}

	want := []struct {
		step   runs.StepName
		status runs.StepStatus
	}{
		{runs.StepExtraction, runs.StepRunning},
		{runs.StepExtraction, runs.StepSucceeded},
		{runs.StepInterpretation, runs.StepRunning},
		{runs.StepInterpretation, runs.StepSucceeded},
	}
	if len(f.store.steps) != len(want) {
		t.Fatalf("steps = %d, want %d", len(f.store.steps), len(want))
	}
	for i, w := range want {
		got := f.store.steps[i]
		if got.Step != w.step || got.Status != w.status {
			t.Errorf("step[%d] = %s/%s, want %s/%s", i, got.Step, got.Status, w.step, w.status)
		}
	}
}

func TestPipelineFailures(t *testing.T) {
	noop := func(context.Context, uuid.UUID, uuid.UUID, string) error { return nil }

	tests := []struct {
		name        string
		original    []byte
		keyErr      error
		extract     extraction.Extract
		interpret   runs.Interpret
		wantFailure runs.FailureType
		wantCode    string
		wantStep    runs.StepName
	}{
		{
			name:        "missing document",
			original:    []byte("%PDF"),
			keyErr:      runs.ErrDocumentNotFound,
			extract:     extractText(recordText),
			interpret:   noop,
			wantFailure: runs.FailureExtraction,
			wantCode:    runs.CodeExtractionFailed,
			wantStep:    runs.StepExtraction,
		},
		{
			name:        "missing file",
			extract:     extractText(recordText),
			interpret:   noop,
			wantFailure: runs.FailureExtraction,
			wantCode:    runs.CodeExtractionFailed,
			wantStep:    runs.StepExtraction,
		},
		{
			name:        "empty file",
			original:    []byte{},
			extract:     extractText(recordText),
			interpret:   noop,
			wantFailure: runs.FailureExtraction,
			wantCode:    runs.CodeExtractionFailed,
			wantStep:    runs.StepExtraction,
		},
		{
			name:     "extractor error",
			original: []byte("%PDF"),
			extract: func(context.Context, []byte) (extraction.Result, error) {
				return extraction.Result{}, extraction.ErrEmptyDocument
			},
			interpret:   noop,
			wantFailure: runs.FailureExtraction,
			wantCode:    runs.CodeExtractionFailed,
			wantStep:    runs.StepExtraction,
		},
		{
			name:        "low quality text",
			original:    []byte("%PDF"),
			extract:     extractText(""),
			interpret:   noop,
			wantFailure: runs.FailureLowQuality,
			wantCode:    runs.CodeExtractionLowQuality,
			wantStep:    runs.StepExtraction,
		},
		{
			name:     "schema validation",
			original: []byte("%PDF"),
			extract:  extractText(recordText),
			interpret: func(context.Context, uuid.UUID, uuid.UUID, string) error {
				return runs.NewStepError(runs.CodeSchemaValidationFailed, errors.New("unknown key"))
			},
			wantFailure: runs.FailureInterpretation,
			wantCode:    runs.CodeSchemaValidationFailed,
			wantStep:    runs.StepInterpretation,
		},
		{
			name:     "interpretation error",
			original: []byte("%PDF"),
			extract:  extractText(recordText),
			interpret: func(context.Context, uuid.UUID, uuid.UUID, string) error {
				return errors.New("mining failed")
			},
			wantFailure: runs.FailureInterpretation,
			wantCode:    runs.CodeInterpretationFailed,
			wantStep:    runs.StepInterpretation,
		},
		{
			name:     "interpretation panic",
			original: []byte("%PDF"),
			extract:  extractText(recordText),
			interpret: func(context.Context, uuid.UUID, uuid.UUID, string) error {
				panic("boom")
			},
			wantFailure: runs.FailureUnknown,
			wantCode:    runs.CodeUnknown,
			wantStep:    runs.StepInterpretation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.original)
			f.store.keyErr = tt.keyErr

			final := f.execute(t, context.Background(), tt.extract, tt.interpret, time.Minute)

			if final.State != runs.StateFailed {
				t.Errorf("State = %s, want FAILED", final.State)
			}
			if final.FailureType == nil || *final.FailureType != tt.wantFailure {
				t.Errorf("FailureType = %v, want %s", final.FailureType, tt.wantFailure)
			}

			last := f.store.lastStep()
			if last.Step != tt.wantStep || last.Status != runs.StepFailed {
				t.Errorf("last step = %s/%s, want %s/FAILED", last.Step, last.Status, tt.wantStep)
			}
			if last.ErrorCode != tt.wantCode {
				t.Errorf("error code = %s, want %s", last.ErrorCode, tt.wantCode)
			}
			if last.EndedAt == nil {
				t.Error("failed step has no end time")
			}
		})
	}
}

func TestPipelineLowQualitySkipsRawText(t *testing.T) {
	f := newFixture([]byte("%PDF"))
	interpret := func(context.Context, uuid.UUID, uuid.UUID, string) error {
		t.Error("Interpret called after quality rejection")
		return nil
	}

	f.execute(t, context.Background(), extractText("xz qq"), interpret, time.Minute)

	if f.blobs.has(runs.RawTextKey(f.run.DocumentID, f.run.ID)) {
		t.Error("raw text persisted for rejected extraction")
	}
	if _, ok := f.store.artifacts[runs.ArtifactQualityReport]; !ok {
		t.Error("quality artifact not saved for rejected extraction")
	}
}

func TestPipelineTimedOut(t *testing.T) {
	f := newFixture([]byte("%PDF"))

	var completeErr error
	f.store.completeFn = func(ctx context.Context) { completeErr = ctx.Err() }

	slow := func(ctx context.Context, _ []byte) (extraction.Result, error) {
		<-ctx.Done()
		return extraction.Result{}, ctx.Err()
	}
	interpret := func(context.Context, uuid.UUID, uuid.UUID, string) error {
		t.Error("Interpret called after timeout")
		return nil
	}

	final := f.execute(t, context.Background(), slow, interpret, 20*time.Millisecond)

	if final.State != runs.StateTimedOut {
		t.Errorf("State = %s, want TIMED_OUT", final.State)
	}
	if final.FailureType != nil {
		t.Errorf("FailureType = %s, want nil", *final.FailureType)
	}
	if completeErr != nil {
		t.Errorf("Complete() context error = %v, want nil", completeErr)
	}

	last := f.store.lastStep()
	if last.Step != runs.StepExtraction || last.Status != runs.StepFailed || last.ErrorCode != runs.CodeTimedOut {
		t.Errorf("last step = %s/%s/%s, want EXTRACTION/FAILED/TIMED_OUT", last.Step, last.Status, last.ErrorCode)
	}
}

func TestPipelineCancelled(t *testing.T) {
	f := newFixture([]byte("%PDF"))
	ctx, cancel := context.WithCancel(context.Background())

	extract := func(ctx context.Context, _ []byte) (extraction.Result, error) {
		cancel()
		<-ctx.Done()
		return extraction.Result{}, ctx.Err()
	}
	noop := func(context.Context, uuid.UUID, uuid.UUID, string) error { return nil }

	final := f.execute(t, ctx, extract, noop, time.Minute)

	if final.State != runs.StateFailed {
		t.Errorf("State = %s, want FAILED", final.State)
	}
	if final.FailureType == nil || *final.FailureType != runs.FailureProcessTerminated {
		t.Errorf("FailureType = %v, want PROCESS_TERMINATED", final.FailureType)
	}
}
