package runs

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

var (
	ErrNotFound         = errors.New("run not found")
	ErrDuplicate        = errors.New("run already exists")
	ErrDocumentNotFound = errors.New("document not found")
	ErrNotRunning       = errors.New("run is not running")
	ErrAlreadyRunning   = errors.New("document already has a running run")
	ErrRawTextNotFound  = errors.New("raw text not found")
	ErrInvalidStep      = errors.New("invalid step name or status")
)

// Step error codes recorded on FAILED step records.
const (
	CodeExtractionFailed       = "EXTRACTION_FAILED"
	CodeExtractionLowQuality   = "EXTRACTION_LOW_QUALITY"
	CodeInterpretationFailed   = "INTERPRETATION_FAILED"
	CodeSchemaValidationFailed = "SCHEMA_VALIDATION_FAILED"
	CodeTimedOut               = "TIMED_OUT"
	CodeProcessTerminated      = "PROCESS_TERMINATED"
	CodeUnknown                = "UNKNOWN_ERROR"
)

// StepError is a step failure carrying its error code and optional detail.
type StepError struct {
	Code   string
	Detail map[string]any
	Err    error

	category FailureType
	timedOut bool
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) details() map[string]any {
	out := make(map[string]any, len(e.Detail)+1)
	maps.Copy(out, e.Detail)
	if e.Err != nil {
		out["message"] = e.Err.Error()
	}
	return out
}

// NewStepError wraps err with code.
func NewStepError(code string, err error) *StepError {
	return &StepError{Code: code, Err: err}
}

// MapHTTPStatus maps run domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDocumentNotFound) || errors.Is(err, ErrRawTextNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrAlreadyRunning) || errors.Is(err, ErrNotRunning) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
