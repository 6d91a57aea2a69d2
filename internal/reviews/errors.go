package reviews

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/vetrecords/internal/documents"
)

// Domain errors for review transitions.
var (
	ErrNotInReview      = errors.New("document is not in review")
	ErrNotReviewed      = errors.New("document is not reviewed")
	ErrRunInProgress    = errors.New("a run is in progress for the document")
	ErrNoCompletedRun   = errors.New("document has no completed run")
	ErrNoInterpretation = errors.New("completed run has no interpretation")
	ErrMissingReviewer  = errors.New("reviewed_by is required")
)

// MapHTTPStatus maps review errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, documents.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrNotInReview) ||
		errors.Is(err, ErrNotReviewed) ||
		errors.Is(err, ErrRunInProgress) ||
		errors.Is(err, ErrNoCompletedRun) ||
		errors.Is(err, ErrNoInterpretation) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrMissingReviewer) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
