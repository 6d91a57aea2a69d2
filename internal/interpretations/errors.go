package interpretations

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/vetrecords/internal/schema"
)

// Domain errors for interpretation operations.
var (
	ErrNotFound         = errors.New("interpretation not found")
	ErrRunNotFound      = errors.New("run not found")
	ErrRunNotCompleted  = errors.New("run is not completed")
	ErrRunInProgress    = errors.New("another run of the document is running")
	ErrNoInterpretation = errors.New("run has no interpretation")
	ErrStaleVersion     = errors.New("base version is not the current version")
	ErrDuplicateVersion = errors.New("interpretation version already exists")
	ErrInvalidChange    = errors.New("invalid field change")
	ErrFieldNotFound    = errors.New("field not found")
	ErrInvalidPayload   = errors.New("invalid interpretation payload")
)

// MapHTTPStatus maps interpretation domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRunNotCompleted),
		errors.Is(err, ErrRunInProgress),
		errors.Is(err, ErrNoInterpretation),
		errors.Is(err, ErrStaleVersion),
		errors.Is(err, ErrDuplicateVersion):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidChange),
		errors.Is(err, ErrFieldNotFound),
		errors.Is(err, schema.ErrUnknownKey):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
