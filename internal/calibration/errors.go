package calibration

import (
	"errors"
	"net/http"
)

// ErrEmptySnapshot rejects a review snapshot with nothing to apply.
var ErrEmptySnapshot = errors.New("calibration snapshot has no deltas")

// MapHTTPStatus maps calibration errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrEmptySnapshot) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
