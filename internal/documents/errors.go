package documents

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicate       = errors.New("document already exists")
	ErrFileTooLarge    = errors.New("file exceeds maximum upload size")
	ErrInvalidFile     = errors.New("upload must carry a non-empty file field")
	ErrUnsupportedType = errors.New("only PDF documents are accepted")

	// ErrFileMissing means the row exists but its original is gone from
	// blob storage.
	ErrFileMissing = errors.New("stored file not found")
)

var statusOf = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrFileMissing, http.StatusNotFound},
	{ErrDuplicate, http.StatusConflict},
	{ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{ErrUnsupportedType, http.StatusUnsupportedMediaType},
	{ErrInvalidFile, http.StatusBadRequest},
}

// MapHTTPStatus maps document errors to HTTP status codes. Unknown errors
// are 500.
func MapHTTPStatus(err error) int {
	for _, s := range statusOf {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
