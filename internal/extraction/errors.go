package extraction

import "errors"

var (
	ErrEmptyDocument = errors.New("document is empty")
	ErrUnreadable    = errors.New("document is not a readable pdf")
	ErrPrimaryPanic  = errors.New("primary extractor panicked")
)
