package schema

import "errors"

// Contract errors. Any of them prevents the service from starting.
var (
	ErrInvalidContract = errors.New("invalid schema contract")
	ErrDuplicateKey    = errors.New("duplicate schema key")
	ErrIncompleteKey   = errors.New("incomplete schema key definition")
	ErrUnknownVersion  = errors.New("unknown schema version")
	ErrUnknownKey      = errors.New("unknown schema key")
)
