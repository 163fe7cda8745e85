package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound         = errors.New("not found")
	ErrNoSelection      = errors.New("no records selected")
	ErrInvalidPage      = errors.New("invalid page request")
	ErrMissingParameter = errors.New("missing action parameter")
)
