package core

import (
	"errors"
)

// Error kinds. Callers test for them with errors.Is, the wrapped message carries the details.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")    // caller has no authority over this entity
	ErrConflict     = errors.New("conflict")     // state machine precondition violated
	ErrInvalid      = errors.New("invalid")      // malformed request
	ErrUnauthorized = errors.New("unauthorized") // module permission missing
	ErrAuth         = errors.New("authentication failed")
)
