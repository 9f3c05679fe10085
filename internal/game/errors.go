package game

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrStaleState = errors.New("action not allowed in the current state")
	ErrStore      = errors.New("room store failure")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
)

// Error codes sent to clients.
const (
	CodeValidation = "bad_input"
	CodeStaleState = "stale_state"
	CodeStore      = "store_error"
	CodeNotFound   = "not_found"
	CodeForbidden  = "forbidden"
	CodeInternal   = "internal"
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func stalef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStaleState, fmt.Sprintf(format, args...))
}

// ErrorCode maps an operation error to its client-facing code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrStaleState):
		return CodeStaleState
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrStore):
		return CodeStore
	default:
		return CodeInternal
	}
}
