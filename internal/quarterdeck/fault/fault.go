package fault

import (
	"errors"
	"fmt"
)

// Error kinds shared by services, stores and the HTTP layer.  Services wrap
// these with context via the helpers below; httpapi maps them to status codes
// with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotQualified = errors.New("not qualified")
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func NotQualified(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotQualified, fmt.Sprintf(format, args...))
}
