package domain

import (
	"errors"
	"fmt"
)

// Request-scoped failures surfaced to callers. Per-source fetch failures and
// unmatched review items are absorbed into counts instead.
var (
	ErrRunNotFound      = errors.New("run not found")
	ErrRunExpired       = errors.New("run expired")
	ErrReviewInProgress = errors.New("review already in progress")
	ErrArtifactNotFound = errors.New("artifact not found")
)

// ValidationError reports malformed request parameters.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
