package attempt

import (
	"errors"
	"fmt"
)

// Terminal business-rule rejections. Handlers map these to HTTP statuses;
// none of them are retryable.
var (
	ErrNotFound            = errors.New("attempt not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrNotAvailable        = errors.New("quiz not available")
	ErrAttemptLimitReached = errors.New("attempt limit reached")
	ErrAttemptClosed       = errors.New("attempt already completed")
	ErrAttemptInProgress   = errors.New("attempt still in progress")
)

// ErrTransaction wraps failures inside the Submit/ManualGrade unit of work.
// The whole pass rolled back; the caller may retry by resubmitting.
var ErrTransaction = errors.New("transaction failed")

// FieldError reports a malformed input on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}
