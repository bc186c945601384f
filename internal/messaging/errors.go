package messaging

import (
	"errors"
	"fmt"

	"github.com/growthpro/messaging/internal/models"
)

// ErrForbidden is returned when a viewer calls an operation outside
// their role.
var ErrForbidden = errors.New("operation not permitted for this viewer")

// ValidationError reports a per-field validation failure detected before
// any store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RateLimitError is returned when a send would exceed the hourly quota.
type RateLimitError struct {
	Info models.RateLimitInfo
	Wait string // human-readable time until the window resets
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("hourly message limit reached, try again in %s", e.Wait)
}

// IsRateLimited reports whether err is a quota refusal.
func IsRateLimited(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}
