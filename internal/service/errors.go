package service

import (
	"errors"
	"fmt"
)

// Domain errors shared across services. Handlers map these to typed
// response codes; everything else surfaces as an internal error.
var (
	ErrInvalidSession        = errors.New("session not found, not owned by caller, or in a terminal state")
	ErrAttemptNotActive      = errors.New("attempt is not active")
	ErrCourseNotFound        = errors.New("course not found")
	ErrInvalidReason         = errors.New("unknown completion reason")
	ErrDependencyUnavailable = errors.New("external collaborator unavailable")
)

// NotEligibleError is returned by session creation when the eligibility
// gate rejects the candidate. Reason carries the specific rule that failed.
type NotEligibleError struct {
	Reason EligibilityReason
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("not eligible: %s", e.Reason)
}
