package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
// COMPLETED and TERMINATED are terminal; a terminal session is immutable.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "PENDING"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusTerminated SessionStatus = "TERMINATED"
)

// Terminal reports whether s is a terminal session status.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusTerminated
}

// CompletionReason explains why a session reached a terminal state.
type CompletionReason string

const (
	ReasonUserSubmit      CompletionReason = "USER_SUBMIT"
	ReasonTimeExpired     CompletionReason = "TIME_EXPIRED"
	ReasonViolationLimit  CompletionReason = "VIOLATION_LIMIT"
	ReasonAdminTerminated CompletionReason = "ADMIN_TERMINATED"
)

// TerminalStatus maps a completion reason to the terminal state it produces.
// User submits and server-side expiry still count as completed sittings and
// get scored; violation-limit and admin termination forfeit the sitting.
func (r CompletionReason) TerminalStatus() SessionStatus {
	switch r {
	case ReasonViolationLimit, ReasonAdminTerminated:
		return SessionStatusTerminated
	default:
		return SessionStatusCompleted
	}
}

// Valid reports whether r is a known completion reason.
func (r CompletionReason) Valid() bool {
	switch r {
	case ReasonUserSubmit, ReasonTimeExpired, ReasonViolationLimit, ReasonAdminTerminated:
		return true
	}
	return false
}

// ExamSession represents a single proctored sitting. At most one
// PENDING/IN_PROGRESS session exists per (user, course); the constraint
// is enforced by a partial unique index, not application logic alone.
type ExamSession struct {
	ID                 uuid.UUID         `json:"id"`
	UserID             int               `json:"user_id"`
	CourseID           uuid.UUID         `json:"course_id"`
	Status             SessionStatus     `json:"status"`
	BrowserFingerprint string            `json:"browser_fingerprint,omitempty"`
	StartedAt          *time.Time        `json:"started_at,omitempty"`
	FinishedAt         *time.Time        `json:"finished_at,omitempty"`
	Reason             *CompletionReason `json:"completion_reason,omitempty"`
	AttemptID          *uuid.UUID        `json:"attempt_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// StartSessionRequest is the payload for starting a pending session.
type StartSessionRequest struct {
	BrowserFingerprint string `json:"browser_fingerprint" binding:"required,min=8,max=512"`
}

// FingerprintCheckRequest is the payload for the soft fingerprint check.
type FingerprintCheckRequest struct {
	BrowserFingerprint string `json:"browser_fingerprint" binding:"required,min=8,max=512"`
}

// CompleteSessionRequest is the payload for a voluntary submit.
type CompleteSessionRequest struct {
	Reason CompletionReason `json:"reason" binding:"omitempty,oneof=USER_SUBMIT"`
}
