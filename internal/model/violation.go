package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ViolationType tags a proctoring integrity event.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "TAB_SWITCH"
	ViolationWindowBlur     ViolationType = "WINDOW_BLUR"
	ViolationFullscreenExit ViolationType = "FULLSCREEN_EXIT"
	ViolationCameraLoss     ViolationType = "CAMERA_LOSS"
	ViolationDevtoolsOpen   ViolationType = "DEVTOOLS_OPEN"
	ViolationOther          ViolationType = "OTHER"

	// ViolationFingerprintDrift is only ever recorded as a soft violation:
	// it is kept for audit but never counts toward the termination threshold.
	ViolationFingerprintDrift ViolationType = "FINGERPRINT_DRIFT"
)

// Valid reports whether t is a violation type clients may report.
func (t ViolationType) Valid() bool {
	switch t {
	case ViolationTabSwitch, ViolationWindowBlur, ViolationFullscreenExit,
		ViolationCameraLoss, ViolationDevtoolsOpen, ViolationOther:
		return true
	}
	return false
}

// SoftOnly reports whether t is recorded for audit only and excluded from
// the termination threshold.
func (t ViolationType) SoftOnly() bool {
	return t == ViolationFingerprintDrift
}

// Violation is one recorded proctoring event on a session. The list is
// append-only, ordered by Seq, and frozen once the session is terminal.
// Soft violations (fingerprint drift) are audit-only.
type Violation struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	Seq        int             `json:"seq"`
	Type       ViolationType   `json:"type"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Soft       bool            `json:"soft"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RecordViolationRequest is the payload for reporting a violation.
type RecordViolationRequest struct {
	Type   ViolationType   `json:"type" binding:"required,oneof=TAB_SWITCH WINDOW_BLUR FULLSCREEN_EXIT CAMERA_LOSS DEVTOOLS_OPEN OTHER"`
	Detail json.RawMessage `json:"detail" binding:"omitempty"`
}
