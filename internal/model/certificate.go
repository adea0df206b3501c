package model

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is the issued, externally verifiable proof of passing.
// At most one non-revoked certificate exists per (user, course); the
// constraint is a partial unique index in storage. PDFPath is populated
// lazily; the record is valid before the artifact exists.
type Certificate struct {
	ID               uuid.UUID `json:"id"`
	UserID           int       `json:"user_id"`
	CourseID         uuid.UUID `json:"course_id"`
	AttemptID        uuid.UUID `json:"attempt_id"`
	Number           string    `json:"certificate_number"`
	VerificationCode string    `json:"verification_code"`
	Score            float64   `json:"score"`
	Grade            string    `json:"grade"`
	IssuedAt         time.Time `json:"issued_at"`
	Revoked          bool      `json:"revoked"`
	PDFPath          string    `json:"-"`
}

// CertificateStatus is the outward status payload for a (user, course).
type CertificateStatus struct {
	Certified   bool         `json:"certified"`
	Certificate *Certificate `json:"certificate,omitempty"`
}
