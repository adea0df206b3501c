package model

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus enumerates the lifecycle of an exam application.
type ApplicationStatus string

const (
	ApplicationStatusApplied          ApplicationStatus = "APPLIED"
	ApplicationStatusPaymentConfirmed ApplicationStatus = "PAYMENT_CONFIRMED"
	ApplicationStatusScheduled        ApplicationStatus = "SCHEDULED"
	ApplicationStatusCancelled        ApplicationStatus = "CANCELLED"
)

// Application represents a candidate's intent to take a course's
// certification exam. Applications are a historical record and are
// never hard-deleted; cancellation is a status change.
type Application struct {
	ID          uuid.UUID         `json:"id"`
	UserID      int               `json:"user_id"`
	CourseID    uuid.UUID         `json:"course_id"`
	Status      ApplicationStatus `json:"status"`
	PaymentPaid bool              `json:"payment_paid"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ApplyRequest is the payload for creating an application.
type ApplyRequest struct {
	CourseID uuid.UUID `json:"course_id" binding:"required"`
}

// ScheduleRequest is the payload for scheduling an application.
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}
