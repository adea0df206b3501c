package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus enumerates payment record states. The payment provider
// integration lives outside this system; only the confirmed signal matters.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment records an exam fee payment for a (user, course) pair.
type Payment struct {
	ID        uuid.UUID     `json:"id"`
	UserID    int           `json:"user_id"`
	CourseID  uuid.UUID     `json:"course_id"`
	Amount    float64       `json:"amount"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
