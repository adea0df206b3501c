package model

import (
	"time"

	"github.com/google/uuid"
)

// Course represents a certifiable course as seen by the exam engine.
// Content delivery lives in an external system; only the exam policy
// fields matter here.
type Course struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	PassingScore       float64   `json:"passing_score"`
	ExamDuration       int       `json:"exam_duration_minutes"`
	TotalQuestions     int       `json:"total_questions"`
	CertificateEnabled bool      `json:"certificate_enabled"`
	CertificatePrice   float64   `json:"certificate_price"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// RequiresPayment reports whether a candidate must pay before sitting
// the exam for this course.
func (c *Course) RequiresPayment() bool {
	return c.CertificatePrice > 0
}
