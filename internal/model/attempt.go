package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamAttempt is the gradable record tied 1:1 to a started session.
// It exists only after the session transitions to IN_PROGRESS and is
// immutable once scored.
type ExamAttempt struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   uuid.UUID  `json:"session_id"`
	UserID      int        `json:"user_id"`
	CourseID    uuid.UUID  `json:"course_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TimeSpent   int        `json:"time_spent_seconds"`

	// Outcome fields, populated by scoring. Nil until scored.
	Score        *float64 `json:"score,omitempty"`
	Passed       *bool    `json:"passed,omitempty"`
	Grade        *string  `json:"grade,omitempty"`
	CorrectCount *int     `json:"correct_count,omitempty"`
	TotalCount   *int     `json:"total_count,omitempty"`
}

// Scored reports whether the attempt already carries an outcome.
func (a *ExamAttempt) Scored() bool {
	return a.Score != nil
}

// AttemptOutcome is the result of scoring an attempt.
type AttemptOutcome struct {
	Score        float64 `json:"score"`
	Passed       bool    `json:"passed"`
	Grade        string  `json:"grade"`
	CorrectCount int     `json:"correct_count"`
	TotalCount   int     `json:"total_count"`
}

// Answer is one response to one question within an attempt. There is at
// most one answer per (attempt, question); resubmission overwrites.
// Correctness is derived at scoring time and never trusted from clients.
type Answer struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Selected   string    `json:"selected"`
	Correct    *bool     `json:"correct,omitempty"`
	TimeSpent  int       `json:"time_spent_seconds"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RecordAnswerRequest is the payload for saving one answer.
type RecordAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Selected   string    `json:"selected" binding:"required,max=10"`
	TimeSpent  int       `json:"time_spent_seconds" binding:"min=0"`
}
