package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question represents a single exam question, including the answer key.
// Only the scoring path may see CorrectChoice.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	CourseID      uuid.UUID       `json:"course_id"`
	Prompt        string          `json:"prompt"`
	Choices       json.RawMessage `json:"choices"`
	CorrectChoice string          `json:"correct_choice"`
	OrderNum      int             `json:"order_num"`
	Active        bool            `json:"active"`
}

// QuestionForCandidate is a question with the answer key withheld,
// safe to send to an exam taker.
type QuestionForCandidate struct {
	ID       uuid.UUID       `json:"id"`
	Prompt   string          `json:"prompt"`
	Choices  json.RawMessage `json:"choices"`
	OrderNum int             `json:"order_num"`
}

// ExamPaper is the Redis-cached payload sent to candidates (no answer key).
type ExamPaper struct {
	CourseID  uuid.UUID              `json:"course_id"`
	Title     string                 `json:"title"`
	Duration  int                    `json:"duration_minutes"`
	Questions []QuestionForCandidate `json:"questions"`
}
