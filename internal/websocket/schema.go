package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionViolation Action = "violation"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest saves a single answer on the running attempt.
type AnswerRequest struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id"`
	Selected   string `json:"selected"`
	TimeSpent  int    `json:"time_spent_seconds"`
}

// ViolationRequest reports a proctoring violation.
type ViolationRequest struct {
	Action Action          `json:"action"`
	Type   string          `json:"type"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// SubmitRequest finishes the session and grades the attempt.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSuccess    Event = "success"
	EventViolation  Event = "violation"
	EventTerminated Event = "terminated"
	EventGraded     Event = "graded"
	EventPong       Event = "pong"
)

type AnswerResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// ViolationResponse acknowledges a recorded violation with the running
// hard count, so the client can warn the candidate before the cut.
type ViolationResponse struct {
	Event      Event `json:"event"`
	HardCount  int   `json:"hard_count"`
	Terminated bool  `json:"terminated"`
}

// TerminatedResponse tells the client the session was force-terminated.
type TerminatedResponse struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
}

type GradedResponse struct {
	Event  Event   `json:"event"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
	Grade  string  `json:"grade"`
	Passed bool    `json:"passed"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
