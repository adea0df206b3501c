package service

import (
	"context"
	"time"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/repository"
	"github.com/google/uuid"
)

// Storage interfaces consumed by the services. The pgx repositories satisfy
// them; unit tests substitute in-memory fakes. Not-found is signalled with
// pgx.ErrNoRows, matching the repository layer.

// SessionStore is the exam session storage contract. CreateIfAbsent,
// CompleteCAS and AppendViolation carry the atomicity guarantees the
// lifecycle depends on (partial unique index, compare-and-set, per-session
// serialization).
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetActive(ctx context.Context, userID int, courseID uuid.UUID) (*model.ExamSession, error)
	CreateIfAbsent(ctx context.Context, s *model.ExamSession) (bool, error)
	Start(ctx context.Context, sessionID uuid.UUID, userID int, fingerprint string) (*model.ExamSession, *model.ExamAttempt, error)
	CompleteCAS(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, reason model.CompletionReason) (*model.ExamSession, bool, error)
	AppendViolation(ctx context.Context, sessionID uuid.UUID, userID int, v *model.Violation, limit int) (int, bool, error)
	ListViolations(ctx context.Context, sessionID uuid.UUID) ([]model.Violation, error)
	ListOverdue(ctx context.Context, now time.Time, grace time.Duration) ([]uuid.UUID, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID, page, perPage int) ([]repository.CourseResult, int64, error)
}

// AttemptStore is the attempt and answer storage contract.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error)
	GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.ExamAttempt, error)
	UpsertAnswer(ctx context.Context, attemptID, questionID uuid.UUID, userID int, selected string, timeSpent int) error
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
	FinalizeScored(ctx context.Context, attemptID uuid.UUID, outcome model.AttemptOutcome, completedAt time.Time) error
	FinalizeUnscored(ctx context.Context, attemptID uuid.UUID, completedAt time.Time) error
	MarkCorrectness(ctx context.Context, attemptID uuid.UUID, questionIDs []uuid.UUID, correct []bool) error
}

// CertificateStore is the certificate storage contract. InsertIfAbsent must
// be backed by a uniqueness constraint on non-revoked (user, course) rows.
type CertificateStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Certificate, error)
	GetActive(ctx context.Context, userID int, courseID uuid.UUID) (*model.Certificate, error)
	GetByVerificationCode(ctx context.Context, code string) (*model.Certificate, error)
	InsertIfAbsent(ctx context.Context, c *model.Certificate) (bool, error)
	SetPDFPath(ctx context.Context, id uuid.UUID, path string) error
	Revoke(ctx context.Context, id uuid.UUID) error
}

// CourseStore is the course policy source.
type CourseStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error)
	ListCertifiable(ctx context.Context) ([]model.Course, error)
}

// QuestionStore serves exam questions. AnswerKey is the privileged variant
// reserved for scoring.
type QuestionStore interface {
	ListActive(ctx context.Context, courseID uuid.UUID) ([]model.QuestionForCandidate, error)
	AnswerKey(ctx context.Context, courseID uuid.UUID) (map[string]string, error)
}

// PaymentStore is the opaque payment-confirmed signal.
type PaymentStore interface {
	HasCompleted(ctx context.Context, userID int, courseID uuid.UUID) (bool, error)
	RecordCompleted(ctx context.Context, userID int, courseID uuid.UUID, amount float64) error
}

// ApplicationStore is the exam application storage contract.
type ApplicationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Application, error)
	CreateIfAbsent(ctx context.Context, a *model.Application) (bool, error)
	ListByUser(ctx context.Context, userID int) ([]model.Application, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*model.Application, error)
	Schedule(ctx context.Context, id uuid.UUID, userID int, at time.Time) (*model.Application, error)
}

// UserStore is the account storage contract.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
}
