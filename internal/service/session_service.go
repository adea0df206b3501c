package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SessionResult is the full outcome view for a finished session.
type SessionResult struct {
	Session     *model.ExamSession `json:"session"`
	Attempt     *model.ExamAttempt `json:"attempt,omitempty"`
	Certificate *model.Certificate `json:"certificate,omitempty"`
	Violations  []model.Violation  `json:"violations,omitempty"`
}

// SessionService drives the exam session lifecycle. Every transition is a
// single guarded statement in the store, so concurrent or retried calls
// converge on one winner and observers read a consistent state.
type SessionService struct {
	cfg         *config.Config
	sessions    SessionStore
	attempts    AttemptStore
	certs       CertificateStore
	courses     CourseStore
	eligibility *EligibilityService
	scoring     *ScoringService
	issuer      *CertificateService
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	cfg *config.Config,
	sessions SessionStore,
	attempts AttemptStore,
	certs CertificateStore,
	courses CourseStore,
	eligibility *EligibilityService,
	scoring *ScoringService,
	issuer *CertificateService,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:         cfg,
		sessions:    sessions,
		attempts:    attempts,
		certs:       certs,
		courses:     courses,
		eligibility: eligibility,
		scoring:     scoring,
		issuer:      issuer,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// Create opens an exam session for (userID, courseID) after the eligibility
// gate passes. When an active session already exists it is returned as-is,
// so a double-submitted create never spawns a second session.
func (s *SessionService) Create(ctx context.Context, userID int, courseID uuid.UUID) (*model.ExamSession, error) {
	decision, course, err := s.eligibility.Check(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if !decision.Eligible {
		return nil, &NotEligibleError{Reason: decision.Reason}
	}

	session := &model.ExamSession{
		UserID:   userID,
		CourseID: course.ID,
		Status:   model.SessionStatusPending,
	}
	created, err := s.sessions.CreateIfAbsent(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if created {
		s.log.Info().
			Str("session_id", session.ID.String()).
			Int("user_id", userID).
			Str("course_id", course.ID.String()).
			Msg("Session created")
	}
	return session, nil
}

// Start moves a PENDING session to IN_PROGRESS, binds the browser
// fingerprint, and opens the attempt. Starting an already running session
// is a no-op that returns the existing state.
func (s *SessionService) Start(ctx context.Context, sessionID uuid.UUID, userID int, fingerprint string) (*model.ExamSession, *model.ExamAttempt, error) {
	session, attempt, err := s.sessions.Start(ctx, sessionID, userID, fingerprint)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotActive) {
			return nil, nil, ErrInvalidSession
		}
		return nil, nil, fmt.Errorf("start session: %w", err)
	}
	return session, attempt, nil
}

// Complete finishes a session for the given reason. The terminal transition
// is a compare-and-set; only one caller flips the row, and a repeated call
// returns the already-terminal session after repairing any finalization the
// winner left unfinished.
func (s *SessionService) Complete(ctx context.Context, sessionID uuid.UUID, reason model.CompletionReason) (*SessionResult, error) {
	if !reason.Valid() {
		return nil, ErrInvalidReason
	}

	session, changed, err := s.sessions.CompleteCAS(ctx, sessionID, reason.TerminalStatus(), reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if changed {
		s.log.Info().
			Str("session_id", session.ID.String()).
			Str("status", string(session.Status)).
			Str("reason", string(reason)).
			Msg("Session finished")
	}

	// Finalization is convergent: every step is an idempotent write, so a
	// retry after a crash mid-way picks up where the winner stopped.
	return s.finalize(ctx, session)
}

// CompleteByUser is Complete gated on session ownership, for the candidate
// submit endpoint.
func (s *SessionService) CompleteByUser(ctx context.Context, sessionID uuid.UUID, userID int, reason model.CompletionReason) (*SessionResult, error) {
	if _, err := s.GetOwned(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.Complete(ctx, sessionID, reason)
}

func (s *SessionService) finalize(ctx context.Context, session *model.ExamSession) (*SessionResult, error) {
	result := &SessionResult{Session: session}

	attempt, err := s.attempts.GetBySession(ctx, session.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Completed before starting; nothing to score.
			return result, nil
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	switch session.Status {
	case model.SessionStatusTerminated:
		if err := s.attempts.FinalizeUnscored(ctx, attempt.ID, time.Now()); err != nil {
			return nil, fmt.Errorf("finalize attempt: %w", err)
		}
		result.Attempt = attempt

	case model.SessionStatusCompleted:
		course, err := s.courses.GetByID(ctx, session.CourseID)
		if err != nil {
			return nil, fmt.Errorf("get course: %w", err)
		}
		outcome, err := s.scoring.Score(ctx, attempt, course.PassingScore)
		if err != nil {
			return nil, err
		}
		attempt.Score = &outcome.Score
		attempt.Passed = &outcome.Passed
		attempt.Grade = &outcome.Grade
		attempt.CorrectCount = &outcome.CorrectCount
		attempt.TotalCount = &outcome.TotalCount
		result.Attempt = attempt

		if outcome.Passed && course.CertificateEnabled {
			cert, err := s.issuer.IssueIfPassed(ctx, attempt)
			if err != nil {
				return nil, err
			}
			result.Certificate = cert
		}
	}

	return result, nil
}

// Results returns the outcome view for a terminal session owned by userID.
// For a session that is COMPLETED but not yet scored (a crash between the
// transition and scoring) it finishes the pending finalization first.
func (s *SessionService) Results(ctx context.Context, sessionID uuid.UUID, userID int) (*SessionResult, error) {
	session, err := s.GetOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !session.Status.Terminal() {
		return nil, ErrInvalidSession
	}

	result, err := s.finalize(ctx, session)
	if err != nil {
		return nil, err
	}

	if result.Certificate == nil && result.Attempt != nil && result.Attempt.Scored() && *result.Attempt.Passed {
		cert, err := s.certs.GetActive(ctx, userID, session.CourseID)
		if err == nil {
			result.Certificate = cert
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	violations, err := s.sessions.ListViolations(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	result.Violations = violations
	return result, nil
}

// ActiveSession returns the running session for (userID, courseID), or
// ErrInvalidSession when none exists.
func (s *SessionService) ActiveSession(ctx context.Context, userID int, courseID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessions.GetActive(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return session, nil
}

// GetOwned returns the session when userID owns it, regardless of status.
func (s *SessionService) GetOwned(ctx context.Context, sessionID uuid.UUID, userID int) (*model.ExamSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrInvalidSession
	}
	return session, nil
}

// SweepExpired completes every IN_PROGRESS session whose time allowance ran
// out, with a short grace before the server-side cut. Called by the expiry
// worker on a fixed interval. Partial answers are still scored: expiry is a
// completed sitting, not a forfeit.
func (s *SessionService) SweepExpired(ctx context.Context, grace time.Duration) (int, error) {
	overdue, err := s.sessions.ListOverdue(ctx, time.Now(), grace)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	swept := 0
	for _, id := range overdue {
		if _, err := s.Complete(ctx, id, model.ReasonTimeExpired); err != nil {
			s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Expiry sweep failed")
			continue
		}
		swept++
	}
	return swept, nil
}

// CourseResults returns per-candidate outcomes for a course, paginated.
func (s *SessionService) CourseResults(ctx context.Context, courseID uuid.UUID, page, perPage int) ([]repository.CourseResult, int64, error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrCourseNotFound
		}
		return nil, 0, err
	}
	return s.sessions.ListByCourse(ctx, courseID, page, perPage)
}
