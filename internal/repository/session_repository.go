package repository

import (
	"context"
	"errors"
	"time"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionNotActive is returned by mutations that require an owned,
// in-progress session. It deliberately does not distinguish "not found",
// "wrong owner" and "wrong state".
var ErrSessionNotActive = errors.New("session not found, not owned by caller, or not in progress")

const sessionColumns = `
	s.id, s.user_id, s.course_id, s.status, s.browser_fingerprint,
	s.started_at, s.finished_at, s.completion_reason, s.created_at, a.id`

// SessionRepository handles exam session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	var attemptID *uuid.UUID
	err := row.Scan(
		&s.ID, &s.UserID, &s.CourseID, &s.Status, &s.BrowserFingerprint,
		&s.StartedAt, &s.FinishedAt, &s.Reason, &s.CreatedAt, &attemptID,
	)
	if err != nil {
		return nil, err
	}
	s.AttemptID = attemptID
	return s, nil
}

// GetByID retrieves a session with its attempt back-link.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions s
		 LEFT JOIN exam_attempts a ON a.session_id = s.id
		 WHERE s.id = $1`, id,
	))
}

// GetActive retrieves the PENDING/IN_PROGRESS session for a (user, course),
// if any.
func (r *SessionRepository) GetActive(ctx context.Context, userID int, courseID uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions s
		 LEFT JOIN exam_attempts a ON a.session_id = s.id
		 WHERE s.user_id = $1 AND s.course_id = $2
		   AND s.status IN ('PENDING', 'IN_PROGRESS')`, userID, courseID,
	))
}

// CreateIfAbsent inserts a PENDING session unless the partial unique index
// on active (user, course) sessions already holds one. On conflict the
// existing active session is loaded into s. Returns whether a new row was
// created, so concurrent create calls always resolve to the same session.
func (r *SessionRepository) CreateIfAbsent(ctx context.Context, s *model.ExamSession) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (user_id, course_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, course_id) WHERE status IN ('PENDING', 'IN_PROGRESS') DO NOTHING
		 RETURNING id, created_at`,
		s.UserID, s.CourseID, model.SessionStatusPending,
	).Scan(&s.ID, &s.CreatedAt)
	if err == nil {
		s.Status = model.SessionStatusPending
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	existing, err := r.GetActive(ctx, s.UserID, s.CourseID)
	if err != nil {
		return false, err
	}
	*s = *existing
	return false, nil
}

// Start transitions an owned, non-terminal session to IN_PROGRESS, records
// the start time and browser fingerprint, and creates the linked attempt in
// the same transaction. Re-starting an IN_PROGRESS session is idempotent:
// the first start time and fingerprint are preserved.
func (r *SessionRepository) Start(ctx context.Context, sessionID uuid.UUID, userID int, fingerprint string) (*model.ExamSession, *model.ExamAttempt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	s := &model.ExamSession{}
	err = tx.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET status = 'IN_PROGRESS',
		     browser_fingerprint = CASE WHEN browser_fingerprint = '' THEN $3 ELSE browser_fingerprint END,
		     started_at = COALESCE(started_at, NOW())
		 WHERE id = $1 AND user_id = $2 AND status IN ('PENDING', 'IN_PROGRESS')
		 RETURNING id, user_id, course_id, status, browser_fingerprint,
		           started_at, finished_at, completion_reason, created_at`,
		sessionID, userID, fingerprint,
	).Scan(
		&s.ID, &s.UserID, &s.CourseID, &s.Status, &s.BrowserFingerprint,
		&s.StartedAt, &s.FinishedAt, &s.Reason, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrSessionNotActive
		}
		return nil, nil, err
	}

	// The attempt exists exactly once per started session; a retried start
	// lands on the existing row.
	_, err = tx.Exec(ctx,
		`INSERT INTO exam_attempts (session_id, user_id, course_id, started_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO NOTHING`,
		s.ID, s.UserID, s.CourseID, s.StartedAt,
	)
	if err != nil {
		return nil, nil, err
	}

	a := &model.ExamAttempt{}
	err = tx.QueryRow(ctx,
		`SELECT id, session_id, user_id, course_id, started_at, completed_at, time_spent,
		        score, passed, grade, correct_count, total_count
		 FROM exam_attempts WHERE session_id = $1`, s.ID,
	).Scan(
		&a.ID, &a.SessionID, &a.UserID, &a.CourseID, &a.StartedAt, &a.CompletedAt, &a.TimeSpent,
		&a.Score, &a.Passed, &a.Grade, &a.CorrectCount, &a.TotalCount,
	)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	s.AttemptID = &a.ID
	return s, a, nil
}

// CompleteCAS performs the single atomic non-terminal → terminal transition.
// Whichever caller still observes the session as PENDING/IN_PROGRESS wins;
// everyone else gets the already-terminal row back with changed=false.
func (r *SessionRepository) CompleteCAS(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, reason model.CompletionReason) (*model.ExamSession, bool, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET status = $2, completion_reason = $3, finished_at = NOW()
		 WHERE id = $1 AND status IN ('PENDING', 'IN_PROGRESS')
		 RETURNING id, user_id, course_id, status, browser_fingerprint,
		           started_at, finished_at, completion_reason, created_at`,
		sessionID, status, reason,
	).Scan(
		&s.ID, &s.UserID, &s.CourseID, &s.Status, &s.BrowserFingerprint,
		&s.StartedAt, &s.FinishedAt, &s.Reason, &s.CreatedAt,
	)
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.GetByID(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// AppendViolation appends one violation to an owned, in-progress session and
// returns the resulting hard-violation count. Appends are serialized per
// session with a row lock so concurrent reports cannot under-count toward
// the limit. When the hard count first reaches limit, the session is flipped
// to TERMINATED/VIOLATION_LIMIT inside the same transaction and terminated
// is returned true exactly once.
func (r *SessionRepository) AppendViolation(ctx context.Context, sessionID uuid.UUID, userID int, v *model.Violation, limit int) (int, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback(ctx)

	var ownerID int
	var status model.SessionStatus
	err = tx.QueryRow(ctx,
		`SELECT user_id, status FROM exam_sessions WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&ownerID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrSessionNotActive
		}
		return 0, false, err
	}
	if ownerID != userID || status != model.SessionStatusInProgress {
		return 0, false, ErrSessionNotActive
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO session_violations (session_id, seq, violation_type, detail, soft, occurred_at)
		 VALUES ($1,
		         (SELECT COALESCE(MAX(seq), 0) + 1 FROM session_violations WHERE session_id = $1),
		         $2, $3, $4, NOW())
		 RETURNING id, seq, occurred_at`,
		sessionID, v.Type, v.Detail, v.Soft,
	).Scan(&v.ID, &v.Seq, &v.OccurredAt)
	if err != nil {
		return 0, false, err
	}
	v.SessionID = sessionID

	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_violations WHERE session_id = $1 AND NOT soft`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, false, err
	}

	terminated := false
	if !v.Soft && count >= limit {
		tag, err := tx.Exec(ctx,
			`UPDATE exam_sessions
			 SET status = 'TERMINATED', completion_reason = 'VIOLATION_LIMIT', finished_at = NOW()
			 WHERE id = $1 AND status = 'IN_PROGRESS'`,
			sessionID,
		)
		if err != nil {
			return 0, false, err
		}
		terminated = tag.RowsAffected() == 1
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return count, terminated, nil
}

// ListViolations returns a session's violations in append order.
func (r *SessionRepository) ListViolations(ctx context.Context, sessionID uuid.UUID) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, seq, violation_type, detail, soft, occurred_at
		 FROM session_violations
		 WHERE session_id = $1
		 ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.SessionID, &v.Seq, &v.Type, &v.Detail, &v.Soft, &v.OccurredAt); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// ListOverdue returns IN_PROGRESS sessions whose course exam duration
// (plus grace) elapsed before now. Used by the expiry sweeper.
func (r *SessionRepository) ListOverdue(ctx context.Context, now time.Time, grace time.Duration) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id
		 FROM exam_sessions s
		 JOIN courses c ON c.id = s.course_id
		 WHERE s.status = 'IN_PROGRESS'
		   AND s.started_at + make_interval(mins => c.exam_duration) + $2::interval < $1`,
		now, grace.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CourseResult combines candidate data with their session outcome for
// the admin results listing.
type CourseResult struct {
	UserID     int                     `json:"user_id"`
	Name       string                  `json:"name"`
	Email      string                  `json:"email"`
	Status     model.SessionStatus     `json:"status"`
	Reason     *model.CompletionReason `json:"completion_reason,omitempty"`
	Score      *float64                `json:"score,omitempty"`
	Grade      *string                 `json:"grade,omitempty"`
	Passed     *bool                   `json:"passed,omitempty"`
	StartedAt  *time.Time              `json:"started_at,omitempty"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

// ListByCourse retrieves paginated session results for a course.
func (r *SessionRepository) ListByCourse(ctx context.Context, courseID uuid.UUID, page, perPage int) ([]CourseResult, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE course_id = $1`, courseID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, u.email, s.status, s.completion_reason,
		        a.score, a.grade, a.passed, s.started_at, s.finished_at
		 FROM exam_sessions s
		 JOIN users u ON u.id = s.user_id
		 LEFT JOIN exam_attempts a ON a.session_id = s.id
		 WHERE s.course_id = $1
		 ORDER BY u.name ASC, s.created_at DESC
		 LIMIT $2 OFFSET $3`,
		courseID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []CourseResult
	for rows.Next() {
		var cr CourseResult
		if err := rows.Scan(
			&cr.UserID, &cr.Name, &cr.Email, &cr.Status, &cr.Reason,
			&cr.Score, &cr.Grade, &cr.Passed, &cr.StartedAt, &cr.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, cr)
	}
	return results, total, rows.Err()
}
