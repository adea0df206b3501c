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

// ErrAttemptNotActive is returned when an answer targets an attempt whose
// session is no longer IN_PROGRESS.
var ErrAttemptNotActive = errors.New("attempt's session is not in progress")

// AttemptRepository handles exam attempt and answer data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `
	id, session_id, user_id, course_id, started_at, completed_at, time_spent,
	score, passed, grade, correct_count, total_count`

func scanAttempt(row pgx.Row) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	err := row.Scan(
		&a.ID, &a.SessionID, &a.UserID, &a.CourseID, &a.StartedAt, &a.CompletedAt, &a.TimeSpent,
		&a.Score, &a.Passed, &a.Grade, &a.CorrectCount, &a.TotalCount,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, id))
}

// GetBySession retrieves the attempt linked to a session.
func (r *AttemptRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE session_id = $1`, sessionID))
}

// UpsertAnswer records one answer, overwriting any prior answer for the
// same (attempt, question). The insert only happens while the owning
// session is IN_PROGRESS. The guard and the write are one statement, so a
// session terminating concurrently cannot admit a late answer.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, attemptID, questionID uuid.UUID, userID int, selected string, timeSpent int) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, selected, time_spent)
		 SELECT $1, $2, $3, $4
		 WHERE EXISTS (
		     SELECT 1 FROM exam_attempts a
		     JOIN exam_sessions s ON s.id = a.session_id
		     WHERE a.id = $1 AND a.user_id = $5 AND s.status = 'IN_PROGRESS'
		 )
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected = EXCLUDED.selected,
		     time_spent = EXCLUDED.time_spent,
		     updated_at = NOW()`,
		attemptID, questionID, selected, timeSpent, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotActive
	}
	return nil
}

// ListAnswers returns all answers recorded for an attempt.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, question_id, selected, correct, time_spent, updated_at
		 FROM attempt_answers
		 WHERE attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.Selected, &a.Correct, &a.TimeSpent, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// FinalizeScored stores the computed outcome on an attempt. The outcome is
// write-once: a second call with any result leaves the stored row untouched,
// which keeps re-scoring after a retried completion deterministic.
func (r *AttemptRepository) FinalizeScored(ctx context.Context, attemptID uuid.UUID, outcome model.AttemptOutcome, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET score = $2, passed = $3, grade = $4, correct_count = $5, total_count = $6,
		     completed_at = COALESCE(completed_at, $7),
		     time_spent = GREATEST(0, EXTRACT(EPOCH FROM ($7 - started_at))::int)
		 WHERE id = $1 AND score IS NULL`,
		attemptID, outcome.Score, outcome.Passed, outcome.Grade,
		outcome.CorrectCount, outcome.TotalCount, completedAt,
	)
	return err
}

// FinalizeUnscored closes an attempt without an outcome (terminated sittings).
func (r *AttemptRepository) FinalizeUnscored(ctx context.Context, attemptID uuid.UUID, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET completed_at = COALESCE(completed_at, $2),
		     time_spent = GREATEST(0, EXTRACT(EPOCH FROM ($2 - started_at))::int)
		 WHERE id = $1 AND completed_at IS NULL`,
		attemptID, completedAt,
	)
	return err
}

// MarkCorrectness bulk-writes the derived correctness flags after scoring.
func (r *AttemptRepository) MarkCorrectness(ctx context.Context, attemptID uuid.UUID, questionIDs []uuid.UUID, correct []bool) error {
	if len(questionIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE attempt_answers AS aa
		 SET correct = t.correct
		 FROM (
		     SELECT u.question_id, u.correct
		     FROM UNNEST($2::uuid[], $3::bool[]) AS u (question_id, correct)
		 ) AS t
		 WHERE aa.attempt_id = $1 AND aa.question_id = t.question_id`,
		attemptID, questionIDs, correct,
	)
	return err
}
