package repository

import (
	"context"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListActive retrieves the active questions for a course in paper order,
// with the answer key withheld. This is the only question view candidates
// may ever see.
func (r *QuestionRepository) ListActive(ctx context.Context, courseID uuid.UUID) ([]model.QuestionForCandidate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, prompt, choices, order_num
		 FROM questions
		 WHERE course_id = $1 AND active
		 ORDER BY order_num`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.QuestionForCandidate
	for rows.Next() {
		var q model.QuestionForCandidate
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Choices, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// AnswerKey is the privileged variant used only by scoring: question id →
// correct choice for all active questions of a course.
func (r *QuestionRepository) AnswerKey(ctx context.Context, courseID uuid.UUID) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, correct_choice FROM questions WHERE course_id = $1 AND active`,
		courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	key := make(map[string]string)
	for rows.Next() {
		var id uuid.UUID
		var correct string
		if err := rows.Scan(&id, &correct); err != nil {
			return nil, err
		}
		key[id.String()] = correct
	}
	return key, rows.Err()
}

// Create inserts a question. Used by seeding tools.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (course_id, prompt, choices, correct_choice, order_num, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		q.CourseID, q.Prompt, q.Choices, q.CorrectChoice, q.OrderNum, q.Active,
	).Scan(&q.ID)
}
