package repository

import (
	"context"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CourseRepository handles the exam-facing slice of course data. Course
// content itself lives in an external catalog; only the exam policy is
// mirrored here.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetByID retrieves a course's exam policy.
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	c := &model.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, passing_score, exam_duration, total_questions,
		        certificate_enabled, certificate_price, created_at, updated_at
		 FROM courses WHERE id = $1`, id,
	).Scan(
		&c.ID, &c.Title, &c.PassingScore, &c.ExamDuration, &c.TotalQuestions,
		&c.CertificateEnabled, &c.CertificatePrice, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCertifiable returns all courses with certificate exams enabled.
// Used for cache prewarm at boot.
func (r *CourseRepository) ListCertifiable(ctx context.Context) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, passing_score, exam_duration, total_questions,
		        certificate_enabled, certificate_price, created_at, updated_at
		 FROM courses WHERE certificate_enabled`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(
			&c.ID, &c.Title, &c.PassingScore, &c.ExamDuration, &c.TotalQuestions,
			&c.CertificateEnabled, &c.CertificatePrice, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Create inserts a course policy row. Used by seeding tools.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO courses (title, passing_score, exam_duration, total_questions,
		                      certificate_enabled, certificate_price)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		c.Title, c.PassingScore, c.ExamDuration, c.TotalQuestions,
		c.CertificateEnabled, c.CertificatePrice,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}
