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

// ApplicationRepository handles exam application data access.
// Applications are append-mostly: status changes only, no hard deletes.
type ApplicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository creates a new ApplicationRepository.
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

const applicationColumns = `
	id, user_id, course_id, status, payment_paid, scheduled_at, created_at, updated_at`

func scanApplication(row pgx.Row) (*model.Application, error) {
	a := &model.Application{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.CourseID, &a.Status, &a.PaymentPaid,
		&a.ScheduledAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an application.
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	return scanApplication(r.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
}

// CreateIfAbsent inserts an APPLIED application unless a non-cancelled one
// already exists for (user, course); on conflict the existing application
// is loaded into a. Returns whether a new row was created.
func (r *ApplicationRepository) CreateIfAbsent(ctx context.Context, a *model.Application) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO applications (user_id, course_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, course_id) WHERE status <> 'CANCELLED' DO NOTHING
		 RETURNING id, status, payment_paid, scheduled_at, created_at, updated_at`,
		a.UserID, a.CourseID, model.ApplicationStatusApplied,
	).Scan(&a.ID, &a.Status, &a.PaymentPaid, &a.ScheduledAt, &a.CreatedAt, &a.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	existing, err := scanApplication(r.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE user_id = $1 AND course_id = $2 AND status <> 'CANCELLED'`,
		a.UserID, a.CourseID))
	if err != nil {
		return false, err
	}
	*a = *existing
	return false, nil
}

// ListByUser retrieves all of a candidate's applications, newest first.
func (r *ApplicationRepository) ListByUser(ctx context.Context, userID int) ([]model.Application, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []model.Application
	for rows.Next() {
		var a model.Application
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.CourseID, &a.Status, &a.PaymentPaid,
			&a.ScheduledAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// ConfirmPayment advances APPLIED → PAYMENT_CONFIRMED and sets the paid flag.
// Returns the updated application, or pgx.ErrNoRows if the application is
// not in a confirmable state.
func (r *ApplicationRepository) ConfirmPayment(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	return scanApplication(r.pool.QueryRow(ctx,
		`UPDATE applications
		 SET status = 'PAYMENT_CONFIRMED', payment_paid = TRUE, updated_at = NOW()
		 WHERE id = $1 AND status = 'APPLIED'
		 RETURNING `+applicationColumns, id))
}

// Schedule advances PAYMENT_CONFIRMED → SCHEDULED with the sitting time.
func (r *ApplicationRepository) Schedule(ctx context.Context, id uuid.UUID, userID int, at time.Time) (*model.Application, error) {
	return scanApplication(r.pool.QueryRow(ctx,
		`UPDATE applications
		 SET status = 'SCHEDULED', scheduled_at = $3, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND status IN ('PAYMENT_CONFIRMED', 'SCHEDULED')
		 RETURNING `+applicationColumns, id, userID, at))
}
