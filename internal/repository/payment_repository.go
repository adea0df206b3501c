package repository

import (
	"context"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository reads the payment-confirmed signal. Provider
// integration (checkout, webhooks) lives outside this system; rows land
// here already carrying their terminal status.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// HasCompleted reports whether a COMPLETED payment exists for (user, course).
func (r *PaymentRepository) HasCompleted(ctx context.Context, userID int, courseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM payments
		     WHERE user_id = $1 AND course_id = $2 AND status = 'COMPLETED'
		 )`, userID, courseID,
	).Scan(&exists)
	return exists, err
}

// RecordCompleted upserts a COMPLETED payment for (user, course). This is
// the opaque "payment confirmed" entry point used by the admin
// confirm-payment operation and by seeding tools.
func (r *PaymentRepository) RecordCompleted(ctx context.Context, userID int, courseID uuid.UUID, amount float64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payments (user_id, course_id, amount, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, course_id) DO UPDATE
		 SET status = EXCLUDED.status, amount = EXCLUDED.amount, updated_at = NOW()`,
		userID, courseID, amount, model.PaymentStatusCompleted,
	)
	return err
}
