package repository

import (
	"context"
	"errors"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CertificateRepository handles certificate data access.
type CertificateRepository struct {
	pool *pgxpool.Pool
}

// NewCertificateRepository creates a new CertificateRepository.
func NewCertificateRepository(pool *pgxpool.Pool) *CertificateRepository {
	return &CertificateRepository{pool: pool}
}

const certColumns = `
	id, user_id, course_id, attempt_id, cert_number, verification_code,
	score, grade, issued_at, revoked, pdf_path`

func scanCert(row pgx.Row) (*model.Certificate, error) {
	c := &model.Certificate{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.CourseID, &c.AttemptID, &c.Number, &c.VerificationCode,
		&c.Score, &c.Grade, &c.IssuedAt, &c.Revoked, &c.PDFPath,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID retrieves a certificate.
func (r *CertificateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Certificate, error) {
	return scanCert(r.pool.QueryRow(ctx,
		`SELECT `+certColumns+` FROM certificates WHERE id = $1`, id))
}

// GetActive retrieves the non-revoked certificate for a (user, course), if any.
func (r *CertificateRepository) GetActive(ctx context.Context, userID int, courseID uuid.UUID) (*model.Certificate, error) {
	return scanCert(r.pool.QueryRow(ctx,
		`SELECT `+certColumns+`
		 FROM certificates
		 WHERE user_id = $1 AND course_id = $2 AND NOT revoked`, userID, courseID))
}

// GetByVerificationCode retrieves a certificate for external verification.
func (r *CertificateRepository) GetByVerificationCode(ctx context.Context, code string) (*model.Certificate, error) {
	return scanCert(r.pool.QueryRow(ctx,
		`SELECT `+certColumns+` FROM certificates WHERE verification_code = $1`, code))
}

// InsertIfAbsent persists a new certificate unless the partial unique index
// on non-revoked (user, course) certificates already holds one; in that case
// the existing certificate is loaded into c. The index, not application
// logic, is what makes concurrent completion retries duplicate-proof.
func (r *CertificateRepository) InsertIfAbsent(ctx context.Context, c *model.Certificate) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO certificates
		     (user_id, course_id, attempt_id, cert_number, verification_code, score, grade)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, course_id) WHERE NOT revoked DO NOTHING
		 RETURNING id, issued_at`,
		c.UserID, c.CourseID, c.AttemptID, c.Number, c.VerificationCode, c.Score, c.Grade,
	).Scan(&c.ID, &c.IssuedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	existing, err := r.GetActive(ctx, c.UserID, c.CourseID)
	if err != nil {
		return false, err
	}
	*c = *existing
	return false, nil
}

// SetPDFPath records the rendered artifact path. Only fills an empty path so
// a stale render job cannot clobber a fresher artifact.
func (r *CertificateRepository) SetPDFPath(ctx context.Context, id uuid.UUID, path string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE certificates SET pdf_path = $2 WHERE id = $1 AND pdf_path = ''`,
		id, path,
	)
	return err
}

// Revoke marks a certificate revoked. Revocation frees the partial unique
// index slot, so a future passing attempt can be certified again.
func (r *CertificateRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE certificates SET revoked = TRUE WHERE id = $1`, id)
	return err
}
