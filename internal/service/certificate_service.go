package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Renderer produces the certificate PDF artifact. Rendering failures must
// never affect the certificate record itself.
type Renderer interface {
	Render(cert *model.Certificate, user *model.User, course *model.Course) (string, error)
}

// RenderJob is the payload queued for the certificate render worker.
type RenderJob struct {
	CertificateID string `json:"certificate_id"`
}

// CertificateService mints certificates for passing attempts. Issuance is
// idempotent: the partial unique index on non-revoked (user, course) rows
// guarantees at most one live certificate no matter how many times a
// completion is retried.
type CertificateService struct {
	certs    CertificateStore
	users    UserStore
	courses  CourseStore
	renderer Renderer
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewCertificateService creates a new CertificateService.
func NewCertificateService(certs CertificateStore, users UserStore, courses CourseStore, renderer Renderer, rdb *redis.Client, log zerolog.Logger) *CertificateService {
	return &CertificateService{
		certs:    certs,
		users:    users,
		courses:  courses,
		renderer: renderer,
		rdb:      rdb,
		log:      log.With().Str("component", "certificate_service").Logger(),
	}
}

// IssueIfPassed mints a certificate for a scored, passing attempt and
// queues the PDF render. Failed attempts issue nothing and return nil.
// Re-invocation for an already-certified (user, course) returns the
// existing certificate unchanged.
func (s *CertificateService) IssueIfPassed(ctx context.Context, attempt *model.ExamAttempt) (*model.Certificate, error) {
	if !attempt.Scored() || !*attempt.Passed {
		return nil, nil
	}

	cert := &model.Certificate{
		UserID:           attempt.UserID,
		CourseID:         attempt.CourseID,
		AttemptID:        attempt.ID,
		Number:           NewCertificateNumber(time.Now()),
		VerificationCode: NewVerificationCode(),
		Score:            *attempt.Score,
		Grade:            *attempt.Grade,
	}

	created, err := s.certs.InsertIfAbsent(ctx, cert)
	if err != nil {
		return nil, fmt.Errorf("insert certificate: %w", err)
	}
	if !created {
		return cert, nil
	}

	s.log.Info().
		Str("certificate", cert.Number).
		Int("user_id", cert.UserID).
		Str("course_id", cert.CourseID.String()).
		Msg("Certificate issued")

	// The PDF is rendered out of band; the certificate is valid and
	// queryable before the artifact exists. An enqueue failure only delays
	// rendering; the download path renders lazily.
	job, _ := json.Marshal(RenderJob{CertificateID: cert.ID.String()})
	if err := s.rdb.RPush(ctx, config.WorkerKey.RenderCertificatesQueue, job).Err(); err != nil {
		s.log.Warn().Err(err).Str("certificate", cert.Number).Msg("Queue render job failed")
	}

	return cert, nil
}

// Status reports whether (userID, courseID) holds a valid certificate.
func (s *CertificateService) Status(ctx context.Context, userID int, courseID uuid.UUID) (*model.CertificateStatus, error) {
	cert, err := s.certs.GetActive(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.CertificateStatus{Certified: false}, nil
		}
		return nil, err
	}
	return &model.CertificateStatus{Certified: true, Certificate: cert}, nil
}

// Verify looks up a certificate by its public verification code.
func (s *CertificateService) Verify(ctx context.Context, code string) (*model.Certificate, error) {
	return s.certs.GetByVerificationCode(ctx, code)
}

// ArtifactPath returns the PDF path for a certificate owned by userID,
// rendering it on the spot when the artifact is missing (first download or
// a lost file). pdf_path is populated lazily by design.
func (s *CertificateService) ArtifactPath(ctx context.Context, certID uuid.UUID, userID int) (string, error) {
	cert, err := s.certs.GetByID(ctx, certID)
	if err != nil {
		return "", err
	}
	if cert.UserID != userID {
		return "", pgx.ErrNoRows
	}

	if cert.PDFPath != "" {
		if _, err := os.Stat(cert.PDFPath); err == nil {
			return cert.PDFPath, nil
		}
	}
	return s.RenderNow(ctx, cert)
}

// RenderNow renders the PDF artifact for a certificate and records its path.
func (s *CertificateService) RenderNow(ctx context.Context, cert *model.Certificate) (string, error) {
	user, err := s.users.GetByID(ctx, cert.UserID)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	course, err := s.courses.GetByID(ctx, cert.CourseID)
	if err != nil {
		return "", fmt.Errorf("get course: %w", err)
	}

	path, err := s.renderer.Render(cert, user, course)
	if err != nil {
		return "", fmt.Errorf("%w: pdf render: %v", ErrDependencyUnavailable, err)
	}

	if err := s.certs.SetPDFPath(ctx, cert.ID, path); err != nil {
		s.log.Warn().Err(err).Str("certificate", cert.Number).Msg("Store pdf path failed")
	}
	return path, nil
}

// Revoke marks a certificate revoked.
func (s *CertificateService) Revoke(ctx context.Context, certID uuid.UUID) error {
	if _, err := s.certs.GetByID(ctx, certID); err != nil {
		return err
	}
	return s.certs.Revoke(ctx, certID)
}

// NewCertificateNumber builds a globally unique, externally verifiable
// certificate number, e.g. CERT-2026-4F2A91C3.
func NewCertificateNumber(now time.Time) string {
	return fmt.Sprintf("CERT-%d-%s", now.Year(), randomHex(4))
}

// NewVerificationCode builds the public lookup code printed on the PDF.
func NewVerificationCode() string {
	return randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic(err)
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
