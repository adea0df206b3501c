package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func certificateFixture() (*CertificateService, *fakeCertificateStore, *noopRenderer) {
	certs := newFakeCertificateStore()
	users := &fakeUserStore{users: map[int]*model.User{1: {ID: 1, Name: "Test Candidate"}}}
	courses := newFakeCourseStore(&model.Course{ID: uuid.New(), Title: "Go Backend Fundamentals"})
	renderer := &noopRenderer{}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	svc := NewCertificateService(certs, users, courses, renderer, rdb, zerolog.Nop())
	return svc, certs, renderer
}

func passedAttempt(userID int, courseID uuid.UUID) *model.ExamAttempt {
	score, passed, grade := 85.0, true, "B"
	correct, total := 17, 20
	return &model.ExamAttempt{
		ID: uuid.New(), UserID: userID, CourseID: courseID,
		Score: &score, Passed: &passed, Grade: &grade,
		CorrectCount: &correct, TotalCount: &total,
	}
}

func TestIssueIfPassedSkipsNonPassingAttempts(t *testing.T) {
	ctx := context.Background()
	svc, certs, _ := certificateFixture()

	// Unscored attempt.
	cert, err := svc.IssueIfPassed(ctx, &model.ExamAttempt{ID: uuid.New(), UserID: 1})
	if err != nil || cert != nil {
		t.Fatalf("unscored attempt: cert=%v err=%v, want nil/nil", cert, err)
	}

	// Scored but failed.
	attempt := passedAttempt(1, uuid.New())
	failed := false
	attempt.Passed = &failed
	cert, err = svc.IssueIfPassed(ctx, attempt)
	if err != nil || cert != nil {
		t.Fatalf("failed attempt: cert=%v err=%v, want nil/nil", cert, err)
	}
	if len(certs.certs) != 0 {
		t.Errorf("certificate rows = %d, want 0", len(certs.certs))
	}
}

func TestIssueIfPassedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, certs, _ := certificateFixture()

	courseID := uuid.New()
	attempt := passedAttempt(1, courseID)

	first, err := svc.IssueIfPassed(ctx, attempt)
	if err != nil {
		t.Fatalf("IssueIfPassed: %v", err)
	}
	if first == nil {
		t.Fatal("no certificate for passing attempt")
	}
	if first.Score != 85 || first.Grade != "B" {
		t.Errorf("certificate outcome = %v/%s, want 85/B", first.Score, first.Grade)
	}
	if !strings.HasPrefix(first.Number, "CERT-") {
		t.Errorf("certificate number = %q", first.Number)
	}
	if first.VerificationCode == "" {
		t.Error("empty verification code")
	}

	// A retry, even from a different attempt of the same sitting, converges
	// on the stored certificate.
	second, err := svc.IssueIfPassed(ctx, passedAttempt(1, courseID))
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("retry minted a second certificate: %s vs %s", second.ID, first.ID)
	}
	if len(certs.certs) != 1 {
		t.Errorf("certificate rows = %d, want 1", len(certs.certs))
	}
}

func TestCertificateStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := certificateFixture()
	courseID := uuid.New()

	status, err := svc.Status(ctx, 1, courseID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Certified {
		t.Fatal("certified without a certificate")
	}

	if _, err := svc.IssueIfPassed(ctx, passedAttempt(1, courseID)); err != nil {
		t.Fatal(err)
	}
	status, err = svc.Status(ctx, 1, courseID)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Certified || status.Certificate == nil {
		t.Fatalf("status = %+v, want certified with certificate", status)
	}
}

func TestVerifyByCode(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := certificateFixture()

	issued, err := svc.IssueIfPassed(ctx, passedAttempt(1, uuid.New()))
	if err != nil {
		t.Fatal(err)
	}

	found, err := svc.Verify(ctx, issued.VerificationCode)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if found.ID != issued.ID {
		t.Errorf("Verify resolved %s, want %s", found.ID, issued.ID)
	}

	if _, err := svc.Verify(ctx, "NOPE1234"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("unknown code err = %v, want ErrNoRows", err)
	}
}

func TestArtifactPathRendersLazily(t *testing.T) {
	ctx := context.Background()
	svc, certs, renderer := certificateFixture()

	issued, err := svc.IssueIfPassed(ctx, passedAttempt(1, uuid.New()))
	if err != nil {
		t.Fatal(err)
	}

	// No artifact yet; the download path renders on the spot.
	path, err := svc.ArtifactPath(ctx, issued.ID, 1)
	if err != nil {
		t.Fatalf("ArtifactPath: %v", err)
	}
	if path == "" {
		t.Fatal("empty artifact path")
	}
	if renderer.calls != 1 {
		t.Fatalf("render calls = %d, want 1", renderer.calls)
	}

	stored, err := certs.GetByID(ctx, issued.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.PDFPath != path {
		t.Errorf("pdf_path = %q, want %q", stored.PDFPath, path)
	}
}

func TestArtifactPathRejectsForeignOwner(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := certificateFixture()

	issued, err := svc.IssueIfPassed(ctx, passedAttempt(1, uuid.New()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ArtifactPath(ctx, issued.ID, 2); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("err = %v, want ErrNoRows for foreign owner", err)
	}
}

func TestRevokeFreesTheSlot(t *testing.T) {
	ctx := context.Background()
	svc, certs, _ := certificateFixture()
	courseID := uuid.New()

	issued, err := svc.IssueIfPassed(ctx, passedAttempt(1, courseID))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Revoke(ctx, issued.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	status, err := svc.Status(ctx, 1, courseID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Certified {
		t.Error("revoked certificate still reported as certified")
	}

	// Re-certification mints a fresh certificate.
	fresh, err := svc.IssueIfPassed(ctx, passedAttempt(1, courseID))
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == issued.ID {
		t.Error("re-issue returned the revoked certificate")
	}
	if len(certs.certs) != 2 {
		t.Errorf("certificate rows = %d, want 2 (one revoked, one live)", len(certs.certs))
	}
}

func TestNewCertificateNumberFormat(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	n := NewCertificateNumber(now)
	if !strings.HasPrefix(n, "CERT-2026-") {
		t.Fatalf("number = %q, want CERT-2026- prefix", n)
	}
	if len(n) != len("CERT-2026-")+8 {
		t.Errorf("number = %q, want 8 hex chars after the prefix", n)
	}
	if n == NewCertificateNumber(now) && n == NewCertificateNumber(now) {
		t.Error("certificate numbers are not random")
	}
}
