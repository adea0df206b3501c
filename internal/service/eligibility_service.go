package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EligibilityReason identifies the rule that failed an eligibility check.
type EligibilityReason string

const (
	ReasonAlreadyCertified    EligibilityReason = "ALREADY_CERTIFIED"
	ReasonPaymentRequired     EligibilityReason = "PAYMENT_REQUIRED"
	ReasonCertificateDisabled EligibilityReason = "CERTIFICATE_DISABLED"
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Eligible bool              `json:"eligible"`
	Reason   EligibilityReason `json:"reason,omitempty"`
}

// EligibilityService decides whether a candidate may open an exam session
// for a course. Checks are read-only and evaluated in a fixed order:
// certificate exam enabled, no existing valid certificate, payment
// confirmed (when required).
type EligibilityService struct {
	cfg      *config.Config
	courses  CourseStore
	certs    CertificateStore
	payments PaymentStore
}

// NewEligibilityService creates a new EligibilityService.
func NewEligibilityService(cfg *config.Config, courses CourseStore, certs CertificateStore, payments PaymentStore) *EligibilityService {
	return &EligibilityService{cfg: cfg, courses: courses, certs: certs, payments: payments}
}

// Check evaluates the eligibility rules for (userID, courseID) and returns
// the decision together with the course policy, so callers do not re-fetch
// it. A missing course is ErrCourseNotFound. No side effects.
func (s *EligibilityService) Check(ctx context.Context, userID int, courseID uuid.UUID) (*Decision, *model.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrCourseNotFound
		}
		return nil, nil, fmt.Errorf("get course: %w", err)
	}

	if !course.CertificateEnabled {
		return &Decision{Eligible: false, Reason: ReasonCertificateDisabled}, course, nil
	}

	_, err = s.certs.GetActive(ctx, userID, courseID)
	if err == nil {
		return &Decision{Eligible: false, Reason: ReasonAlreadyCertified}, course, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("check certificate: %w", err)
	}

	// The payment check can be disabled deployment-wide; some installations
	// open certificate exams without any payment prerequisite.
	if s.cfg.PaymentRequired && course.RequiresPayment() {
		paid, err := s.payments.HasCompleted(ctx, userID, courseID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: payment source: %v", ErrDependencyUnavailable, err)
		}
		if !paid {
			return &Decision{Eligible: false, Reason: ReasonPaymentRequired}, course, nil
		}
	}

	return &Decision{Eligible: true}, course, nil
}
