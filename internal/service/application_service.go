package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Application errors.
var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrInvalidTransition   = errors.New("application is not in a state that allows this transition")
)

// ApplicationService manages exam applications, the administrative record
// that precedes a session: apply, confirm payment, schedule.
type ApplicationService struct {
	applications ApplicationStore
	payments     PaymentStore
	courses      CourseStore
	log          zerolog.Logger
}

// NewApplicationService creates a new ApplicationService.
func NewApplicationService(applications ApplicationStore, payments PaymentStore, courses CourseStore, log zerolog.Logger) *ApplicationService {
	return &ApplicationService{
		applications: applications,
		payments:     payments,
		courses:      courses,
		log:          log.With().Str("component", "application_service").Logger(),
	}
}

// Apply records a candidate's application for a course's certification
// exam. Re-applying while a non-cancelled application exists returns the
// existing one.
func (s *ApplicationService) Apply(ctx context.Context, userID int, courseID uuid.UUID) (*model.Application, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	if !course.CertificateEnabled {
		return nil, &NotEligibleError{Reason: ReasonCertificateDisabled}
	}

	application := &model.Application{
		UserID:   userID,
		CourseID: courseID,
		Status:   model.ApplicationStatusApplied,
	}
	created, err := s.applications.CreateIfAbsent(ctx, application)
	if err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	if created {
		s.log.Info().
			Str("application_id", application.ID.String()).
			Int("user_id", userID).
			Str("course_id", courseID.String()).
			Msg("Application created")
	}
	return application, nil
}

// ConfirmPayment moves an APPLIED application to PAYMENT_CONFIRMED and
// records the completed payment, which is what the eligibility gate reads.
// Admin-only.
func (s *ApplicationService) ConfirmPayment(ctx context.Context, applicationID uuid.UUID) (*model.Application, error) {
	application, err := s.applications.ConfirmPayment(ctx, applicationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.applications.GetByID(ctx, applicationID); getErr != nil {
				return nil, ErrApplicationNotFound
			}
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	course, err := s.courses.GetByID(ctx, application.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if err := s.payments.RecordCompleted(ctx, application.UserID, application.CourseID, course.CertificatePrice); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	s.log.Info().
		Str("application_id", application.ID.String()).
		Int("user_id", application.UserID).
		Msg("Payment confirmed")
	return application, nil
}

// Schedule sets the sitting time of a payment-confirmed application.
// Rescheduling a SCHEDULED application is allowed.
func (s *ApplicationService) Schedule(ctx context.Context, applicationID uuid.UUID, userID int, at time.Time) (*model.Application, error) {
	application, err := s.applications.Schedule(ctx, applicationID, userID, at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.applications.GetByID(ctx, applicationID); getErr != nil {
				return nil, ErrApplicationNotFound
			}
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("schedule application: %w", err)
	}
	return application, nil
}

// ListByUser returns a candidate's applications, newest first.
func (s *ApplicationService) ListByUser(ctx context.Context, userID int) ([]model.Application, error) {
	return s.applications.ListByUser(ctx, userID)
}
