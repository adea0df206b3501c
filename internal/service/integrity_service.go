package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ViolationRecord is the outcome of recording one violation event.
type ViolationRecord struct {
	Violation  *model.Violation `json:"violation"`
	HardCount  int              `json:"hard_count"`
	Terminated bool             `json:"terminated"`
}

// FingerprintCheck is the outcome of a fingerprint revalidation.
type FingerprintCheck struct {
	Match bool `json:"match"`
}

// IntegrityService records proctoring violations and enforces the
// termination threshold. Appends for one session are serialized by a row
// lock in the store, so the hard count never skips and the threshold fires
// exactly once.
type IntegrityService struct {
	cfg      *config.Config
	sessions SessionStore
	attempts AttemptStore
	log      zerolog.Logger
}

// NewIntegrityService creates a new IntegrityService.
func NewIntegrityService(cfg *config.Config, sessions SessionStore, attempts AttemptStore, log zerolog.Logger) *IntegrityService {
	return &IntegrityService{
		cfg:      cfg,
		sessions: sessions,
		attempts: attempts,
		log:      log.With().Str("component", "integrity_service").Logger(),
	}
}

// RecordViolation appends a violation to an IN_PROGRESS session owned by
// userID. When the hard-violation count reaches the configured limit the
// session is terminated in the same transaction and the open attempt is
// closed unscored.
func (s *IntegrityService) RecordViolation(ctx context.Context, sessionID uuid.UUID, userID int, vtype model.ViolationType, detail json.RawMessage) (*ViolationRecord, error) {
	// Soft-only types are rejected here: fingerprint drift enters the
	// trail through ValidateFingerprint, never as a client report.
	if !vtype.Valid() {
		return nil, fmt.Errorf("%w: unknown violation type %q", ErrInvalidSession, vtype)
	}
	return s.append(ctx, sessionID, userID, vtype, detail)
}

func (s *IntegrityService) append(ctx context.Context, sessionID uuid.UUID, userID int, vtype model.ViolationType, detail json.RawMessage) (*ViolationRecord, error) {
	violation := &model.Violation{
		SessionID: sessionID,
		Type:      vtype,
		Detail:    detail,
		Soft:      vtype.SoftOnly(),
	}

	count, terminated, err := s.sessions.AppendViolation(ctx, sessionID, userID, violation, s.cfg.ViolationLimit)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotActive) || errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("append violation: %w", err)
	}

	if terminated {
		s.log.Warn().
			Str("session_id", sessionID.String()).
			Int("hard_count", count).
			Str("type", string(vtype)).
			Msg("Session terminated by violation limit")
		s.closeAttempt(ctx, sessionID)
	}

	return &ViolationRecord{Violation: violation, HardCount: count, Terminated: terminated}, nil
}

// closeAttempt finalizes the open attempt of a just-terminated session.
// Best effort: the session row is already TERMINATED, so a failure here
// only delays the attempt close until the next Complete retry.
func (s *IntegrityService) closeAttempt(ctx context.Context, sessionID uuid.UUID) {
	attempt, err := s.attempts.GetBySession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Get attempt after termination failed")
		}
		return
	}
	if err := s.attempts.FinalizeUnscored(ctx, attempt.ID, time.Now()); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Finalize attempt after termination failed")
	}
}

// ValidateFingerprint compares the submitted browser fingerprint with the
// one bound at start. A mismatch is logged as a soft FINGERPRINT_DRIFT
// violation for the audit trail but never counts toward termination.
func (s *IntegrityService) ValidateFingerprint(ctx context.Context, sessionID uuid.UUID, userID int, fingerprint string) (*FingerprintCheck, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if session.UserID != userID || session.Status != model.SessionStatusInProgress {
		return nil, ErrInvalidSession
	}

	if session.BrowserFingerprint == fingerprint {
		return &FingerprintCheck{Match: true}, nil
	}

	detail, _ := json.Marshal(map[string]string{
		"expected": session.BrowserFingerprint,
		"got":      fingerprint,
	})
	if _, err := s.append(ctx, sessionID, userID, model.ViolationFingerprintDrift, detail); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Record fingerprint drift failed")
	}
	return &FingerprintCheck{Match: false}, nil
}
