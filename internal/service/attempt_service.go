package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AttemptService stores candidate answers while a session is running.
type AttemptService struct {
	sessions SessionStore
	attempts AttemptStore
	log      zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(sessions SessionStore, attempts AttemptStore, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		sessions: sessions,
		attempts: attempts,
		log:      log.With().Str("component", "attempt_service").Logger(),
	}
}

// RecordAnswer upserts the answer for one question on the session's open
// attempt. Re-answering overwrites the previous choice; the last write
// before completion is the one that gets graded. The write is refused once
// the session leaves IN_PROGRESS, even if the caller raced the transition.
func (s *AttemptService) RecordAnswer(ctx context.Context, sessionID uuid.UUID, userID int, req *model.RecordAnswerRequest) (*model.Answer, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrInvalidSession
	}
	if session.Status != model.SessionStatusInProgress || session.AttemptID == nil {
		return nil, ErrAttemptNotActive
	}

	err = s.attempts.UpsertAnswer(ctx, *session.AttemptID, req.QuestionID, userID, req.Selected, req.TimeSpent)
	if err != nil {
		if errors.Is(err, repository.ErrAttemptNotActive) {
			return nil, ErrAttemptNotActive
		}
		return nil, fmt.Errorf("upsert answer: %w", err)
	}

	return &model.Answer{
		AttemptID:  *session.AttemptID,
		QuestionID: req.QuestionID,
		Selected:   req.Selected,
		TimeSpent:  req.TimeSpent,
	}, nil
}

// Answers lists the stored answers of the session's attempt for its owner.
func (s *AttemptService) Answers(ctx context.Context, sessionID uuid.UUID, userID int) ([]model.Answer, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrInvalidSession
	}
	if session.AttemptID == nil {
		return []model.Answer{}, nil
	}
	return s.attempts.ListAnswers(ctx, *session.AttemptID)
}
