package service

import (
	"context"
	"fmt"
	"time"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AnswerKeySource provides the privileged question → correct choice map.
// Backed by ExamService's Redis cache with a database fallback.
type AnswerKeySource interface {
	AnswerKey(ctx context.Context, courseID uuid.UUID) (map[string]string, error)
}

// ScoringService computes attempt outcomes. Scoring is deterministic: the
// same stored answers and answer key always produce the same score, grade
// and pass flag, and an already-scored attempt is never re-written.
type ScoringService struct {
	attempts AttemptStore
	keys     AnswerKeySource
	log      zerolog.Logger
}

// NewScoringService creates a new ScoringService.
func NewScoringService(attempts AttemptStore, keys AnswerKeySource, log zerolog.Logger) *ScoringService {
	return &ScoringService{
		attempts: attempts,
		keys:     keys,
		log:      log.With().Str("component", "scoring_service").Logger(),
	}
}

// GradeFor maps a percentage score to its letter grade. The thresholds are
// fixed policy, not course configuration.
func GradeFor(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// ComputeOutcome grades recorded answers against the answer key. The key
// defines the question set: unanswered questions count as wrong, answers to
// unknown questions are ignored. Returned slices carry the per-question
// correctness flags for persistence, aligned by index.
func ComputeOutcome(answers []model.Answer, key map[string]string, passingScore float64) (model.AttemptOutcome, []uuid.UUID, []bool) {
	total := len(key)
	correct := 0

	questionIDs := make([]uuid.UUID, 0, len(answers))
	flags := make([]bool, 0, len(answers))

	for _, a := range answers {
		want, known := key[a.QuestionID.String()]
		if !known {
			continue
		}
		ok := a.Selected == want
		if ok {
			correct++
		}
		questionIDs = append(questionIDs, a.QuestionID)
		flags = append(flags, ok)
	}

	var score float64
	if total > 0 {
		score = float64(correct) / float64(total) * 100
	}

	return model.AttemptOutcome{
		Score:        score,
		Passed:       score >= passingScore,
		Grade:        GradeFor(score),
		CorrectCount: correct,
		TotalCount:   total,
	}, questionIDs, flags
}

// Score grades an attempt and persists the outcome. Re-scoring an
// already-scored attempt returns the stored outcome unchanged; the write
// is guarded at the storage layer, so a retried completion cannot flip a
// result or duplicate answers.
func (s *ScoringService) Score(ctx context.Context, attempt *model.ExamAttempt, passingScore float64) (*model.AttemptOutcome, error) {
	if attempt.Scored() {
		return &model.AttemptOutcome{
			Score:        *attempt.Score,
			Passed:       *attempt.Passed,
			Grade:        *attempt.Grade,
			CorrectCount: *attempt.CorrectCount,
			TotalCount:   *attempt.TotalCount,
		}, nil
	}

	key, err := s.keys.AnswerKey(ctx, attempt.CourseID)
	if err != nil {
		return nil, fmt.Errorf("%w: answer key: %v", ErrDependencyUnavailable, err)
	}

	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	outcome, questionIDs, flags := ComputeOutcome(answers, key, passingScore)

	now := time.Now()
	if err := s.attempts.FinalizeScored(ctx, attempt.ID, outcome, now); err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}
	if err := s.attempts.MarkCorrectness(ctx, attempt.ID, questionIDs, flags); err != nil {
		// Correctness flags are derived data; the outcome is already stored.
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Mark correctness failed")
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Float64("score", outcome.Score).
		Int("correct", outcome.CorrectCount).
		Int("total", outcome.TotalCount).
		Bool("passed", outcome.Passed).
		Msg("Attempt scored")

	return &outcome, nil
}
