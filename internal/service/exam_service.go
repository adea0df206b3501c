package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoQuestions is returned when a course has no active questions to serve.
var ErrNoQuestions = errors.New("course has no active questions")

// ExamService serves exam papers and answer keys. Both live in Redis with a
// PostgreSQL fallback: the paper as a JSON blob, the key as a hash, warmed
// together so grading never reads a key newer than the paper it grades.
type ExamService struct {
	courses   CourseStore
	questions QuestionStore
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(courses CourseStore, questions QuestionStore, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		courses:   courses,
		questions: questions,
		rdb:       rdb,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// GetPaper returns the candidate-facing exam paper for a course: cached
// copy when present, otherwise loaded from PostgreSQL and cached on the
// way out. The paper never contains correct choices.
func (s *ExamService) GetPaper(ctx context.Context, courseID uuid.UUID) (*model.ExamPaper, error) {
	key := config.CacheKey.ExamPaperKey(courseID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var paper model.ExamPaper
		if err := json.Unmarshal(data, &paper); err == nil {
			return &paper, nil
		}
		// A corrupt cache entry falls through to the database path.
		s.log.Warn().Str("course_id", courseID.String()).Msg("Discarding corrupt paper cache entry")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Paper cache read failed, falling back to database")
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}

	paper, _, err := s.buildPaper(ctx, course)
	if err != nil {
		return nil, err
	}
	if err := s.WarmCourseCache(ctx, course); err != nil {
		s.log.Warn().Err(err).Str("course_id", courseID.String()).Msg("Cache warm failed")
	}
	return paper, nil
}

// AnswerKey returns the question → correct choice map for grading. The
// Redis hash is tried first; a miss self-heals from PostgreSQL so that
// scoring survives a cold or flushed cache.
func (s *ExamService) AnswerKey(ctx context.Context, courseID uuid.UUID) (map[string]string, error) {
	key := config.CacheKey.AnswerKeyKey(courseID.String())
	result, err := s.rdb.HGetAll(ctx, key).Result()
	if err == nil && len(result) > 0 {
		return result, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Answer key cache read failed, falling back to database")
	}

	answerKey, err := s.questions.AnswerKey(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	if len(answerKey) == 0 {
		// A course without active questions grades as an empty set: zero
		// correct out of zero, score 0. Serving such a paper is an error
		// (GetPaper), grading it is not, so completion always lands on a
		// scored result.
		return map[string]string{}, nil
	}

	fields := make(map[string]interface{}, len(answerKey))
	for k, v := range answerKey {
		fields[k] = v
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		s.log.Warn().Err(err).Str("course_id", courseID.String()).Msg("Answer key cache write failed")
	}
	return answerKey, nil
}

// WarmCourseCache loads a course's paper and answer key from PostgreSQL
// into Redis, both in one pipeline.
func (s *ExamService) WarmCourseCache(ctx context.Context, course *model.Course) error {
	paper, answerKey, err := s.buildPaper(ctx, course)
	if err != nil {
		return err
	}

	paperJSON, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	fields := make(map[string]interface{}, len(answerKey))
	for k, v := range answerKey {
		fields[k] = v
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPaperKey(course.ID.String()), paperJSON, 0)
	pipe.Del(ctx, config.CacheKey.AnswerKeyKey(course.ID.String()))
	pipe.HSet(ctx, config.CacheKey.AnswerKeyKey(course.ID.String()), fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("course_id", course.ID.String()).
		Int("questions", len(paper.Questions)).
		Msg("Cache warmed")
	return nil
}

// RefreshCourseCache re-warms the cache for one course, for use after its
// question set changes.
func (s *ExamService) RefreshCourseCache(ctx context.Context, courseID uuid.UUID) error {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("get course: %w", err)
	}
	if err := s.WarmCourseCache(ctx, course); err != nil {
		return err
	}
	s.log.Info().Str("course_id", courseID.String()).Msg("Cache refreshed")
	return nil
}

// PrewarmAllCaches loads every certifiable course into Redis on startup so
// the first candidates of the day never race a cold cache.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	courses, err := s.courses.ListCertifiable(ctx)
	if err != nil {
		return fmt.Errorf("list certifiable courses: %w", err)
	}
	if len(courses) == 0 {
		s.log.Info().Msg("No certifiable courses to prewarm")
		return nil
	}

	warmed := 0
	for i := range courses {
		if err := s.WarmCourseCache(ctx, &courses[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("course_id", courses[i].ID.String()).
				Msg("Failed to warm course, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(courses)).
		Msg("Prewarming complete")
	return nil
}

func (s *ExamService) buildPaper(ctx context.Context, course *model.Course) (*model.ExamPaper, map[string]string, error) {
	questions, err := s.questions.ListActive(ctx, course.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, ErrNoQuestions
	}

	answerKey, err := s.questions.AnswerKey(ctx, course.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load answer key: %w", err)
	}

	return &model.ExamPaper{
		CourseID:  course.ID,
		Title:     course.Title,
		Duration:  course.ExamDuration,
		Questions: questions,
	}, answerKey, nil
}
