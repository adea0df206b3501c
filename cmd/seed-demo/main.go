package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/database"
	"github.com/certeon/certexam-backend/internal/logger"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Seeds a demo course with 10 questions and 5 candidate accounts,
// enough to exercise the full exam → certificate flow locally.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	fmt.Println("=== Seeding demo data ===")

	course := &model.Course{
		Title:              "Go Backend Fundamentals",
		PassingScore:       70,
		ExamDuration:       30,
		TotalQuestions:     10,
		CertificateEnabled: true,
		CertificatePrice:   49.0,
	}
	if err := courseRepo.Create(ctx, course); err != nil {
		log.Fatal().Err(err).Msg("Failed to create course")
	}
	fmt.Printf("Created course %s (%s)\n", course.Title, course.ID)

	choices, _ := json.Marshal(map[string]string{
		"A": "Option A", "B": "Option B", "C": "Option C", "D": "Option D",
	})
	correct := []string{"A", "B", "C", "D", "A", "B", "C", "D", "A", "B"}
	for i := 0; i < 10; i++ {
		q := &model.Question{
			CourseID:      course.ID,
			Prompt:        fmt.Sprintf("Demo question %d: which option is correct?", i+1),
			Choices:       choices,
			CorrectChoice: correct[i],
			OrderNum:      i + 1,
			Active:        true,
		}
		if err := questionRepo.Create(ctx, q); err != nil {
			log.Fatal().Err(err).Int("question", i+1).Msg("Failed to create question")
		}
	}
	fmt.Println("Created 10 questions")

	hash, err := bcrypt.GenerateFromPassword([]byte("candidate123"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	names := []string{"Alex Reed", "Sam Porter", "Jordan Blake", "Casey Morgan", "Riley Quinn"}
	for i, name := range names {
		user := &model.User{
			Email:        fmt.Sprintf("candidate%d@example.com", i+1),
			Name:         name,
			PasswordHash: string(hash),
		}
		if err := userRepo.Create(ctx, user); err != nil {
			log.Fatal().Err(err).Str("email", user.Email).Msg("Failed to create user")
		}
	}
	fmt.Println("Created 5 candidates (password: candidate123)")

	fmt.Println("Done.")
}
