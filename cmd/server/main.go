package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/database"
	"github.com/certeon/certexam-backend/internal/handler"
	"github.com/certeon/certexam-backend/internal/logger"
	"github.com/certeon/certexam-backend/internal/pdf"
	"github.com/certeon/certexam-backend/internal/repository"
	"github.com/certeon/certexam-backend/internal/router"
	"github.com/certeon/certexam-backend/internal/service"
	"github.com/certeon/certexam-backend/internal/validator"
	"github.com/certeon/certexam-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting CertExam Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	certRepo := repository.NewCertificateRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	applicationRepo := repository.NewApplicationRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	renderer := pdf.NewCertificateRenderer(cfg.ArtifactDir, cfg.CertFontPath, log)

	authService := service.NewAuthService(cfg, userRepo, rdb)
	examService := service.NewExamService(courseRepo, questionRepo, rdb, log)
	eligibilityService := service.NewEligibilityService(cfg, courseRepo, certRepo, paymentRepo)
	scoringService := service.NewScoringService(attemptRepo, examService, log)
	certService := service.NewCertificateService(certRepo, userRepo, courseRepo, renderer, rdb, log)
	sessionService := service.NewSessionService(
		cfg, sessionRepo, attemptRepo, certRepo, courseRepo,
		eligibilityService, scoringService, certService, log,
	)
	integrityService := service.NewIntegrityService(cfg, sessionRepo, attemptRepo, log)
	attemptService := service.NewAttemptService(sessionRepo, attemptRepo, log)
	applicationService := service.NewApplicationService(applicationRepo, paymentRepo, courseRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Exam:        handler.NewExamHandler(examService),
		Session:     handler.NewSessionHandler(sessionService, integrityService, attemptService),
		Certificate: handler.NewCertificateHandler(certService),
		Application: handler.NewApplicationHandler(applicationService),
		Admin:       handler.NewAdminHandler(sessionService, applicationService, certService, examService, authService),
		WS:          handler.NewWSHandler(sessionService, attemptService, integrityService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	renderWorker := worker.NewRenderWorker(certService, certRepo, rdb, log)
	expiryWorker := worker.NewExpiryWorker(sessionService, cfg.SessionSweepInterval, log)

	go renderWorker.Start(workerCtx)
	go expiryWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every certifiable course's paper and answer key BEFORE
	// accepting traffic, so first requests never race a cold cache.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and let in-flight jobs finish.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
