package router

import (
	"net/http"
	"time"

	"github.com/certeon/certexam-backend/internal/config"
	"github.com/certeon/certexam-backend/internal/handler"
	"github.com/certeon/certexam-backend/internal/middleware"
	"github.com/certeon/certexam-backend/internal/response"
	"github.com/certeon/certexam-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	Exam        *handler.ExamHandler
	Session     *handler.SessionHandler
	Certificate *handler.CertificateHandler
	Application *handler.ApplicationHandler
	Admin       *handler.AdminHandler
	WS          *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for the unauthenticated surfaces (30 requests per minute per IP).
	publicLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Public verification (Rate Limited, Cacheable) ──────────────
	public := router.Group("/api/v1")
	public.Use(publicLimiter.Middleware())
	{
		public.GET("/verify/:code", middleware.CacheControl(60), handlers.Certificate.Verify)
	}

	// ─── 2. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(publicLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireCandidateJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireCandidateJWT(authService), handlers.Auth.Me)
	}

	// ─── 3. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		candidateAPI.GET("/exams/:course_id/paper", handlers.Exam.GetPaper)
		candidateAPI.POST("/exams/:course_id/sessions", handlers.Session.Create)

		candidateAPI.POST("/sessions/:id/start", handlers.Session.Start)
		candidateAPI.POST("/sessions/:id/violations", handlers.Session.RecordViolation)
		candidateAPI.POST("/sessions/:id/fingerprint", handlers.Session.CheckFingerprint)
		candidateAPI.POST("/sessions/:id/answers", handlers.Session.RecordAnswer)
		candidateAPI.POST("/sessions/:id/complete", handlers.Session.Complete)
		candidateAPI.GET("/sessions/:id/results", handlers.Session.Results)

		candidateAPI.POST("/applications", handlers.Application.Apply)
		candidateAPI.GET("/applications", handlers.Application.List)
		candidateAPI.POST("/applications/:id/schedule", handlers.Application.Schedule)

		candidateAPI.GET("/courses/:course_id/certificate", handlers.Certificate.Status)
		candidateAPI.GET("/certificates/:id/download", handlers.Certificate.Download)
	}

	// ─── 4. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/sessions/:id/stream", handlers.WS.SessionStream)
	}

	// ─── 5. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/sessions/:id/terminate", handlers.Admin.TerminateSession)
		adminAPI.GET("/courses/:course_id/results", handlers.Admin.CourseResults)
		adminAPI.POST("/courses/:course_id/refresh-cache", handlers.Admin.RefreshCourseCache)
		adminAPI.POST("/applications/:id/confirm-payment", handlers.Admin.ConfirmPayment)
		adminAPI.POST("/certificates/:id/revoke", handlers.Admin.RevokeCertificate)
		adminAPI.POST("/users/:id/reset-login", handlers.Admin.ResetCandidateLogin)
	}

	return router
}
