package handler

import (
	"errors"
	"net/http"

	"github.com/certeon/certexam-backend/internal/middleware"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/response"
	"github.com/certeon/certexam-backend/internal/service"
	"github.com/certeon/certexam-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler drives the candidate session lifecycle endpoints.
type SessionHandler struct {
	sessionService   *service.SessionService
	integrityService *service.IntegrityService
	attemptService   *service.AttemptService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	sessionService *service.SessionService,
	integrityService *service.IntegrityService,
	attemptService *service.AttemptService,
) *SessionHandler {
	return &SessionHandler{
		sessionService:   sessionService,
		integrityService: integrityService,
		attemptService:   attemptService,
	}
}

// Create godoc
// POST /api/v1/exams/:course_id/sessions
// Opens a session after the eligibility gate; returns the existing active
// session if one exists.
func (h *SessionHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Create(c.Request.Context(), claims.UserID, courseID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// Start godoc
// POST /api/v1/sessions/:id/start
// Binds the browser fingerprint and opens the attempt. Idempotent.
func (h *SessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, attempt, err := h.sessionService.Start(c.Request.Context(), sessionID, claims.UserID, req.BrowserFingerprint)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session, "attempt": attempt})
}

// RecordViolation godoc
// POST /api/v1/sessions/:id/violations
func (h *SessionHandler) RecordViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	record, err := h.integrityService.RecordViolation(c.Request.Context(), sessionID, claims.UserID, req.Type, req.Detail)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, record)
}

// CheckFingerprint godoc
// POST /api/v1/sessions/:id/fingerprint
// Soft revalidation; a mismatch is recorded for audit but is never fatal.
func (h *SessionHandler) CheckFingerprint(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.FingerprintCheckRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	check, err := h.integrityService.ValidateFingerprint(c.Request.Context(), sessionID, claims.UserID, req.BrowserFingerprint)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, check)
}

// RecordAnswer godoc
// POST /api/v1/sessions/:id/answers
// Saves one answer; resubmission overwrites.
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.attemptService.RecordAnswer(c.Request.Context(), sessionID, claims.UserID, &req)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answer": answer})
}

// Complete godoc
// POST /api/v1/sessions/:id/complete
// Submits the exam. Safe to retry; a repeat returns the settled outcome.
func (h *SessionHandler) Complete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CompleteSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.CompleteByUser(c.Request.Context(), sessionID, claims.UserID, model.ReasonUserSubmit)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Results godoc
// GET /api/v1/sessions/:id/results
func (h *SessionHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.sessionService.Results(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// failSessionError maps service errors from the session lifecycle to
// typed response codes.
func failSessionError(c *gin.Context, err error) {
	var notEligible *service.NotEligibleError
	switch {
	case errors.As(err, &notEligible):
		switch notEligible.Reason {
		case service.ReasonAlreadyCertified:
			response.Fail(c, http.StatusConflict, response.ErrAlreadyCertified)
		case service.ReasonPaymentRequired:
			response.Fail(c, http.StatusPaymentRequired, response.ErrPaymentRequired)
		default:
			response.Fail(c, http.StatusForbidden, response.ErrNotEligible)
		}
	case errors.Is(err, service.ErrCourseNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrCourseNotFound)
	case errors.Is(err, service.ErrInvalidSession):
		response.Fail(c, http.StatusConflict, response.ErrInvalidSession)
	case errors.Is(err, service.ErrAttemptNotActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
	case errors.Is(err, service.ErrDependencyUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrDependencyUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
