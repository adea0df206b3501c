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

// ApplicationHandler handles exam application endpoints.
type ApplicationHandler struct {
	applicationService *service.ApplicationService
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(applicationService *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applicationService: applicationService}
}

// Apply godoc
// POST /api/v1/applications
// Creates an application; re-applying returns the existing one.
func (h *ApplicationHandler) Apply(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.ApplyRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	application, err := h.applicationService.Apply(c.Request.Context(), claims.UserID, req.CourseID)
	if err != nil {
		failApplicationError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"application": application})
}

// List godoc
// GET /api/v1/applications
func (h *ApplicationHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)

	applications, err := h.applicationService.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"applications": applications})
}

// Schedule godoc
// POST /api/v1/applications/:id/schedule
// Sets the sitting time of a payment-confirmed application.
func (h *ApplicationHandler) Schedule(c *gin.Context) {
	claims := middleware.GetClaims(c)
	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ScheduleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	application, err := h.applicationService.Schedule(c.Request.Context(), applicationID, claims.UserID, req.ScheduledAt)
	if err != nil {
		failApplicationError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"application": application})
}

func failApplicationError(c *gin.Context, err error) {
	var notEligible *service.NotEligibleError
	switch {
	case errors.As(err, &notEligible):
		response.Fail(c, http.StatusForbidden, response.ErrNotEligible)
	case errors.Is(err, service.ErrCourseNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrCourseNotFound)
	case errors.Is(err, service.ErrApplicationNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrInvalidTransition):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
