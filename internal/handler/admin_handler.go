package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/response"
	"github.com/certeon/certexam-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AdminHandler bundles the administrative endpoints: proctoring overrides,
// result listings, payment confirmation, certificate revocation, cache and
// login resets.
type AdminHandler struct {
	sessionService     *service.SessionService
	applicationService *service.ApplicationService
	certService        *service.CertificateService
	examService        *service.ExamService
	authService        *service.AuthService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	sessionService *service.SessionService,
	applicationService *service.ApplicationService,
	certService *service.CertificateService,
	examService *service.ExamService,
	authService *service.AuthService,
) *AdminHandler {
	return &AdminHandler{
		sessionService:     sessionService,
		applicationService: applicationService,
		certService:        certService,
		examService:        examService,
		authService:        authService,
	}
}

// TerminateSession godoc
// POST /api/v1/admin/sessions/:id/terminate
// Force-terminates a session; the attempt is closed unscored.
func (h *AdminHandler) TerminateSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.sessionService.Complete(c.Request.Context(), sessionID, model.ReasonAdminTerminated)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// CourseResults godoc
// GET /api/v1/admin/courses/:course_id/results?page=&per_page=
func (h *AdminHandler) CourseResults(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	results, total, err := h.sessionService.CourseResults(c.Request.Context(), courseID, page, perPage)
	if err != nil {
		if errors.Is(err, service.ErrCourseNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrCourseNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, response.NewPagination(page, perPage, total))
}

// ConfirmPayment godoc
// POST /api/v1/admin/applications/:id/confirm-payment
func (h *AdminHandler) ConfirmPayment(c *gin.Context) {
	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	application, err := h.applicationService.ConfirmPayment(c.Request.Context(), applicationID)
	if err != nil {
		failApplicationError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"application": application})
}

// RevokeCertificate godoc
// POST /api/v1/admin/certificates/:id/revoke
// Revocation frees the (user, course) slot for re-certification.
func (h *AdminHandler) RevokeCertificate(c *gin.Context) {
	certID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.certService.Revoke(c.Request.Context(), certID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// RefreshCourseCache godoc
// POST /api/v1/admin/courses/:course_id/refresh-cache
// Re-warms the paper and answer key caches after a question set change.
func (h *AdminHandler) RefreshCourseCache(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.RefreshCourseCache(c.Request.Context(), courseID); err != nil {
		if errors.Is(err, service.ErrCourseNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrCourseNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ResetCandidateLogin godoc
// POST /api/v1/admin/users/:id/reset-login
// Releases a candidate's single-device login pin.
func (h *AdminHandler) ResetCandidateLogin(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), userID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
