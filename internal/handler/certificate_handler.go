package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/certeon/certexam-backend/internal/middleware"
	"github.com/certeon/certexam-backend/internal/response"
	"github.com/certeon/certexam-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CertificateHandler serves certificate status, downloads, and public
// verification.
type CertificateHandler struct {
	certService *service.CertificateService
}

// NewCertificateHandler creates a new CertificateHandler.
func NewCertificateHandler(certService *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certService: certService}
}

// Status godoc
// GET /api/v1/courses/:course_id/certificate
// Returns whether the candidate holds a valid certificate for the course.
func (h *CertificateHandler) Status(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	status, err := h.certService.Status(c.Request.Context(), claims.UserID, courseID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// Download godoc
// GET /api/v1/certificates/:id/download
// Streams the PDF artifact, rendering it on the spot when missing.
func (h *CertificateHandler) Download(c *gin.Context) {
	claims := middleware.GetClaims(c)
	certID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	path, err := h.certService.ArtifactPath(c.Request.Context(), certID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrDependencyUnavailable):
			response.Fail(c, http.StatusServiceUnavailable, response.ErrDependencyUnavailable)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	// Rendered artifacts never change, so the client may cache aggressively.
	c.Header("Cache-Control", "private, max-age=86400")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="certificate-%s.pdf"`, certID))
	c.Header("Content-Type", "application/pdf")
	c.File(path)
}

// Verify godoc
// GET /api/v1/verify/:code
// Public endpoint: resolves a verification code to certificate facts.
// Revoked certificates verify as invalid but still resolve.
func (h *CertificateHandler) Verify(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	cert, err := h.certService.Verify(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"valid":              !cert.Revoked,
		"certificate_number": cert.Number,
		"course_id":          cert.CourseID,
		"score":              cert.Score,
		"grade":              cert.Grade,
		"issued_at":          cert.IssuedAt,
		"revoked":            cert.Revoked,
	})
}
