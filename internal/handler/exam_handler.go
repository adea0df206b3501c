package handler

import (
	"errors"
	"net/http"

	"github.com/certeon/certexam-backend/internal/response"
	"github.com/certeon/certexam-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExamHandler serves candidate-facing exam content.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// GetPaper godoc
// GET /api/v1/exams/:course_id/paper
// Returns the exam paper for a course, never including correct choices.
func (h *ExamHandler) GetPaper(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), courseID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCourseNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrCourseNotFound)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}
