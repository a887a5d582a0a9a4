package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/service"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
	"github.com/classdesk/classdesk-api/pkg/response"
)

// SubmissionHandler exposes submission upload and grading endpoints.
type SubmissionHandler struct {
	submissions *service.SubmissionService
	maxUpload   int64
}

// NewSubmissionHandler constructs SubmissionHandler. maxUpload caps the
// accepted file size in bytes.
func NewSubmissionHandler(submissions *service.SubmissionService, maxUpload int64) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, maxUpload: maxUpload}
}

// Submit godoc
// @Summary Submit a homework file
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Homework ID"
// @Param studentId path string true "Student ID"
// @Param file formData file true "Submission file"
// @Success 201 {object} response.Envelope
// @Router /homeworks/{id}/submissions/{studentId} [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	studentID := c.Param("studentId")
	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent && claims.UserID != studentID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students can only submit their own work"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "submission file is required"))
		return
	}
	if h.maxUpload > 0 && fileHeader.Size > h.maxUpload {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds maximum size of %d bytes", h.maxUpload)))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	submission, err := h.submissions.Submit(c.Request.Context(), service.SubmitRequest{
		HomeworkID: c.Param("id"),
		StudentID:  studentID,
		Filename:   fileHeader.Filename,
		Content:    file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.GradeSubmissionRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/grade [put]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	var req service.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.submissions.Grade(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Download godoc
// @Summary Download a submitted homework file
// @Tags Submissions
// @Produce octet-stream
// @Param id path string true "Submission ID"
// @Success 200 {file} binary
// @Router /submissions/{id}/file [get]
func (h *SubmissionHandler) Download(c *gin.Context) {
	submission, file, err := h.submissions.DownloadFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent && claims.UserID != submission.StudentID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students can only download their own submissions"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", submission.FilePath))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", file, nil)
}

// ListByStudent godoc
// @Summary List a student's submissions
// @Tags Submissions
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/submissions [get]
func (h *SubmissionHandler) ListByStudent(c *gin.Context) {
	submissions, err := h.submissions.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}
