package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk-api/internal/service"
	"github.com/classdesk/classdesk-api/pkg/response"
)

// ReportHandler exposes submission status and analytics endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// HomeworkStatus godoc
// @Summary Submission status for one homework across the roster
// @Tags Reports
// @Produce json
// @Param id path string true "Homework ID"
// @Success 200 {object} response.Envelope
// @Router /homeworks/{id}/submission-status [get]
func (h *ReportHandler) HomeworkStatus(c *gin.Context) {
	report, err := h.reports.HomeworkStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportHomeworkStatus godoc
// @Summary Download the homework submission status report
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Homework ID"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Router /homeworks/{id}/submission-status/export [get]
func (h *ReportHandler) ExportHomeworkStatus(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	payload, filename, err := h.reports.ExportHomeworkStatus(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	contentType := "text/csv"
	if format == service.ExportPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, payload)
}

// SubjectHomeworkStatus godoc
// @Summary Rollup of every homework in a subject
// @Tags Reports
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/all-homework-status [get]
func (h *ReportHandler) SubjectHomeworkStatus(c *gin.Context) {
	report, err := h.reports.SubjectHomeworkStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// SubjectAnalytics godoc
// @Summary Subject-wide submission statistics
// @Tags Reports
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/analytics [get]
func (h *ReportHandler) SubjectAnalytics(c *gin.Context) {
	analytics, err := h.reports.SubjectAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}

// StudentAnalytics godoc
// @Summary Per-student submission and grade summary
// @Tags Reports
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/analytics [get]
func (h *ReportHandler) StudentAnalytics(c *gin.Context) {
	analytics, err := h.reports.StudentAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}
