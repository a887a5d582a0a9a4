package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/service"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
	"github.com/classdesk/classdesk-api/pkg/response"
)

// HomeworkHandler exposes homework management endpoints.
type HomeworkHandler struct {
	homeworks *service.HomeworkService
}

// NewHomeworkHandler constructs HomeworkHandler.
func NewHomeworkHandler(homeworks *service.HomeworkService) *HomeworkHandler {
	return &HomeworkHandler{homeworks: homeworks}
}

// Create godoc
// @Summary Create a homework assignment
// @Tags Homeworks
// @Accept json
// @Produce json
// @Param payload body service.CreateHomeworkRequest true "Homework payload"
// @Success 201 {object} response.Envelope
// @Router /homeworks [post]
func (h *HomeworkHandler) Create(c *gin.Context) {
	var req service.CreateHomeworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	homework, err := h.homeworks.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, homework)
}

// Update godoc
// @Summary Update a homework assignment
// @Tags Homeworks
// @Accept json
// @Produce json
// @Param id path string true "Homework ID"
// @Param payload body service.UpdateHomeworkRequest true "Homework payload"
// @Success 200 {object} response.Envelope
// @Router /homeworks/{id} [put]
func (h *HomeworkHandler) Update(c *gin.Context) {
	var req service.UpdateHomeworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	homework, err := h.homeworks.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, homework, nil)
}

// Delete godoc
// @Summary Delete a homework assignment
// @Tags Homeworks
// @Produce json
// @Param id path string true "Homework ID"
// @Success 204
// @Router /homeworks/{id} [delete]
func (h *HomeworkHandler) Delete(c *gin.Context) {
	if err := h.homeworks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListBySubject godoc
// @Summary List homeworks of a subject
// @Tags Homeworks
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/homeworks [get]
func (h *HomeworkHandler) ListBySubject(c *gin.Context) {
	homeworks, err := h.homeworks.ListBySubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, homeworks, nil)
}

// ListByTeacher godoc
// @Summary List homeworks across a teacher's subjects
// @Tags Homeworks
// @Produce json
// @Param id path string true "Teacher ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/homeworks [get]
func (h *HomeworkHandler) ListByTeacher(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	homeworks, pagination, err := h.homeworks.ListByTeacher(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, homeworks, pagination)
}

// ListForStudent godoc
// @Summary List a student's homeworks, optionally filtered by submission state
// @Tags Homeworks
// @Produce json
// @Param id path string true "Student ID"
// @Param status query string false "pending or submitted"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/homeworks [get]
func (h *HomeworkHandler) ListForStudent(c *gin.Context) {
	filter := models.HomeworkStatusFilter(c.Query("status"))
	homeworks, err := h.homeworks.ListForStudent(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, homeworks, nil)
}
