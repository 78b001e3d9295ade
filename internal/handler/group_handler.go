package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulalink/aulalink-api/internal/models"
	"github.com/aulalink/aulalink-api/internal/service"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
	"github.com/aulalink/aulalink-api/pkg/response"
)

// GroupHandler handles class-group endpoints.
type GroupHandler struct {
	service *service.GroupService
}

// NewGroupHandler creates a new group handler.
func NewGroupHandler(svc *service.GroupService) *GroupHandler {
	return &GroupHandler{service: svc}
}

// List godoc
// @Summary List groups
// @Description List class groups with filters
// @Tags Groups
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Param grade query string false "Grade filter"
// @Param q query string false "Search term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	var filter models.GroupFilter
	filter.Page, filter.PageSize = pageParams(c, 20)
	filter.Grade = c.Query("grade")
	filter.Search = c.Query("q")

	groups, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, pagination)
}

// Get godoc
// @Summary Get group
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	group, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Create godoc
// @Summary Create group
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body models.CreateGroupRequest true "Create group payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	group, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Update godoc
// @Summary Update group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param payload body models.UpdateGroupRequest true "Update group payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id} [put]
func (h *GroupHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	group, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Delete godoc
// @Summary Delete group
// @Tags Groups
// @Param id path int true "Group ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListStudents godoc
// @Summary Group roster
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id}/students [get]
func (h *GroupHandler) ListStudents(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	students, err := h.service.ListStudents(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// AddStudent godoc
// @Summary Enroll student
// @Tags Groups
// @Param id path int true "Group ID"
// @Param student_id path int true "Student ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id}/students/{student_id} [put]
func (h *GroupHandler) AddStudent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	studentID, err := pathID(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.AddStudent(c.Request.Context(), id, studentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveStudent godoc
// @Summary Unenroll student
// @Tags Groups
// @Param id path int true "Group ID"
// @Param student_id path int true "Student ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /groups/{id}/students/{student_id} [delete]
func (h *GroupHandler) RemoveStudent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	studentID, err := pathID(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.RemoveStudent(c.Request.Context(), id, studentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTeachers godoc
// @Summary Group teachers
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id}/teachers [get]
func (h *GroupHandler) ListTeachers(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	teachers, err := h.service.ListTeachers(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// AssignTeacher godoc
// @Summary Assign teacher
// @Tags Groups
// @Param id path int true "Group ID"
// @Param user_id path int true "Teacher user ID"
// @Success 204 "No Content"
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id}/teachers/{user_id} [put]
func (h *GroupHandler) AssignTeacher(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	userID, err := pathID(c, "user_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.AssignTeacher(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnassignTeacher godoc
// @Summary Unassign teacher
// @Tags Groups
// @Param id path int true "Group ID"
// @Param user_id path int true "Teacher user ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /groups/{id}/teachers/{user_id} [delete]
func (h *GroupHandler) UnassignTeacher(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	userID, err := pathID(c, "user_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.UnassignTeacher(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
