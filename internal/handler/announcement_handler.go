package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aulalink/aulalink-api/internal/models"
	"github.com/aulalink/aulalink-api/internal/service"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
	"github.com/aulalink/aulalink-api/pkg/response"
)

// AnnouncementHandler handles announcement lifecycle endpoints.
type AnnouncementHandler struct {
	service *service.AnnouncementService
}

// NewAnnouncementHandler creates a new announcement handler.
func NewAnnouncementHandler(svc *service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: svc}
}

// List godoc
// @Summary List announcements
// @Description List announcements visible to the caller
// @Tags Announcements
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Param visibility query string false "Scope filter (all, groups, users)"
// @Param author_id query int false "Author filter"
// @Param published query bool false "Published filter"
// @Param archived query bool false "Archived filter"
// @Param q query string false "Search term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.AnnouncementFilter{ViewerID: actor.ID}
	filter.Page, filter.PageSize = pageParams(c, 15)
	filter.Search = c.Query("q")

	if scope := c.Query("visibility"); scope != "" {
		s := models.Scope(scope)
		filter.Scope = &s
	}
	if authorID := c.Query("author_id"); authorID != "" {
		if id, err := strconv.ParseInt(authorID, 10, 64); err == nil {
			filter.AuthorUserID = &id
		}
	}
	if published := c.Query("published"); published != "" {
		if val, err := strconv.ParseBool(published); err == nil {
			filter.Published = &val
		}
	}
	if archived := c.Query("archived"); archived != "" {
		if val, err := strconv.ParseBool(archived); err == nil {
			filter.Archived = &val
		}
	} else {
		// Archived items stay out of listings unless asked for.
		hidden := false
		filter.Archived = &hidden
	}

	announcements, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, pagination)
}

// History godoc
// @Summary Authored announcements
// @Description List announcements authored by the caller, drafts and archived included
// @Tags Announcements
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Param published query bool false "Published filter"
// @Param archived query bool false "Archived filter"
// @Param q query string false "Search term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/history [get]
func (h *AnnouncementHandler) History(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.AnnouncementFilter{ViewerID: actor.ID, AuthorUserID: &actor.ID}
	filter.Page, filter.PageSize = pageParams(c, 15)
	filter.Search = c.Query("q")

	if published := c.Query("published"); published != "" {
		if val, err := strconv.ParseBool(published); err == nil {
			filter.Published = &val
		}
	}
	if archived := c.Query("archived"); archived != "" {
		if val, err := strconv.ParseBool(archived); err == nil {
			filter.Archived = &val
		}
	}

	announcements, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, pagination)
}

// Get godoc
// @Summary Get announcement
// @Tags Announcements
// @Produce json
// @Param id path int true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	announcement, err := h.service.Get(c.Request.Context(), actor.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Create godoc
// @Summary Create announcement
// @Description Draft an announcement, optionally publishing immediately
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body models.CreateAnnouncementRequest true "Create announcement payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	announcement, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, announcement)
}

// Update godoc
// @Summary Update announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path int true "Announcement ID"
// @Param payload body models.UpdateAnnouncementRequest true "Update announcement payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.UpdateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	announcement, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Delete godoc
// @Summary Delete announcement
// @Tags Announcements
// @Param id path int true "Announcement ID"
// @Success 204 "No Content"
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Publish godoc
// @Summary Publish announcement
// @Description Stamp the publish time and notify the visible audience
// @Tags Announcements
// @Produce json
// @Param id path int true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id}/publish [post]
func (h *AnnouncementHandler) Publish(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	announcement, err := h.service.Publish(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Archive godoc
// @Summary Archive announcement
// @Tags Announcements
// @Param id path int true "Announcement ID"
// @Success 204 "No Content"
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id}/archive [post]
func (h *AnnouncementHandler) Archive(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Archive(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkRead godoc
// @Summary Mark announcement read
// @Tags Announcements
// @Param id path int true "Announcement ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id}/read [post]
func (h *AnnouncementHandler) MarkRead(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), actor.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddTarget godoc
// @Summary Add announcement target
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path int true "Announcement ID"
// @Param payload body models.TargetInput true "Target payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id}/targets [post]
func (h *AnnouncementHandler) AddTarget(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var input models.TargetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	target, err := h.service.AddTarget(c.Request.Context(), actor, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, target)
}

// RemoveTarget godoc
// @Summary Remove announcement target
// @Tags Announcements
// @Param id path int true "Announcement ID"
// @Param target_id path int true "Target ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id}/targets/{target_id} [delete]
func (h *AnnouncementHandler) RemoveTarget(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	targetID, err := pathID(c, "target_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.RemoveTarget(c.Request.Context(), actor, id, targetID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
