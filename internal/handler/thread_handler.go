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

// ThreadHandler handles direct messaging endpoints.
type ThreadHandler struct {
	service *service.ThreadService
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(svc *service.ThreadService) *ThreadHandler {
	return &ThreadHandler{service: svc}
}

// List godoc
// @Summary List threads
// @Description The caller's threads ordered by latest activity
// @Tags Threads
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /threads [get]
func (h *ThreadHandler) List(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, size := pageParams(c, 20)
	summaries, pagination, err := h.service.List(c.Request.Context(), actor.ID, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, pagination)
}

// Create godoc
// @Summary Start thread
// @Description Open a conversation; a direct thread reuses the existing one for the pair
// @Tags Threads
// @Accept json
// @Produce json
// @Param payload body models.CreateThreadRequest true "Create thread payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /threads [post]
func (h *ThreadHandler) Create(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	thread, message, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"thread": thread, "message": message}, nil)
}

// Get godoc
// @Summary Get thread
// @Tags Threads
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /threads/{id} [get]
func (h *ThreadHandler) Get(c *gin.Context) {
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

	thread, err := h.service.Get(c.Request.Context(), actor.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, thread, nil)
}

// Messages godoc
// @Summary Thread messages
// @Description Messages in chronological order
// @Tags Threads
// @Produce json
// @Param id path int true "Thread ID"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /threads/{id}/messages [get]
func (h *ThreadHandler) Messages(c *gin.Context) {
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

	page, size := pageParams(c, 50)
	messages, pagination, err := h.service.Messages(c.Request.Context(), actor.ID, id, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, pagination)
}

// Send godoc
// @Summary Send message
// @Tags Threads
// @Accept json
// @Produce json
// @Param id path int true "Thread ID"
// @Param payload body models.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /threads/{id}/messages [post]
func (h *ThreadHandler) Send(c *gin.Context) {
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

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	message, err := h.service.Send(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// MarkRead godoc
// @Summary Mark thread read
// @Description Record read receipts for everything unread in the thread
// @Tags Threads
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /threads/{id}/read [post]
func (h *ThreadHandler) MarkRead(c *gin.Context) {
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

	marked, err := h.service.MarkRead(c.Request.Context(), actor.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"marked": marked}, nil)
}

// Unread godoc
// @Summary Unread summary
// @Description Per-thread unread counts plus the global total, optionally narrowed to one thread
// @Tags Threads
// @Produce json
// @Param thread_id query int false "Restrict to one thread"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /threads/unread [get]
func (h *ThreadHandler) Unread(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var threadID *int64
	if raw := c.Query("thread_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.Error(c, appErrors.Validation("thread_id", "must be a positive integer"))
			return
		}
		threadID = &id
	}

	summary, err := h.service.Unread(c.Request.Context(), actor.ID, threadID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
