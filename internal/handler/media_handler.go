package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulalink/aulalink-api/internal/models"
	"github.com/aulalink/aulalink-api/internal/service"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
	"github.com/aulalink/aulalink-api/pkg/response"
)

// MediaHandler handles media upload, listing, download and thumbnails.
type MediaHandler struct {
	service *service.MediaService
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(svc *service.MediaService) *MediaHandler {
	return &MediaHandler{service: svc}
}

// List godoc
// @Summary List media
// @Description List media items visible to the caller
// @Tags Media
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Param q query string false "Search term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /media [get]
func (h *MediaHandler) List(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.MediaFilter{ViewerID: actor.ID, Search: c.Query("q")}
	filter.Page, filter.PageSize = pageParams(c, 15)

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get media
// @Tags Media
// @Produce json
// @Param id path int true "Media ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
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

	item, err := h.service.Get(c.Request.Context(), actor.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Upload godoc
// @Summary Upload media
// @Description Multipart upload: a "file" part plus a "payload" part holding the metadata JSON
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param payload formData string true "Metadata JSON (models.CreateMediaRequest)"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /media [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateMediaRequest
	if payload := c.PostForm("payload"); payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid metadata payload"))
			return
		}
	} else {
		response.Error(c, appErrors.Validation("payload", "metadata payload is required"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Validation("file", "a file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	upload := service.MediaUpload{
		File:     file,
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
	}

	item, err := h.service.Upload(c.Request.Context(), actor, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update media metadata
// @Tags Media
// @Accept json
// @Produce json
// @Param id path int true "Media ID"
// @Param payload body models.UpdateMediaRequest true "Update media payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /media/{id} [put]
func (h *MediaHandler) Update(c *gin.Context) {
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

	var req models.UpdateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	item, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete media
// @Tags Media
// @Param id path int true "Media ID"
// @Success 204 "No Content"
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
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

// Download godoc
// @Summary Download media
// @Description Stream the stored file and record a download audit row
// @Tags Media
// @Produce octet-stream
// @Param id path int true "Media ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /media/{id}/download [get]
func (h *MediaHandler) Download(c *gin.Context) {
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

	item, file, err := h.service.Download(c.Request.Context(), actor, id, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Type", item.MimeType)
	c.Header("Content-Length", fmt.Sprintf("%d", item.FileSizeBytes))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.Title))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

// Thumbnail godoc
// @Summary Media thumbnail
// @Description Bounded preview image; falls back to a type placeholder
// @Tags Media
// @Produce image/jpeg
// @Param id path int true "Media ID"
// @Param size query string false "Size (sm, md, lg)" default(sm)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /media/{id}/thumbnail [get]
func (h *MediaHandler) Thumbnail(c *gin.Context) {
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

	data, contentType, err := h.service.Thumbnail(c.Request.Context(), actor.ID, id, c.DefaultQuery("size", "sm"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// Downloads godoc
// @Summary Media download audit
// @Description Latest download audit rows; uploader or admin only
// @Tags Media
// @Produce json
// @Param id path int true "Media ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /media/{id}/downloads [get]
func (h *MediaHandler) Downloads(c *gin.Context) {
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

	downloads, err := h.service.Downloads(c.Request.Context(), actor, id, 10)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, downloads, nil)
}
