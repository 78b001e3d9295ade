package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
	"github.com/aulalink/aulalink-api/pkg/storage"
	"github.com/aulalink/aulalink-api/pkg/thumbnail"
)

type mediaRepository interface {
	List(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, int, error)
	GetByID(ctx context.Context, id int64) (*models.MediaItem, error)
	IsVisible(ctx context.Context, viewerID, mediaID int64) (bool, error)
	Create(ctx context.Context, item *models.MediaItem, targets []models.Target) error
	Update(ctx context.Context, item *models.MediaItem, resync bool, targets []models.Target) error
	Delete(ctx context.Context, id int64) error
	RecordDownload(ctx context.Context, download *models.MediaDownload) error
	ListDownloads(ctx context.Context, mediaID int64, limit int) ([]models.MediaDownload, error)
}

type thumbnailGenerator interface {
	Generate(ctx context.Context, srcPath, mimeType string, maxPx int) *thumbnail.Result
}

// MediaUpload carries the blob half of a multipart upload.
type MediaUpload struct {
	File     io.Reader
	Filename string
	MimeType string
	Size     int64
}

// MediaService provides the media lifecycle: upload, scoped listing,
// download with audit trail, thumbnails and deletion.
type MediaService struct {
	repo        mediaRepository
	groups      targetGroupRepository
	users       targetUserRepository
	blobs       *storage.LocalStorage
	thumbs      *storage.LocalStorage
	previews    thumbnailGenerator
	maxFileSize int64
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMediaService constructs a MediaService instance.
func NewMediaService(repo mediaRepository, groups targetGroupRepository, users targetUserRepository, blobs, thumbs *storage.LocalStorage, previews thumbnailGenerator, maxFileSize int64, validate *validator.Validate, logger *zap.Logger) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MediaService{
		repo:        repo,
		groups:      groups,
		users:       users,
		blobs:       blobs,
		thumbs:      thumbs,
		previews:    previews,
		maxFileSize: maxFileSize,
		validator:   validate,
		logger:      logger,
	}
}

// List returns media items visible to the viewer.
func (s *MediaService) List(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list media")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total, 15), nil
}

// Get returns a media item if the viewer may see it. Hidden items answer
// not-found rather than forbidden to avoid existence leaks.
func (s *MediaService) Get(ctx context.Context, viewerID, id int64) (*models.MediaItem, error) {
	visible, err := s.repo.IsVisible(ctx, viewerID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check visibility")
	}
	if !visible {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
	}
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media")
	}
	return item, nil
}

// Upload stores the blob and creates the metadata row with its targets.
func (s *MediaService) Upload(ctx context.Context, uploader *models.User, req models.CreateMediaRequest, upload MediaUpload) (*models.MediaItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}
	if uploader.Role == models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parents cannot upload media")
	}
	if upload.File == nil {
		return nil, appErrors.Validation("file", "a file is required")
	}
	if s.maxFileSize > 0 && upload.Size > s.maxFileSize {
		return nil, appErrors.Validation("file", "file exceeds the maximum allowed size")
	}

	scope := models.Scope(req.Scope)
	targets, err := s.resolveTargets(ctx, scope, req.Targets)
	if err != nil {
		return nil, err
	}

	blob, err := s.blobs.Save(upload.File, upload.Filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	mimeType := upload.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	item := &models.MediaItem{
		UploaderUserID: uploader.ID,
		Title:          req.Title,
		Description:    req.Description,
		FilePath:       blob.Path,
		MimeType:       mimeType,
		FileSizeBytes:  blob.Size,
		ChecksumSHA256: blob.Checksum,
		Scope:          scope,
	}
	if err := s.repo.Create(ctx, item, targets); err != nil {
		if cleanupErr := s.blobs.Delete(blob.Path); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned blob", zap.String("path", blob.Path), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create media")
	}
	return item, nil
}

// Update edits metadata. Uploader or admin only; the blob is immutable.
func (s *MediaService) Update(ctx context.Context, actor *models.User, id int64, req models.UpdateMediaRequest) (*models.MediaItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	item, err := s.getManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Description != nil {
		item.Description = req.Description
	}
	if req.Scope != nil {
		item.Scope = models.Scope(*req.Scope)
	}

	resync := req.Targets != nil
	var targets []models.Target
	if resync {
		targets, err = s.resolveTargets(ctx, item.Scope, *req.Targets)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, item, resync, targets); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update media")
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload media")
	}
	return updated, nil
}

// Delete removes the metadata row, the stored blob and any cached
// thumbnails. Uploader or admin only.
func (s *MediaService) Delete(ctx context.Context, actor *models.User, id int64) error {
	item, err := s.getManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete media")
	}
	if err := s.blobs.Delete(item.FilePath); err != nil {
		s.logger.Warn("failed to remove blob", zap.String("path", item.FilePath), zap.Error(err))
	}
	for size := range thumbnail.Sizes {
		if err := s.thumbs.Delete(thumbnail.CachePath(id, size)); err != nil {
			s.logger.Warn("failed to remove cached thumbnail", zap.Int64("media_id", id), zap.String("size", size), zap.Error(err))
		}
	}
	return nil
}

// Download opens the blob for streaming and appends a download audit
// row. The caller owns the returned file handle.
func (s *MediaService) Download(ctx context.Context, viewer *models.User, id int64, ip string) (*models.MediaItem, *os.File, error) {
	item, err := s.Get(ctx, viewer.ID, id)
	if err != nil {
		return nil, nil, err
	}

	file, err := s.blobs.Open(item.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}

	download := &models.MediaDownload{
		MediaID:      id,
		UserID:       viewer.ID,
		DownloadedAt: time.Now().UTC(),
		IPAddress:    ip,
	}
	if err := s.repo.RecordDownload(ctx, download); err != nil {
		s.logger.Warn("failed to record download", zap.Int64("media_id", id), zap.Error(err))
	}
	return item, file, nil
}

// Thumbnail returns a bounded preview for the media item, serving from
// the on-disk cache when present. Placeholders are never cached so a
// later successful render can replace them.
func (s *MediaService) Thumbnail(ctx context.Context, viewerID, id int64, size string) ([]byte, string, error) {
	maxPx, ok := thumbnail.Sizes[size]
	if !ok {
		return nil, "", appErrors.Validation("size", "size must be sm, md or lg")
	}

	item, err := s.Get(ctx, viewerID, id)
	if err != nil {
		return nil, "", err
	}

	cacheRel := thumbnail.CachePath(id, size)
	if s.thumbs.Exists(cacheRel) {
		data, err := s.thumbs.Read(cacheRel)
		if err == nil {
			return data, "image/jpeg", nil
		}
		s.logger.Warn("failed to read cached thumbnail", zap.Int64("media_id", id), zap.Error(err))
	}

	result := s.previews.Generate(ctx, s.blobs.AbsolutePath(item.FilePath), item.MimeType, maxPx)
	if !result.Placeholder {
		if err := s.thumbs.Put(cacheRel, result.Data); err != nil {
			s.logger.Warn("failed to cache thumbnail", zap.Int64("media_id", id), zap.Error(err))
		}
	}
	return result.Data, result.ContentType, nil
}

// Downloads returns the latest download audit rows. Uploader or admin only.
func (s *MediaService) Downloads(ctx context.Context, actor *models.User, id int64, limit int) ([]models.MediaDownload, error) {
	if _, err := s.getManaged(ctx, actor, id); err != nil {
		return nil, err
	}
	downloads, err := s.repo.ListDownloads(ctx, id, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list downloads")
	}
	return downloads, nil
}

func (s *MediaService) getManaged(ctx context.Context, actor *models.User, id int64) (*models.MediaItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media")
	}
	if actor.Role != models.RoleAdmin && item.UploaderUserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the uploader or an admin may manage this media")
	}
	return item, nil
}

func (s *MediaService) resolveTargets(ctx context.Context, scope models.Scope, inputs []models.TargetInput) ([]models.Target, error) {
	if !models.ValidScope(scope) {
		return nil, appErrors.Validation("scope", "scope must be all, groups or users")
	}
	if scope == models.ScopeAll {
		if len(inputs) > 0 {
			return nil, appErrors.Validation("targets", "targets are not allowed for scope all")
		}
		return nil, nil
	}
	if len(inputs) == 0 {
		return nil, appErrors.Validation("targets", "at least one target is required for this scope")
	}

	targets := make([]models.Target, 0, len(inputs))
	for _, in := range inputs {
		target, err := in.Resolve()
		if err != nil {
			return nil, err
		}
		switch scope {
		case models.ScopeGroups:
			if target.TargetType != models.TargetTypeGroup {
				return nil, appErrors.Validation("targets", "groups scope accepts group targets only")
			}
		case models.ScopeUsers:
			if target.TargetType != models.TargetTypeUser {
				return nil, appErrors.Validation("targets", "users scope accepts user targets only")
			}
		}
		switch target.TargetType {
		case models.TargetTypeGroup:
			if _, err := s.groups.GetByID(ctx, *target.GroupID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Validation("group_id", "target group does not exist")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target group")
			}
		case models.TargetTypeUser:
			if _, err := s.users.FindByID(ctx, *target.UserID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Validation("user_id", "target user does not exist")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target user")
			}
		}
		targets = append(targets, target)
	}
	return models.DedupTargets(targets), nil
}
