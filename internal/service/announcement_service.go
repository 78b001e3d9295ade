package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id int64) (*models.Announcement, error)
	IsVisible(ctx context.Context, viewerID, announcementID int64) (bool, error)
	Create(ctx context.Context, announcement *models.Announcement, targets []models.Target) error
	Update(ctx context.Context, announcement *models.Announcement, resync bool, targets []models.Target) error
	Delete(ctx context.Context, id int64) error
	Publish(ctx context.Context, id int64, at time.Time) error
	Archive(ctx context.Context, id int64) error
	MarkRead(ctx context.Context, announcementID, userID int64, at time.Time) error
	AddTarget(ctx context.Context, announcementID int64, target models.Target) (*models.AnnouncementTarget, error)
	DeleteTarget(ctx context.Context, announcementID, targetID int64) error
}

type targetGroupRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Group, error)
}

type targetUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// announcementNotifier fans out notifications after a publish; the
// delivery itself happens on a background queue.
type announcementNotifier interface {
	AnnouncementPublished(announcementID int64)
}

// AnnouncementService provides the announcement lifecycle: draft, edit,
// target, publish, archive, read tracking.
type AnnouncementService struct {
	repo      announcementRepository
	groups    targetGroupRepository
	users     targetUserRepository
	notifier  announcementNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs an AnnouncementService instance.
func NewAnnouncementService(repo announcementRepository, groups targetGroupRepository, users targetUserRepository, notifier announcementNotifier, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnnouncementService{repo: repo, groups: groups, users: users, notifier: notifier, validator: validate, logger: logger}
}

// List returns announcements visible to the viewer.
func (s *AnnouncementService) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, *models.Pagination, error) {
	announcements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, paginationFor(filter.Page, filter.PageSize, total, 15), nil
}

// Get returns an announcement if the viewer may see it. Hidden items
// answer not-found rather than forbidden to avoid existence leaks.
func (s *AnnouncementService) Get(ctx context.Context, viewerID, id int64) (*models.Announcement, error) {
	visible, err := s.repo.IsVisible(ctx, viewerID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check visibility")
	}
	if !visible {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

// Create drafts an announcement, optionally publishing it immediately.
func (s *AnnouncementService) Create(ctx context.Context, author *models.User, req models.CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}
	if author.Role == models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parents cannot create announcements")
	}

	scope := models.Scope(req.Scope)
	targets, err := s.resolveTargets(ctx, scope, req.Targets)
	if err != nil {
		return nil, err
	}

	announcement := &models.Announcement{
		Title:        req.Title,
		BodyMD:       req.BodyMD,
		AuthorUserID: author.ID,
		Scope:        scope,
	}
	if req.Publish {
		now := time.Now().UTC()
		announcement.PublishedAt = &now
	}

	if err := s.repo.Create(ctx, announcement, targets); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	if req.Publish && s.notifier != nil {
		s.notifier.AnnouncementPublished(announcement.ID)
	}
	return announcement, nil
}

// Update edits an announcement. Only the author or an admin may edit;
// a non-nil Targets replaces the target list.
func (s *AnnouncementService) Update(ctx context.Context, actor *models.User, id int64, req models.UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	announcement, err := s.getManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		announcement.Title = *req.Title
	}
	if req.BodyMD != nil {
		announcement.BodyMD = *req.BodyMD
	}
	if req.Scope != nil {
		announcement.Scope = models.Scope(*req.Scope)
	}

	resync := req.Targets != nil
	var targets []models.Target
	if resync {
		targets, err = s.resolveTargets(ctx, announcement.Scope, *req.Targets)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, announcement, resync, targets); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}

	if resync {
		updated, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload announcement")
		}
		return updated, nil
	}
	return announcement, nil
}

// Delete removes an announcement. Author or admin only.
func (s *AnnouncementService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if _, err := s.getManaged(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

// Publish stamps the publish time and fans out notifications to every
// user in the visible set. Publishing twice is rejected.
func (s *AnnouncementService) Publish(ctx context.Context, actor *models.User, id int64) (*models.Announcement, error) {
	announcement, err := s.getManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if announcement.PublishedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "announcement is already published")
	}

	now := time.Now().UTC()
	if err := s.repo.Publish(ctx, id, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish announcement")
	}
	announcement.PublishedAt = &now

	if s.notifier != nil {
		s.notifier.AnnouncementPublished(id)
	}
	return announcement, nil
}

// Archive hides the announcement from default listings without deleting
// its read history.
func (s *AnnouncementService) Archive(ctx context.Context, actor *models.User, id int64) error {
	if _, err := s.getManaged(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Archive(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive announcement")
	}
	return nil
}

// MarkRead records the viewer's read receipt. Only visible announcements
// can be acknowledged.
func (s *AnnouncementService) MarkRead(ctx context.Context, viewerID, id int64) error {
	visible, err := s.repo.IsVisible(ctx, viewerID, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check visibility")
	}
	if !visible {
		return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	if err := s.repo.MarkRead(ctx, id, viewerID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark read")
	}
	return nil
}

// AddTarget attaches one extra target to an existing announcement.
func (s *AnnouncementService) AddTarget(ctx context.Context, actor *models.User, id int64, input models.TargetInput) (*models.AnnouncementTarget, error) {
	if _, err := s.getManaged(ctx, actor, id); err != nil {
		return nil, err
	}
	target, err := input.Resolve()
	if err != nil {
		return nil, err
	}
	if err := s.checkTargetExists(ctx, target); err != nil {
		return nil, err
	}
	row, err := s.repo.AddTarget(ctx, id, target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add target")
	}
	return row, nil
}

// RemoveTarget detaches one target from the announcement.
func (s *AnnouncementService) RemoveTarget(ctx context.Context, actor *models.User, id, targetID int64) error {
	if _, err := s.getManaged(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.DeleteTarget(ctx, id, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "target not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove target")
	}
	return nil
}

// getManaged loads the announcement and enforces the author-or-admin
// management rule.
func (s *AnnouncementService) getManaged(ctx context.Context, actor *models.User, id int64) (*models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	if actor.Role != models.RoleAdmin && announcement.AuthorUserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author or an admin may manage this announcement")
	}
	return announcement, nil
}

// resolveTargets validates the scope/target combination, checks each
// referenced group and user exists, and deduplicates.
func (s *AnnouncementService) resolveTargets(ctx context.Context, scope models.Scope, inputs []models.TargetInput) ([]models.Target, error) {
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
		if err := s.checkTargetExists(ctx, target); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return models.DedupTargets(targets), nil
}

func (s *AnnouncementService) checkTargetExists(ctx context.Context, target models.Target) error {
	switch target.TargetType {
	case models.TargetTypeGroup:
		if _, err := s.groups.GetByID(ctx, *target.GroupID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Validation("group_id", "target group does not exist")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target group")
		}
	case models.TargetTypeUser:
		if _, err := s.users.FindByID(ctx, *target.UserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Validation("user_id", "target user does not exist")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target user")
		}
	}
	return nil
}
