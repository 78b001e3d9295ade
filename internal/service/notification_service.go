package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateBatch(ctx context.Context, userIDs []int64, notifType string, payload []byte) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	GetByID(ctx context.Context, id int64) (*models.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int, error)
	Delete(ctx context.Context, id, userID int64) error
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

// NotificationService provides the per-user notification ledger plus a
// short-lived Redis cache for the unread badge count.
type NotificationService struct {
	repo     notificationRepository
	redis    *redis.Client
	badgeTTL time.Duration
	logger   *zap.Logger
}

// NewNotificationService constructs a NotificationService instance. The
// Redis client is optional; without it every badge read hits Postgres.
func NewNotificationService(repo notificationRepository, redisClient *redis.Client, badgeTTL time.Duration, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if badgeTTL <= 0 {
		badgeTTL = 30 * time.Second
	}
	return &NotificationService{repo: repo, redis: redisClient, badgeTTL: badgeTTL, logger: logger}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, paginationFor(filter.Page, filter.PageSize, total, 20), nil
}

// Get returns one notification. Owner only; anyone else is refused.
func (s *NotificationService) Get(ctx context.Context, userID, id int64) (*models.Notification, error) {
	n, err := s.requireOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	if _, err := s.requireOwned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, id, userID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	s.invalidateBadge(ctx, userID)
	return nil
}

// MarkAllRead flags every unread notification as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	marked, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.invalidateBadge(ctx, userID)
	return marked, nil
}

// Delete removes one notification from the ledger.
func (s *NotificationService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.requireOwned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	s.invalidateBadge(ctx, userID)
	return nil
}

// requireOwned loads the notification and enforces the ownership gate:
// missing rows answer not-found, someone else's rows answer forbidden.
func (s *NotificationService) requireOwned(ctx context.Context, userID, id int64) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if n.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this notification belongs to another user")
	}
	return n, nil
}

// UnreadCount returns the badge count, served from Redis within the TTL
// window and recomputed from Postgres on a miss.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	key := badgeKey(userID)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			if count, convErr := strconv.Atoi(cached); convErr == nil {
				return count, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("badge cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, strconv.Itoa(count), s.badgeTTL).Err(); err != nil {
			s.logger.Warn("badge cache write failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return count, nil
}

// NotifyUsers appends one ledger row per recipient and invalidates their
// cached badge counts. Used by the background fan-out handlers.
func (s *NotificationService) NotifyUsers(ctx context.Context, userIDs []int64, notifType string, payload interface{}) error {
	if len(userIDs) == 0 {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	if err := s.repo.CreateBatch(ctx, userIDs, notifType, body); err != nil {
		return err
	}
	for _, id := range userIDs {
		s.invalidateBadge(ctx, id)
	}
	return nil
}

func (s *NotificationService) invalidateBadge(ctx context.Context, userID int64) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, badgeKey(userID)).Err(); err != nil {
		s.logger.Warn("badge cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func badgeKey(userID int64) string {
	return fmt.Sprintf("notifications:badge:%d", userID)
}
