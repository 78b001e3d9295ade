package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aulalink/aulalink-api/internal/models"
	"github.com/aulalink/aulalink-api/pkg/jobs"
)

type dispatchAnnouncementRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Announcement, error)
	VisibleUserIDs(ctx context.Context, announcementID int64) ([]int64, error)
}

type dispatchThreadRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Thread, error)
	ParticipantIDs(ctx context.Context, threadID int64) ([]int64, error)
}

type dispatchNotifier interface {
	NotifyUsers(ctx context.Context, userIDs []int64, notifType string, payload interface{}) error
}

type announcementPublishedJob struct {
	AnnouncementID int64
}

type messageReceivedJob struct {
	ThreadID  int64
	MessageID int64
	SenderID  int64
}

// DispatchService fans notifications out on a background queue so
// publishing and sending stay fast regardless of audience size.
type DispatchService struct {
	announcements dispatchAnnouncementRepository
	threads       dispatchThreadRepository
	notifier      dispatchNotifier
	queue         *jobs.Queue
	logger        *zap.Logger
}

// NewDispatchService constructs the dispatcher and its queue. Call Start
// before enqueuing and Stop on shutdown.
func NewDispatchService(announcements dispatchAnnouncementRepository, threads dispatchThreadRepository, notifier dispatchNotifier, cfg jobs.QueueConfig, logger *zap.Logger) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DispatchService{
		announcements: announcements,
		threads:       threads,
		notifier:      notifier,
		logger:        logger,
	}
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *DispatchService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *DispatchService) Stop() {
	s.queue.Stop()
}

// AnnouncementPublished enqueues the publish fan-out.
func (s *DispatchService) AnnouncementPublished(announcementID int64) {
	s.enqueue(models.NotificationAnnouncementPublished, announcementPublishedJob{AnnouncementID: announcementID})
}

// MessageReceived enqueues the message fan-out.
func (s *DispatchService) MessageReceived(threadID, messageID, senderID int64) {
	s.enqueue(models.NotificationMessageReceived, messageReceivedJob{ThreadID: threadID, MessageID: messageID, SenderID: senderID})
}

func (s *DispatchService) enqueue(jobType string, payload interface{}) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
	if err != nil {
		s.logger.Error("failed to enqueue notification job", zap.String("type", jobType), zap.Error(err))
	}
}

func (s *DispatchService) handle(ctx context.Context, job jobs.Job) error {
	switch payload := job.Payload.(type) {
	case announcementPublishedJob:
		return s.fanOutAnnouncement(ctx, payload)
	case messageReceivedJob:
		return s.fanOutMessage(ctx, payload)
	default:
		s.logger.Warn("unknown notification job payload", zap.String("type", job.Type))
		return nil
	}
}

func (s *DispatchService) fanOutAnnouncement(ctx context.Context, job announcementPublishedJob) error {
	announcement, err := s.announcements.GetByID(ctx, job.AnnouncementID)
	if err != nil {
		// Deleted before the job ran; nothing to deliver.
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load announcement %d: %w", job.AnnouncementID, err)
	}

	recipients, err := s.announcements.VisibleUserIDs(ctx, job.AnnouncementID)
	if err != nil {
		return fmt.Errorf("resolve announcement audience: %w", err)
	}

	// Authors do not notify themselves.
	recipients = exclude(recipients, announcement.AuthorUserID)
	if len(recipients) == 0 {
		return nil
	}

	payload := map[string]interface{}{
		"announcement_id": announcement.ID,
		"title":           announcement.Title,
		"author_user_id":  announcement.AuthorUserID,
	}
	if err := s.notifier.NotifyUsers(ctx, recipients, models.NotificationAnnouncementPublished, payload); err != nil {
		return fmt.Errorf("deliver announcement notifications: %w", err)
	}
	s.logger.Info("announcement notifications delivered",
		zap.Int64("announcement_id", announcement.ID), zap.Int("recipients", len(recipients)))
	return nil
}

func (s *DispatchService) fanOutMessage(ctx context.Context, job messageReceivedJob) error {
	thread, err := s.threads.GetByID(ctx, job.ThreadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load thread %d: %w", job.ThreadID, err)
	}

	participants, err := s.threads.ParticipantIDs(ctx, job.ThreadID)
	if err != nil {
		return fmt.Errorf("resolve thread participants: %w", err)
	}

	recipients := exclude(participants, job.SenderID)
	if len(recipients) == 0 {
		return nil
	}

	payload := map[string]interface{}{
		"thread_id":      thread.ID,
		"message_id":     job.MessageID,
		"sender_user_id": job.SenderID,
	}
	if err := s.notifier.NotifyUsers(ctx, recipients, models.NotificationMessageReceived, payload); err != nil {
		return fmt.Errorf("deliver message notifications: %w", err)
	}
	return nil
}

func exclude(ids []int64, drop int64) []int64 {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
