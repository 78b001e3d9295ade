package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
)

type threadRepository interface {
	Create(ctx context.Context, thread *models.Thread, participantIDs []int64, message *models.Message) error
	FindOneToOne(ctx context.Context, userA, userB int64) (*models.Thread, error)
	GetByID(ctx context.Context, id int64) (*models.Thread, error)
	IsParticipant(ctx context.Context, threadID, userID int64) (bool, error)
	ListForUser(ctx context.Context, userID int64, page, pageSize int) ([]models.ThreadSummary, int, error)
	ListMessages(ctx context.Context, threadID int64, page, pageSize int) ([]models.Message, int, error)
	InsertMessage(ctx context.Context, message *models.Message) error
	MarkRead(ctx context.Context, threadID, userID int64) (int, error)
	UnreadCount(ctx context.Context, threadID, userID int64) (int, error)
	UnreadSummary(ctx context.Context, userID int64) (*models.UnreadSummary, error)
}

// messageNotifier fans out a message-received notification to the other
// participants on a background queue.
type messageNotifier interface {
	MessageReceived(threadID, messageID, senderID int64)
}

// ThreadService provides direct messaging: thread creation with pair
// deduplication, message sending and read tracking.
type ThreadService struct {
	repo      threadRepository
	users     targetUserRepository
	notifier  messageNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewThreadService constructs a ThreadService instance.
func NewThreadService(repo threadRepository, users targetUserRepository, notifier messageNotifier, validate *validator.Validate, logger *zap.Logger) *ThreadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ThreadService{repo: repo, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Create opens a conversation, optionally sending a first message. A
// direct thread requires exactly one recipient and reuses the existing
// pair thread when one exists; a group thread may hold any number of
// recipients, two included.
func (s *ThreadService) Create(ctx context.Context, sender *models.User, req models.CreateThreadRequest) (*models.Thread, *models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.FromValidation(err)
	}

	recipients := make([]int64, 0, len(req.RecipientIDs))
	seen := map[int64]struct{}{sender.ID: {}}
	for _, id := range req.RecipientIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	if len(recipients) == 0 {
		return nil, nil, appErrors.Validation("recipient_ids", "at least one recipient other than yourself is required")
	}
	if req.IsOneToOne && len(recipients) != 1 {
		return nil, nil, appErrors.Validation("recipient_ids", "a direct thread has exactly two participants")
	}

	for _, id := range recipients {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.Validation("recipient_ids", "recipient does not exist")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check recipient")
		}
		if !user.Active {
			return nil, nil, appErrors.Validation("recipient_ids", "recipient account is inactive")
		}
	}

	if req.IsOneToOne {
		existing, err := s.repo.FindOneToOne(ctx, sender.ID, recipients[0])
		if err == nil {
			if req.BodyMD == "" {
				return existing, nil, nil
			}
			message, sendErr := s.Send(ctx, sender, existing.ID, models.SendMessageRequest{BodyMD: req.BodyMD})
			if sendErr != nil {
				return nil, nil, sendErr
			}
			return existing, message, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up direct thread")
		}
	}

	thread := &models.Thread{
		Subject:    req.Subject,
		IsOneToOne: req.IsOneToOne,
	}
	var message *models.Message
	if req.BodyMD != "" {
		message = &models.Message{SenderUserID: sender.ID, BodyMD: req.BodyMD}
	}
	participantIDs := append([]int64{sender.ID}, recipients...)

	if err := s.repo.Create(ctx, thread, participantIDs, message); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create thread")
	}

	if s.notifier != nil && message != nil {
		s.notifier.MessageReceived(thread.ID, message.ID, sender.ID)
	}
	return thread, message, nil
}

// List returns the user's threads ordered by latest activity.
func (s *ThreadService) List(ctx context.Context, userID int64, page, pageSize int) ([]models.ThreadSummary, *models.Pagination, error) {
	summaries, total, err := s.repo.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list threads")
	}
	return summaries, paginationFor(page, pageSize, total, 20), nil
}

// Get returns a thread with participants. Participants only; anyone
// else is refused outright.
func (s *ThreadService) Get(ctx context.Context, viewerID, threadID int64) (*models.Thread, error) {
	thread, err := s.repo.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thread not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thread")
	}
	ok, err := s.repo.IsParticipant(ctx, threadID, viewerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check participation")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not a participant in this thread")
	}
	return thread, nil
}

// Messages returns the thread's messages in chronological order.
func (s *ThreadService) Messages(ctx context.Context, viewerID, threadID int64, page, pageSize int) ([]models.Message, *models.Pagination, error) {
	if err := s.requireParticipant(ctx, threadID, viewerID); err != nil {
		return nil, nil, err
	}
	messages, total, err := s.repo.ListMessages(ctx, threadID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, paginationFor(page, pageSize, total, 50), nil
}

// Send appends a message to an existing thread.
func (s *ThreadService) Send(ctx context.Context, sender *models.User, threadID int64, req models.SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}
	if err := s.requireParticipant(ctx, threadID, sender.ID); err != nil {
		return nil, err
	}

	message := &models.Message{ThreadID: threadID, SenderUserID: sender.ID, BodyMD: req.BodyMD}
	if err := s.repo.InsertMessage(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	if s.notifier != nil {
		s.notifier.MessageReceived(threadID, message.ID, sender.ID)
	}
	return message, nil
}

// MarkRead records read receipts for everything unread in the thread and
// returns how many messages were newly marked.
func (s *ThreadService) MarkRead(ctx context.Context, viewerID, threadID int64) (int, error) {
	if err := s.requireParticipant(ctx, threadID, viewerID); err != nil {
		return 0, err
	}
	marked, err := s.repo.MarkRead(ctx, threadID, viewerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark thread read")
	}
	return marked, nil
}

// Unread aggregates unread counts across the user's threads, or for a
// single thread when threadID is set.
func (s *ThreadService) Unread(ctx context.Context, userID int64, threadID *int64) (*models.UnreadSummary, error) {
	if threadID != nil {
		if err := s.requireParticipant(ctx, *threadID, userID); err != nil {
			return nil, err
		}
		count, err := s.repo.UnreadCount(ctx, *threadID, userID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread messages")
		}
		summary := &models.UnreadSummary{Total: count}
		if count > 0 {
			summary.Threads = []models.ThreadUnread{{ThreadID: *threadID, UnreadCount: count}}
		}
		return summary, nil
	}
	summary, err := s.repo.UnreadSummary(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unread summary")
	}
	return summary, nil
}

// requireParticipant answers not-found for a missing thread and
// forbidden for a user outside an existing one.
func (s *ThreadService) requireParticipant(ctx context.Context, threadID, userID int64) error {
	if _, err := s.repo.GetByID(ctx, threadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "thread not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thread")
	}
	ok, err := s.repo.IsParticipant(ctx, threadID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check participation")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not a participant in this thread")
	}
	return nil
}
