package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aulalink/aulalink-api/internal/models"
)

// ThreadRepository provides persistence for messaging threads, their
// participants, messages and per-user read receipts.
type ThreadRepository struct {
	db *sqlx.DB
}

// NewThreadRepository creates the repository.
func NewThreadRepository(db *sqlx.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// Create inserts the thread, its participant rows and, when message is
// non-nil, the opening message plus the sender's own read receipt, all
// in one transaction. The sender must be included in participantIDs.
func (r *ThreadRepository) Create(ctx context.Context, thread *models.Thread, participantIDs []int64, message *models.Message) (err error) {
	now := time.Now().UTC()
	thread.CreatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin thread transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertThread = `INSERT INTO threads (subject, is_one_to_one, created_at) VALUES ($1, $2, $3) RETURNING id`
	if err = tx.GetContext(ctx, &thread.ID, insertThread, thread.Subject, thread.IsOneToOne, thread.CreatedAt); err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}

	const insertParticipant = `INSERT INTO thread_participants (thread_id, user_id, joined_at) VALUES ($1, $2, $3)`
	for _, userID := range participantIDs {
		if _, err = tx.ExecContext(ctx, insertParticipant, thread.ID, userID, now); err != nil {
			return fmt.Errorf("insert thread participant: %w", err)
		}
	}

	if message != nil {
		message.ThreadID = thread.ID
		if err = insertMessageTx(ctx, tx, message); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit thread: %w", err)
	}
	return nil
}

// FindOneToOne returns the existing direct thread between the two users,
// or sql.ErrNoRows when none exists. Matching requires both users to be
// participants and the thread to have exactly two.
func (r *ThreadRepository) FindOneToOne(ctx context.Context, userA, userB int64) (*models.Thread, error) {
	const query = `SELECT th.id, th.subject, th.is_one_to_one, th.created_at
FROM threads th
WHERE th.is_one_to_one = TRUE
  AND EXISTS (SELECT 1 FROM thread_participants tp WHERE tp.thread_id = th.id AND tp.user_id = $1)
  AND EXISTS (SELECT 1 FROM thread_participants tp WHERE tp.thread_id = th.id AND tp.user_id = $2)
  AND (SELECT COUNT(*) FROM thread_participants tp WHERE tp.thread_id = th.id) = 2
ORDER BY th.id
LIMIT 1`
	var thread models.Thread
	if err := r.db.GetContext(ctx, &thread, query, userA, userB); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find direct thread: %w", err)
	}
	return &thread, nil
}

// GetByID returns a thread with its participants loaded.
func (r *ThreadRepository) GetByID(ctx context.Context, id int64) (*models.Thread, error) {
	const query = `SELECT id, subject, is_one_to_one, created_at FROM threads WHERE id = $1`
	var thread models.Thread
	if err := r.db.GetContext(ctx, &thread, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}

	const participantsQuery = `SELECT u.id, u.name, u.role, u.avatar_path
FROM thread_participants tp
JOIN users u ON u.id = tp.user_id
WHERE tp.thread_id = $1
ORDER BY u.name, u.id`
	if err := r.db.SelectContext(ctx, &thread.Participants, participantsQuery, id); err != nil {
		return nil, fmt.Errorf("list thread participants: %w", err)
	}
	return &thread, nil
}

// IsParticipant reports whether the user belongs to the thread.
func (r *ThreadRepository) IsParticipant(ctx context.Context, threadID, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM thread_participants WHERE thread_id = $1 AND user_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, threadID, userID); err != nil {
		return false, fmt.Errorf("check thread participant: %w", err)
	}
	return ok, nil
}

// ParticipantIDs returns the user ids in the thread.
func (r *ThreadRepository) ParticipantIDs(ctx context.Context, threadID int64) ([]int64, error) {
	const query = `SELECT user_id FROM thread_participants WHERE thread_id = $1 ORDER BY user_id`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, threadID); err != nil {
		return nil, fmt.Errorf("list participant ids: %w", err)
	}
	return ids, nil
}

type threadSummaryRow struct {
	ID           int64      `db:"id"`
	Subject      *string    `db:"subject"`
	IsOneToOne   bool       `db:"is_one_to_one"`
	CreatedAt    time.Time  `db:"created_at"`
	MsgID        *int64     `db:"msg_id"`
	MsgSenderID  *int64     `db:"msg_sender_id"`
	MsgBody      *string    `db:"msg_body"`
	MsgCreatedAt *time.Time `db:"msg_created_at"`
}

// ListForUser returns the user's threads ordered by latest activity,
// each with its most recent message when one exists.
func (r *ThreadRepository) ListForUser(ctx context.Context, userID int64, page, pageSize int) ([]models.ThreadSummary, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf(`SELECT th.id, th.subject, th.is_one_to_one, th.created_at,
lm.id AS msg_id, lm.sender_user_id AS msg_sender_id, lm.body_md AS msg_body, lm.created_at AS msg_created_at
FROM threads th
JOIN thread_participants tp ON tp.thread_id = th.id AND tp.user_id = $1
LEFT JOIN LATERAL (
	SELECT m.id, m.sender_user_id, m.body_md, m.created_at
	FROM messages m WHERE m.thread_id = th.id
	ORDER BY m.created_at DESC, m.id DESC LIMIT 1
) lm ON TRUE
ORDER BY lm.created_at DESC NULLS LAST, th.id DESC
LIMIT %d OFFSET %d`, pageSize, (page-1)*pageSize)

	var rows []threadSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, 0, fmt.Errorf("list threads: %w", err)
	}

	summaries := make([]models.ThreadSummary, 0, len(rows))
	for _, row := range rows {
		summary := models.ThreadSummary{
			Thread: models.Thread{
				ID:         row.ID,
				Subject:    row.Subject,
				IsOneToOne: row.IsOneToOne,
				CreatedAt:  row.CreatedAt,
			},
		}
		if row.MsgID != nil {
			summary.LastMessage = &models.Message{
				ID:           *row.MsgID,
				ThreadID:     row.ID,
				SenderUserID: *row.MsgSenderID,
				BodyMD:       *row.MsgBody,
				CreatedAt:    *row.MsgCreatedAt,
			}
		}
		summaries = append(summaries, summary)
	}

	const countQuery = `SELECT COUNT(*) FROM thread_participants WHERE user_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count threads: %w", err)
	}
	return summaries, total, nil
}

// ListMessages returns the thread's messages in chronological order with
// sender details attached.
func (r *ThreadRepository) ListMessages(ctx context.Context, threadID int64, page, pageSize int) ([]models.Message, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	type messageRow struct {
		models.Message
		SenderName   string  `db:"sender_name"`
		SenderRole   string  `db:"sender_role"`
		SenderAvatar *string `db:"sender_avatar"`
	}

	query := fmt.Sprintf(`SELECT m.id, m.thread_id, m.sender_user_id, m.body_md, m.created_at,
u.name AS sender_name, u.role AS sender_role, u.avatar_path AS sender_avatar
FROM messages m
JOIN users u ON u.id = m.sender_user_id
WHERE m.thread_id = $1
ORDER BY m.created_at ASC, m.id ASC
LIMIT %d OFFSET %d`, pageSize, (page-1)*pageSize)

	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, threadID); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msg := row.Message
		msg.Sender = &models.UserRef{
			ID:         row.SenderUserID,
			Name:       row.SenderName,
			Role:       models.UserRole(row.SenderRole),
			AvatarPath: row.SenderAvatar,
		}
		messages = append(messages, msg)
	}

	const countQuery = `SELECT COUNT(*) FROM messages WHERE thread_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, threadID); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	return messages, total, nil
}

// InsertMessage appends a message and the sender's own read receipt in
// one transaction, so the sender never sees their own message as unread.
func (r *ThreadRepository) InsertMessage(ctx context.Context, message *models.Message) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertMessageTx(ctx, tx, message); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func insertMessageTx(ctx context.Context, tx *sqlx.Tx, message *models.Message) error {
	message.CreatedAt = time.Now().UTC()

	const insertQuery = `INSERT INTO messages (thread_id, sender_user_id, body_md, created_at)
VALUES ($1, $2, $3, $4) RETURNING id`
	if err := tx.GetContext(ctx, &message.ID, insertQuery,
		message.ThreadID, message.SenderUserID, message.BodyMD, message.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	const selfRead = `INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, selfRead, message.ID, message.SenderUserID, message.CreatedAt); err != nil {
		return fmt.Errorf("insert sender read receipt: %w", err)
	}
	return nil
}

// MarkRead inserts read receipts for every message in the thread the
// user has not yet read, skipping their own messages. Returns the number
// of messages newly marked. Idempotent via the composite primary key.
func (r *ThreadRepository) MarkRead(ctx context.Context, threadID, userID int64) (int, error) {
	const query = `INSERT INTO message_reads (message_id, user_id, read_at)
SELECT m.id, $2, $3
FROM messages m
LEFT JOIN message_reads mr ON mr.message_id = m.id AND mr.user_id = $2
WHERE m.thread_id = $1 AND m.sender_user_id <> $2 AND mr.message_id IS NULL
ON CONFLICT (message_id, user_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, threadID, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark thread read: %w", err)
	}
	marked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark thread read: %w", err)
	}
	return int(marked), nil
}

// UnreadCount returns how many messages the user has not read in the
// given thread.
func (r *ThreadRepository) UnreadCount(ctx context.Context, threadID, userID int64) (int, error) {
	const query = `SELECT COUNT(*)
FROM messages m
LEFT JOIN message_reads mr ON mr.message_id = m.id AND mr.user_id = $2
WHERE m.thread_id = $1 AND m.sender_user_id <> $2 AND mr.message_id IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, threadID, userID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}

// UnreadSummary aggregates unread counts across all the user's threads.
// Threads with no unread messages are omitted.
func (r *ThreadRepository) UnreadSummary(ctx context.Context, userID int64) (*models.UnreadSummary, error) {
	const query = `SELECT m.thread_id, COUNT(*) AS unread_count, MAX(m.created_at) AS last_unread_at
FROM thread_participants tp
JOIN messages m ON m.thread_id = tp.thread_id
LEFT JOIN message_reads mr ON mr.message_id = m.id AND mr.user_id = $1
WHERE tp.user_id = $1 AND m.sender_user_id <> $1 AND mr.message_id IS NULL
GROUP BY m.thread_id
ORDER BY last_unread_at DESC`
	var threads []models.ThreadUnread
	if err := r.db.SelectContext(ctx, &threads, query, userID); err != nil {
		return nil, fmt.Errorf("unread summary: %w", err)
	}

	summary := &models.UnreadSummary{Threads: threads}
	for _, t := range threads {
		summary.Total += t.UnreadCount
	}
	return summary, nil
}
