package models

import "time"

// Thread represents a message thread. Liveness is implicit from message
// existence; there is no status column.
type Thread struct {
	ID         int64     `db:"id" json:"id"`
	Subject    *string   `db:"subject" json:"subject,omitempty"`
	IsOneToOne bool      `db:"is_one_to_one" json:"is_one_to_one"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	Participants []UserRef `db:"-" json:"participants,omitempty"`
}

// Message represents a single message inside a thread.
type Message struct {
	ID           int64     `db:"id" json:"id"`
	ThreadID     int64     `db:"thread_id" json:"thread_id"`
	SenderUserID int64     `db:"sender_user_id" json:"sender_user_id"`
	BodyMD       string    `db:"body_md" json:"body_md"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	Sender *UserRef `db:"-" json:"sender,omitempty"`
}

// MessageRead is a per-(message, user) read receipt.
type MessageRead struct {
	MessageID int64     `db:"message_id" json:"message_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// ThreadSummary annotates a thread with its most recent message for
// inbox listings.
type ThreadSummary struct {
	Thread
	LastMessage *Message `db:"-" json:"last_message,omitempty"`
}

// ThreadUnread is one row of the per-thread unread aggregation.
type ThreadUnread struct {
	ThreadID     int64     `db:"thread_id" json:"thread_id"`
	UnreadCount  int       `db:"unread_count" json:"unread_count"`
	LastUnreadAt time.Time `db:"last_unread_at" json:"last_unread_at"`
}

// CreateThreadRequest opens a conversation. A direct thread requires
// exactly one recipient and is deduplicated against an existing pair
// thread; anything else is a group thread, which may also hold just two
// people. The first message is optional.
type CreateThreadRequest struct {
	Subject      *string `json:"subject" validate:"omitempty,max=200"`
	RecipientIDs []int64 `json:"recipient_ids" validate:"required,min=1,dive,gt=0"`
	IsOneToOne   bool    `json:"is_one_to_one"`
	BodyMD       string  `json:"body_md" validate:"omitempty"`
}

// SendMessageRequest appends a message to an existing thread.
type SendMessageRequest struct {
	BodyMD string `json:"body_md" validate:"required"`
}

// UnreadSummary groups unread counts by thread plus the global total.
type UnreadSummary struct {
	Threads []ThreadUnread `json:"data"`
	Total   int            `json:"total"`
}
