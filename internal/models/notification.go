package models

import (
	"encoding/json"
	"time"
)

// Notification types emitted by the system.
const (
	NotificationAnnouncementPublished = "announcement.published"
	NotificationMessageReceived       = "message.received"
)

// Notification is one row of the append-only per-user event log. Only
// the is_read flag ever changes after insert.
type Notification struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	Type      string          `db:"type" json:"type"`
	Payload   json.RawMessage `db:"payload_json" json:"payload_json"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// CreateNotificationRequest is the admin payload for pushing a
// notification to one or more users directly.
type CreateNotificationRequest struct {
	UserIDs []int64                `json:"user_ids" validate:"required,min=1,dive,gt=0"`
	Type    string                 `json:"type" validate:"required,max=80"`
	Payload map[string]interface{} `json:"payload"`
}

// NotificationFilter captures listing criteria for the ledger.
type NotificationFilter struct {
	UserID     int64
	UnreadOnly bool
	Type       string
	Page       int
	PageSize   int
}
