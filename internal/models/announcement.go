package models

import "time"

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID           int64      `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	BodyMD       string     `db:"body_md" json:"body_md"`
	AuthorUserID int64      `db:"author_user_id" json:"author_user_id"`
	Scope        Scope      `db:"scope" json:"scope"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
	IsArchived   bool       `db:"is_archived" json:"is_archived"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	Targets []AnnouncementTarget `db:"-" json:"targets,omitempty"`
	Reads   []AnnouncementRead   `db:"-" json:"reads,omitempty"`
}

// AnnouncementTarget attaches an explicit recipient to an announcement.
type AnnouncementTarget struct {
	ID             int64 `db:"id" json:"id"`
	AnnouncementID int64 `db:"announcement_id" json:"announcement_id"`
	Target
}

// AnnouncementRead is a per-(announcement, user) read receipt.
type AnnouncementRead struct {
	AnnouncementID int64     `db:"announcement_id" json:"announcement_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	ReadAt         time.Time `db:"read_at" json:"read_at"`
}

// CreateAnnouncementRequest is the payload for drafting an announcement.
// Targets are required for groups/users scopes and rejected for all.
type CreateAnnouncementRequest struct {
	Title   string        `json:"title" validate:"required,max=200"`
	BodyMD  string        `json:"body_md" validate:"required"`
	Scope   string        `json:"scope" validate:"required,oneof=all groups users"`
	Targets []TargetInput `json:"targets" validate:"dive"`
	Publish bool          `json:"publish"`
}

// UpdateAnnouncementRequest edits a draft or published announcement.
// A non-nil Targets replaces the full target list.
type UpdateAnnouncementRequest struct {
	Title   *string        `json:"title" validate:"omitempty,max=200"`
	BodyMD  *string        `json:"body_md"`
	Scope   *string        `json:"scope" validate:"omitempty,oneof=all groups users"`
	Targets *[]TargetInput `json:"targets" validate:"omitempty,dive"`
}

// AnnouncementFilter captures listing criteria. ViewerID scopes results
// to what that user may see; AuthorUserID filters by author.
type AnnouncementFilter struct {
	ViewerID     int64
	Scope        *Scope
	AuthorUserID *int64
	Published    *bool
	Archived     *bool
	Search       string
	Page         int
	PageSize     int
}
