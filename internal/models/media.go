package models

import "time"

// MediaItem represents a shared file with scoped visibility.
type MediaItem struct {
	ID             int64     `db:"id" json:"id"`
	UploaderUserID int64     `db:"uploader_user_id" json:"uploader_user_id"`
	Title          string    `db:"title" json:"title"`
	Description    *string   `db:"description" json:"description,omitempty"`
	FilePath       string    `db:"file_path" json:"file_path"`
	MimeType       string    `db:"mime_type" json:"mime_type"`
	FileSizeBytes  int64     `db:"file_size_bytes" json:"file_size_bytes"`
	ChecksumSHA256 string    `db:"checksum_sha256" json:"checksum_sha256"`
	Scope          Scope     `db:"scope" json:"scope"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	Targets []MediaTarget `db:"-" json:"targets,omitempty"`
}

// MediaTarget attaches an explicit recipient to a media item.
type MediaTarget struct {
	ID        int64     `db:"id" json:"id"`
	MediaID   int64     `db:"media_id" json:"media_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	Target
}

// MediaDownload is an append-only download audit row, never mutated.
type MediaDownload struct {
	ID           int64     `db:"id" json:"id"`
	MediaID      int64     `db:"media_id" json:"media_id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at"`
	IPAddress    string    `db:"ip_address" json:"ip_address"`
}

// CreateMediaRequest carries the metadata half of a multipart upload.
type CreateMediaRequest struct {
	Title       string        `json:"title" validate:"required,max=200"`
	Description *string       `json:"description"`
	Scope       string        `json:"scope" validate:"required,oneof=all groups users"`
	Targets     []TargetInput `json:"targets" validate:"dive"`
}

// UpdateMediaRequest edits media metadata. A non-nil Targets replaces
// the full target list; the stored blob itself is immutable.
type UpdateMediaRequest struct {
	Title       *string        `json:"title" validate:"omitempty,max=200"`
	Description *string        `json:"description"`
	Scope       *string        `json:"scope" validate:"omitempty,oneof=all groups users"`
	Targets     *[]TargetInput `json:"targets" validate:"omitempty,dive"`
}

// MediaFilter captures listing criteria for media items.
type MediaFilter struct {
	ViewerID int64
	Search   string
	Page     int
	PageSize int
}
