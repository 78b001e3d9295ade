package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aulalink/aulalink-api/internal/models"
)

// MediaRepository provides persistence for shared media items, their
// targets and the append-only download audit trail.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository creates the repository.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

const mediaColumns = `m.id, m.uploader_user_id, m.title, m.description, m.file_path, m.mime_type, m.file_size_bytes, m.checksum_sha256, m.scope, m.created_at, m.updated_at`

// List returns media items visible to the viewer, newest first.
func (r *MediaRepository) List(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, int, error) {
	base := "FROM media_items m"
	var where []string
	var args []interface{}

	args = append(args, filter.ViewerID)
	where = append(where, visibleClause("m", "media_targets", "media_id", "uploader_user_id", 1))

	if term := strings.TrimSpace(filter.Search); term != "" {
		_, like := searchTerms(term)
		where = append(where, fmt.Sprintf("(m.title ILIKE $%d OR m.description ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, like)
	}

	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 15
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s
ORDER BY m.created_at DESC, m.id DESC
LIMIT %d OFFSET %d`, mediaColumns, base, whereClause, size, (page-1)*size)
	var items []models.MediaItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count media: %w", err)
	}
	return items, total, nil
}

// GetByID returns a media item with its targets loaded.
func (r *MediaRepository) GetByID(ctx context.Context, id int64) (*models.MediaItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM media_items m WHERE m.id = $1`, mediaColumns)
	var item models.MediaItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get media item: %w", err)
	}

	targets, err := r.ListTargets(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Targets = targets
	return &item, nil
}

// IsVisible reports whether the media item is in the viewer's visible set.
func (r *MediaRepository) IsVisible(ctx context.Context, viewerID, mediaID int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM media_items m WHERE m.id = $2 AND %s)`,
		visibleClause("m", "media_targets", "media_id", "uploader_user_id", 1))
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, viewerID, mediaID); err != nil {
		return false, fmt.Errorf("check media visibility: %w", err)
	}
	return ok, nil
}

// Create inserts the media item and its targets in one transaction.
func (r *MediaRepository) Create(ctx context.Context, item *models.MediaItem, targets []models.Target) (err error) {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin media transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO media_items (uploader_user_id, title, description, file_path, mime_type, file_size_bytes, checksum_sha256, scope, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if err = tx.GetContext(ctx, &item.ID, insertQuery,
		item.UploaderUserID, item.Title, item.Description, item.FilePath, item.MimeType,
		item.FileSizeBytes, item.ChecksumSHA256, item.Scope, item.CreatedAt, item.UpdatedAt); err != nil {
		return fmt.Errorf("insert media item: %w", err)
	}

	if err = insertMediaTargets(ctx, tx, item.ID, targets, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit media item: %w", err)
	}
	return nil
}

// Update modifies the media row and, when resync is set, replaces the
// target list, all in one transaction.
func (r *MediaRepository) Update(ctx context.Context, item *models.MediaItem, resync bool, targets []models.Target) (err error) {
	item.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin media transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE media_items SET title = $2, description = $3, file_path = $4, mime_type = $5,
file_size_bytes = $6, checksum_sha256 = $7, scope = $8, updated_at = $9 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery,
		item.ID, item.Title, item.Description, item.FilePath, item.MimeType,
		item.FileSizeBytes, item.ChecksumSHA256, item.Scope, item.UpdatedAt); err != nil {
		return fmt.Errorf("update media item: %w", err)
	}

	if resync {
		if _, err = tx.ExecContext(ctx, `DELETE FROM media_targets WHERE media_id = $1`, item.ID); err != nil {
			return fmt.Errorf("clear media targets: %w", err)
		}
		if err = insertMediaTargets(ctx, tx, item.ID, targets, item.UpdatedAt); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit media item: %w", err)
	}
	return nil
}

// Delete removes the media row; targets and downloads cascade.
func (r *MediaRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM media_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete media item: %w", err)
	}
	return nil
}

// ListTargets returns the explicit targets of a media item.
func (r *MediaRepository) ListTargets(ctx context.Context, mediaID int64) ([]models.MediaTarget, error) {
	const query = `SELECT id, media_id, target_type, group_id, user_id, created_at, updated_at FROM media_targets WHERE media_id = $1 ORDER BY id`
	var targets []models.MediaTarget
	if err := r.db.SelectContext(ctx, &targets, query, mediaID); err != nil {
		return nil, fmt.Errorf("list media targets: %w", err)
	}
	return targets, nil
}

// RecordDownload appends a download audit row.
func (r *MediaRepository) RecordDownload(ctx context.Context, download *models.MediaDownload) error {
	const query = `INSERT INTO media_downloads (media_id, user_id, downloaded_at, ip_address)
VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.GetContext(ctx, &download.ID, query,
		download.MediaID, download.UserID, download.DownloadedAt, download.IPAddress); err != nil {
		return fmt.Errorf("record media download: %w", err)
	}
	return nil
}

// ListDownloads returns the most recent download audit rows.
func (r *MediaRepository) ListDownloads(ctx context.Context, mediaID int64, limit int) ([]models.MediaDownload, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT id, media_id, user_id, downloaded_at, ip_address
FROM media_downloads WHERE media_id = $1 ORDER BY downloaded_at DESC, id DESC LIMIT %d`, limit)
	var downloads []models.MediaDownload
	if err := r.db.SelectContext(ctx, &downloads, query, mediaID); err != nil {
		return nil, fmt.Errorf("list media downloads: %w", err)
	}
	return downloads, nil
}

func insertMediaTargets(ctx context.Context, tx *sqlx.Tx, mediaID int64, targets []models.Target, at time.Time) error {
	const query = `INSERT INTO media_targets (media_id, target_type, group_id, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`
	for _, t := range targets {
		if _, err := tx.ExecContext(ctx, query, mediaID, t.TargetType, t.GroupID, t.UserID, at); err != nil {
			return fmt.Errorf("insert media target: %w", err)
		}
	}
	return nil
}
