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

// AnnouncementRepository provides persistence for announcements, their
// explicit targets and per-user read receipts.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

const announcementColumns = `a.id, a.title, a.body_md, a.author_user_id, a.scope, a.published_at, a.is_archived, a.created_at, a.updated_at`

// List returns announcements matching the filter, restricted to what the
// viewer may see. Visibility is evaluated in SQL, not per row in memory.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	base := "FROM announcements a"
	var where []string
	var args []interface{}

	args = append(args, filter.ViewerID)
	where = append(where, visibleClause("a", "announcement_targets", "announcement_id", "author_user_id", 1))

	if filter.Scope != nil {
		where = append(where, fmt.Sprintf("a.scope = $%d", len(args)+1))
		args = append(args, *filter.Scope)
	}
	if filter.AuthorUserID != nil {
		where = append(where, fmt.Sprintf("a.author_user_id = $%d", len(args)+1))
		args = append(args, *filter.AuthorUserID)
	}
	if filter.Published != nil {
		if *filter.Published {
			where = append(where, "a.published_at IS NOT NULL")
		} else {
			where = append(where, "a.published_at IS NULL")
		}
	}
	if filter.Archived != nil {
		where = append(where, fmt.Sprintf("a.is_archived = $%d", len(args)+1))
		args = append(args, *filter.Archived)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		tsquery, like := searchTerms(term)
		if tsquery != "" {
			where = append(where, fmt.Sprintf(
				"(to_tsvector('simple', a.title || ' ' || a.body_md) @@ to_tsquery('simple', $%d) OR a.title ILIKE $%d OR a.body_md ILIKE $%d)",
				len(args)+1, len(args)+2, len(args)+2))
			args = append(args, tsquery, like)
		} else {
			where = append(where, fmt.Sprintf("(a.title ILIKE $%d OR a.body_md ILIKE $%d)", len(args)+1, len(args)+1))
			args = append(args, like)
		}
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
ORDER BY a.published_at DESC NULLS LAST, a.id DESC
LIMIT %d OFFSET %d`, announcementColumns, base, whereClause, size, (page-1)*size)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// GetByID returns an announcement with its targets and reads loaded.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id int64) (*models.Announcement, error) {
	query := fmt.Sprintf(`SELECT %s FROM announcements a WHERE a.id = $1`, announcementColumns)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get announcement: %w", err)
	}

	targets, err := r.ListTargets(ctx, id)
	if err != nil {
		return nil, err
	}
	announcement.Targets = targets

	reads, err := r.ListReads(ctx, id)
	if err != nil {
		return nil, err
	}
	announcement.Reads = reads

	return &announcement, nil
}

// IsVisible reports whether the announcement is in the viewer's visible set.
func (r *AnnouncementRepository) IsVisible(ctx context.Context, viewerID, announcementID int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM announcements a WHERE a.id = $2 AND %s)`,
		visibleClause("a", "announcement_targets", "announcement_id", "author_user_id", 1))
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, viewerID, announcementID); err != nil {
		return false, fmt.Errorf("check announcement visibility: %w", err)
	}
	return ok, nil
}

// Create inserts the announcement and its targets in one transaction.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement, targets []models.Target) (err error) {
	now := time.Now().UTC()
	announcement.CreatedAt = now
	announcement.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin announcement transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO announcements (title, body_md, author_user_id, scope, published_at, is_archived, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err = tx.GetContext(ctx, &announcement.ID, insertQuery,
		announcement.Title, announcement.BodyMD, announcement.AuthorUserID, announcement.Scope,
		announcement.PublishedAt, announcement.IsArchived, announcement.CreatedAt, announcement.UpdatedAt); err != nil {
		return fmt.Errorf("insert announcement: %w", err)
	}

	const targetQuery = `INSERT INTO announcement_targets (announcement_id, target_type, group_id, user_id) VALUES ($1, $2, $3, $4)`
	for _, t := range targets {
		if _, err = tx.ExecContext(ctx, targetQuery, announcement.ID, t.TargetType, t.GroupID, t.UserID); err != nil {
			return fmt.Errorf("insert announcement target: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit announcement: %w", err)
	}
	return nil
}

// Update modifies the announcement row and, when resync is set, replaces
// the target list, all in one transaction.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement, resync bool, targets []models.Target) (err error) {
	announcement.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin announcement transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE announcements SET title = $2, body_md = $3, scope = $4, published_at = $5, is_archived = $6, updated_at = $7
WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery,
		announcement.ID, announcement.Title, announcement.BodyMD, announcement.Scope,
		announcement.PublishedAt, announcement.IsArchived, announcement.UpdatedAt); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}

	if resync {
		if _, err = tx.ExecContext(ctx, `DELETE FROM announcement_targets WHERE announcement_id = $1`, announcement.ID); err != nil {
			return fmt.Errorf("clear announcement targets: %w", err)
		}
		const targetQuery = `INSERT INTO announcement_targets (announcement_id, target_type, group_id, user_id) VALUES ($1, $2, $3, $4)`
		for _, t := range targets {
			if _, err = tx.ExecContext(ctx, targetQuery, announcement.ID, t.TargetType, t.GroupID, t.UserID); err != nil {
				return fmt.Errorf("insert announcement target: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit announcement: %w", err)
	}
	return nil
}

// Delete removes the announcement; targets and reads cascade.
func (r *AnnouncementRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return nil
}

// Publish stamps published_at.
func (r *AnnouncementRepository) Publish(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE announcements SET published_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("publish announcement: %w", err)
	}
	return nil
}

// Archive flips the archived flag.
func (r *AnnouncementRepository) Archive(ctx context.Context, id int64) error {
	const query = `UPDATE announcements SET is_archived = TRUE, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("archive announcement: %w", err)
	}
	return nil
}

// MarkRead upserts the (announcement, user) read receipt; re-reading
// refreshes the timestamp instead of duplicating the row.
func (r *AnnouncementRepository) MarkRead(ctx context.Context, announcementID, userID int64, at time.Time) error {
	const query = `INSERT INTO announcement_reads (announcement_id, user_id, read_at) VALUES ($1, $2, $3)
ON CONFLICT (announcement_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at`
	if _, err := r.db.ExecContext(ctx, query, announcementID, userID, at); err != nil {
		return fmt.Errorf("mark announcement read: %w", err)
	}
	return nil
}

// ListTargets returns the explicit targets of an announcement.
func (r *AnnouncementRepository) ListTargets(ctx context.Context, announcementID int64) ([]models.AnnouncementTarget, error) {
	const query = `SELECT id, announcement_id, target_type, group_id, user_id FROM announcement_targets WHERE announcement_id = $1 ORDER BY id`
	var targets []models.AnnouncementTarget
	if err := r.db.SelectContext(ctx, &targets, query, announcementID); err != nil {
		return nil, fmt.Errorf("list announcement targets: %w", err)
	}
	return targets, nil
}

// AddTarget attaches one target to the announcement.
func (r *AnnouncementRepository) AddTarget(ctx context.Context, announcementID int64, target models.Target) (*models.AnnouncementTarget, error) {
	const query = `INSERT INTO announcement_targets (announcement_id, target_type, group_id, user_id)
VALUES ($1, $2, $3, $4) RETURNING id`
	row := models.AnnouncementTarget{AnnouncementID: announcementID, Target: target}
	if err := r.db.GetContext(ctx, &row.ID, query, announcementID, target.TargetType, target.GroupID, target.UserID); err != nil {
		return nil, fmt.Errorf("add announcement target: %w", err)
	}
	return &row, nil
}

// DeleteTarget removes one target; sql.ErrNoRows when the target does
// not belong to the announcement.
func (r *AnnouncementRepository) DeleteTarget(ctx context.Context, announcementID, targetID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcement_targets WHERE id = $1 AND announcement_id = $2`, targetID, announcementID)
	if err != nil {
		return fmt.Errorf("delete announcement target: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete announcement target: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListReads returns the read receipts of an announcement.
func (r *AnnouncementRepository) ListReads(ctx context.Context, announcementID int64) ([]models.AnnouncementRead, error) {
	const query = `SELECT announcement_id, user_id, read_at FROM announcement_reads WHERE announcement_id = $1 ORDER BY read_at`
	var reads []models.AnnouncementRead
	if err := r.db.SelectContext(ctx, &reads, query, announcementID); err != nil {
		return nil, fmt.Errorf("list announcement reads: %w", err)
	}
	return reads, nil
}

// VisibleUserIDs returns every active user inside the announcement's
// visible set, used by the notification fan-out.
func (r *AnnouncementRepository) VisibleUserIDs(ctx context.Context, announcementID int64) ([]int64, error) {
	const query = `SELECT DISTINCT u.id
FROM users u
JOIN announcements a ON a.id = $1
WHERE u.active AND (
	a.scope = 'all'
	OR a.author_user_id = u.id
	OR EXISTS (SELECT 1 FROM announcement_targets t WHERE t.announcement_id = a.id AND t.target_type = 'user' AND t.user_id = u.id)
	OR EXISTS (SELECT 1 FROM announcement_targets t JOIN user_groups ug ON ug.group_id = t.group_id AND ug.user_id = u.id WHERE t.announcement_id = a.id AND t.target_type = 'group')
)
ORDER BY u.id`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, announcementID); err != nil {
		return nil, fmt.Errorf("visible users for announcement: %w", err)
	}
	return ids, nil
}
