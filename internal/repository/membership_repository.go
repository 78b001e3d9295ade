package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aulalink/aulalink-api/internal/models"
)

// MembershipRepository reads the derived user_groups view: the union of
// teacher-direct group assignments and groups inherited through guardian
// links (parent -> student -> group). The view deduplicates via UNION, so
// a group reached through both paths appears once. Recomputed by the
// database on every query; never cached here.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates the repository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// GroupsVisibleTo returns the deduplicated set of group ids the user
// reaches directly or transitively.
func (r *MembershipRepository) GroupsVisibleTo(ctx context.Context, userID int64) ([]int64, error) {
	const query = `SELECT DISTINCT group_id FROM user_groups WHERE user_id = $1 ORDER BY group_id`
	var groupIDs []int64
	if err := r.db.SelectContext(ctx, &groupIDs, query, userID); err != nil {
		return nil, fmt.Errorf("groups visible to user: %w", err)
	}
	return groupIDs, nil
}

// Memberships returns the full rows including the source role, used by
// profile endpoints to explain why a group is reachable.
func (r *MembershipRepository) Memberships(ctx context.Context, userID int64) ([]models.GroupMembership, error) {
	const query = `SELECT user_id, group_id, source_role FROM user_groups WHERE user_id = $1 ORDER BY group_id, source_role`
	var rows []models.GroupMembership
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("memberships for user: %w", err)
	}
	return rows, nil
}

// IsMember reports whether the user reaches the given group.
func (r *MembershipRepository) IsMember(ctx context.Context, userID, groupID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM user_groups WHERE user_id = $1 AND group_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, userID, groupID); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}
