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

// GroupRepository provides persistence for class groups and their
// membership edges (students, assigned teachers).
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

const groupColumns = `id, name, grade, section, code, created_at, updated_at`

// List returns groups with optional grade/search filters.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	baseQuery := `FROM groups WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT %s %s ORDER BY grade, section, name LIMIT %d OFFSET %d`, groupColumns, baseQuery, size, (page-1)*size)
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}
	return groups, total, nil
}

// GetByID returns a group by identifier.
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	query := fmt.Sprintf(`SELECT %s FROM groups WHERE id = $1`, groupColumns)
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &group, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now
	const query = `INSERT INTO groups (name, grade, section, code, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.GetContext(ctx, &group.ID, query,
		group.Name, group.Grade, group.Section, group.Code, group.CreatedAt, group.UpdatedAt); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update modifies an existing group.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE groups SET name = $2, grade = $3, section = $4, code = $5, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		group.ID, group.Name, group.Grade, group.Section, group.Code, group.UpdatedAt); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// Delete removes a group; membership edges cascade.
func (r *GroupRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// AddStudent enrolls a student in the group; repeats are no-ops.
func (r *GroupRepository) AddStudent(ctx context.Context, groupID, studentID int64) error {
	const query = `INSERT INTO group_students (group_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, studentID); err != nil {
		return fmt.Errorf("add student to group: %w", err)
	}
	return nil
}

// RemoveStudent drops a student from the group.
func (r *GroupRepository) RemoveStudent(ctx context.Context, groupID, studentID int64) error {
	const query = `DELETE FROM group_students WHERE group_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, groupID, studentID); err != nil {
		return fmt.Errorf("remove student from group: %w", err)
	}
	return nil
}

// ListStudents returns the students enrolled in the group.
func (r *GroupRepository) ListStudents(ctx context.Context, groupID int64) ([]models.Student, error) {
	const query = `SELECT s.id, s.first_name, s.last_name, s.code, s.created_at, s.updated_at
FROM students s
JOIN group_students gs ON gs.student_id = s.id
WHERE gs.group_id = $1
ORDER BY s.last_name, s.first_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, groupID); err != nil {
		return nil, fmt.Errorf("list group students: %w", err)
	}
	return students, nil
}

// AssignTeacher links a teacher user to the group; repeats are no-ops.
func (r *GroupRepository) AssignTeacher(ctx context.Context, groupID, teacherUserID int64) error {
	const query = `INSERT INTO teacher_groups (teacher_user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, teacherUserID, groupID); err != nil {
		return fmt.Errorf("assign teacher to group: %w", err)
	}
	return nil
}

// UnassignTeacher removes a teacher assignment.
func (r *GroupRepository) UnassignTeacher(ctx context.Context, groupID, teacherUserID int64) error {
	const query = `DELETE FROM teacher_groups WHERE teacher_user_id = $1 AND group_id = $2`
	if _, err := r.db.ExecContext(ctx, query, teacherUserID, groupID); err != nil {
		return fmt.Errorf("unassign teacher from group: %w", err)
	}
	return nil
}

// ListTeachers returns the teachers assigned to the group.
func (r *GroupRepository) ListTeachers(ctx context.Context, groupID int64) ([]models.UserRef, error) {
	const query = `SELECT u.id, u.name, u.role, u.avatar_path
FROM users u
JOIN teacher_groups tg ON tg.teacher_user_id = u.id
WHERE tg.group_id = $1
ORDER BY u.name`
	var teachers []models.UserRef
	if err := r.db.SelectContext(ctx, &teachers, query, groupID); err != nil {
		return nil, fmt.Errorf("list group teachers: %w", err)
	}
	return teachers, nil
}
