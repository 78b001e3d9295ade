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

// StudentRepository provides persistence for the student roster and
// guardian links.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, first_name, last_name, code, created_at, updated_at`

// List returns students with optional group/search filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	baseQuery := `FROM students s WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.GroupID != nil {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM group_students gs WHERE gs.student_id = s.id AND gs.group_id = $%d)", len(args)+1))
		args = append(args, *filter.GroupID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d)", len(args)+1, len(args)+1))
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

	query := fmt.Sprintf(`SELECT s.id, s.first_name, s.last_name, s.code, s.created_at, s.updated_at %s
ORDER BY s.last_name, s.first_name LIMIT %d OFFSET %d`, baseQuery, size, (page-1)*size)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// GetByID returns a student by identifier.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &student, nil
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (first_name, last_name, code, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &student.ID, query,
		student.FirstName, student.LastName, student.Code, student.CreatedAt, student.UpdatedAt); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = $2, last_name = $3, code = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		student.ID, student.FirstName, student.LastName, student.Code, student.UpdatedAt); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student; enrollment and guardian edges cascade.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// AddGuardian links a parent user to the student with a relationship
// label; re-linking updates the label.
func (r *StudentRepository) AddGuardian(ctx context.Context, link models.GuardianLink) error {
	const query = `INSERT INTO student_parents (student_id, parent_user_id, relationship)
VALUES ($1, $2, $3)
ON CONFLICT (student_id, parent_user_id) DO UPDATE SET relationship = EXCLUDED.relationship`
	if _, err := r.db.ExecContext(ctx, query, link.StudentID, link.ParentUserID, link.Relationship); err != nil {
		return fmt.Errorf("add guardian: %w", err)
	}
	return nil
}

// RemoveGuardian drops a guardian link.
func (r *StudentRepository) RemoveGuardian(ctx context.Context, studentID, parentUserID int64) error {
	const query = `DELETE FROM student_parents WHERE student_id = $1 AND parent_user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, studentID, parentUserID); err != nil {
		return fmt.Errorf("remove guardian: %w", err)
	}
	return nil
}

// ListGuardians returns the guardian links for a student.
func (r *StudentRepository) ListGuardians(ctx context.Context, studentID int64) ([]models.GuardianLink, error) {
	const query = `SELECT student_id, parent_user_id, relationship FROM student_parents WHERE student_id = $1`
	var links []models.GuardianLink
	if err := r.db.SelectContext(ctx, &links, query, studentID); err != nil {
		return nil, fmt.Errorf("list guardians: %w", err)
	}
	return links, nil
}
