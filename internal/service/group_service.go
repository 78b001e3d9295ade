package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
)

type groupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id int64) error
	AddStudent(ctx context.Context, groupID, studentID int64) error
	RemoveStudent(ctx context.Context, groupID, studentID int64) error
	ListStudents(ctx context.Context, groupID int64) ([]models.Student, error)
	AssignTeacher(ctx context.Context, groupID, teacherUserID int64) error
	UnassignTeacher(ctx context.Context, groupID, teacherUserID int64) error
	ListTeachers(ctx context.Context, groupID int64) ([]models.UserRef, error)
}

type groupStudentRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Student, error)
}

type groupUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// GroupService provides class-group administration use cases.
type GroupService struct {
	repo      groupRepository
	students  groupStudentRepository
	users     groupUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs a GroupService instance.
func NewGroupService(repo groupRepository, students groupStudentRepository, users groupUserRepository, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{repo: repo, students: students, users: users, validator: validate, logger: logger}
}

// List returns groups matching the filter.
func (s *GroupService) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, *models.Pagination, error) {
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, paginationFor(filter.Page, filter.PageSize, total, 20), nil
}

// Get returns a group by id.
func (s *GroupService) Get(ctx context.Context, id int64) (*models.Group, error) {
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// Create adds a class group.
func (s *GroupService) Create(ctx context.Context, req models.CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	group := &models.Group{Name: req.Name, Grade: req.Grade, Section: req.Section, Code: req.Code}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	return group, nil
}

// Update edits a class group.
func (s *GroupService) Update(ctx context.Context, id int64, req models.UpdateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Grade != nil {
		group.Grade = *req.Grade
	}
	if req.Section != nil {
		group.Section = *req.Section
	}
	if req.Code != nil {
		group.Code = *req.Code
	}

	if err := s.repo.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	return group, nil
}

// Delete removes a class group.
func (s *GroupService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete group")
	}
	return nil
}

// AddStudent enrolls a student in the group.
func (s *GroupService) AddStudent(ctx context.Context, groupID, studentID int64) error {
	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.AddStudent(ctx, groupID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	return nil
}

// RemoveStudent drops a student from the group.
func (s *GroupService) RemoveStudent(ctx context.Context, groupID, studentID int64) error {
	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}
	if err := s.repo.RemoveStudent(ctx, groupID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student")
	}
	return nil
}

// ListStudents returns the group's roster.
func (s *GroupService) ListStudents(ctx context.Context, groupID int64) ([]models.Student, error) {
	if _, err := s.Get(ctx, groupID); err != nil {
		return nil, err
	}
	students, err := s.repo.ListStudents(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// AssignTeacher links a teacher to the group. Only teacher-role users
// can be assigned.
func (s *GroupService) AssignTeacher(ctx context.Context, groupID, teacherUserID int64) error {
	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, teacherUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleTeacher {
		return appErrors.Validation("teacher_user_id", "user is not a teacher")
	}
	if err := s.repo.AssignTeacher(ctx, groupID, teacherUserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign teacher")
	}
	return nil
}

// UnassignTeacher removes a teacher assignment.
func (s *GroupService) UnassignTeacher(ctx context.Context, groupID, teacherUserID int64) error {
	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}
	if err := s.repo.UnassignTeacher(ctx, groupID, teacherUserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign teacher")
	}
	return nil
}

// ListTeachers returns the teachers assigned to the group.
func (s *GroupService) ListTeachers(ctx context.Context, groupID int64) ([]models.UserRef, error) {
	if _, err := s.Get(ctx, groupID); err != nil {
		return nil, err
	}
	teachers, err := s.repo.ListTeachers(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}
