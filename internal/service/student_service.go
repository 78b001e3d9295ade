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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int64) error
	AddGuardian(ctx context.Context, link models.GuardianLink) error
	RemoveGuardian(ctx context.Context, studentID, parentUserID int64) error
	ListGuardians(ctx context.Context, studentID int64) ([]models.GuardianLink, error)
}

type studentUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// StudentService provides roster and guardian-link use cases.
type StudentService struct {
	repo      studentRepository
	users     studentUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(repo studentRepository, users studentUserRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total, 20), nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create adds a student to the roster.
func (s *StudentService) Create(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	student := &models.Student{FirstName: req.FirstName, LastName: req.LastName, Code: req.Code}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update edits a student.
func (s *StudentService) Update(ctx context.Context, id int64, req models.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		student.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		student.LastName = *req.LastName
	}
	if req.Code != nil {
		student.Code = req.Code
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student from the roster.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// AddGuardian links a parent-role user to the student. Relinking the
// same pair updates the relationship label.
func (s *StudentService) AddGuardian(ctx context.Context, studentID int64, req models.GuardianRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.FromValidation(err)
	}

	if _, err := s.Get(ctx, studentID); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, req.ParentUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "parent user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent user")
	}
	if user.Role != models.RoleParent {
		return appErrors.Validation("parent_user_id", "user is not a parent")
	}

	link := models.GuardianLink{StudentID: studentID, ParentUserID: req.ParentUserID, Relationship: req.Relationship}
	if err := s.repo.AddGuardian(ctx, link); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add guardian")
	}
	return nil
}

// RemoveGuardian drops a guardian link.
func (s *StudentService) RemoveGuardian(ctx context.Context, studentID, parentUserID int64) error {
	if _, err := s.Get(ctx, studentID); err != nil {
		return err
	}
	if err := s.repo.RemoveGuardian(ctx, studentID, parentUserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove guardian")
	}
	return nil
}

// ListGuardians returns the student's guardian links.
func (s *StudentService) ListGuardians(ctx context.Context, studentID int64) ([]models.GuardianLink, error) {
	if _, err := s.Get(ctx, studentID); err != nil {
		return nil, err
	}
	links, err := s.repo.ListGuardians(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list guardians")
	}
	return links, nil
}
