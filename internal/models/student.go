package models

import "time"

// Student represents a pupil on the roster. Students do not log in;
// guardians reach their groups through the student_parents link.
type Student struct {
	ID        int64     `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Code      *string   `db:"code" json:"code,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures listing criteria for students.
type StudentFilter struct {
	GroupID  *int64
	Search   string
	Page     int
	PageSize int
}

// CreateStudentRequest is the payload for adding a student to the roster.
type CreateStudentRequest struct {
	FirstName string  `json:"first_name" validate:"required,max=80"`
	LastName  string  `json:"last_name" validate:"required,max=80"`
	Code      *string `json:"code" validate:"omitempty,max=40"`
}

// UpdateStudentRequest edits a student. Nil fields are left untouched.
type UpdateStudentRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=80"`
	LastName  *string `json:"last_name" validate:"omitempty,max=80"`
	Code      *string `json:"code" validate:"omitempty,max=40"`
}

// GuardianRequest links a parent user to a student.
type GuardianRequest struct {
	ParentUserID int64  `json:"parent_user_id" validate:"required"`
	Relationship string `json:"relationship" validate:"required,max=40"`
}

// GuardianLink joins a parent user to a student with a relationship label.
type GuardianLink struct {
	StudentID    int64  `db:"student_id" json:"student_id"`
	ParentUserID int64  `db:"parent_user_id" json:"parent_user_id"`
	Relationship string `db:"relationship" json:"relationship"`
}
