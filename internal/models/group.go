package models

import "time"

// Group represents a class group (grade + section).
type Group struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Grade     string    `db:"grade" json:"grade"`
	Section   string    `db:"section" json:"section"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GroupFilter captures listing criteria for groups.
type GroupFilter struct {
	Grade    string
	Search   string
	Page     int
	PageSize int
}

// CreateGroupRequest is the payload for creating a class group.
type CreateGroupRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Grade   string `json:"grade" validate:"required,max=20"`
	Section string `json:"section" validate:"required,max=20"`
	Code    string `json:"code" validate:"required,max=40"`
}

// UpdateGroupRequest edits a class group. Nil fields are left untouched.
type UpdateGroupRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=120"`
	Grade   *string `json:"grade" validate:"omitempty,max=20"`
	Section *string `json:"section" validate:"omitempty,max=20"`
	Code    *string `json:"code" validate:"omitempty,max=40"`
}

// GroupMembership is one row of the derived user_groups view: a group a
// user reaches either as an assigned teacher or through a guardian link.
type GroupMembership struct {
	UserID     int64  `db:"user_id" json:"user_id"`
	GroupID    int64  `db:"group_id" json:"group_id"`
	SourceRole string `db:"source_role" json:"source_role"`
}

// Membership source labels used by the user_groups view.
const (
	MembershipSourceTeacher = "teacher"
	MembershipSourceParent  = "parent"
)
