package models

import (
	"fmt"

	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
)

// Scope is the item-level visibility policy for announcements and media.
type Scope string

const (
	ScopeAll    Scope = "all"
	ScopeGroups Scope = "groups"
	ScopeUsers  Scope = "users"
)

// ValidScope reports whether the value names a known scope.
func ValidScope(s Scope) bool {
	switch s {
	case ScopeAll, ScopeGroups, ScopeUsers:
		return true
	default:
		return false
	}
}

// TargetType discriminates group and user recipients.
type TargetType string

const (
	TargetTypeGroup TargetType = "group"
	TargetTypeUser  TargetType = "user"
)

// Target is an explicit recipient of a shareable item, a tagged variant
// of either a group or a user. Exactly one of GroupID/UserID is set,
// matching TargetType; the two-nullable-column layout exists only at the
// storage edge and Validate is the single place the invariant lives.
type Target struct {
	TargetType TargetType `db:"target_type" json:"target_type"`
	GroupID    *int64     `db:"group_id" json:"group_id,omitempty"`
	UserID     *int64     `db:"user_id" json:"user_id,omitempty"`
}

// GroupTarget builds a valid group-typed target.
func GroupTarget(groupID int64) Target {
	return Target{TargetType: TargetTypeGroup, GroupID: &groupID}
}

// UserTarget builds a valid user-typed target.
func UserTarget(userID int64) Target {
	return Target{TargetType: TargetTypeUser, UserID: &userID}
}

// Validate enforces the one-of(group,user) exclusivity.
func (t Target) Validate() error {
	switch t.TargetType {
	case TargetTypeGroup:
		if t.GroupID == nil || t.UserID != nil {
			return appErrors.Validation("group_id", "group targets require group_id and forbid user_id")
		}
	case TargetTypeUser:
		if t.UserID == nil || t.GroupID != nil {
			return appErrors.Validation("user_id", "user targets require user_id and forbid group_id")
		}
	default:
		return appErrors.Validation("target_type", "target_type must be group or user")
	}
	return nil
}

// Key returns a dedup key for the (type, id) pair.
func (t Target) Key() string {
	if t.TargetType == TargetTypeGroup && t.GroupID != nil {
		return fmt.Sprintf("group:%d", *t.GroupID)
	}
	if t.UserID != nil {
		return fmt.Sprintf("user:%d", *t.UserID)
	}
	return string(t.TargetType)
}

// TargetInput is the request shape for attaching a target.
type TargetInput struct {
	TargetType string `json:"target_type" validate:"required,oneof=group user"`
	GroupID    *int64 `json:"group_id"`
	UserID     *int64 `json:"user_id"`
}

// Resolve converts the loose request shape into a validated Target.
func (in TargetInput) Resolve() (Target, error) {
	t := Target{TargetType: TargetType(in.TargetType), GroupID: in.GroupID, UserID: in.UserID}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

// DedupTargets drops duplicate (type, id) pairs, keeping first occurrence.
func DedupTargets(targets []Target) []Target {
	seen := make(map[string]struct{}, len(targets))
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		key := t.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
