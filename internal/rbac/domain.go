package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Permission represents an atomic capability.
type Permission struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
}

// Group is a named collection of users sharing permissions. A user belongs to
// at most one group.
type Group struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// GroupPermission ties a permission to a group.
type GroupPermission struct {
	GroupID      uuid.UUID
	PermissionID uuid.UUID
	CreatedAt    time.Time
}

// UserPermission ties a permission directly to a user.
type UserPermission struct {
	UserID       uuid.UUID
	PermissionID uuid.UUID
	CreatedAt    time.Time
}

// PermissionSet is the effective permission set of a user: the union of direct
// grants and group grants. It is derived at call time, never persisted.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names, collapsing duplicates.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether the named permission is in the set.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the member permission names in unspecified order.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}
