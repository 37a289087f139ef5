package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrNameRequired indicates a blank permission or group name.
var ErrNameRequired = errors.New("rbac: name required")

// Service orchestrates permission graph operations and computes effective
// permission sets.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreatePermission inserts a new permission.
func (s *Service) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, ErrNameRequired
	}
	return s.repo.CreatePermission(ctx, name, strings.TrimSpace(description))
}

// GetPermission fetches a permission by id.
func (s *Service) GetPermission(ctx context.Context, id uuid.UUID) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// ListPermissions returns a page of permissions and the total count.
func (s *Service) ListPermissions(ctx context.Context, limit, offset int) ([]Permission, int, error) {
	return s.repo.ListPermissions(ctx, limit, offset)
}

// UpdatePermissionDescription changes a permission's description. Name and id
// stay immutable once assignments may reference them.
func (s *Service) UpdatePermissionDescription(ctx context.Context, id uuid.UUID, description string) (Permission, error) {
	return s.repo.UpdatePermissionDescription(ctx, id, strings.TrimSpace(description))
}

// DeletePermissions removes permissions together with every assignment
// referencing them.
func (s *Service) DeletePermissions(ctx context.Context, ids ...uuid.UUID) error {
	return s.repo.DeletePermissions(ctx, ids)
}

// CreateGroup inserts a new group.
func (s *Service) CreateGroup(ctx context.Context, name string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, ErrNameRequired
	}
	return s.repo.CreateGroup(ctx, name)
}

// GetGroup fetches a group by id.
func (s *Service) GetGroup(ctx context.Context, id uuid.UUID) (Group, error) {
	return s.repo.GetGroup(ctx, id)
}

// ListGroups returns a page of groups and the total count.
func (s *Service) ListGroups(ctx context.Context, limit, offset int) ([]Group, int, error) {
	return s.repo.ListGroups(ctx, limit, offset)
}

// DeleteGroups removes groups, nulling members' group reference and dropping
// the groups' permission assignments as one consistency unit.
func (s *Service) DeleteGroups(ctx context.Context, ids ...uuid.UUID) error {
	return s.repo.DeleteGroups(ctx, ids)
}

// GrantToUser assigns a permission directly to a user, idempotently.
func (s *Service) GrantToUser(ctx context.Context, userID, permissionID uuid.UUID) error {
	return s.repo.GrantToUser(ctx, userID, permissionID)
}

// RevokeFromUser removes a direct grant; absent grants are a no-op.
func (s *Service) RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error {
	return s.repo.RevokeFromUser(ctx, userID, permissionID)
}

// GrantToGroup assigns a permission to a group, idempotently.
func (s *Service) GrantToGroup(ctx context.Context, groupID, permissionID uuid.UUID) error {
	return s.repo.GrantToGroup(ctx, groupID, permissionID)
}

// RevokeFromGroup removes a group grant; absent grants are a no-op.
func (s *Service) RevokeFromGroup(ctx context.Context, groupID, permissionID uuid.UUID) error {
	return s.repo.RevokeFromGroup(ctx, groupID, permissionID)
}

// ListUserGrants returns a page of direct user-permission assignments.
func (s *Service) ListUserGrants(ctx context.Context, limit, offset int) ([]UserPermission, int, error) {
	return s.repo.ListUserGrants(ctx, limit, offset)
}

// ListGroupGrants returns a page of group-permission assignments.
func (s *Service) ListGroupGrants(ctx context.Context, limit, offset int) ([]GroupPermission, int, error) {
	return s.repo.ListGroupGrants(ctx, limit, offset)
}

// Resolve computes the effective permission set for a user: direct grants
// unioned with the grants of the user's group. A user with neither resolves to
// the empty set. The result reflects graph state at call time; nothing is
// cached.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (PermissionSet, error) {
	names, err := s.repo.EffectivePermissionNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(names...), nil
}
