package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloha-social/aloha/internal/shared"
)

// mockRepository keeps the permission graph in maps, mirroring the relational
// layout closely enough to exercise the cascade semantics.
type mockRepository struct {
	permissions map[uuid.UUID]Permission
	groups      map[uuid.UUID]Group
	membership  map[uuid.UUID]uuid.UUID
	userGrants  map[uuid.UUID]map[uuid.UUID]bool
	groupGrants map[uuid.UUID]map[uuid.UUID]bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		permissions: make(map[uuid.UUID]Permission),
		groups:      make(map[uuid.UUID]Group),
		membership:  make(map[uuid.UUID]uuid.UUID),
		userGrants:  make(map[uuid.UUID]map[uuid.UUID]bool),
		groupGrants: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (m *mockRepository) CreatePermission(_ context.Context, name, description string) (Permission, error) {
	for _, perm := range m.permissions {
		if perm.Name == name {
			return Permission{}, shared.ErrConstraintViolation
		}
	}
	perm := Permission{ID: uuid.New(), Name: name, Description: description, CreatedAt: time.Now()}
	m.permissions[perm.ID] = perm
	return perm, nil
}

func (m *mockRepository) GetPermission(_ context.Context, id uuid.UUID) (Permission, error) {
	perm, ok := m.permissions[id]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	return perm, nil
}

func (m *mockRepository) ListPermissions(_ context.Context, limit, offset int) ([]Permission, int, error) {
	var perms []Permission
	for _, perm := range m.permissions {
		perms = append(perms, perm)
	}
	return perms, len(perms), nil
}

func (m *mockRepository) UpdatePermissionDescription(_ context.Context, id uuid.UUID, description string) (Permission, error) {
	perm, ok := m.permissions[id]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	perm.Description = description
	m.permissions[id] = perm
	return perm, nil
}

func (m *mockRepository) DeletePermissions(_ context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	deleted := 0
	for _, id := range ids {
		if _, ok := m.permissions[id]; !ok {
			continue
		}
		deleted++
		delete(m.permissions, id)
		for _, grants := range m.userGrants {
			delete(grants, id)
		}
		for _, grants := range m.groupGrants {
			delete(grants, id)
		}
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (m *mockRepository) CreateGroup(_ context.Context, name string) (Group, error) {
	group := Group{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	m.groups[group.ID] = group
	return group, nil
}

func (m *mockRepository) GetGroup(_ context.Context, id uuid.UUID) (Group, error) {
	group, ok := m.groups[id]
	if !ok {
		return Group{}, shared.ErrNotFound
	}
	return group, nil
}

func (m *mockRepository) ListGroups(_ context.Context, limit, offset int) ([]Group, int, error) {
	var groups []Group
	for _, group := range m.groups {
		groups = append(groups, group)
	}
	return groups, len(groups), nil
}

func (m *mockRepository) DeleteGroups(_ context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	deleted := 0
	for _, id := range ids {
		if _, ok := m.groups[id]; !ok {
			continue
		}
		deleted++
		delete(m.groups, id)
		delete(m.groupGrants, id)
		for userID, groupID := range m.membership {
			if groupID == id {
				delete(m.membership, userID)
			}
		}
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (m *mockRepository) GrantToUser(_ context.Context, userID, permissionID uuid.UUID) error {
	if _, ok := m.permissions[permissionID]; !ok {
		return shared.ErrConstraintViolation
	}
	if m.userGrants[userID] == nil {
		m.userGrants[userID] = make(map[uuid.UUID]bool)
	}
	m.userGrants[userID][permissionID] = true
	return nil
}

func (m *mockRepository) RevokeFromUser(_ context.Context, userID, permissionID uuid.UUID) error {
	delete(m.userGrants[userID], permissionID)
	return nil
}

func (m *mockRepository) GrantToGroup(_ context.Context, groupID, permissionID uuid.UUID) error {
	if _, ok := m.permissions[permissionID]; !ok {
		return shared.ErrConstraintViolation
	}
	if _, ok := m.groups[groupID]; !ok {
		return shared.ErrConstraintViolation
	}
	if m.groupGrants[groupID] == nil {
		m.groupGrants[groupID] = make(map[uuid.UUID]bool)
	}
	m.groupGrants[groupID][permissionID] = true
	return nil
}

func (m *mockRepository) RevokeFromGroup(_ context.Context, groupID, permissionID uuid.UUID) error {
	delete(m.groupGrants[groupID], permissionID)
	return nil
}

func (m *mockRepository) ListUserGrants(_ context.Context, limit, offset int) ([]UserPermission, int, error) {
	var grants []UserPermission
	for userID, perms := range m.userGrants {
		for permID := range perms {
			grants = append(grants, UserPermission{UserID: userID, PermissionID: permID})
		}
	}
	return grants, len(grants), nil
}

func (m *mockRepository) ListGroupGrants(_ context.Context, limit, offset int) ([]GroupPermission, int, error) {
	var grants []GroupPermission
	for groupID, perms := range m.groupGrants {
		for permID := range perms {
			grants = append(grants, GroupPermission{GroupID: groupID, PermissionID: permID})
		}
	}
	return grants, len(grants), nil
}

func (m *mockRepository) EffectivePermissionNames(_ context.Context, userID uuid.UUID) ([]string, error) {
	names := make(map[string]bool)
	for permID := range m.userGrants[userID] {
		names[m.permissions[permID].Name] = true
	}
	if groupID, ok := m.membership[userID]; ok {
		for permID := range m.groupGrants[groupID] {
			names[m.permissions[permID].Name] = true
		}
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	return out, nil
}

var _ Repository = (*mockRepository)(nil)

func TestResolveEmptySet(t *testing.T) {
	svc := NewService(newMockRepository())

	set, err := svc.Resolve(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.False(t, set.Has("post_tweet"))
}

func TestResolveUnionOfDirectAndGroupGrants(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	deletePost, err := svc.CreatePermission(ctx, "delete_post", "remove any post")
	require.NoError(t, err)
	banUser, err := svc.CreatePermission(ctx, "ban_user", "suspend an account")
	require.NoError(t, err)

	admins, err := svc.CreateGroup(ctx, "admins")
	require.NoError(t, err)
	require.NoError(t, svc.GrantToGroup(ctx, admins.ID, banUser.ID))

	alice := uuid.New()
	repo.membership[alice] = admins.ID
	require.NoError(t, svc.GrantToUser(ctx, alice, deletePost.ID))

	set, err := svc.Resolve(ctx, alice)
	require.NoError(t, err)
	assert.True(t, set.Has("delete_post"))
	assert.True(t, set.Has("ban_user"))
	assert.Len(t, set, 2)
}

func TestResolveDeduplicatesOverlappingGrants(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	perm, err := svc.CreatePermission(ctx, "post_tweet", "")
	require.NoError(t, err)
	group, err := svc.CreateGroup(ctx, "members")
	require.NoError(t, err)

	bob := uuid.New()
	repo.membership[bob] = group.ID
	// Held both directly and through the group.
	require.NoError(t, svc.GrantToUser(ctx, bob, perm.ID))
	require.NoError(t, svc.GrantToGroup(ctx, group.ID, perm.ID))

	set, err := svc.Resolve(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, set, 1)
	assert.True(t, set.Has("post_tweet"))

	// Revoking one source still leaves the other.
	require.NoError(t, svc.RevokeFromGroup(ctx, group.ID, perm.ID))
	set, err = svc.Resolve(ctx, bob)
	require.NoError(t, err)
	assert.True(t, set.Has("post_tweet"))
}

func TestGrantIsIdempotent(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	perm, err := svc.CreatePermission(ctx, "post_tweet", "")
	require.NoError(t, err)
	bob := uuid.New()

	require.NoError(t, svc.GrantToUser(ctx, bob, perm.ID))
	require.NoError(t, svc.GrantToUser(ctx, bob, perm.ID))

	set, err := svc.Resolve(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, set, 1)

	// One revoke clears it; a second revoke is a no-op.
	require.NoError(t, svc.RevokeFromUser(ctx, bob, perm.ID))
	require.NoError(t, svc.RevokeFromUser(ctx, bob, perm.ID))
	set, err = svc.Resolve(ctx, bob)
	require.NoError(t, err)
	assert.False(t, set.Has("post_tweet"))
}

func TestDeletePermissionRemovesAllAssignments(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	perm, err := svc.CreatePermission(ctx, "delete_post", "")
	require.NoError(t, err)
	group, err := svc.CreateGroup(ctx, "moderators")
	require.NoError(t, err)

	alice := uuid.New()
	bob := uuid.New()
	repo.membership[bob] = group.ID
	require.NoError(t, svc.GrantToUser(ctx, alice, perm.ID))
	require.NoError(t, svc.GrantToGroup(ctx, group.ID, perm.ID))

	require.NoError(t, svc.DeletePermissions(ctx, perm.ID))

	for _, userID := range []uuid.UUID{alice, bob} {
		set, err := svc.Resolve(ctx, userID)
		require.NoError(t, err)
		assert.False(t, set.Has("delete_post"))
	}
	_, err = svc.GetPermission(ctx, perm.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteGroupKeepsDirectGrants(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	banUser, err := svc.CreatePermission(ctx, "ban_user", "")
	require.NoError(t, err)
	postTweet, err := svc.CreatePermission(ctx, "post_tweet", "")
	require.NoError(t, err)
	admins, err := svc.CreateGroup(ctx, "admins")
	require.NoError(t, err)
	require.NoError(t, svc.GrantToGroup(ctx, admins.ID, banUser.ID))

	alice := uuid.New()
	repo.membership[alice] = admins.ID
	require.NoError(t, svc.GrantToUser(ctx, alice, postTweet.ID))

	require.NoError(t, svc.DeleteGroups(ctx, admins.ID))

	set, err := svc.Resolve(ctx, alice)
	require.NoError(t, err)
	assert.False(t, set.Has("ban_user"), "group grant should die with the group")
	assert.True(t, set.Has("post_tweet"), "direct grant should survive")
	_, member := repo.membership[alice]
	assert.False(t, member, "membership should be cleared")
}

func TestDeleteMissingIDs(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	assert.ErrorIs(t, svc.DeletePermissions(ctx, uuid.New()), shared.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteGroups(ctx, uuid.New()), shared.ErrNotFound)
	assert.NoError(t, svc.DeletePermissions(ctx))
}

func TestBlankNamesRejected(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	_, err := svc.CreatePermission(ctx, "   ", "")
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = svc.CreateGroup(ctx, "")
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestResolveReflectsCurrentGraph(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	perm, err := svc.CreatePermission(ctx, "ban_user", "")
	require.NoError(t, err)
	alice := uuid.New()
	require.NoError(t, svc.GrantToUser(ctx, alice, perm.ID))

	set, err := svc.Resolve(ctx, alice)
	require.NoError(t, err)
	require.True(t, set.Has("ban_user"))

	// Nothing is cached: a revoke is visible on the next resolve.
	require.NoError(t, svc.RevokeFromUser(ctx, alice, perm.ID))
	set, err = svc.Resolve(ctx, alice)
	require.NoError(t, err)
	assert.False(t, set.Has("ban_user"))
}
