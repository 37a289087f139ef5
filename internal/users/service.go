package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aloha-social/aloha/internal/auth"
)

// SessionInvalidator destroys every live session of a user. Satisfied by
// session.Manager; substituted by a fake in tests.
type SessionInvalidator interface {
	DestroyAllForUser(ctx context.Context, userID uuid.UUID) error
}

// Service handles user account business logic.
type Service struct {
	repo     RepositoryPort
	hasher   *auth.Hasher
	sessions SessionInvalidator
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, hasher *auth.Hasher, sessions SessionInvalidator) *Service {
	return &Service{repo: repo, hasher: hasher, sessions: sessions}
}

// Create registers a new user with a freshly hashed password.
func (s *Service) Create(ctx context.Context, username, password string, groupID *uuid.UUID) (User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.Create(ctx, User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		GroupID:      groupID,
	})
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of users and the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// UpdateParams carries the mutable fields of a user. Nil means keep current.
type UpdateParams struct {
	Username *string
	Password *string
	// GroupID moves the user into a group; SetGroup with a nil GroupID removes
	// the user from its group.
	GroupID  *uuid.UUID
	SetGroup bool
}

// Update applies the given changes. A password change re-hashes and revokes
// every live session of the user so stolen tokens die with the old password.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if params.Username != nil {
		user.Username = *params.Username
	}
	passwordChanged := false
	if params.Password != nil {
		hash, err := s.hasher.Hash(*params.Password)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		user.PasswordHash = hash
		passwordChanged = true
	}
	if params.SetGroup {
		user.GroupID = params.GroupID
	}
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return User{}, err
	}
	if passwordChanged {
		if err := s.sessions.DestroyAllForUser(ctx, id); err != nil {
			return User{}, err
		}
	}
	return updated, nil
}

// Delete removes users and everything hanging off them. Sessions are destroyed
// before the rows so a failed row delete leaves a logged-out user, never a
// live session pointing at a deleted one.
func (s *Service) Delete(ctx context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		if err := s.sessions.DestroyAllForUser(ctx, id); err != nil {
			return err
		}
	}
	return s.repo.Delete(ctx, ids)
}
