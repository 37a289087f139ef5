package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/aloha-social/aloha/internal/shared"
)

// dummyHash is verified against when the username does not exist, so a login
// attempt costs the same argon2id work whether or not the account is real.
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$m0W1XTLcN0R5UXU8dMC0rPVYs8hXfAgyhW8zOaR3cWc"

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	hasher *Hasher
}

// NewService constructs a new Service.
func NewService(repo Repository, hasher *Hasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// VerifyLogin validates username/password credentials and returns the user id.
// Every failure path reports ErrInvalidCredentials; store failures are the one
// exception and stay retryable.
func (s *Service) VerifyLogin(ctx context.Context, username, password string) (uuid.UUID, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrStoreUnavailable) {
			return uuid.Nil, err
		}
		// Burn the same hashing work as the happy path before failing.
		_ = s.hasher.Verify(password, dummyHash)
		return uuid.Nil, shared.ErrInvalidCredentials
	}
	if err := s.hasher.Verify(password, user.PasswordHash); err != nil {
		return uuid.Nil, shared.ErrInvalidCredentials
	}
	return user.ID, nil
}

// Hasher exposes the password hasher so user creation and password updates
// produce hashes this service can verify.
func (s *Service) Hasher() *Hasher {
	return s.hasher
}
