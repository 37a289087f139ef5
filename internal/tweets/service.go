package tweets

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aloha-social/aloha/internal/shared"
)

// Service handles tweet business logic. Mutations are owner-scoped: only the
// author may edit or delete a tweet.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create posts a tweet owned by the author.
func (s *Service) Create(ctx context.Context, authorID uuid.UUID, content string) (Tweet, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Tweet{}, shared.ErrConstraintViolation
	}
	return s.repo.Create(ctx, Tweet{ID: uuid.New(), Content: content, UserID: authorID})
}

// Get fetches a tweet by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tweet, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of tweets and the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Tweet, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update edits a tweet's content after checking the caller owns it.
func (s *Service) Update(ctx context.Context, callerID, id uuid.UUID, content string) (Tweet, error) {
	tweet, err := s.repo.Get(ctx, id)
	if err != nil {
		return Tweet{}, err
	}
	if tweet.UserID != callerID {
		return Tweet{}, shared.ErrInsufficientPermission
	}
	return s.repo.UpdateContent(ctx, id, strings.TrimSpace(content))
}

// Delete removes a tweet after checking the caller owns it.
func (s *Service) Delete(ctx context.Context, callerID, id uuid.UUID) error {
	tweet, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if tweet.UserID != callerID {
		return shared.ErrInsufficientPermission
	}
	return s.repo.Delete(ctx, []uuid.UUID{id})
}
