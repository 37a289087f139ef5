package tweets

import (
	"time"

	"github.com/google/uuid"
)

// Tweet is a short text post owned by exactly one user. UpdatedAt is refreshed
// by a database trigger on every mutation.
type Tweet struct {
	ID        uuid.UUID
	Content   string
	UserID    uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}
