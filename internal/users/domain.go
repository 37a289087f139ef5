package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user account. GroupID is nil for users outside any group.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	GroupID      *uuid.UUID
	CreatedAt    time.Time
}
