package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is the credential view of an account used during login.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	GroupID      *uuid.UUID
	CreatedAt    time.Time
}
