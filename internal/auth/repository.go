package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aloha-social/aloha/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches a user with its password hash by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, user_group_id, created_at FROM users WHERE username = $1`,
		username)

	var (
		id      pgtype.UUID
		groupID pgtype.UUID
		user    User
	)
	if err := row.Scan(&id, &user.Username, &user.PasswordHash, &groupID, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find by username: %w: %v", shared.ErrStoreUnavailable, err)
	}
	user.ID = shared.UUIDFromPG(id)
	if groupID.Valid {
		gid := shared.UUIDFromPG(groupID)
		user.GroupID = &gid
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
