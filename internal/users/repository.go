package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aloha-social/aloha/internal/platform/db"
	"github.com/aloha-social/aloha/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, user User) (User, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	Update(ctx context.Context, user User) (User, error)
	Delete(ctx context.Context, ids []uuid.UUID) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a user row.
func (r *Repository) Create(ctx context.Context, user User) (User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash, user_group_id) VALUES ($1, $2, $3, $4)
		 RETURNING id, username, password_hash, user_group_id, created_at`,
		shared.PGUUID(user.ID), user.Username, user.PasswordHash, shared.PGUUIDPtr(user.GroupID))
	return scanUser(row)
}

// Get fetches a user by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, user_group_id, created_at FROM users WHERE id = $1`,
		shared.PGUUID(id))
	return scanUser(row)
}

// List returns a page of users ordered by username plus the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, password_hash, user_group_id, created_at FROM users
		 ORDER BY username LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return result, total, nil
}

// Update rewrites username, password hash and group reference.
func (r *Repository) Update(ctx context.Context, user User) (User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET username = $2, password_hash = $3, user_group_id = $4 WHERE id = $1
		 RETURNING id, username, password_hash, user_group_id, created_at`,
		shared.PGUUID(user.ID), user.Username, user.PasswordHash, shared.PGUUIDPtr(user.GroupID))
	return scanUser(row)
}

// Delete removes users together with their direct permission grants and their
// tweets, in one transaction.
func (r *Repository) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	pgIDs := make([]pgtype.UUID, len(ids))
	for i, id := range ids {
		pgIDs[i] = shared.PGUUID(id)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = ANY($1)`, pgIDs); err != nil {
			return mapError(err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM tweets WHERE user_id = ANY($1)`, pgIDs); err != nil {
			return mapError(err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, pgIDs)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

var _ RepositoryPort = (*Repository)(nil)

func scanUser(row pgx.Row) (User, error) {
	var (
		id      pgtype.UUID
		groupID pgtype.UUID
		user    User
	)
	if err := row.Scan(&id, &user.Username, &user.PasswordHash, &groupID, &user.CreatedAt); err != nil {
		return User{}, mapError(err)
	}
	user.ID = shared.UUIDFromPG(id)
	if groupID.Valid {
		gid := shared.UUIDFromPG(groupID)
		user.GroupID = &gid
	}
	return user, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if strings.Contains(pgErr.ConstraintName, "username") {
				return shared.ErrDuplicateUsername
			}
			return fmt.Errorf("%w: %s", shared.ErrConstraintViolation, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", shared.ErrConstraintViolation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
}
