package tweets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aloha-social/aloha/internal/shared"
)

// RepositoryPort defines data access methods for tweets.
type RepositoryPort interface {
	Create(ctx context.Context, tweet Tweet) (Tweet, error)
	Get(ctx context.Context, id uuid.UUID) (Tweet, error)
	List(ctx context.Context, limit, offset int) ([]Tweet, int, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string) (Tweet, error)
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

// Create inserts a tweet.
func (r *Repository) Create(ctx context.Context, tweet Tweet) (Tweet, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO tweets (id, content, user_id) VALUES ($1, $2, $3)
		 RETURNING id, content, user_id, created_at, updated_at`,
		shared.PGUUID(tweet.ID), tweet.Content, shared.PGUUID(tweet.UserID))
	return scanTweet(row)
}

// Get fetches a tweet by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Tweet, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, content, user_id, created_at, updated_at FROM tweets WHERE id = $1`,
		shared.PGUUID(id))
	return scanTweet(row)
}

// List returns a page of tweets, newest first, plus the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Tweet, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tweets`).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, content, user_id, created_at, updated_at FROM tweets
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var result []Tweet
	for rows.Next() {
		tweet, err := scanTweet(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, tweet)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return result, total, nil
}

// UpdateContent rewrites the content; updated_at refreshes via trigger.
func (r *Repository) UpdateContent(ctx context.Context, id uuid.UUID, content string) (Tweet, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE tweets SET content = $2 WHERE id = $1
		 RETURNING id, content, user_id, created_at, updated_at`,
		shared.PGUUID(id), content)
	return scanTweet(row)
}

// Delete removes tweets by id.
func (r *Repository) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	pgIDs := make([]pgtype.UUID, len(ids))
	for i, id := range ids {
		pgIDs[i] = shared.PGUUID(id)
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM tweets WHERE id = ANY($1)`, pgIDs)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)

func scanTweet(row pgx.Row) (Tweet, error) {
	var (
		id     pgtype.UUID
		userID pgtype.UUID
		tweet  Tweet
	)
	if err := row.Scan(&id, &tweet.Content, &userID, &tweet.CreatedAt, &tweet.UpdatedAt); err != nil {
		return Tweet{}, mapError(err)
	}
	tweet.ID = shared.UUIDFromPG(id)
	tweet.UserID = shared.UUIDFromPG(userID)
	return tweet, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "23503") {
		return fmt.Errorf("%w: %s", shared.ErrConstraintViolation, pgErr.ConstraintName)
	}
	return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
}
