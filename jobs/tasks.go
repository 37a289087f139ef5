package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aloha-social/aloha/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionReconcile purges cache sessions whose user row is gone. User
	// deletion destroys sessions synchronously; this task covers crashes in
	// between the cache purge and the row delete ever leaving strays behind.
	TaskSessionReconcile = "session:reconcile"

	userIndexPrefix = "user_sessions:"
)

// NewSessionReconcileTask constructs the reconcile task.
func NewSessionReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskSessionReconcile, nil)
}

// NewSessionReconcileHandler returns the asynq handler for TaskSessionReconcile.
func NewSessionReconcileHandler(logger *slog.Logger, pool *pgxpool.Pool, cache *redis.Client, metrics *Metrics) asynq.HandlerFunc {
	run := func(ctx context.Context) (int, error) {
		var cursor uint64
		purged := 0
		for {
			keys, next, err := cache.Scan(ctx, cursor, userIndexPrefix+"*", 100).Result()
			if err != nil {
				return purged, err
			}
			for _, key := range keys {
				userID, err := uuid.Parse(strings.TrimPrefix(key, userIndexPrefix))
				if err != nil {
					continue
				}
				var exists bool
				err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, shared.PGUUID(userID)).Scan(&exists)
				if err != nil {
					return purged, err
				}
				if exists {
					continue
				}
				tokens, err := cache.SMembers(ctx, key).Result()
				if err != nil && !errors.Is(err, redis.Nil) {
					return purged, err
				}
				del := make([]string, 0, len(tokens)+1)
				for _, token := range tokens {
					del = append(del, "session:"+token)
				}
				del = append(del, key)
				if err := cache.Del(ctx, del...).Err(); err != nil {
					return purged, err
				}
				purged += len(tokens)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		return purged, nil
	}
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskSessionReconcile)
		purged, err := run(ctx)
		metrics.AddPurgedSessions(purged)
		if purged > 0 {
			logger.Info("reconciled orphaned sessions", slog.Int("purged", purged))
		}
		return tracker.End(err)
	}
}
