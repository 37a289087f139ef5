// Package session implements server-side sessions backed by Redis. A session
// binds an unguessable token to an authenticated user id with an expiry, and
// carries one-shot flash messages.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aloha-social/aloha/internal/shared"
)

// Flash represents a one-time notification stored in the session. It survives
// exactly one PopFlashes call and is then gone.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is the resolved view of a live session.
type Session struct {
	Token     string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

type sessionPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Flashes   []Flash   `json:"flashes,omitempty"`
}

// Manager orchestrates session lifecycle against Redis.
type Manager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager constructs a Manager.
func NewManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{client: client, cookieName: cookieName, ttl: ttl, secure: secure}
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Create issues a new session for the user and records it in the per-user
// index so DestroyAllForUser can find it later without knowing any tokens.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		Token:     generateToken(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	data, err := json.Marshal(sessionPayload{UserID: userID, CreatedAt: sess.CreatedAt, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.Token), data, m.ttl)
	pipe.SAdd(ctx, userIndexKey(userID), sess.Token)
	pipe.Expire(ctx, userIndexKey(userID), m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeErr("create", err)
	}
	return sess, nil
}

// Resolve maps a token back to its session. A missing key yields
// ErrSessionNotFound; a present but stale payload yields ErrSessionExpired and
// the key is removed.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, shared.ErrSessionNotFound
	}
	payload, err := m.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if !payload.ExpiresAt.IsZero() && time.Now().UTC().After(payload.ExpiresAt) {
		_ = m.Destroy(ctx, token)
		return nil, shared.ErrSessionExpired
	}
	return &Session{
		Token:     token,
		UserID:    payload.UserID,
		CreatedAt: payload.CreatedAt,
		ExpiresAt: payload.ExpiresAt,
	}, nil
}

// Destroy removes a session. Destroying an absent token is not an error.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	payload, err := m.load(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, sessionKey(token))
	pipe.SRem(ctx, userIndexKey(payload.UserID), token)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("destroy", err)
	}
	return nil
}

// DestroyAllForUser removes every live session belonging to the user. Invoked
// when credentials change or the user is deleted.
func (m *Manager) DestroyAllForUser(ctx context.Context, userID uuid.UUID) error {
	tokens, err := m.client.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return storeErr("destroy all", err)
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}
	keys = append(keys, userIndexKey(userID))
	if err := m.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return storeErr("destroy all", err)
	}
	return nil
}

// AddFlash queues a flash message on the session.
func (m *Manager) AddFlash(ctx context.Context, token string, flash Flash) error {
	payload, err := m.load(ctx, token)
	if err != nil {
		return err
	}
	payload.Flashes = append(payload.Flashes, flash)
	return m.store(ctx, token, payload)
}

// PopFlashes drains and clears all queued flash messages in one read/rewrite.
// The second read always comes back empty.
func (m *Manager) PopFlashes(ctx context.Context, token string) ([]Flash, error) {
	payload, err := m.load(ctx, token)
	if err != nil {
		return nil, err
	}
	flashes := payload.Flashes
	if len(flashes) == 0 {
		return nil, nil
	}
	payload.Flashes = nil
	if err := m.store(ctx, token, payload); err != nil {
		return nil, err
	}
	return flashes, nil
}

func (m *Manager) load(ctx context.Context, token string) (sessionPayload, error) {
	var payload sessionPayload
	data, err := m.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return payload, shared.ErrSessionNotFound
		}
		return payload, storeErr("get", err)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("session: unmarshal: %w", err)
	}
	return payload, nil
}

func (m *Manager) store(ctx context.Context, token string, payload sessionPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	// KeepTTL preserves the remaining lifetime across flash rewrites.
	if err := m.client.Set(ctx, sessionKey(token), data, redis.KeepTTL).Err(); err != nil {
		return storeErr("set", err)
	}
	return nil
}

func sessionKey(token string) string {
	return "session:" + token
}

func userIndexKey(userID uuid.UUID) string {
	return "user_sessions:" + userID.String()
}

func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("session: %s: %w: %v", op, shared.ErrStoreUnavailable, err)
}
