package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trialdesk/trialdesk/internal/shared"
)

// SessionEntry is the denormalized principal snapshot cached per user. It is
// a read-through cache of the credential store, not a source of truth;
// staleness is bounded by the store TTL.
type SessionEntry struct {
	Principal    shared.Principal `json:"principal"`
	LastActivity time.Time        `json:"lastActivity"`
}

// SessionStore is a TTL key-value store of session entries keyed by user id.
// Implementations must return (nil, nil) on a miss so callers can fall back
// to the credential store.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*SessionEntry, error)
	Set(ctx context.Context, userID string, entry *SessionEntry) error
	Delete(ctx context.Context, userID string) error
}

// RedisSessionStore keeps session entries in Redis with a fixed TTL.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore constructs a RedisSessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(userID string) string {
	return "session:user:" + userID
}

// Get loads the cached entry, or (nil, nil) when absent.
func (s *RedisSessionStore) Get(ctx context.Context, userID string) (*SessionEntry, error) {
	payload, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var entry SessionEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Set stores the entry, resetting the TTL.
func (s *RedisSessionStore) Set(ctx context.Context, userID string, entry *SessionEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(userID), payload, s.ttl).Err()
}

// Delete removes the entry. Deleting an absent key is not an error.
func (s *RedisSessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

var _ SessionStore = (*RedisSessionStore)(nil)
