package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vitrine/api/internal/auth"
	"vitrine/api/internal/util"
)

// RedisStore implements session storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
		ttl:    ttl,
	}
}

// key stores sessions under the token hash so raw ids never reach Redis
func (s *RedisStore) key(id string) string {
	return s.prefix + auth.HashToken(id)
}

// Create stores a new session with the configured TTL
func (s *RedisStore) Create(ctx context.Context, authenticated bool) (Session, error) {
	id, err := util.NewToken("sid")
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	now := time.Now()
	sess := Session{
		ID:            id,
		Authenticated: authenticated,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	jsonData, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), jsonData, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	return sess, nil
}

// Lookup retrieves a session by its id
func (s *RedisStore) Lookup(ctx context.Context, id string) (Session, error) {
	jsonData, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(jsonData), &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	sess.ID = id
	return sess, nil
}

// Destroy deletes a session. Unknown ids are not an error.
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
