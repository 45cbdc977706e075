package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voicetyped/profilebot/pkg/dialog"
)

// DefaultTTL bounds how long an idle conversation's state is kept.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "dialog_state:"

// RedisStore keeps conversation state as JSON values in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed state store. A non-positive ttl
// uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("state: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("state: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("state: ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*dialog.ConversationState, error) {
	data, err := s.client.Get(ctx, stateKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: load %s: %w", key, err)
	}

	var st dialog.ConversationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return &st, nil
}

func (s *RedisStore) Save(ctx context.Context, st *dialog.ConversationState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", st.Key, err)
	}
	if err := s.client.Set(ctx, stateKey(st.Key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("state: save %s: %w", st.Key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, stateKey(key)).Err(); err != nil {
		return fmt.Errorf("state: delete %s: %w", key, err)
	}
	return nil
}

func stateKey(key string) string {
	return keyPrefix + key
}
