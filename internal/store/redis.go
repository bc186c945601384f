package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/growthpro/messaging/internal/models"
)

// RedisStore handles Redis operations: the realtime change-notification
// bus and the counters behind the HTTP edge rate limiter.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for middleware that needs raw
// pipeline access.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// UserChannel returns the realtime channel name for one user.
func UserChannel(userID string) string {
	return fmt.Sprintf("user:%s:events", userID)
}

// PublishEvent pushes a message event onto a user's realtime channel.
func (s *RedisStore) PublishEvent(ctx context.Context, userID string, event *models.MessageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, UserChannel(userID), data).Err()
}

// Subscribe opens a pub/sub subscription on the given user channels.
// The caller owns the returned subscription and must close it.
func (s *RedisStore) Subscribe(ctx context.Context, userIDs ...string) *redis.PubSub {
	channels := make([]string, len(userIDs))
	for i, id := range userIDs {
		channels[i] = UserChannel(id)
	}
	return s.client.Subscribe(ctx, channels...)
}
