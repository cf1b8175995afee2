package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueue pushes JSON events onto a Redis list consumed by downstream workers.
type RedisQueue struct {
	client redis.UniversalClient
	queue  string
}

// NewRedisQueue publishes onto the named list.
func NewRedisQueue(client redis.UniversalClient, queue string) *RedisQueue {
	return &RedisQueue{client: client, queue: queue}
}

func (q *RedisQueue) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := q.client.LPush(ctx, q.queue, body).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", event.Type, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (q *RedisQueue) Close() error {
	return nil
}
