package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// listPusher is the subset of the redis client used by RedisQueue.
type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisQueue pushes batches onto a Redis list for asynchronous consumers.
type RedisQueue struct {
	client listPusher
	key    string
}

// NewRedisQueue creates a queue sink writing to key.
func NewRedisQueue(client listPusher, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Name() string { return "redis" }

// Publish LPUSHes the JSON encoded batch.
func (q *RedisQueue) Publish(ctx context.Context, batch Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push to redis queue: %w", err)
	}
	return nil
}
