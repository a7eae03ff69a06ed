package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley-agents/parley/pkg/api"
)

// taskTTL bounds how long finished tasks stay queryable.
const taskTTL = 12 * time.Hour

// RedisStore persists task records in Redis so they survive agent
// restarts and are visible to external observers.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 5
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connected to Redis", "url", opts.Addr)

	return &RedisStore{client: client, logger: logger}, nil
}

func taskKey(taskID string) string {
	return "task:" + taskID
}

func (s *RedisStore) Save(ctx context.Context, task *api.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := s.client.Set(ctx, taskKey(task.TaskID), data, taskTTL).Err(); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.TaskID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (*api.Task, error) {
	data, err := s.client.Get(ctx, taskKey(taskID)).Result()
	if err == redis.Nil {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}

	var task api.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	s.logger.Info("closing Redis connection")
	return s.client.Close()
}
