package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nightshade-io/nightshade/pkg/models"
)

const (
	taskKeyPrefix = "nightshade:task:"
	taskIndexKey  = "nightshade:tasks"
)

// RedisCommands is the slice of the redis client the task store needs.
// Satisfied by *redis.Client.
type RedisCommands interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...interface{}) error
	SRem(ctx context.Context, key string, members ...interface{}) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// RedisStore is a Redis-backed Store implementation. Records are stored as
// JSON blobs with a TTL so finished tasks age out without a reaper. Updates
// are serialized per task id with process-local mutexes, which is sufficient
// because the engine is the single writer for any given task.
type RedisStore struct {
	client RedisCommands
	logger ectologger.Logger
	ttl    time.Duration
	locks  sync.Map // task id -> *sync.Mutex
}

// NewRedisStore creates a Redis-backed task store. A zero ttl disables expiry.
func NewRedisStore(client RedisCommands, ttl time.Duration, logger ectologger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func (s *RedisStore) lock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func taskKey(id string) string {
	return taskKeyPrefix + id
}

func (s *RedisStore) write(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	return s.client.Set(ctx, taskKey(task.ID), data, s.ttl)
}

func (s *RedisStore) read(ctx context.Context, id string) (*models.Task, error) {
	raw, err := s.client.Get(ctx, taskKey(id))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to read task %s: %w", id, err)
	}

	var task models.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

func (s *RedisStore) Create(ctx context.Context, task *models.Task) error {
	mu := s.lock(task.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.write(ctx, task); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, taskIndexKey, task.ID); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("failed to index task")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Task, error) {
	return s.read(ctx, id)
}

func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*models.Task) error) (*models.Task, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	task, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(task); err != nil {
		return nil, err
	}
	task.UpdatedAt = time.Now().UTC()

	if err := s.write(ctx, task); err != nil {
		return nil, err
	}
	return task.Clone(), nil
}

func (s *RedisStore) List(ctx context.Context, filter Filter) ([]*models.Task, error) {
	ids, err := s.client.SMembers(ctx, taskIndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list task index: %w", err)
	}

	items := make([]*models.Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.read(ctx, id)
		if err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				// Expired record, drop it from the index and release its lock
				_ = s.client.SRem(ctx, taskIndexKey, id)
				s.locks.Delete(id)
				continue
			}
			return nil, err
		}
		if filter.Matches(task) {
			items = append(items, task)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return items, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.read(ctx, id); err != nil {
		return err
	}

	if err := s.client.Del(ctx, taskKey(id)); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	_ = s.client.SRem(ctx, taskIndexKey, id)
	s.locks.Delete(id)
	return nil
}
