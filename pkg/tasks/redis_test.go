package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightshade-io/nightshade/pkg/models"
)

// fakeRedis is an in-memory RedisCommands double. TTLs are ignored; tests
// simulate expiry by deleting keys directly.
type fakeRedis struct {
	mu   sync.Mutex
	kv   map[string]string
	sets map[string]map[string]struct{}
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		kv:   make(map[string]string),
		sets: make(map[string]map[string]struct{}),
	}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.kv[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case string:
		f.kv[key] = v
	case []byte:
		f.kv[key] = string(v)
	default:
		return fmt.Errorf("unsupported value type %T", value)
	}
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.kv, key)
	}
	return nil
}

func (f *fakeRedis) SAdd(_ context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	for _, member := range members {
		set[fmt.Sprint(member)] = struct{}{}
	}
	return nil
}

func (f *fakeRedis) SRem(_ context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, member := range members {
		delete(f.sets[key], fmt.Sprint(member))
	}
	return nil
}

func (f *fakeRedis) SMembers(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]string, 0, len(f.sets[key]))
	for member := range f.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func newTestRedisStore() (*RedisStore, *fakeRedis) {
	client := newFakeRedis()
	return NewRedisStore(client, time.Minute, testLogger()), client
}

func TestRedisStore_CreateAndGet(t *testing.T) {
	store, _ := newTestRedisStore()
	ctx := context.Background()

	task := newTask("t1", models.TaskKindEmailScan, time.Now().UTC())
	require.NoError(t, store.Create(ctx, task))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.Target, got.Target)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := newTestRedisStore()

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrTaskNotFound))
}

func TestRedisStore_UpdateRefreshesUpdatedAt(t *testing.T) {
	store, _ := newTestRedisStore()
	ctx := context.Background()

	created := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, newTask("t1", models.TaskKindPhoneScan, created)))

	updated, err := store.Update(ctx, "t1", func(task *models.Task) error {
		task.Progress = 40
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Progress)
	assert.True(t, updated.UpdatedAt.After(created))
}

func TestRedisStore_ListPrunesExpiredTasks(t *testing.T) {
	store, client := newTestRedisStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTask("live", models.TaskKindEmailScan, time.Now().UTC())))
	require.NoError(t, store.Create(ctx, newTask("aged", models.TaskKindEmailScan, time.Now().UTC())))

	// TTL fires server-side; the record vanishes but the index entry and the
	// process-local lock stick around until the next List.
	require.NoError(t, client.Del(ctx, taskKey("aged")))
	_, locked := store.locks.Load("aged")
	require.True(t, locked)

	items, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "live", items[0].ID)

	ids, err := client.SMembers(ctx, taskIndexKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, ids)

	_, locked = store.locks.Load("aged")
	assert.False(t, locked, "expired task releases its mutex")
}

func TestRedisStore_DeleteReleasesLock(t *testing.T) {
	store, _ := newTestRedisStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTask("t1", models.TaskKindEmailScan, time.Now().UTC())))
	require.NoError(t, store.Delete(ctx, "t1"))

	_, err := store.Get(ctx, "t1")
	assert.True(t, errors.Is(err, ErrTaskNotFound))
	_, locked := store.locks.Load("t1")
	assert.False(t, locked)

	assert.True(t, errors.Is(store.Delete(ctx, "t1"), ErrTaskNotFound))
}
