package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightshade-io/nightshade/pkg/models"
)

func newTask(id string, kind models.TaskKind, createdAt time.Time) *models.Task {
	return &models.Task{
		ID:        id,
		Kind:      kind,
		Status:    models.TaskStatusPending,
		Target:    "target-" + id,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	task := newTask("t1", models.TaskKindEmailScan, time.Now())
	require.NoError(t, store.Create(ctx, task))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.Target, got.Target)

	// Snapshots are independent of the stored record
	got.Target = "mutated"
	again, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "target-t1", again.Target)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskNotFound))
}

func TestMemoryStore_UpdateFailedMutatorLeavesRecordIntact(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTask("t1", models.TaskKindEmailScan, time.Now())))

	boom := errors.New("mutator failed")
	_, err := store.Update(ctx, "t1", func(task *models.Task) error {
		task.Status = models.TaskStatusFailed
		return boom
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, got.Status)
}

func TestMemoryStore_UpdateRefreshesUpdatedAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created := time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, newTask("t1", models.TaskKindPhoneScan, created)))

	updated, err := store.Update(ctx, "t1", func(task *models.Task) error {
		task.Progress = 40
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Progress)
	assert.True(t, updated.UpdatedAt.After(created))
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, store.Create(ctx, newTask("old", models.TaskKindEmailScan, base.Add(-2*time.Minute))))
	require.NoError(t, store.Create(ctx, newTask("new", models.TaskKindEmailScan, base)))
	require.NoError(t, store.Create(ctx, newTask("mid", models.TaskKindPhoneScan, base.Add(-time.Minute))))

	items, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "mid", items[1].ID)
	assert.Equal(t, "old", items[2].ID)
}

func TestMemoryStore_ListFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := newTask("a", models.TaskKindEmailScan, time.Now())
	a.InvestigationID = "inv-1"
	b := newTask("b", models.TaskKindPhoneScan, time.Now())
	b.InvestigationID = "inv-2"
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, b))

	byKind, err := store.List(ctx, Filter{Kind: models.TaskKindPhoneScan})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, "b", byKind[0].ID)

	byInvestigation, err := store.List(ctx, Filter{InvestigationID: "inv-1"})
	require.NoError(t, err)
	require.Len(t, byInvestigation, 1)
	assert.Equal(t, "a", byInvestigation[0].ID)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTask("t1", models.TaskKindEmailScan, time.Now())))
	require.NoError(t, store.Delete(ctx, "t1"))

	_, err := store.Get(ctx, "t1")
	assert.True(t, errors.Is(err, ErrTaskNotFound))

	assert.True(t, errors.Is(store.Delete(ctx, "t1"), ErrTaskNotFound))
}

func TestMemoryStore_ConcurrentUpdates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTask("t1", models.TaskKindEmailScan, time.Now())))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "t1", func(task *models.Task) error {
				task.Progress++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
}
