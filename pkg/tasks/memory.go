package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nightshade-io/nightshade/pkg/models"
)

// MemoryStore is an in-memory Store implementation guarded per task id.
// The map itself is protected by a read-write mutex; each record carries its
// own mutex so concurrent updates to different tasks never contend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	mu   sync.Mutex
	task *models.Task
}

// NewMemoryStore creates an empty in-memory task store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Create(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	s.entries[task.ID] = &memoryEntry{task: task.Clone()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrTaskNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.task.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*models.Task) error) (*models.Task, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrTaskNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Mutate a copy so a failed mutator leaves the stored record untouched
	updated := entry.task.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()
	entry.task = updated

	return updated.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*models.Task, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	items := make([]*models.Task, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		task := entry.task.Clone()
		entry.mu.Unlock()

		if filter.Matches(task) {
			items = append(items, task)
		}
	}

	// Newest first, stable across calls
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return items, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.entries, id)
	return nil
}
