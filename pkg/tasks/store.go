package tasks

import (
	"context"

	"github.com/nightshade-io/nightshade/pkg/models"
)

// Filter narrows task list queries
type Filter struct {
	Kind            models.TaskKind
	Status          models.TaskStatus
	InvestigationID string
}

// Matches reports whether a task satisfies the filter
func (f Filter) Matches(t *models.Task) bool {
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.InvestigationID != "" && t.InvestigationID != f.InvestigationID {
		return false
	}
	return true
}

// Store is the concurrency-safe task record repository. Updates on the same
// task id are serialized; updates on different ids proceed independently.
// Reads always return snapshots, never live records.
type Store interface {
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, id string, mutate func(*models.Task) error) (*models.Task, error)
	List(ctx context.Context, filter Filter) ([]*models.Task, error)
	Delete(ctx context.Context, id string) error
}
