// Package scans defines the enrichment provider contract and the simulated
// providers backing each scan kind. Providers are the seam between the task
// engine and any real intelligence source; everything here produces
// deterministic fixtures derived from the target so results are reproducible.
package scans

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"time"

	"github.com/nightshade-io/nightshade/pkg/models"
)

// ProgressFunc reports a progress checkpoint in [0,100]. It returns an error
// when the task has been cancelled; providers must stop and return that error.
type ProgressFunc func(progress int) error

// Provider performs the lookup for one scan kind. Run must call report at
// its checkpoints with non-decreasing values and must honor ctx cancellation
// between checkpoints.
type Provider interface {
	Kind() models.TaskKind
	Run(ctx context.Context, target string, report ProgressFunc) (json.RawMessage, error)
}

// Registry maps task kinds to their providers
type Registry struct {
	providers map[models.TaskKind]Provider
}

// NewRegistry creates a registry with the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[models.TaskKind]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Kind()] = p
	}
	return r
}

// Register adds or replaces a provider
func (r *Registry) Register(p Provider) {
	r.providers[p.Kind()] = p
}

// Get returns the provider for a kind, or nil when none is registered
func (r *Registry) Get(kind models.TaskKind) Provider {
	return r.providers[kind]
}

// Kinds returns the registered kinds
func (r *Registry) Kinds() []models.TaskKind {
	kinds := make([]models.TaskKind, 0, len(r.providers))
	for kind := range r.providers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// DefaultRegistry returns a registry with all simulated providers wired, each
// pausing stepDelay between checkpoints to mimic external API latency.
func DefaultRegistry(stepDelay time.Duration) *Registry {
	return NewRegistry(
		NewEmailProvider(stepDelay),
		NewPhoneProvider(stepDelay),
		NewSocialProvider(stepDelay),
		NewImageProvider(stepDelay),
		NewGenericProvider(stepDelay),
	)
}

// targetHash gives a stable seed for fixture generation
func targetHash(parts ...string) uint64 {
	h := fnv.New64a()
	for _, part := range parts {
		h.Write([]byte(part))
	}
	return h.Sum64()
}

// pause sleeps for d unless the context is cancelled first
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clampConfidence(v int) int {
	if v > 95 {
		return 95
	}
	if v < 0 {
		return 0
	}
	return v
}
