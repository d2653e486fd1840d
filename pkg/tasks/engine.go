package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/nightshade-io/nightshade/pkg/metrics"
	"github.com/nightshade-io/nightshade/pkg/models"
	"github.com/nightshade-io/nightshade/pkg/scans"
	"github.com/nightshade-io/nightshade/pkg/tracing"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 4

	// DefaultQueueSize is the default submission queue depth
	DefaultQueueSize = 256
)

// errNotPending aborts a start transition when the task left pending state
// before a worker picked it up (cancel-before-start).
var errNotPending = errors.New("task is not pending")

// CompletionHook is invoked after a task reaches the completed state. Used to
// materialize scan results into the entity graph and emit events.
type CompletionHook func(ctx context.Context, task *models.Task)

// EngineConfig holds configuration for the task engine
type EngineConfig struct {
	WorkerCount int
	QueueSize   int
}

// Engine schedules scan tasks against enrichment providers and guarantees
// callers always observe a consistent, monotonically advancing task state.
type Engine struct {
	store       Store
	registry    *scans.Registry
	config      EngineConfig
	logger      ectologger.Logger
	onCompleted CompletionHook

	jobsCh  chan string
	stopCh  chan struct{}
	wg      sync.WaitGroup
	handles sync.Map // task id -> *taskHandle

	running bool
	mu      sync.Mutex
}

// taskHandle tracks an in-flight execution so cancel can reach it
type taskHandle struct {
	ctx             context.Context
	cancel          context.CancelFunc
	cancelRequested atomic.Bool
}

// NewEngine creates a task engine. Workers do not run until Start is called.
func NewEngine(store Store, registry *scans.Registry, config EngineConfig, logger ectologger.Logger) *Engine {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultWorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	return &Engine{
		store:    store,
		registry: registry,
		config:   config,
		logger:   logger,
		jobsCh:   make(chan string, config.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// SetCompletionHook registers the hook invoked for completed tasks
func (e *Engine) SetCompletionHook(hook CompletionHook) {
	e.onCompleted = hook
}

// GetName implements startup.Dependency
func (e *Engine) GetName() string {
	return "task-engine"
}

// DependsOn implements startup.Dependency
func (e *Engine) DependsOn() []string {
	return []string{}
}

// Start launches the worker pool
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return errors.New("task engine already running")
	}
	e.running = true

	for i := 0; i < e.config.WorkerCount; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	e.logger.WithContext(ctx).WithField("workers", e.config.WorkerCount).Info("Task engine started")
	return nil
}

// Stop signals workers to drain and waits for in-flight scans to wind down.
// In-flight executions are cancelled so shutdown is bounded by checkpoint
// latency, not by the slowest provider.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.handles.Range(func(_, value any) bool {
		handle := value.(*taskHandle)
		handle.cancelRequested.Store(true)
		handle.cancel()
		return true
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.WithContext(ctx).Info("Task engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates the kind, creates a pending task visible to readers, and
// schedules execution. Returns without waiting for the scan to start; when
// the queue is full it blocks only until ctx is done.
func (e *Engine) Submit(ctx context.Context, kind models.TaskKind, req models.SubmitScanRequest) (*models.Task, error) {
	ctx, span := tracing.StartSpan(ctx, "tasks.Engine.Submit")
	defer span.End()

	if e.registry.Get(kind) == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskKind, kind)
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:              uuid.New().String(),
		Kind:            kind,
		Status:          models.TaskStatusPending,
		Progress:        0,
		Target:          req.Target,
		InvestigationID: req.InvestigationID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.store.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.handles.Store(task.ID, &taskHandle{ctx: runCtx, cancel: cancel})

	select {
	case e.jobsCh <- task.ID:
	case <-e.stopCh:
		e.handles.Delete(task.ID)
		cancel()
		e.finalizeCancelled(context.Background(), task.ID)
		return nil, ErrEngineStopped
	case <-ctx.Done():
		// Queue is full and the caller gave up; don't leave the record pending
		e.handles.Delete(task.ID)
		cancel()
		e.finalizeCancelled(context.Background(), task.ID)
		return nil, ctx.Err()
	}

	metrics.TasksSubmitted.WithLabelValues(string(kind)).Inc()

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"task_id": task.ID,
		"kind":    kind,
	}).Info("Submitted scan task")

	return task.Clone(), nil
}

// Get returns a snapshot of a task
func (e *Engine) Get(ctx context.Context, id string) (*models.Task, error) {
	return e.store.Get(ctx, id)
}

// List returns task snapshots matching the filter
func (e *Engine) List(ctx context.Context, filter Filter) ([]*models.Task, error) {
	return e.store.List(ctx, filter)
}

// Cancel requests cooperative cancellation. A pending task is cancelled
// immediately; a processing task observes the request at its next checkpoint.
// Cancelling a terminal task fails with ErrInvalidTransition.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "tasks.Engine.Cancel")
	defer span.End()

	task, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return fmt.Errorf("%w: task %s is already %s", ErrInvalidTransition, id, task.Status)
	}

	if value, ok := e.handles.Load(id); ok {
		handle := value.(*taskHandle)
		handle.cancelRequested.Store(true)
		handle.cancel()
	}

	// Finalize now if the task never started; a running task is finalized by
	// its worker once the provider returns.
	_, err = e.store.Update(ctx, id, func(t *models.Task) error {
		if t.Status == models.TaskStatusPending {
			completed := time.Now().UTC()
			t.Status = models.TaskStatusCancelled
			t.CompletedAt = &completed
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.TasksCancelled.Inc()

	e.logger.WithContext(ctx).WithField("task_id", id).Info("Cancellation requested")
	return nil
}

func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopCh:
			return
		case id := <-e.jobsCh:
			e.run(id)
		}
	}
}

// run drives one task against its provider. It is the sole writer for the
// task once the pending→processing transition succeeds.
func (e *Engine) run(id string) {
	ctx, span := tracing.StartSpan(context.Background(), "tasks.Engine.run")
	defer span.End()

	value, ok := e.handles.Load(id)
	if !ok {
		return
	}
	handle := value.(*taskHandle)
	defer func() {
		e.handles.Delete(id)
		handle.cancel()
	}()

	log := e.logger.WithContext(ctx).WithField("task_id", id)

	task, err := e.store.Get(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to load task for execution")
		return
	}

	if handle.cancelRequested.Load() {
		e.finalizeCancelled(ctx, id)
		return
	}

	provider := e.registry.Get(task.Kind)
	if provider == nil {
		// Submit validated the kind; a missing provider here is a programming error
		log.Errorf("No provider registered for kind %q", task.Kind)
		return
	}

	started := time.Now().UTC()
	_, err = e.store.Update(ctx, id, func(t *models.Task) error {
		if t.Status != models.TaskStatusPending {
			return errNotPending
		}
		t.Status = models.TaskStatusProcessing
		t.StartedAt = &started
		return nil
	})
	if err != nil {
		if !errors.Is(err, errNotPending) {
			log.WithError(err).Error("Failed to start task")
		}
		return
	}

	metrics.ScansInFlight.Inc()
	defer metrics.ScansInFlight.Dec()

	lastProgress := 0
	report := func(progress int) error {
		if handle.cancelRequested.Load() || handle.ctx.Err() != nil {
			return context.Canceled
		}

		// Monotonic, clamped to [0,100]
		if progress < lastProgress {
			progress = lastProgress
		}
		if progress > 100 {
			progress = 100
		}
		lastProgress = progress

		_, updateErr := e.store.Update(ctx, id, func(t *models.Task) error {
			if t.Status != models.TaskStatusProcessing {
				return errNotPending
			}
			t.Progress = progress
			return nil
		})
		if updateErr != nil && !errors.Is(updateErr, errNotPending) {
			log.WithError(updateErr).Warn("Failed to persist progress update")
		}
		return nil
	}

	result, runErr := provider.Run(handle.ctx, task.Target, report)
	duration := time.Since(started)

	switch {
	case handle.cancelRequested.Load() || errors.Is(runErr, context.Canceled):
		// Cancellation wins once observed, even if the provider finished normally
		e.finalizeCancelled(ctx, id)
		metrics.RecordScan(string(task.Kind), string(models.TaskStatusCancelled), duration)
		log.Info("Task cancelled")

	case runErr != nil:
		providerErr := fmt.Errorf("%w: %v", ErrProviderFailure, runErr)
		completed := time.Now().UTC()
		_, err = e.store.Update(ctx, id, func(t *models.Task) error {
			if t.Status.IsTerminal() {
				return fmt.Errorf("task %s already terminal in state %s", id, t.Status)
			}
			t.Status = models.TaskStatusFailed
			t.Error = providerErr.Error()
			t.CompletedAt = &completed
			return nil
		})
		if err != nil {
			log.WithError(err).Error("Failed to record task failure")
		}
		metrics.RecordScan(string(task.Kind), string(models.TaskStatusFailed), duration)
		log.WithError(runErr).Warn("Task failed")

	default:
		completed := time.Now().UTC()
		finished, err := e.store.Update(ctx, id, func(t *models.Task) error {
			if t.Status.IsTerminal() {
				return fmt.Errorf("task %s already terminal in state %s", id, t.Status)
			}
			t.Status = models.TaskStatusCompleted
			t.Progress = 100
			t.Result = result
			t.CompletedAt = &completed
			return nil
		})
		if err != nil {
			log.WithError(err).Error("Failed to record task completion")
			return
		}
		metrics.RecordScan(string(task.Kind), string(models.TaskStatusCompleted), duration)
		log.WithField("duration", duration.String()).Info("Task completed")

		if e.onCompleted != nil {
			e.onCompleted(ctx, finished)
		}
	}
}

func (e *Engine) finalizeCancelled(ctx context.Context, id string) {
	_, err := e.store.Update(ctx, id, func(t *models.Task) error {
		if t.Status.IsTerminal() {
			return nil
		}
		completed := time.Now().UTC()
		t.Status = models.TaskStatusCancelled
		t.CompletedAt = &completed
		return nil
	})
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("task_id", id).Error("Failed to finalize cancelled task")
	}
}
