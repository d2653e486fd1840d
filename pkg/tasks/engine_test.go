package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightshade-io/nightshade/pkg/models"
	"github.com/nightshade-io/nightshade/pkg/scans"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeProvider drives the engine from tests without real scan fixtures
type fakeProvider struct {
	kind models.TaskKind
	run  func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error)
}

func (p *fakeProvider) Kind() models.TaskKind {
	return p.kind
}

func (p *fakeProvider) Run(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
	return p.run(ctx, target, report)
}

func newTestEngine(t *testing.T, providers ...scans.Provider) (*Engine, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	engine := NewEngine(store, scans.NewRegistry(providers...), EngineConfig{WorkerCount: 2, QueueSize: 16}, testLogger())

	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Stop(ctx)
	})

	return engine, store
}

func waitForStatus(t *testing.T, engine *Engine, id string, status models.TaskStatus) *models.Task {
	t.Helper()

	var task *models.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = engine.Get(context.Background(), id)
		if err != nil {
			return false
		}
		return task.Status == status
	}, 5*time.Second, 5*time.Millisecond, "task %s never reached status %s", id, status)
	return task
}

func TestEngine_SubmitUnknownKind(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Submit(context.Background(), models.TaskKind("dns_scan"), models.SubmitScanRequest{Target: "example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTaskKind))
}

func TestEngine_SubmitQueueFullHonorsContext(t *testing.T) {
	provider := &fakeProvider{
		kind: models.TaskKindEmailScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}

	// No workers drain the queue until Start, so the second submit has to wait
	store := NewMemoryStore()
	engine := NewEngine(store, scans.NewRegistry(provider), EngineConfig{WorkerCount: 1, QueueSize: 1}, testLogger())

	first, err := engine.Submit(context.Background(), models.TaskKindEmailScan, models.SubmitScanRequest{Target: "alice@example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = engine.Submit(ctx, models.TaskKindEmailScan, models.SubmitScanRequest{Target: "bob@example.com"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	tasks, err := engine.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		if task.ID == first.ID {
			assert.Equal(t, models.TaskStatusPending, task.Status)
		} else {
			assert.Equal(t, models.TaskStatusCancelled, task.Status)
		}
	}
}

func TestEngine_SubmitAndComplete(t *testing.T) {
	provider := &fakeProvider{
		kind: models.TaskKindEmailScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			for _, p := range []int{10, 50, 100} {
				if err := report(p); err != nil {
					return nil, err
				}
			}
			return json.RawMessage(`{"email":"` + target + `"}`), nil
		},
	}
	engine, _ := newTestEngine(t, provider)

	task, err := engine.Submit(context.Background(), models.TaskKindEmailScan, models.SubmitScanRequest{
		Target:          "alice@example.com",
		InvestigationID: "inv-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, "alice@example.com", task.Target)
	assert.Equal(t, "inv-1", task.InvestigationID)

	finished := waitForStatus(t, engine, task.ID, models.TaskStatusCompleted)
	assert.Equal(t, 100, finished.Progress)
	assert.JSONEq(t, `{"email":"alice@example.com"}`, string(finished.Result))
	assert.NotNil(t, finished.StartedAt)
	assert.NotNil(t, finished.CompletedAt)
	assert.Empty(t, finished.Error)
}

func TestEngine_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{
		kind: models.TaskKindPhoneScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			_ = report(10)
			return nil, errors.New("upstream returned 429")
		},
	}
	engine, _ := newTestEngine(t, provider)

	task, err := engine.Submit(context.Background(), models.TaskKindPhoneScan, models.SubmitScanRequest{Target: "+15551234567"})
	require.NoError(t, err)

	finished := waitForStatus(t, engine, task.ID, models.TaskStatusFailed)
	assert.Contains(t, finished.Error, "upstream returned 429")
	assert.Nil(t, finished.Result)
}

func TestEngine_CancelRunningTask(t *testing.T) {
	started := make(chan struct{})
	provider := &fakeProvider{
		kind: models.TaskKindSocialScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			_ = report(10)
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	engine, _ := newTestEngine(t, provider)

	task, err := engine.Submit(context.Background(), models.TaskKindSocialScan, models.SubmitScanRequest{Target: "ghost"})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("provider never started")
	}

	require.NoError(t, engine.Cancel(context.Background(), task.ID))

	finished := waitForStatus(t, engine, task.ID, models.TaskStatusCancelled)
	assert.NotNil(t, finished.CompletedAt)
}

func TestEngine_CancellationWinsOverCompletion(t *testing.T) {
	cancelled := make(chan struct{})
	provider := &fakeProvider{
		kind: models.TaskKindImageScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			_ = report(10)
			<-cancelled
			// Finish normally despite the cancel request
			return json.RawMessage(`{}`), nil
		},
	}
	engine, _ := newTestEngine(t, provider)

	task, err := engine.Submit(context.Background(), models.TaskKindImageScan, models.SubmitScanRequest{Target: "photo.jpg"})
	require.NoError(t, err)

	waitForStatus(t, engine, task.ID, models.TaskStatusProcessing)
	require.NoError(t, engine.Cancel(context.Background(), task.ID))
	close(cancelled)

	finished := waitForStatus(t, engine, task.ID, models.TaskStatusCancelled)
	assert.Nil(t, finished.Result)
}

func TestEngine_CancelPendingTask(t *testing.T) {
	store := NewMemoryStore()
	provider := &fakeProvider{
		kind: models.TaskKindEmailScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
	// Engine is never started, so the task stays pending
	engine := NewEngine(store, scans.NewRegistry(provider), EngineConfig{}, testLogger())

	task, err := engine.Submit(context.Background(), models.TaskKindEmailScan, models.SubmitScanRequest{Target: "bob@example.com"})
	require.NoError(t, err)

	require.NoError(t, engine.Cancel(context.Background(), task.ID))

	got, err := engine.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, got.Status)
}

func TestEngine_CancelTerminalTask(t *testing.T) {
	provider := &fakeProvider{
		kind: models.TaskKindEmailScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
	engine, _ := newTestEngine(t, provider)

	task, err := engine.Submit(context.Background(), models.TaskKindEmailScan, models.SubmitScanRequest{Target: "bob@example.com"})
	require.NoError(t, err)

	waitForStatus(t, engine, task.ID, models.TaskStatusCompleted)

	err = engine.Cancel(context.Background(), task.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestEngine_CancelUnknownTask(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.Cancel(context.Background(), "no-such-task")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskNotFound))
}

func TestEngine_ProgressIsMonotoneAndClamped(t *testing.T) {
	gate := make(chan struct{})
	observed := make(chan int, 8)
	provider := &fakeProvider{
		kind: models.TaskKindPhoneScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			for _, p := range []int{40, 20, 150} {
				if err := report(p); err != nil {
					return nil, err
				}
				gate <- struct{}{}
				<-gate
			}
			return json.RawMessage(`{}`), nil
		},
	}
	engine, _ := newTestEngine(t, provider)

	task, err := engine.Submit(context.Background(), models.TaskKindPhoneScan, models.SubmitScanRequest{Target: "+15550000000"})
	require.NoError(t, err)

	go func() {
		for range gate {
			got, err := engine.Get(context.Background(), task.ID)
			if err == nil {
				observed <- got.Progress
			}
			gate <- struct{}{}
		}
	}()

	finished := waitForStatus(t, engine, task.ID, models.TaskStatusCompleted)
	close(gate)
	close(observed)

	assert.Equal(t, 100, finished.Progress)

	last := 0
	for p := range observed {
		assert.GreaterOrEqual(t, p, last, "progress went backwards")
		assert.LessOrEqual(t, p, 100)
		last = p
	}
}

func TestEngine_CompletionHook(t *testing.T) {
	provider := &fakeProvider{
		kind: models.TaskKindEmailScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		},
	}

	store := NewMemoryStore()
	engine := NewEngine(store, scans.NewRegistry(provider), EngineConfig{WorkerCount: 1}, testLogger())

	var hookCalls atomic.Int32
	hooked := make(chan *models.Task, 1)
	engine.SetCompletionHook(func(ctx context.Context, task *models.Task) {
		hookCalls.Add(1)
		hooked <- task
	})

	require.NoError(t, engine.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Stop(ctx)
	}()

	task, err := engine.Submit(context.Background(), models.TaskKindEmailScan, models.SubmitScanRequest{Target: "carol@example.com"})
	require.NoError(t, err)

	select {
	case got := <-hooked:
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, models.TaskStatusCompleted, got.Status)
		assert.JSONEq(t, `{"ok":true}`, string(got.Result))
	case <-time.After(5 * time.Second):
		t.Fatal("completion hook never fired")
	}
	assert.Equal(t, int32(1), hookCalls.Load())
}

func TestEngine_ListFilters(t *testing.T) {
	provider := &fakeProvider{
		kind: models.TaskKindEmailScan,
		run: func(ctx context.Context, target string, report scans.ProgressFunc) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
	engine, _ := newTestEngine(t, provider)

	first, err := engine.Submit(context.Background(), models.TaskKindEmailScan, models.SubmitScanRequest{Target: "a@example.com", InvestigationID: "inv-1"})
	require.NoError(t, err)
	second, err := engine.Submit(context.Background(), models.TaskKindEmailScan, models.SubmitScanRequest{Target: "b@example.com", InvestigationID: "inv-2"})
	require.NoError(t, err)

	waitForStatus(t, engine, first.ID, models.TaskStatusCompleted)
	waitForStatus(t, engine, second.ID, models.TaskStatusCompleted)

	all, err := engine.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := engine.List(context.Background(), Filter{InvestigationID: "inv-2"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, second.ID, scoped[0].ID)

	none, err := engine.List(context.Background(), Filter{Status: models.TaskStatusFailed})
	require.NoError(t, err)
	assert.Empty(t, none)
}
