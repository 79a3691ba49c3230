package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"chat-relay/domain/event"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// flakyWorker panics a fixed number of times before completing.
type flakyWorker struct {
	panicsLeft int32
	runs       atomic.Int32
	done       chan struct{}
}

func (w *flakyWorker) Run(ctx context.Context) error {
	w.runs.Add(1)
	if atomic.AddInt32(&w.panicsLeft, -1) >= 0 {
		panic("boom")
	}
	close(w.done)
	return nil
}

func Test_Supervisor_Restarts_Panicking_Worker(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	telemetry := make(chan event.TechnicalEvent, 10)

	// Given a worker that panics twice before succeeding
	worker := &flakyWorker{panicsLeft: 2, done: make(chan struct{})}
	supervisor := NewSupervisor(log, telemetry, 10*time.Millisecond)
	supervisor.Add(worker)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(finished)
	}()

	// Then the worker eventually completes after two restarts
	select {
	case <-worker.done:
	case <-time.After(3 * time.Second):
		req.Fail("worker never completed")
	}
	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		req.Fail("supervisor never returned")
	}
	req.Equal(int32(3), worker.runs.Load())

	// And each panic was reported
	req.Len(telemetry, 2)
	reported := <-telemetry
	req.Equal(event.RestartedAfterPanicType, reported.Type)
}

func Test_Supervisor_Stop_Cancels_Workers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a worker that only returns when its context is canceled
	started := make(chan struct{})
	blocking := workerFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	})

	supervisor := NewSupervisor(log, nil, 10*time.Millisecond)
	supervisor.Add(blocking)

	finished := make(chan struct{})
	go func() {
		supervisor.Run(context.Background())
		close(finished)
	}()

	<-started
	supervisor.Stop()

	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		req.Fail("supervisor did not stop its workers")
	}
}

type workerFunc func(ctx context.Context) error

func (f workerFunc) Run(ctx context.Context) error { return f(ctx) }
