package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Worker is one acceptance loop.
type Worker interface {
	// Run serves until ctx is canceled. A nil return on cancellation is a
	// clean exit; any other error stops every worker.
	Run(ctx context.Context) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// WorkerFactory creates worker id, counting from 0.
type WorkerFactory interface {
	NewWorker(id int) Worker
}

// WorkerFactoryFunc adapts a function to WorkerFactory.
type WorkerFactoryFunc func(id int) Worker

// NewWorker calls f(id).
func (f WorkerFactoryFunc) NewWorker(id int) Worker {
	return f(id)
}

// SessionFactory eagerly creates the persistent downstream HTTP/2 session.
type SessionFactory interface {
	CreatePersistentSession(ctx context.Context) error
}

// WorkerError reports the worker that failed first.
type WorkerError struct {
	ID  int
	Err error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d: %v", e.ID, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// runWorkers starts n workers under one errgroup and waits for all of
// them. The first failure cancels the others.
func (m *Manager) runWorkers(ctx context.Context, n int, factory WorkerFactory) error {
	g, gctx := errgroup.WithContext(ctx)

	m.logger.Info("starting workers", "count", n)
	for id := 0; id < n; id++ {
		w := factory.NewWorker(id)
		g.Go(func() error {
			if m.observer != nil {
				m.observer.WorkerStarted(id)
				defer m.observer.WorkerStopped(id)
			}

			err := w.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("worker failed", "worker", id, "error", err)
				return &WorkerError{ID: id, Err: err}
			}
			return nil
		})
	}

	err := g.Wait()
	m.logger.Info("all workers stopped")
	return err
}
