package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordingObserver struct {
	mu      sync.Mutex
	phases  []Phase
	running int
	peak    int
}

func (o *recordingObserver) PhaseEntered(p Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, p)
}

func (o *recordingObserver) WorkerStarted(int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running++
	if o.running > o.peak {
		o.peak = o.running
	}
}

func (o *recordingObserver) WorkerStopped(int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running--
}

type countingSession struct {
	calls atomic.Int32
	err   error
}

func (s *countingSession) CreatePersistentSession(context.Context) error {
	s.calls.Add(1)
	return s.err
}

// blockingFactory builds workers that block until canceled.
func blockingFactory(started chan<- int) WorkerFactory {
	return WorkerFactoryFunc(func(id int) Worker {
		return WorkerFunc(func(ctx context.Context) error {
			started <- id
			<-ctx.Done()
			return ctx.Err()
		})
	})
}

func servingManager(t *testing.T, obs Observer) *Manager {
	t.Helper()
	m := NewManager(newFakeSystem(), WithLogger(quietLogger()), WithObserver(obs))
	if err := m.Listening(); err != nil {
		t.Fatalf("Listening failed: %v", err)
	}
	return m
}

func TestServe_MultipleWorkers(t *testing.T) {
	obs := &recordingObserver{}
	m := servingManager(t, obs)
	session := &countingSession{}

	started := make(chan int, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Serve(ctx, ServeOptions{Workers: 4, Factory: blockingFactory(started), Session: session})
	}()

	seen := map[int]bool{}
	for len(seen) < 4 {
		select {
		case id := <-started:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d workers started", len(seen))
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if session.calls.Load() != 0 {
		t.Error("session must not be created eagerly with multiple workers")
	}
	if obs.peak != 4 || obs.running != 0 {
		t.Errorf("peak/running = %d/%d, want 4/0", obs.peak, obs.running)
	}
	if m.Phase() != PhaseServing {
		t.Errorf("Phase = %v", m.Phase())
	}
}

func TestServe_SingleWorkerCreatesSession(t *testing.T) {
	m := servingManager(t, nil)
	session := &countingSession{}

	var sessionBeforeWorker bool
	factory := WorkerFactoryFunc(func(int) Worker {
		return WorkerFunc(func(context.Context) error {
			sessionBeforeWorker = session.calls.Load() == 1
			return nil
		})
	})

	if err := m.Serve(context.Background(), ServeOptions{Workers: 1, Factory: factory, Session: session}); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if !sessionBeforeWorker {
		t.Error("persistent session not created before the worker ran")
	}
}

func TestServe_SessionFailure(t *testing.T) {
	m := servingManager(t, nil)
	session := &countingSession{err: errors.New("connection refused")}

	ran := false
	factory := WorkerFactoryFunc(func(int) Worker {
		return WorkerFunc(func(context.Context) error {
			ran = true
			return nil
		})
	})

	err := m.Serve(context.Background(), ServeOptions{Factory: factory, Session: session})
	if err == nil {
		t.Fatal("expected session error")
	}
	if ran {
		t.Error("worker ran despite session failure")
	}
}

func TestServe_WorkerFailureStopsOthers(t *testing.T) {
	m := servingManager(t, nil)
	boom := errors.New("boom")

	factory := WorkerFactoryFunc(func(id int) Worker {
		return WorkerFunc(func(ctx context.Context) error {
			if id == 2 {
				return boom
			}
			<-ctx.Done()
			return nil
		})
	})

	err := m.Serve(context.Background(), ServeOptions{Workers: 3, Factory: factory})
	var werr *WorkerError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WorkerError, got %v", err)
	}
	if werr.ID != 2 || !errors.Is(err, boom) {
		t.Errorf("WorkerError = %+v", werr)
	}
}

func TestServe_Ordering(t *testing.T) {
	obs := &recordingObserver{}
	m := NewManager(newFakeSystem(), WithLogger(quietLogger()), WithObserver(obs))

	factory := WorkerFactoryFunc(func(int) Worker {
		return WorkerFunc(func(context.Context) error { return nil })
	})

	if err := m.Serve(context.Background(), ServeOptions{Factory: factory}); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("Serve before Listening = %v, want ErrOutOfOrder", err)
	}

	m.Listening()
	m.SavePID("")
	m.DropPrivileges(-1, -1)
	if err := m.Serve(context.Background(), ServeOptions{Factory: factory}); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if err := m.Serve(context.Background(), ServeOptions{Factory: factory}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("second Serve = %v, want ErrOutOfOrder", err)
	}

	want := []Phase{PhaseListening, PhaseServing}
	if len(obs.phases) != len(want) || obs.phases[0] != want[0] || obs.phases[1] != want[1] {
		t.Errorf("phases = %v, want %v", obs.phases, want)
	}
}
