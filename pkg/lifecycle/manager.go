package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// PIDFileMode is the permission of the PID file.
const PIDFileMode os.FileMode = 0o644

// System is the set of process-level operations the Manager performs.
type System interface {
	Geteuid() int
	Setgid(gid int) error
	Setuid(uid int) error
	Getpid() int
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Daemonize detaches the process. It returns parent == true in the
	// process that must now exit, and false in the detached process.
	Daemonize(listeners Exporter) (parent bool, err error)
}

// Exporter exposes the listening sockets to be handed to a detached
// process. *listener.Set implements it.
type Exporter interface {
	Files() ([]*os.File, error)
}

// Observer is notified of phase transitions and worker activity.
type Observer interface {
	PhaseEntered(p Phase)
	WorkerStarted(id int)
	WorkerStopped(id int)
}

// Manager runs the startup steps in order. It is not safe for concurrent
// use during startup; Serve is the only method that spawns goroutines.
type Manager struct {
	sys      System
	logger   *slog.Logger
	observer Observer

	mu     sync.Mutex
	phase  Phase // last step that took effect
	cursor Phase // furthest step reached, taken or skipped
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// NewManager creates a Manager in PhaseNotDaemonized.
func NewManager(sys System, opts ...Option) *Manager {
	m := &Manager{
		sys:    sys,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Phase returns the last step that took effect.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// enter moves the cursor to step. It fails if step is not strictly after
// the cursor or if a prerequisite step was never reached.
func (m *Manager) enter(step Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if step <= m.cursor {
		return fmt.Errorf("%w: %s after %s", ErrOutOfOrder, step, m.cursor)
	}
	if step > PhaseListening && m.cursor < PhaseListening {
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder, step, PhaseListening)
	}
	m.cursor = step
	return nil
}

// took records that step had an effect.
func (m *Manager) took(step Phase) {
	m.mu.Lock()
	m.phase = step
	m.mu.Unlock()
	if m.observer != nil {
		m.observer.PhaseEntered(step)
	}
}

// Listening records that the listening sockets are bound and every
// immutable startup state has been built.
func (m *Manager) Listening() error {
	if err := m.enter(PhaseListening); err != nil {
		return err
	}
	m.took(PhaseListening)
	return nil
}

// Daemonize detaches the process when enabled. When it reports
// parent == true the caller must release its listeners and exit with
// status 0.
func (m *Manager) Daemonize(enabled bool, listeners Exporter) (parent bool, err error) {
	if err := m.enter(PhaseDaemonized); err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}

	parent, err = m.sys.Daemonize(listeners)
	if err != nil {
		return false, fmt.Errorf("daemon failed: %w", err)
	}
	if parent {
		m.logger.Debug("detached daemon process started")
		return true, nil
	}
	m.took(PhaseDaemonized)
	return false, nil
}

// SavePID writes the process id followed by a newline to path. An empty
// path skips the step.
func (m *Manager) SavePID(path string) error {
	if err := m.enter(PhasePIDSaved); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	pid := m.sys.Getpid()
	if err := m.sys.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), PIDFileMode); err != nil {
		return fmt.Errorf("could not save PID to file %s: %w", path, err)
	}
	m.logger.Info("saved PID file", "path", path, "pid", pid)
	m.took(PhasePIDSaved)
	return nil
}

// DropPrivileges switches to gid and uid when running with effective uid
// 0 and uid is a non-root account. A negative uid means no user was
// configured. After switching, regaining root must be impossible.
func (m *Manager) DropPrivileges(uid, gid int) error {
	if err := m.enter(PhasePrivilegesDropped); err != nil {
		return err
	}
	if m.sys.Geteuid() != 0 || uid <= 0 {
		return nil
	}

	if err := m.sys.Setgid(gid); err != nil {
		return fmt.Errorf("could not change gid to %d: %w", gid, err)
	}
	if err := m.sys.Setuid(uid); err != nil {
		return fmt.Errorf("could not change uid to %d: %w", uid, err)
	}
	if err := m.sys.Setuid(0); err == nil {
		return ErrPrivilegesRegained
	}

	m.logger.Info("dropped privileges", "uid", uid, "gid", gid)
	m.took(PhasePrivilegesDropped)
	return nil
}

// ServeOptions describes how the acceptance loop runs.
type ServeOptions struct {
	// Workers is the number of worker loops. Values below 1 mean 1.
	Workers int

	// Factory creates the worker loops.
	Factory WorkerFactory

	// Session, if non-nil, is created eagerly before the single worker
	// starts. It is ignored when Workers > 1; each worker then owns its
	// downstream session.
	Session SessionFactory
}

// Serve starts the workers and blocks until ctx is canceled or a worker
// fails. It returns nil on cancellation.
func (m *Manager) Serve(ctx context.Context, opts ServeOptions) error {
	if err := m.enter(PhaseServing); err != nil {
		return err
	}
	if opts.Factory == nil {
		return fmt.Errorf("no worker factory")
	}
	m.took(PhaseServing)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	if workers == 1 && opts.Session != nil {
		if err := opts.Session.CreatePersistentSession(ctx); err != nil {
			return fmt.Errorf("failed to create downstream session: %w", err)
		}
	}

	return m.runWorkers(ctx, workers, opts.Factory)
}
