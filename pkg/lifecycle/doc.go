// Package lifecycle sequences the process-level startup steps that follow
// listener bootstrap: daemonization, PID file persistence, privilege drop
// and worker start.
//
// The steps run in a fixed order and each may run at most once:
//
//	Listening -> Daemonized? -> PIDSaved? -> PrivilegesDropped? -> Serving
//
// A step invoked after a later step has already run fails with
// ErrOutOfOrder. Optional steps that do not apply (no daemon, no PID file,
// not running as root) still advance the sequence, so they cannot be run
// afterwards either.
//
// All process-level effects go through the System interface. OS is the
// implementation backed by the running process; tests substitute a fake
// that records calls.
//
// # Daemonization
//
// A Go process cannot fork after the runtime has started, so OS.Daemonize
// re-executes the binary in a new session with the bound listening sockets
// passed as extra descriptors. The child recognizes itself through
// EnvDaemonChild, adopts the inherited sockets and continues from the
// Daemonized step. The parent returns and exits with status 0.
package lifecycle
