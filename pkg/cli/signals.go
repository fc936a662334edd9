package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals are the signals that stop the server.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler returns a context that is canceled on SIGINT or
// SIGTERM. stop releases the signal registration.
func SetupSignalHandler(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, ShutdownSignals...)
}

// IgnoreSIGPIPE ignores SIGPIPE for the whole process.
func IgnoreSIGPIPE() {
	signal.Ignore(syscall.SIGPIPE)
}
