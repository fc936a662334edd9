package server

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal startup or serving error.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindResolution
	KindBind
	KindTLSLoad
	KindPrivilege
	KindPIDFile
	KindDaemonize
	KindWorker
)

// String returns the lower case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindResolution:
		return "resolution"
	case KindBind:
		return "bind"
	case KindTLSLoad:
		return "tls load"
	case KindPrivilege:
		return "privilege"
	case KindPIDFile:
		return "pid file"
	case KindDaemonize:
		return "daemonize"
	case KindWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// Error is returned by Build and Run. The command converts it into exit
// status 1 after logging it once.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
