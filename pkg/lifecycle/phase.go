package lifecycle

import "errors"

// Phase is a point in the startup sequence.
type Phase int

const (
	PhaseNotDaemonized Phase = iota
	PhaseListening
	PhaseDaemonized
	PhasePIDSaved
	PhasePrivilegesDropped
	PhaseServing
)

var phaseNames = [...]string{
	PhaseNotDaemonized:     "not-daemonized",
	PhaseListening:         "listening",
	PhaseDaemonized:        "daemonized",
	PhasePIDSaved:          "pid-saved",
	PhasePrivilegesDropped: "privileges-dropped",
	PhaseServing:           "serving",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

var (
	// ErrOutOfOrder is returned when a step is attempted after the
	// sequence has moved past it.
	ErrOutOfOrder = errors.New("lifecycle step out of order")

	// ErrPrivilegesRegained is returned when setuid(0) still succeeds
	// after privileges were dropped.
	ErrPrivilegesRegained = errors.New("still have root privileges after setuid")
)
