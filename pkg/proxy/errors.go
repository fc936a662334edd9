package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// BackendError reports a failure talking to the backend or the CONNECT
// proxy in front of it.
type BackendError struct {
	Op   string
	Addr string
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// errNotHTTP2 is returned when TLS negotiation with the backend did not
// select h2.
var errNotHTTP2 = errors.New("backend did not negotiate h2")

// statusForError maps a round trip error to the status sent to the
// client: 504 for timeouts, 502 for everything else.
func statusForError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
