package proxy

import (
	"net"
	"time"
)

// deadlineConn applies an idle timeout to every Write: a single write that
// makes no progress for timeout fails.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func newDeadlineConn(c net.Conn, timeout time.Duration) net.Conn {
	if timeout <= 0 {
		return c
	}
	return &deadlineConn{Conn: c, timeout: timeout}
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
