package proxy

import (
	"net"
	"sync"
)

// connQueue is a net.Listener fed by a ConnectionSink. It lets an
// http.Server serve connections accepted elsewhere.
type connQueue struct {
	ch   chan net.Conn
	done chan struct{}
	once sync.Once
	addr net.Addr
}

func newConnQueue(name string, size int) *connQueue {
	return &connQueue{
		ch:   make(chan net.Conn, size),
		done: make(chan struct{}),
		addr: queueAddr(name),
	}
}

// push enqueues c. It reports false once the queue is closed; the caller
// still owns c then.
func (q *connQueue) push(c net.Conn) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- c:
		return true
	case <-q.done:
		return false
	}
}

func (q *connQueue) Accept() (net.Conn, error) {
	select {
	case c := <-q.ch:
		return c, nil
	case <-q.done:
		return nil, net.ErrClosed
	}
}

// Close stops Accept and closes connections that were never served.
func (q *connQueue) Close() error {
	q.once.Do(func() {
		close(q.done)
		for {
			select {
			case c := <-q.ch:
				c.Close()
			default:
				return
			}
		}
	})
	return nil
}

func (q *connQueue) Addr() net.Addr {
	return q.addr
}

type queueAddr string

func (a queueAddr) Network() string { return "queue" }
func (a queueAddr) String() string  { return string(a) }
