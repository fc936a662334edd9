package ratelimit

import (
	"net"
	"time"
)

// Direction names used by wait hooks.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

// ConnOption configures a throttled connection.
type ConnOption func(*Conn)

// WithWaitHook registers fn to be called each time I/O has to wait for
// tokens in the given direction.
func WithWaitHook(fn func(direction string)) ConnOption {
	return func(c *Conn) {
		c.onWait = fn
	}
}

// Conn applies per-connection read and write token buckets, configured from
// a shared Descriptor, to an underlying connection.
type Conn struct {
	net.Conn

	read   *TokenBucket
	write  *TokenBucket
	onWait func(direction string)
}

// NewConn wraps c with the buckets described by d. When both directions are
// unlimited, c is returned unchanged.
func NewConn(c net.Conn, d *Descriptor, opts ...ConnOption) net.Conn {
	read := d.newReadBucket()
	write := d.newWriteBucket()
	if read == nil && write == nil {
		return c
	}

	rc := &Conn{Conn: c, read: read, write: write}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Read reads at most as many bytes as the read bucket currently allows.
func (c *Conn) Read(p []byte) (int, error) {
	if c.read == nil || len(p) == 0 {
		return c.Conn.Read(p)
	}

	allowed := c.wait(c.read, int64(len(p)), DirectionRead)
	n, err := c.Conn.Read(p[:allowed])
	c.read.Return(allowed - int64(n))
	return n, err
}

// Write writes p in chunks sized by the write bucket.
func (c *Conn) Write(p []byte) (int, error) {
	if c.write == nil {
		return c.Conn.Write(p)
	}

	var written int
	for written < len(p) {
		allowed := c.wait(c.write, int64(len(p)-written), DirectionWrite)
		n, err := c.Conn.Write(p[written : written+int(allowed)])
		written += n
		c.write.Return(allowed - int64(n))
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// wait blocks until at least one token is available and takes up to want.
func (c *Conn) wait(b *TokenBucket, want int64, direction string) int64 {
	for {
		if n := b.TakeUpTo(want); n > 0 {
			return n
		}
		if c.onWait != nil {
			c.onWait(direction)
		}
		time.Sleep(b.TimeUntilAvailable(1))
	}
}
