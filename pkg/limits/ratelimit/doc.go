// Package ratelimit throttles frontend connections with token buckets.
//
// # Descriptor
//
// A single Descriptor carries the read rate, read burst, write rate and
// write burst configured for the proxy. Zero means unlimited and is
// normalized to the Unlimited sentinel when the descriptor is built:
//
//	d := ratelimit.NewDescriptor(0, 4<<20, 0, 0)
//	// d.ReadRate == ratelimit.Unlimited, d.ReadBurst == 4<<20
//
// The descriptor is built once at startup and shared by pointer. Every
// accepted connection gets its own pair of buckets sized from it:
//
//	conn = ratelimit.NewConn(conn, d)
//
// # Token Bucket Algorithm
//
// A bucket allows bursts up to its capacity while maintaining an average
// rate over time. Tokens are bytes:
//
//	bucket := ratelimit.NewTokenBucket(4<<20, 1<<20)
//	n := bucket.TakeUpTo(16 << 10) // up to 16 KiB may be read now
//
// # Thread Safety
//
// TokenBucket is safe for concurrent use. A Conn may be read and written
// from different goroutines, as net.Conn allows.
package ratelimit
