package ratelimit

import "math"

// Unlimited is the sentinel that disables throttling for one direction.
// A configured value of 0 is normalized to it.
const Unlimited int64 = math.MaxInt64

// Normalize maps 0 to Unlimited and returns any other value unchanged.
func Normalize(rate int64) int64 {
	if rate == 0 {
		return Unlimited
	}
	return rate
}

// Descriptor is the token-bucket configuration shared by every frontend
// connection. It is built once at startup and must not be modified
// afterwards; connections hold a pointer to it.
type Descriptor struct {
	// ReadRate is the average number of bytes per second read from a client.
	ReadRate int64

	// ReadBurst is the read bucket capacity in bytes.
	ReadBurst int64

	// WriteRate is the average number of bytes per second written to a client.
	WriteRate int64

	// WriteBurst is the write bucket capacity in bytes.
	WriteBurst int64
}

// NewDescriptor normalizes the four configured values into a Descriptor.
func NewDescriptor(readRate, readBurst, writeRate, writeBurst int64) *Descriptor {
	return &Descriptor{
		ReadRate:   Normalize(readRate),
		ReadBurst:  Normalize(readBurst),
		WriteRate:  Normalize(writeRate),
		WriteBurst: Normalize(writeBurst),
	}
}

// ReadLimited reports whether reads are throttled at all.
func (d *Descriptor) ReadLimited() bool {
	return d != nil && d.ReadRate != Unlimited
}

// WriteLimited reports whether writes are throttled at all.
func (d *Descriptor) WriteLimited() bool {
	return d != nil && d.WriteRate != Unlimited
}

// newReadBucket returns a fresh per-connection read bucket, or nil when
// reads are unlimited.
func (d *Descriptor) newReadBucket() *TokenBucket {
	if !d.ReadLimited() {
		return nil
	}
	return NewTokenBucket(d.ReadBurst, float64(d.ReadRate))
}

// newWriteBucket returns a fresh per-connection write bucket, or nil when
// writes are unlimited.
func (d *Descriptor) newWriteBucket() *TokenBucket {
	if !d.WriteLimited() {
		return nil
	}
	return NewTokenBucket(d.WriteBurst, float64(d.WriteRate))
}
