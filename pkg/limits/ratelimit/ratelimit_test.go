package ratelimit

import (
	"bytes"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want int64
	}{
		{name: "zero is unlimited", in: 0, want: Unlimited},
		{name: "one", in: 1, want: 1},
		{name: "read burst default", in: 4 * 1024 * 1024, want: 4 * 1024 * 1024},
		{name: "max stays max", in: Unlimited, want: Unlimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewDescriptor(t *testing.T) {
	d := NewDescriptor(0, 4194304, 0, 0)

	if d.ReadRate != Unlimited {
		t.Errorf("ReadRate = %d, want Unlimited", d.ReadRate)
	}
	if d.ReadBurst != 4194304 {
		t.Errorf("ReadBurst = %d, want 4194304", d.ReadBurst)
	}
	if d.WriteRate != Unlimited || d.WriteBurst != Unlimited {
		t.Errorf("write side = %d/%d, want Unlimited", d.WriteRate, d.WriteBurst)
	}
	if d.ReadLimited() || d.WriteLimited() {
		t.Error("expected both directions unlimited")
	}
}

func TestTokenBucket_Basic(t *testing.T) {
	bucket := NewTokenBucket(10, 10)

	if !bucket.Take(5) {
		t.Error("Expected to take 5 tokens from full bucket")
	}
	if remaining := bucket.Remaining(); remaining != 5 {
		t.Errorf("Expected 5 remaining, got %d", remaining)
	}
	if !bucket.Take(5) {
		t.Error("Expected to take remaining 5 tokens")
	}
	if bucket.Take(1) {
		t.Error("Expected bucket to be empty")
	}
}

func TestTokenBucket_TakeUpTo(t *testing.T) {
	bucket := NewTokenBucket(100, 1)

	if n := bucket.TakeUpTo(30); n != 30 {
		t.Errorf("TakeUpTo(30) = %d, want 30", n)
	}
	if n := bucket.TakeUpTo(500); n != 70 {
		t.Errorf("TakeUpTo(500) = %d, want 70", n)
	}
	if n := bucket.TakeUpTo(1); n != 0 {
		t.Errorf("TakeUpTo on empty bucket = %d, want 0", n)
	}

	bucket.Return(500)
	if got := bucket.Remaining(); got != 100 {
		t.Errorf("Return should cap at capacity, got %d", got)
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	bucket := NewTokenBucket(10, 10)

	bucket.Take(10)
	if bucket.Remaining() != 0 {
		t.Error("Expected bucket to be empty")
	}

	// 150ms at 10/sec is at least 1 token
	time.Sleep(150 * time.Millisecond)

	if !bucket.Take(1) {
		t.Error("Expected bucket to have refilled")
	}
}

func TestTokenBucket_TimeUntilAvailable(t *testing.T) {
	bucket := NewTokenBucket(10, 10)

	if d := bucket.TimeUntilAvailable(5); d != 0 {
		t.Errorf("expected immediate availability, got %v", d)
	}

	bucket.Take(10)
	d := bucket.TimeUntilAvailable(5)
	if d < 400*time.Millisecond || d > 600*time.Millisecond {
		t.Errorf("expected ~500ms, got %v", d)
	}
}

func TestTokenBucket_UnlimitedBurstDoesNotOverflow(t *testing.T) {
	bucket := NewTokenBucket(Unlimited, float64(1<<20))
	bucket.Take(1)
	time.Sleep(20 * time.Millisecond)

	if got := bucket.Remaining(); got <= 0 {
		t.Errorf("Remaining overflowed: %d", got)
	}
}

func TestTokenBucket_Concurrent(t *testing.T) {
	bucket := NewTokenBucket(1000, 0)

	var wg sync.WaitGroup
	var taken atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 40; j++ {
				taken.Add(bucket.TakeUpTo(1))
			}
		}()
	}
	wg.Wait()

	if taken.Load() != 1000 {
		t.Errorf("took %d tokens, want exactly 1000", taken.Load())
	}
}

func TestNewConn_UnlimitedPassthrough(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := NewDescriptor(0, 0, 0, 0)
	if got := NewConn(server, d); got != server {
		t.Error("expected unlimited descriptor to return the original conn")
	}
}

func TestConn_WriteThrottled(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	// 1000 B/s with a 100 byte burst: 300 bytes need ~200ms of refill.
	d := NewDescriptor(0, 0, 1000, 100)
	var waits atomic.Int64
	conn := NewConn(server, d, WithWaitHook(func(direction string) {
		if direction == DirectionWrite {
			waits.Add(1)
		}
	}))

	payload := bytes.Repeat([]byte("x"), 300)
	received := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(client)
		received <- data
	}()

	start := time.Now()
	n, err := conn.Write(payload)
	elapsed := time.Since(start)
	conn.Close()

	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(payload) {
		t.Errorf("wrote %d bytes, want %d", n, len(payload))
	}
	if elapsed < 150*time.Millisecond {
		t.Errorf("write finished in %v, expected throttling", elapsed)
	}
	if waits.Load() == 0 {
		t.Error("expected the wait hook to fire")
	}
	if got := <-received; !bytes.Equal(got, payload) {
		t.Errorf("received %d bytes, want %d", len(got), len(payload))
	}
}

func TestConn_ReadBoundedByBucket(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := NewDescriptor(1, 8, 0, 0)
	conn := NewConn(server, d)

	go func() {
		_, _ = client.Write(bytes.Repeat([]byte("y"), 32))
	}()

	buf := make([]byte, 32)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n > 8 {
		t.Errorf("read %d bytes, burst should cap it at 8", n)
	}
}
