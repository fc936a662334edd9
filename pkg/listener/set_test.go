package listener

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/187j3x1/nghttp2/pkg/resolver"
)

// fakeBinder returns preconfigured results per family and records calls.
type fakeBinder struct {
	results map[resolver.Family]*Listener
	errs    map[resolver.Family]error
	calls   []resolver.Family
}

func (b *fakeBinder) Bind(_ context.Context, _ string, _ int, family resolver.Family, _ int) (*Listener, error) {
	b.calls = append(b.calls, family)
	return b.results[family], b.errs[family]
}

func loopbackListener(t *testing.T) *Listener {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	return New(ln, resolver.FamilyIPv4)
}

func TestBootstrap(t *testing.T) {
	t.Run("IPv6 fails, IPv4 succeeds", func(t *testing.T) {
		l4 := loopbackListener(t)
		b := &fakeBinder{results: map[resolver.Family]*Listener{resolver.FamilyIPv4: l4}}

		set, err := Bootstrap(context.Background(), b, "0.0.0.0", 3000, 256, false, nil, nil)
		if err != nil {
			t.Fatalf("Bootstrap failed: %v", err)
		}
		defer set.Close()

		if len(b.calls) != 2 || b.calls[0] != resolver.FamilyIPv6 || b.calls[1] != resolver.FamilyIPv4 {
			t.Errorf("bind order = %v, want [IPv6 IPv4]", b.calls)
		}
		if set.Len() != 1 || set.Listeners()[0] != l4 {
			t.Errorf("set = %v", set.Listeners())
		}
	})

	t.Run("both fail", func(t *testing.T) {
		b := &fakeBinder{errs: map[resolver.Family]error{resolver.FamilyIPv4: errors.New("listen: boom")}}

		_, err := Bootstrap(context.Background(), b, "0.0.0.0", 3000, 256, false, nil, nil)
		var bindErr *BindError
		if !errors.As(err, &bindErr) {
			t.Fatalf("expected *BindError, got %v", err)
		}
		if bindErr.Port != 3000 || len(bindErr.Errs) != 1 {
			t.Errorf("BindError = %+v", bindErr)
		}
	})

	t.Run("dual stack required", func(t *testing.T) {
		l4 := loopbackListener(t)
		b := &fakeBinder{results: map[resolver.Family]*Listener{resolver.FamilyIPv4: l4}}

		_, err := Bootstrap(context.Background(), b, "*", 3000, 256, true, nil, nil)
		var bindErr *BindError
		if !errors.As(err, &bindErr) {
			t.Fatalf("expected *BindError, got %v", err)
		}
		if len(bindErr.Missing) != 1 || bindErr.Missing[0] != resolver.FamilyIPv6 {
			t.Errorf("Missing = %v", bindErr.Missing)
		}
		// The listener that did bind was released.
		if _, err := l4.ln.Accept(); !errors.Is(err, net.ErrClosed) {
			t.Errorf("expected closed listener, got %v", err)
		}
	})
}

func TestBootstrap_AttachesObserver(t *testing.T) {
	l4 := loopbackListener(t)
	b := &fakeBinder{results: map[resolver.Family]*Listener{resolver.FamilyIPv4: l4}}
	obs := &recordingObserver{}

	set, err := Bootstrap(context.Background(), b, "0.0.0.0", 3000, 256, false, obs, nil)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer set.Close()

	if len(obs.bound) != 1 || obs.bound[0] != resolver.FamilyIPv4 {
		t.Errorf("observer bound = %v, want [IPv4]", obs.bound)
	}
	if l4.observer != obs {
		t.Error("observer not attached to the bound listener")
	}
}

func TestBootstrap_RealSockets(t *testing.T) {
	set, err := Bootstrap(context.Background(), &Sockets{}, "127.0.0.1", 0, 16, false, nil, nil)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer set.Close()

	if set.Len() != 1 || set.Listeners()[0].Family() != resolver.FamilyIPv4 {
		t.Errorf("expected a single IPv4 listener, got %d", set.Len())
	}
}

func TestSet_CloseOnce(t *testing.T) {
	a := loopbackListener(t)
	b := loopbackListener(t)
	set := NewSet(nil, a, b)

	if set.Len() != 2 {
		t.Fatalf("Len = %d, want 2", set.Len())
	}
	if err := set.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := set.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	for _, l := range []*Listener{a, b} {
		if _, err := l.ln.Accept(); !errors.Is(err, net.ErrClosed) {
			t.Errorf("listener %v not closed", l.Addr())
		}
	}
}

func TestSet_Files(t *testing.T) {
	set := NewSet(loopbackListener(t))
	defer set.Close()

	files, err := set.Files()
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	defer closeFiles(files)

	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	ln, err := net.FileListener(files[0])
	if err != nil {
		t.Fatalf("FileListener failed: %v", err)
	}
	defer ln.Close()
	if ln.Addr().String() != set.Listeners()[0].Addr().String() {
		t.Errorf("exported %v, want %v", ln.Addr(), set.Listeners()[0].Addr())
	}
}

func TestInheritedCount(t *testing.T) {
	tests := []struct {
		val     string
		want    int
		wantErr bool
	}{
		{val: "", want: 0},
		{val: "2", want: 2},
		{val: "x", wantErr: true},
		{val: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			got, err := InheritedCount(func(string) string { return tt.val })
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
