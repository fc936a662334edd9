package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/187j3x1/nghttp2/pkg/resolver"
)

// EnvListenFDs carries the number of listening sockets passed to a
// re-executed daemon child, starting at descriptor 3.
const EnvListenFDs = "NGHTTPX_LISTEN_FDS"

// Set is the group of frontend listeners: IPv6 first, IPv4 second. It is
// released exactly once.
type Set struct {
	listeners []*Listener

	once     sync.Once
	closeErr error
}

// NewSet groups listeners, skipping nil entries.
func NewSet(listeners ...*Listener) *Set {
	s := &Set{}
	for _, l := range listeners {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
	return s
}

// Listeners returns the listeners in bind order.
func (s *Set) Listeners() []*Listener {
	return append([]*Listener(nil), s.listeners...)
}

// Len returns the number of listeners.
func (s *Set) Len() int {
	return len(s.listeners)
}

// Files returns duplicates of the listening descriptors, in order, for
// handing to a child process. The caller closes them.
func (s *Set) Files() ([]*os.File, error) {
	var files []*os.File
	for _, l := range s.listeners {
		fl, ok := l.ln.(interface{ File() (*os.File, error) })
		if !ok {
			closeFiles(files)
			return nil, fmt.Errorf("listener %s cannot export its descriptor", l.Addr())
		}
		f, err := fl.File()
		if err != nil {
			closeFiles(files)
			return nil, fmt.Errorf("failed to export listener %s: %w", l.Addr(), err)
		}
		files = append(files, f)
	}
	return files, nil
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// Serve runs one accept loop per listener and returns when all of them
// have returned.
func (s *Set) Serve(ctx context.Context, sink ConnectionSink) error {
	var wg sync.WaitGroup
	errs := make([]error, len(s.listeners))
	for i, l := range s.listeners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = l.Serve(ctx, sink)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close closes every listener in reverse bind order. Only the first call
// has an effect.
func (s *Set) Close() error {
	s.once.Do(func() {
		var errs []error
		for i := len(s.listeners) - 1; i >= 0; i-- {
			if err := s.listeners[i].Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// BindError reports that no listening socket could be created.
type BindError struct {
	Host string
	Port int

	// Missing names the families that failed when dual stack is required.
	Missing []resolver.Family

	// Errs holds errors returned by the Binder, if any.
	Errs []error
}

func (e *BindError) Error() string {
	msg := fmt.Sprintf("failed to listen on address %s, port %d", e.Host, e.Port)
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (dual stack required, missing %v)", e.Missing)
	}
	if err := errors.Join(e.Errs...); err != nil {
		msg += ": " + err.Error()
	}
	return msg
}

func (e *BindError) Unwrap() []error {
	return e.Errs
}

// Bootstrap binds the IPv6 listener, then the IPv4 listener. It fails only
// when neither family could be bound, or, with requireDualStack, when
// either could not. A non-nil observer is attached to every listener of
// the returned set and told that it was bound, whatever b is.
func Bootstrap(ctx context.Context, b Binder, host string, port, backlog int, requireDualStack bool, observer Observer, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	bind := func(family resolver.Family) *Listener {
		l, err := b.Bind(ctx, host, port, family, backlog)
		if err != nil {
			logger.Warn("listener bind failed", "family", family.String(), "error", err)
			errs = append(errs, err)
			return nil
		}
		return l
	}

	l6 := bind(resolver.FamilyIPv6)
	l4 := bind(resolver.FamilyIPv4)
	set := NewSet(l6, l4)

	if set.Len() == 0 {
		return nil, &BindError{Host: host, Port: port, Errs: errs}
	}

	if requireDualStack && set.Len() < 2 {
		set.Close()
		missing := resolver.FamilyIPv6
		if l4 == nil {
			missing = resolver.FamilyIPv4
		}
		return nil, &BindError{Host: host, Port: port, Missing: []resolver.Family{missing}, Errs: errs}
	}

	if observer != nil {
		for _, l := range set.Listeners() {
			l.observer = observer
			observer.ListenerBound(l.family)
		}
	}
	return set, nil
}

// Inherit adopts count listening sockets passed by a parent process
// starting at descriptor 3, as arranged by the daemonizer.
func Inherit(count int, opts ...Option) (*Set, error) {
	set := &Set{}
	for i := 0; i < count; i++ {
		f := os.NewFile(uintptr(3+i), "nghttpx-inherited-"+strconv.Itoa(i))
		if f == nil {
			set.Close()
			return nil, fmt.Errorf("inherited descriptor %d is invalid", 3+i)
		}
		ln, err := net.FileListener(f)
		f.Close()
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to adopt inherited descriptor %d: %w", 3+i, err)
		}

		family := resolver.FamilyIPv4
		if addr, ok := ln.Addr().(*net.TCPAddr); ok {
			family = resolver.FamilyOf(addr.IP)
		}
		set.listeners = append(set.listeners, New(ln, family, opts...))
	}
	if set.Len() == 0 {
		return nil, errors.New("no inherited listeners")
	}
	return set, nil
}

// InheritedCount parses EnvListenFDs. It returns 0 when the variable is
// unset.
func InheritedCount(getenv func(string) string) (int, error) {
	val := getenv(EnvListenFDs)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", EnvListenFDs, val)
	}
	return n, nil
}
