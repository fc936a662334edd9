package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/187j3x1/nghttp2/pkg/resolver"
)

// Sockets is the Binder that creates real listening sockets.
type Sockets struct {
	// Lookup resolves non-numeric hosts. Nil uses net.DefaultResolver.
	Lookup resolver.Lookuper

	// Logger receives bind and accept diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// Bind is shorthand for (&Sockets{}).Bind.
func Bind(ctx context.Context, host string, port int, family resolver.Family, backlog int) (*Listener, error) {
	return (&Sockets{}).Bind(ctx, host, port, family, backlog)
}

// Bind creates a listener for one address family.
//
// Each candidate address is tried in order: socket, SO_REUSEADDR,
// non-blocking mode, IPV6_V6ONLY for IPv6, bind. The first candidate that
// binds is put into listening state with backlog. Failed attempts are
// closed.
//
// Bind returns (nil, nil) when host yields no candidate of the family or
// when no candidate binds, so a dual-stack caller can try the other family.
// An error is returned only when a bound socket cannot be made to listen.
func (s *Sockets) Bind(ctx context.Context, host string, port int, family resolver.Family, backlog int) (*Listener, error) {
	logger := s.logger()

	ips := s.candidates(ctx, host, family)
	if len(ips) == 0 {
		logger.Info("no listen address for family", "host", host, "family", family.String())
		return nil, nil
	}

	fd := -1
	var bound net.IP
	for _, ip := range ips {
		var err error
		fd, err = bindSocket(ip, port, family)
		if err == nil {
			bound = ip
			break
		}
		logger.Debug("bind attempt failed",
			"address", ip.String(),
			"port", port,
			"error", err,
		)
	}
	if fd < 0 {
		logger.Info("listening socket failed", "family", family.String(), "host", host, "port", port)
		return nil, nil
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", resolver.HostPort(bound.String(), port), os.NewSyscallError("listen", err))
	}

	f := os.NewFile(uintptr(fd), "nghttpx-"+family.String())
	ln, err := net.FileListener(f)
	// FileListener holds its own duplicate of the descriptor.
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", resolver.HostPort(bound.String(), port), err)
	}

	logger.Info("listening",
		"address", bound.String(),
		"port", ln.Addr().(*net.TCPAddr).Port,
		"family", family.String(),
		"backlog", backlog,
	)

	return New(ln, family, WithLogger(logger)), nil
}

func (s *Sockets) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// candidates returns the addresses to try for host in the given family,
// using wildcard semantics for "" and "*".
func (s *Sockets) candidates(ctx context.Context, host string, family resolver.Family) []net.IP {
	if host == "" || host == "*" {
		if family == resolver.FamilyIPv6 {
			return []net.IP{net.IPv6unspecified}
		}
		return []net.IP{net.IPv4zero}
	}

	if ip := net.ParseIP(host); ip != nil {
		if resolver.FamilyOf(ip) != family {
			return nil
		}
		return []net.IP{ip}
	}

	lookup := s.Lookup
	if lookup == nil {
		lookup = net.DefaultResolver
	}
	ips, err := lookup.LookupIP(ctx, family.Network(), host)
	if err != nil {
		s.logger().Debug("listen address lookup failed", "host", host, "family", family.String(), "error", err)
		return nil
	}

	var out []net.IP
	for _, ip := range ips {
		if resolver.FamilyOf(ip) == family {
			out = append(out, ip)
		}
	}
	return out
}

// bindSocket creates a non-blocking TCP socket bound to ip:port and
// returns its descriptor. The socket is closed on any failure.
func bindSocket(ip net.IP, port int, family resolver.Family) (fd int, err error) {
	var sa unix.Sockaddr
	domain := unix.AF_INET
	switch family {
	case resolver.FamilyIPv4:
		sa4 := &unix.SockaddrInet4{Port: port}
		copy(sa4.Addr[:], ip.To4())
		sa = sa4
	case resolver.FamilyIPv6:
		domain = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: port}
		copy(sa6.Addr[:], ip.To16())
		sa = sa6
	default:
		return -1, errors.New("bind requires a concrete address family")
	}

	fd, err = unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	defer func() {
		if err != nil {
			unix.Close(fd)
			fd = -1
		}
	}()

	unix.CloseOnExec(fd)

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fd, os.NewSyscallError("setsockopt SO_REUSEADDR", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		return fd, os.NewSyscallError("setnonblock", err)
	}
	if family == resolver.FamilyIPv6 {
		if err = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
			return fd, os.NewSyscallError("setsockopt IPV6_V6ONLY", err)
		}
	}
	if err = unix.Bind(fd, sa); err != nil {
		return fd, os.NewSyscallError("bind", err)
	}

	return fd, nil
}
