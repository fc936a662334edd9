// Package resolver turns the configured downstream and upstream-proxy
// endpoints into concrete socket addresses.
//
// Resolution happens once at startup. A failure is reported as *Error and is
// never retried.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

// Family is an address family preference.
type Family int

const (
	// FamilyAny accepts both IPv4 and IPv6 results.
	FamilyAny Family = iota
	// FamilyIPv4 accepts only IPv4 results.
	FamilyIPv4
	// FamilyIPv6 accepts only IPv6 results.
	FamilyIPv6
)

// String returns a short human-readable name for the family.
func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "IPv4"
	case FamilyIPv6:
		return "IPv6"
	default:
		return "any"
	}
}

// Network returns the network name understood by net.Resolver.LookupIP.
func (f Family) Network() string {
	switch f {
	case FamilyIPv4:
		return "ip4"
	case FamilyIPv6:
		return "ip6"
	default:
		return "ip"
	}
}

// Matches reports whether ip belongs to the family.
func (f Family) Matches(ip net.IP) bool {
	switch f {
	case FamilyIPv4:
		return ip.To4() != nil
	case FamilyIPv6:
		return ip.To4() == nil && ip.To16() != nil
	default:
		return ip.To16() != nil
	}
}

// FamilyOf returns the concrete family of ip.
func FamilyOf(ip net.IP) Family {
	if ip.To4() != nil {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// ErrNoAddress is returned when a lookup succeeds but yields no address of
// the requested family.
var ErrNoAddress = errors.New("no usable address")

// Error describes a failed resolution.
type Error struct {
	Host   string
	Port   int
	Family Family
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("unable to resolve address for %s (family %s): %v", e.Host, e.Family, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Lookuper performs name lookups. *net.Resolver satisfies it.
type Lookuper interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Resolver resolves hostnames to TCP addresses honoring a family preference.
type Resolver struct {
	lookup Lookuper
	logger *slog.Logger
}

// New creates a Resolver. A nil lookup uses net.DefaultResolver and a nil
// logger uses slog.Default().
func New(lookup Lookuper, logger *slog.Logger) *Resolver {
	if lookup == nil {
		lookup = net.DefaultResolver
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// Resolve returns the first address for host that matches family, with port
// attached. The numeric form of the chosen address is logged.
func (r *Resolver) Resolve(ctx context.Context, host string, port int, family Family) (*net.TCPAddr, error) {
	ips, err := r.lookup.LookupIP(ctx, family.Network(), host)
	if err != nil {
		return nil, &Error{Host: host, Port: port, Family: family, Err: err}
	}

	for _, ip := range ips {
		if !family.Matches(ip) {
			continue
		}
		addr := &net.TCPAddr{IP: ip, Port: port}
		r.logger.Info("address resolution succeeded",
			"host", host,
			"address", ip.String(),
			"port", port,
		)
		return addr, nil
	}

	return nil, &Error{Host: host, Port: port, Family: family, Err: ErrNoAddress}
}

// HostPort joins host and port, bracketing IPv6 literals.
func HostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
