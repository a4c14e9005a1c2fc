// Package reach decides whether a host is reachable only from the local
// machine or network, which is what tells a farm adapter it needs a tunnel.
package reach

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// localRanges are the loopback and private IPv4 ranges treated as local.
var localRanges = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// ResolutionError reports that a host could not be resolved, so its
// locality is unknown. It never means "not local".
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Classifier classifies hosts using its Resolver.
type Classifier struct {
	Resolver Resolver
}

// NewClassifier returns a Classifier backed by net.DefaultResolver.
func NewClassifier() *Classifier {
	return &Classifier{Resolver: net.DefaultResolver}
}

// IsLocal reports whether host (a bare host name, an IPv4 literal or a
// URL) points at a loopback or private address.
func (c *Classifier) IsLocal(ctx context.Context, host string) (bool, error) {
	host = hostname(host)
	if strings.EqualFold(host, "localhost") {
		return true, nil
	}

	if addr, err := netip.ParseAddr(host); err == nil && addr.Is4() {
		return InLocalRange(addr), nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return false, &ResolutionError{Host: host, Err: err}
	}

	resolver := c.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ips, err := resolver.LookupIP(ctx, "ip4", ascii)
	if err != nil {
		return false, &ResolutionError{Host: host, Err: err}
	}
	if len(ips) == 0 {
		return false, &ResolutionError{Host: host, Err: fmt.Errorf("no IPv4 address")}
	}

	addr, ok := netip.AddrFromSlice(ips[0].To4())
	if !ok {
		return false, &ResolutionError{Host: host, Err: fmt.Errorf("invalid address %v", ips[0])}
	}
	return InLocalRange(addr), nil
}

// InLocalRange reports whether addr is in one of the local IPv4 ranges.
func InLocalRange(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range localRanges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// hostname strips scheme, port and path when given a URL.
func hostname(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}
