package external

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// blockedCIDRs are never dialed by a restricted client. Outside local runs
// the text generator uses one, whatever OPENAI_BASE_URL points at.
var blockedCIDRs = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16", // instance metadata
	"0.0.0.0/8",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"100.64.0.0/10",
	"198.18.0.0/15",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
}

var blockedNets = func() []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(blockedCIDRs))
	for _, cidr := range blockedCIDRs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("external: bad blocked CIDR %q: %v", cidr, err))
		}
		nets = append(nets, n)
	}
	return nets
}()

// ErrEgressBlocked is returned when a destination resolves to a blocked range.
var ErrEgressBlocked = errors.New("egress: destination address is not allowed")

// ErrEgressDNS is returned when the destination cannot be resolved in time.
var ErrEgressDNS = errors.New("egress: DNS resolution failed")

const (
	egressDNSTimeout   = 2 * time.Second
	egressMaxRedirects = 3
)

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// IsBlockedIP reports whether ip falls in a blocked range.
func IsBlockedIP(ip net.IP) bool {
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

type restrictedDialer struct {
	resolver Resolver
	dialer   *net.Dialer
}

// DialContext resolves addr, rejects it if any resolved address is blocked
// and dials the first address. Checking every address before dialing any
// defeats mixed public/private DNS answers.
func (d *restrictedDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("egress: invalid address %q: %w", addr, err)
	}

	if ip := net.ParseIP(host); ip != nil {
		if IsBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrEgressBlocked, ip)
		}
		return d.dialer.DialContext(ctx, network, addr)
	}

	dnsCtx, cancel := context.WithTimeout(ctx, egressDNSTimeout)
	defer cancel()
	addrs, err := d.resolver.LookupIPAddr(dnsCtx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: host %q: %v", ErrEgressDNS, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrEgressDNS, host)
	}
	for _, a := range addrs {
		if IsBlockedIP(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrEgressBlocked, a.IP, host)
		}
	}
	return d.dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].IP.String(), port))
}

// NewRestrictedHTTPClient returns a client that refuses to dial blocked
// ranges and follows at most three redirects. resolver may be nil.
func NewRestrictedHTTPClient(timeout time.Duration, resolver Resolver) *http.Client {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	d := &restrictedDialer{
		resolver: resolver,
		dialer:   &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = d.DialContext
	transport.Proxy = nil

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= egressMaxRedirects {
				return fmt.Errorf("egress: stopped after %d redirects", egressMaxRedirects)
			}
			return nil
		},
	}
}
