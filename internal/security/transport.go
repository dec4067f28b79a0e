// Package security guards outbound HTTP calls made to user-configured
// endpoints. The webhook sink posts to whatever WEBHOOK_URL names, so its
// client must refuse to reach loopback, private and cloud metadata addresses.
//
// The check runs at dial time against the resolved IP, so a hostname that
// resolves to a private address is rejected the same way a literal IP is.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BlockedCIDRs are never dialed by a guarded client.
var BlockedCIDRs = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16", // link-local, includes instance metadata
	"0.0.0.0/8",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"100.64.0.0/10",
	"198.18.0.0/15",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
}

// ErrBlockedAddress is returned when a destination resolves into BlockedCIDRs.
var ErrBlockedAddress = errors.New("security: destination address is not allowed")

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard decides whether an address may be dialed.
type Guard struct {
	nets        []*net.IPNet
	resolver    Resolver
	dnsTimeout  time.Duration
	dialTimeout time.Duration
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithResolver replaces the system resolver.
func WithResolver(r Resolver) GuardOption {
	return func(g *Guard) { g.resolver = r }
}

// WithDNSTimeout bounds each lookup.
func WithDNSTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.dnsTimeout = d }
}

// NewGuard parses BlockedCIDRs. The list is static so a parse error is a
// programming mistake, but it is still returned rather than panicking.
func NewGuard(opts ...GuardOption) (*Guard, error) {
	nets := make([]*net.IPNet, 0, len(BlockedCIDRs))
	for _, cidr := range BlockedCIDRs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("security: parsing %q: %w", cidr, err)
		}
		nets = append(nets, n)
	}
	g := &Guard{
		nets:        nets,
		resolver:    net.DefaultResolver,
		dnsTimeout:  2 * time.Second,
		dialTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Blocked reports whether ip falls in a blocked range. IPv4-mapped IPv6
// addresses are checked as IPv4.
func (g *Guard) Blocked(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, n := range g.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// CheckURL validates a destination before any request is built. It only
// accepts http and https and resolves the host once.
func (g *Guard) CheckURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("security: parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("security: unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("security: url has no host")
	}
	_, err = g.resolve(ctx, host)
	return err
}

// resolve returns the first allowed address for host. Any blocked address in
// the answer rejects the host, so a mixed record set cannot be used to
// rebind onto a private target.
func (g *Guard) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if g.Blocked(ip) {
			return nil, fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
		}
		return ip, nil
	}

	lctx, cancel := context.WithTimeout(ctx, g.dnsTimeout)
	defer cancel()
	addrs, err := g.resolver.LookupIPAddr(lctx, host)
	if err != nil {
		return nil, fmt.Errorf("security: resolving %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("security: no addresses for %s", host)
	}
	for _, a := range addrs {
		if g.Blocked(a.IP) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrBlockedAddress, host, a.IP)
		}
	}
	return addrs[0].IP, nil
}

// DialContext resolves, checks and dials the checked IP directly so the
// address cannot change between the check and the connection.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("security: splitting %q: %w", addr, err)
	}
	ip, err := g.resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	d := &net.Dialer{Timeout: g.dialTimeout}
	return d.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}

// Transport returns an http.Transport that dials through the guard. Proxies
// are disabled since a proxy would dial on our behalf.
func (g *Guard) Transport() *http.Transport {
	return &http.Transport{
		Proxy:                 nil,
		DialContext:           g.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// CheckRedirect limits the redirect chain and refuses scheme downgrades.
// Every hop still dials through the guarded transport.
func CheckRedirect(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("security: stopped after %d redirects", maxRedirects)
		}
		if len(via) > 0 && strings.EqualFold(via[len(via)-1].URL.Scheme, "https") && req.URL.Scheme != "https" {
			return errors.New("security: refusing redirect from https to http")
		}
		return nil
	}
}

// NewSafeHTTPClient builds a guarded client for user-supplied endpoints.
func NewSafeHTTPClient(timeout time.Duration, maxRedirects int, opts ...GuardOption) (*http.Client, error) {
	g, err := NewGuard(opts...)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout:       timeout,
		Transport:     g.Transport(),
		CheckRedirect: CheckRedirect(maxRedirects),
	}, nil
}
