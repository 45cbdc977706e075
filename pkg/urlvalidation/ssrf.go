package urlvalidation

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Resolver maps a hostname to the addresses it resolves to.
type Resolver func(ctx context.Context, host string) ([]netip.Addr, error)

// Option configures URL validation behavior.
type Option func(*validationConfig)

type validationConfig struct {
	allowPrivate bool
	resolve      Resolver
}

// AllowPrivateIPs disables the private IP check. Use only in tests.
func AllowPrivateIPs() Option {
	return func(c *validationConfig) {
		c.allowPrivate = true
	}
}

// WithResolver replaces the system DNS resolver.
func WithResolver(r Resolver) Option {
	return func(c *validationConfig) {
		c.resolve = r
	}
}

func systemResolver(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// blockedPrefixes are ranges no outbound hook may target.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// ValidateHookURL checks that a URL is safe to call as an outbound hook.
// Literal and resolved addresses in private or reserved ranges are rejected.
func ValidateHookURL(rawURL string, opts ...Option) error {
	cfg := validationConfig{resolve: systemResolver}
	for _, opt := range opts {
		opt(&cfg)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "https" && scheme != "http" {
		return fmt.Errorf("URL scheme %q not allowed; use http or https", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	if cfg.allowPrivate {
		return nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if IsBlocked(addr) {
			return fmt.Errorf("URL targets private/reserved IP %s", addr)
		}
		return nil
	}

	addrs, err := cfg.resolve(context.Background(), host)
	if err != nil {
		return fmt.Errorf("cannot resolve hostname %q: %w", host, err)
	}
	for _, addr := range addrs {
		if IsBlocked(addr) {
			return fmt.Errorf("URL resolves to private/reserved IP %s", addr)
		}
	}
	return nil
}

// IsBlocked reports whether addr lies in a private, loopback, link-local
// or otherwise reserved range.
func IsBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr == netip.IPv4Unspecified() || addr == netip.IPv6Unspecified() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
