package clipper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"meal-planner/internal/apperr"
)

const maxURLLength = 2048

var blockedHosts = map[string]bool{"localhost": true, "0.0.0.0": true}

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

var errBlockedAddress = errors.New("internal network addresses are not allowed")

func isBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsLoopback() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// urlGuard rejects URLs that point into private networks, both before the
// request and again at dial time and on every redirect.
type urlGuard struct {
	lookup func(ctx context.Context, host string) ([]netip.Addr, error)
}

func newURLGuard() *urlGuard {
	return &urlGuard{lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
		return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	}}
}

func (g *urlGuard) validate(ctx context.Context, raw string) (*url.URL, error) {
	if len(raw) > maxURLLength {
		return nil, apperr.Validation(fmt.Sprintf("URL is too long (max %d characters)", maxURLLength))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("Invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperr.Validation("Only HTTP and HTTPS URLs are allowed")
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, apperr.Validation("Invalid URL")
	}
	if blockedHosts[host] || strings.HasSuffix(host, ".localhost") {
		return nil, apperr.Validation("Internal URLs are not allowed")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlocked(addr) {
			return nil, apperr.Validation("Internal network URLs are not allowed")
		}
		return u, nil
	}

	addrs, err := g.lookup(ctx, host)
	if err != nil {
		return nil, apperr.URLExtraction(fmt.Sprintf("Could not resolve host %s", host))
	}
	for _, a := range addrs {
		if isBlocked(a) {
			return nil, apperr.Validation("Internal network URLs are not allowed")
		}
	}
	return u, nil
}

// client builds an HTTP client whose dialer refuses private addresses, so a
// DNS answer that changes after validation cannot reach them either.
func (g *urlGuard) client(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if addr, err := netip.ParseAddr(host); err == nil && isBlocked(addr) {
				return errBlockedAddress
			}
			return nil
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			_, err := g.validate(req.Context(), req.URL.String())
			return err
		},
	}
}
