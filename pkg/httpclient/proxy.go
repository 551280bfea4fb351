package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// defaultProxyPorts fill in a proxy URL given without a port.
var defaultProxyPorts = map[string]string{
	"http":    "8080",
	"https":   "8443",
	"socks5":  "1080",
	"socks5h": "1080",
}

// Proxy is a parsed -proxy value. HTTP and HTTPS proxies tunnel the console
// connection with CONNECT; SOCKS5 proxies replace the dialer. socks5h sends
// host names to the proxy unresolved.
type Proxy struct {
	URL *url.URL
}

// ParseProxyURL validates a proxy URL. A value without a scheme is taken as
// an HTTP proxy. The empty string means no proxy and yields nil, nil.
func ParseProxyURL(raw string) (*Proxy, error) {
	if raw == "" {
		return nil, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	port, ok := defaultProxyPorts[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported proxy scheme %q (want http, https, socks5 or socks5h)", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("proxy URL %q has no host", raw)
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return &Proxy{URL: u}, nil
}

// SOCKS reports whether the proxy replaces the dialer.
func (p *Proxy) SOCKS() bool {
	return p != nil && strings.HasPrefix(p.URL.Scheme, "socks5")
}

// RemoteDNS reports whether host names are resolved by the proxy.
func (p *Proxy) RemoteDNS() bool {
	return p != nil && p.URL.Scheme == "socks5h"
}

// String returns the proxy URL with any password masked.
func (p *Proxy) String() string {
	if p == nil {
		return ""
	}
	return p.URL.Redacted()
}

// dialFunc matches http.Transport.DialContext.
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// socksDial returns a DialContext that connects through a SOCKS5 proxy,
// bounding the handshake by timeout.
func socksDial(p *Proxy, forward *net.Dialer, timeout time.Duration) (dialFunc, error) {
	u := *p.URL
	u.Scheme = "socks5"
	d, err := proxy.FromURL(&u, forward)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProxyConnect, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("%w: %s dialer does not take a context", ErrProxyConnect, p.URL.Scheme)
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		conn, err := cd.DialContext(ctx, network, address)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProxyConnect, p, err)
		}
		return conn, nil
	}, nil
}
