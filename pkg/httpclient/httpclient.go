// Package httpclient builds the HTTP clients used to talk to the scan
// console and to fetch exception lists. Both share one transport shape:
// bounded dial and handshake timeouts, optional proxy (HTTP CONNECT or
// SOCKS), and a fixed User-Agent.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/duration"
)

// Timeout presets. These mirror pkg/duration for callers that only import
// httpclient.
const (
	// TimeoutProbing is for exception list fetches
	TimeoutProbing = duration.HTTPProbing

	// TimeoutAPI is for engine XML API calls
	TimeoutAPI = duration.HTTPAPI

	// TimeoutReports is for synchronous report generation
	TimeoutReports = duration.HTTPReports
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: TimeoutAPI)
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification. Consoles
	// commonly run with self-signed certificates.
	InsecureSkipVerify bool

	// Proxy is the HTTP/HTTPS/SOCKS proxy URL (optional)
	Proxy string

	// UserAgent is sent on every request (default: defaults.UserAgent(""))
	UserAgent string

	// MaxIdleConns is the maximum number of idle connections (default: 10)
	MaxIdleConns int

	// IdleConnTimeout is how long idle connections stay in pool (default: 90s)
	IdleConnTimeout time.Duration

	// DialTimeout is the timeout for establishing connections (default: 10s)
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the timeout for TLS handshake (default: 10s)
	TLSHandshakeTimeout time.Duration
}

// DefaultConfig returns defaults for a single console session.
func DefaultConfig() Config {
	return Config{
		Timeout:             TimeoutAPI,
		MaxIdleConns:        10,
		IdleConnTimeout:     duration.IdleConnTimeout,
		DialTimeout:         duration.DialTimeout,
		TLSHandshakeTimeout: duration.TLSHandshake,
	}
}

// New creates an HTTP client with the given configuration. Zero values take
// their defaults. A malformed proxy URL is an error.
func New(cfg Config) (*http.Client, error) {
	def := DefaultConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = def.TLSHandshakeTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent("")
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		DialContext:         dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in for self-signed consoles
		},
	}

	pc, err := ParseProxyURL(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	switch {
	case pc.SOCKS():
		dial, err := socksDial(pc, dialer, cfg.DialTimeout)
		if err != nil {
			return nil, err
		}
		transport.DialContext = dial
	case pc != nil:
		transport.Proxy = http.ProxyURL(pc.URL)
	}

	return &http.Client{
		Transport: &userAgentTransport{base: transport, userAgent: cfg.UserAgent},
		Timeout:   cfg.Timeout,
	}, nil
}

// userAgentTransport stamps a fixed User-Agent on every outgoing request.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (u *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return u.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", u.userAgent)
	return u.base.RoundTrip(r)
}
