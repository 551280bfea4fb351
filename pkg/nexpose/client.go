// Package nexpose is a client for the Nexpose console XML API (version 1.1).
//
// Every call is a POST of one XML request document to /api/1.1/xml. The
// console answers with a response document whose root carries success="1",
// or with a Failure envelope. Ad-hoc reports come back as multipart MIME.
//
// A Client holds one session. It is safe for concurrent use, but the scan
// lifecycle drives it from a single goroutine.
package nexpose

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/httpclient"
	"github.com/scangate/scangate/pkg/iohelper"
)

// Config configures a Client.
type Config struct {
	// Endpoint is the console host name or URL. A bare host gets https.
	Endpoint string

	// Port overrides the port in Endpoint (default: defaults.EnginePort)
	Port int

	Username string
	Password string

	// HTTPClient performs requests (default: httpclient.New with defaults)
	HTTPClient *http.Client

	// RequestsPerSecond paces calls; 0 means unlimited.
	RequestsPerSecond float64

	// Logger receives per-request debug records (default: slog.Default())
	Logger *slog.Logger
}

// Client talks to one console with one session.
type Client struct {
	apiURL   string
	username string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu        sync.RWMutex
	sessionID string
}

// New builds a client. It does not contact the console; call Login.
func New(cfg Config) (*Client, error) {
	apiURL, err := APIURL(cfg.Endpoint, cfg.Port)
	if err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc, err = httpclient.New(httpclient.DefaultConfig())
		if err != nil {
			return nil, err
		}
	}

	c := &Client{
		apiURL:   apiURL,
		username: cfg.Username,
		password: cfg.Password,
		http:     hc,
		logger:   orDefault(cfg.Logger),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// APIURL derives the XML API URL from an endpoint and port.
// "console.local" with port 3780 becomes https://console.local:3780/api/1.1/xml.
// A port already present in endpoint wins over port.
func APIURL(endpoint string, port int) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errors.New("nexpose: endpoint is empty")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("nexpose: invalid endpoint: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("nexpose: endpoint %q has no host", endpoint)
	}
	if u.Port() == "" {
		if port <= 0 {
			port = defaults.EnginePort
		}
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	u.Path = "/api/" + defaults.APIVersion + "/xml"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// Login opens a session.
func (c *Client) Login(ctx context.Context) error {
	var resp loginResponse
	req := loginRequest{UserID: c.username, Password: c.password}
	if err := c.execute(ctx, "LoginRequest", req, &resp); err != nil {
		return err
	}
	if resp.SessionID == "" {
		return fmt.Errorf("%w: login response has no session-id", ErrMalformedResponse)
	}
	c.mu.Lock()
	c.sessionID = resp.SessionID
	c.mu.Unlock()
	return nil
}

// Logout closes the session. It is a no-op without a session.
func (c *Client) Logout(ctx context.Context) error {
	sid, err := c.session()
	if err != nil {
		return nil
	}
	err = c.execute(ctx, "LogoutRequest", logoutRequest{SessionID: sid}, nil)
	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()
	return err
}

func (c *Client) session() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessionID == "" {
		return "", ErrNotLoggedIn
	}
	return c.sessionID, nil
}

// execute posts req and decodes the response into out (which may be nil).
func (c *Client) execute(ctx context.Context, op string, req, out any) error {
	body, _, err := c.post(ctx, op, req)
	if err != nil {
		return err
	}
	return decode(op, body, out)
}

// post sends req and returns the raw body and content type. Failure
// envelopes are not inspected here.
func (c *Client) post(ctx context.Context, op string, req any) ([]byte, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}
	}

	payload, err := xml.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("nexpose: encode %s: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	httpReq.Header.Set("Content-Type", defaults.ContentTypeXML)
	httpReq.Header.Set("Accept", "*/*")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		if isTruncation(err) {
			c.logger.Debug("nexpose stream closed", slog.String("op", op), slog.String("error", err.Error()))
			return nil, "", fmt.Errorf("%w: %s", ErrDisconnected, op)
		}
		return nil, "", fmt.Errorf("nexpose: %s: %w", op, httpclient.Classify(err))
	}
	defer iohelper.DrainAndClose(resp.Body)

	data, err := iohelper.ReadBodyStrict(resp.Body, iohelper.APIMaxBodySize)
	c.logger.Debug("nexpose request",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(data)),
		slog.Duration("elapsed", time.Since(start)))
	if err != nil {
		if isTruncation(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrDisconnected, op)
		}
		return nil, "", fmt.Errorf("nexpose: read %s response: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(data))
		if env, ok := parseEnvelope(data); ok && env.Failure != nil {
			msg = env.Failure.text()
		}
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, "", &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", fmt.Errorf("%w: %s returned an empty body", ErrDisconnected, op)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func isTruncation(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func parseEnvelope(data []byte) (envelope, bool) {
	var env envelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return env, false
	}
	return env, true
}

// decode checks the envelope for failure and unmarshals the document.
func decode(op string, data []byte, out any) error {
	env, ok := parseEnvelope(data)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, op)
	}
	if env.XMLName.Local == "Failure" || env.Failure != nil || env.Success == "0" {
		msg := ""
		if env.Failure != nil {
			msg = env.Failure.text()
		} else if env.XMLName.Local == "Failure" {
			var f failureXML
			_ = xml.Unmarshal(data, &f)
			msg = f.text()
		}
		return &APIError{Op: op, StatusCode: http.StatusOK, Message: strings.TrimSpace(msg)}
	}
	if out == nil {
		return nil
	}
	if err := xml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, op, err)
	}
	return nil
}
