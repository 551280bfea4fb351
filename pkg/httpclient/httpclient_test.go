package httpclient

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scangate/scangate/pkg/defaults"
)

func TestNew_AppliesDefaults(t *testing.T) {
	client, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, TimeoutAPI, client.Timeout)
}

func TestNew_RespectsTimeout(t *testing.T) {
	client, err := New(Config{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestNew_RejectsBadProxy(t *testing.T) {
	_, err := New(Config{Proxy: "gopher://nowhere"})
	require.Error(t, err)
}

func TestNew_AcceptsSOCKSProxy(t *testing.T) {
	client, err := New(Config{Proxy: "socks5://127.0.0.1:1080"})
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestNew_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client, err := New(Config{})
	require.NoError(t, err)
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, defaults.UserAgent(""), got)
}

func TestNew_KeepsCallerUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client, err := New(Config{UserAgent: "ignored"})
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom/1")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "custom/1", got)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))

	dns := &net.DNSError{Err: "no such host", Name: "console.invalid"}
	assert.ErrorIs(t, Classify(dns), ErrDNS)

	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.ErrorIs(t, Classify(dial), ErrUnreachable)

	other := errors.New("boom")
	assert.Equal(t, other, Classify(other))
}

func TestClassify_RefusedConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client, err := New(Config{Timeout: 2 * time.Second})
	require.NoError(t, err)
	_, err = client.Get("http://" + addr)
	require.Error(t, err)
	assert.ErrorIs(t, Classify(err), ErrUnreachable)
}
