// Package iohelper provides helper functions for I/O operations,
// particularly for safely reading HTTP response bodies with limits.
package iohelper

import (
	"errors"
	"fmt"
	"io"

	"github.com/scangate/scangate/pkg/defaults"
)

// Standard body size limits for different use cases
const (
	// SmallMaxBodySize is for error envelopes and status pages
	SmallMaxBodySize int64 = defaults.BufferSmall

	// ListMaxBodySize is for exception lists
	ListMaxBodySize int64 = defaults.BufferHuge

	// APIMaxBodySize is for console responses, which carry report exports inline
	APIMaxBodySize int64 = defaults.BufferMax
)

// ErrBodyTooLarge is returned by ReadBodyStrict when the reader holds more
// than the allowed number of bytes.
var ErrBodyTooLarge = errors.New("iohelper: body exceeds size limit")

// ReadBody reads from an io.Reader with a size limit, truncating silently.
// If r is nil, returns empty slice and no error.
//
// Usage:
//
//	body, err := iohelper.ReadBody(resp.Body, iohelper.SmallMaxBodySize)
//	defer resp.Body.Close()
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodyStrict reads at most maxSize bytes and fails with ErrBodyTooLarge
// when there is more. Use it where truncated content would be misread as
// complete, such as exception lists and XML envelopes.
func ReadBodyStrict(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return data, err
	}
	if int64(len(data)) > maxSize {
		return data[:maxSize], fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, maxSize)
	}
	return data, nil
}

// DrainAndClose reads any remaining data from r and closes it if it's a ReadCloser.
// This ensures the connection can be reused for HTTP keep-alive.
// Always returns nil error to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(r, SmallMaxBodySize*16))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
