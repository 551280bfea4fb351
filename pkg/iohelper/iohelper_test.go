package iohelper

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBody_NilReader(t *testing.T) {
	body, err := ReadBody(nil, ListMaxBodySize)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestReadBody_Truncates(t *testing.T) {
	body, err := ReadBody(strings.NewReader(strings.Repeat("x", 1000)), 100)
	require.NoError(t, err)
	assert.Len(t, body, 100)
}

func TestReadBodyStrict(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		limit   int64
		wantErr bool
	}{
		{"under limit", "CVE-2024-0001\n", 64, false},
		{"exactly at limit", strings.Repeat("a", 64), 64, false},
		{"over limit", strings.Repeat("a", 65), 64, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := ReadBodyStrict(strings.NewReader(tt.data), tt.limit)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBodyTooLarge)
				assert.Len(t, body, int(tt.limit))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(body))
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("reset by peer") }

func TestReadBodyStrict_PropagatesReadError(t *testing.T) {
	_, err := ReadBodyStrict(failingReader{}, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBodyTooLarge)
}

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestDrainAndClose(t *testing.T) {
	assert.NoError(t, DrainAndClose(nil))

	rc := &trackingCloser{Reader: strings.NewReader("leftover")}
	assert.NoError(t, DrainAndClose(rc))
	assert.True(t, rc.closed)
}
