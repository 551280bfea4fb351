// Package exceptions loads the allow-list of vulnerability titles that do
// not fail a run. The list is plain text, one title per line, read from an
// http(s) URL or a local path.
package exceptions

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/scangate/scangate/pkg/httpclient"
	"github.com/scangate/scangate/pkg/iohelper"
)

// List is an order-insensitive set of exception titles.
type List struct {
	titles map[string]struct{}
}

// NewList builds a list from titles. Surrounding whitespace is trimmed and
// blank entries are skipped.
func NewList(titles ...string) *List {
	l := &List{titles: make(map[string]struct{}, len(titles))}
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t != "" {
			l.titles[t] = struct{}{}
		}
	}
	return l
}

// Parse splits text into a list, one title per line. CRLF line endings
// are accepted.
func Parse(text string) *List {
	return NewList(strings.Split(text, "\n")...)
}

// Contains reports whether title is an accepted exception.
func (l *List) Contains(title string) bool {
	if l == nil {
		return false
	}
	_, ok := l.titles[title]
	return ok
}

// Len returns the number of distinct titles.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.titles)
}

// Loader fetches exception lists. Every Load reads the source again.
type Loader struct {
	// HTTPClient is used for http(s) sources (default: httpclient.New with
	// TimeoutProbing)
	HTTPClient *http.Client

	// Logger receives a debug record per load (default: slog.Default())
	Logger *slog.Logger
}

// IsRemote reports whether source is fetched over HTTP.
func IsRemote(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Load reads the list at source. Failures wrap ErrUnavailable.
func (l *Loader) Load(ctx context.Context, source string) (*List, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: no source configured", ErrUnavailable)
	}

	var (
		data []byte
		err  error
	)
	if IsRemote(source) {
		data, err = l.fetch(ctx, source)
	} else {
		data, err = readFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, source, err)
	}

	list := Parse(string(data))
	orDefault(l.Logger).Debug("exception list loaded",
		slog.String("source", source),
		slog.Int("titles", list.Len()))
	return list, nil
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	hc := l.HTTPClient
	if hc == nil {
		var err error
		hc, err = httpclient.New(httpclient.Config{Timeout: httpclient.TimeoutProbing})
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, httpclient.Classify(err)
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return iohelper.ReadBodyStrict(resp.Body, iohelper.ListMaxBodySize)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return iohelper.ReadBodyStrict(f, iohelper.ListMaxBodySize)
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
