package writers

import (
	"io"
	"sync"

	"github.com/scangate/scangate/pkg/jsonutil"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/events"
)

var _ dispatcher.Writer = (*JSONLWriter)(nil)

// JSONLWriter writes every event as one JSON object per line, so a CI log
// scraper or jq can follow the run as it happens.
type JSONLWriter struct {
	w       io.Writer
	mu      sync.Mutex
	encoder *jsonutil.Encoder
	skip    map[events.EventType]bool
}

// NewJSONLWriter creates a JSONL writer. Events of the skipped types are
// dropped. The writer is safe for concurrent use.
func NewJSONLWriter(w io.Writer, skip ...events.EventType) *JSONLWriter {
	jw := &JSONLWriter{w: w, encoder: jsonutil.NewStreamEncoder(w), skip: map[events.EventType]bool{}}
	for _, t := range skip {
		jw.skip[t] = true
	}
	return jw
}

// Write writes an event as a single JSON line.
func (jw *JSONLWriter) Write(event events.Event) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.encoder.Encode(event)
}

// Flush is a no-op; JSONL writes immediately.
func (jw *JSONLWriter) Flush() error { return nil }

// Close closes the underlying writer if it is an io.Closer.
func (jw *JSONLWriter) Close() error {
	if closer, ok := jw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns false for skipped types.
func (jw *JSONLWriter) SupportsEvent(t events.EventType) bool {
	return !jw.skip[t]
}
