package writers

import (
	"io"
	"os"
	"sync"

	"github.com/scangate/scangate/pkg/jsonutil"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/events"
	"github.com/scangate/scangate/pkg/report"
)

// JSONRenderer writes a report as an array of objects keyed by column.
type JSONRenderer struct{}

// Extension implements report.Renderer.
func (*JSONRenderer) Extension() string { return "json" }

type jsonReport struct {
	Report string              `json:"report"`
	Header []string            `json:"header"`
	Rows   []map[string]string `json:"rows"`
}

// Render implements report.Renderer.
func (*JSONRenderer) Render(w io.Writer, set *report.Set) error {
	doc := jsonReport{Report: set.Name, Header: set.Header, Rows: make([]map[string]string, 0, set.Len())}
	for _, row := range set.Rows {
		obj := make(map[string]string, len(set.Header))
		for i, h := range set.Header {
			obj[h] = row.At(i)
		}
		doc.Rows = append(doc.Rows, obj)
	}
	data, err := jsonutil.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

var _ dispatcher.Writer = (*VerdictWriter)(nil)

// VerdictWriter writes the verdict event to a JSON file for later CI steps.
// Each verdict replaces the file.
type VerdictWriter struct {
	path string
	mu   sync.Mutex
}

// NewVerdictWriter writes verdicts to path.
func NewVerdictWriter(path string) *VerdictWriter {
	return &VerdictWriter{path: path}
}

// Write implements dispatcher.Writer.
func (vw *VerdictWriter) Write(event events.Event) error {
	v, ok := event.(*events.VerdictEvent)
	if !ok {
		return nil
	}
	vw.mu.Lock()
	defer vw.mu.Unlock()
	data, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(vw.path, append(data, '\n'), 0o644)
}

// Flush is a no-op; verdicts are written immediately.
func (vw *VerdictWriter) Flush() error { return nil }

// Close is a no-op.
func (vw *VerdictWriter) Close() error { return nil }

// SupportsEvent accepts verdict events only.
func (vw *VerdictWriter) SupportsEvent(t events.EventType) bool {
	return t == events.EventTypeVerdict
}
