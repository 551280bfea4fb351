package writers

import (
	"encoding/csv"
	"io"

	"github.com/scangate/scangate/pkg/report"
)

// UTF-8 BOM for Excel compatibility.
const utf8BOM = "\xEF\xBB\xBF"

// CSVRenderer writes a report as CSV with its original header.
type CSVRenderer struct {
	// ExcelCompatible adds a UTF-8 BOM.
	ExcelCompatible bool

	// SanitizeFormulas prevents CSV injection by prefixing cells that a
	// spreadsheet would evaluate.
	SanitizeFormulas bool
}

// Extension implements report.Renderer.
func (*CSVRenderer) Extension() string { return "csv" }

// Render implements report.Renderer.
func (r *CSVRenderer) Render(w io.Writer, set *report.Set) error {
	if r.ExcelCompatible {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return err
		}
	}
	cw := csv.NewWriter(w)
	if len(set.Header) > 0 {
		if err := cw.Write(set.Header); err != nil {
			return err
		}
	}
	for _, row := range set.Rows {
		values := row.Values()
		if r.SanitizeFormulas {
			for i, v := range values {
				values[i] = sanitizeForCSV(v)
			}
		}
		if err := cw.Write(values); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// sanitizeForCSV prefixes characters that trigger formula execution in
// spreadsheets.
func sanitizeForCSV(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
