package writers

import (
	"fmt"
	"io"
	"strings"

	"github.com/scangate/scangate/pkg/finding"
	"github.com/scangate/scangate/pkg/report"
	"github.com/scangate/scangate/pkg/ui"
)

// ConsoleRenderer echoes report rows to a terminal, one line per row,
// colored by severity.
type ConsoleRenderer struct{}

// Extension implements report.Renderer. Console output is never a file.
func (*ConsoleRenderer) Extension() string { return "txt" }

// Render implements report.Renderer.
func (*ConsoleRenderer) Render(w io.Writer, set *report.Set) error {
	sep := " | "
	rule := "-"
	if unicodeSupported(w) && !ui.IsNoColor() {
		sep = " │ "
		rule = "─"
	}

	sevCol, hasSev := set.Column("severity")
	if _, err := fmt.Fprintln(w, strings.Join(headerTitles(set.Header), sep)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat(rule, 60)); err != nil {
		return err
	}
	for _, row := range set.Rows {
		cells := row.Values()
		if hasSev && sevCol < len(cells) {
			cells[sevCol] = ui.SeverityStyle(string(finding.Parse(cells[sevCol]))).Render(cells[sevCol])
		}
		for i, c := range cells {
			cells[i] = ui.SanitizeString(strings.ReplaceAll(c, "\n", " "))
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, sep)); err != nil {
			return err
		}
	}
	return nil
}

func headerTitles(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = headerTitle(h)
	}
	return out
}
