package writers

import (
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/scangate/scangate/pkg/finding"
	"github.com/scangate/scangate/pkg/report"
)

// MarkdownRenderer writes a report as a GitHub-flavored Markdown table.
type MarkdownRenderer struct {
	// Site is shown in the heading.
	Site string

	// MaxCellLen truncates long cells (default: 200, negative disables).
	MaxCellLen int
}

// Extension implements report.Renderer.
func (*MarkdownRenderer) Extension() string { return "md" }

type markdownData struct {
	Title   string
	Site    string
	Header  []string
	Rows    [][]string
	Counts  finding.Counts
	Levels  []finding.Severity
	MaxCell int
}

var markdownTemplate = template.Must(template.New("md").Funcs(sprig.TxtFuncMap()).Funcs(template.FuncMap{
	"headerTitle": headerTitle,
	"cell":        markdownCell,
}).Parse(markdownSource))

// Render implements report.Renderer.
func (r *MarkdownRenderer) Render(w io.Writer, set *report.Set) error {
	maxCell := r.MaxCellLen
	if maxCell == 0 {
		maxCell = 200
	}
	data := markdownData{
		Title:   reportTitle(set.Name),
		Site:    r.Site,
		Header:  set.Header,
		Counts:  set.Severities(),
		Levels:  finding.All,
		MaxCell: maxCell,
	}
	for _, row := range set.Rows {
		data.Rows = append(data.Rows, row.Values())
	}
	return markdownTemplate.Execute(w, data)
}

// markdownCell makes a value safe for a table cell.
func markdownCell(max int, s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", "<br>")
	if max > 0 {
		if runes := []rune(s); len(runes) > max {
			s = string(runes[:max]) + "..."
		}
	}
	return s
}

const markdownSource = `# {{ .Title }}
{{ with .Site }}
Site: ` + "`{{ . }}`" + `
{{ end }}
{{- if .Counts }}
| Severity | Count |
|----------|------:|
{{- range .Levels }}{{ $n := index $.Counts . }}{{ if $n }}
| {{ headerTitle (printf "%s" .) }} | {{ $n }} |
{{- end }}{{ end }}
{{ end }}
{{- if .Header }}
|{{ range .Header }} {{ headerTitle . }} |{{ end }}
|{{ range .Header }} --- |{{ end }}
{{- range .Rows }}
|{{ range . }} {{ cell $.MaxCell . }} |{{ end }}
{{- end }}
{{ else }}
_No data._
{{ end -}}
`
