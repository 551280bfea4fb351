package writers

import (
	"html/template"
	"io"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/scangate/scangate/pkg/finding"
	"github.com/scangate/scangate/pkg/report"
)

// HTMLRenderer writes a report as a standalone HTML table.
type HTMLRenderer struct {
	// Site is shown in the page heading.
	Site string

	// Now stamps the page (default: time.Now).
	Now func() time.Time
}

// Extension implements report.Renderer.
func (*HTMLRenderer) Extension() string { return "html" }

type htmlData struct {
	Title     string
	Site      string
	Generated time.Time
	Generator string
	Header    []string
	Rows      [][]string
	SevCol    int
	Counts    finding.Counts
	Levels    []finding.Severity
}

var htmlTemplate = template.Must(template.New("report").Funcs(sprig.FuncMap()).Funcs(template.FuncMap{
	"headerTitle": headerTitle,
	"severity":    func(s string) string { return string(finding.Parse(s)) },
}).Parse(htmlSource))

// Render implements report.Renderer.
func (r *HTMLRenderer) Render(w io.Writer, set *report.Set) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	data := htmlData{
		Title:     reportTitle(set.Name),
		Site:      r.Site,
		Generated: now().UTC(),
		Generator: generator(),
		Header:    set.Header,
		SevCol:    -1,
		Counts:    set.Severities(),
		Levels:    finding.All,
	}
	if col, ok := set.Column("severity"); ok {
		data.SevCol = col
	}
	for _, row := range set.Rows {
		data.Rows = append(data.Rows, row.Values())
	}
	return htmlTemplate.Execute(w, data)
}

const htmlSource = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Title }}{{ with .Site }} - {{ . }}{{ end }}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; margin: 2rem; color: #1e293b; }
h1 { font-size: 1.4rem; margin-bottom: .25rem; }
.meta { color: #64748b; font-size: .85rem; margin-bottom: 1rem; }
table { border-collapse: collapse; width: 100%; font-size: .85rem; }
th, td { border: 1px solid #cbd5e1; padding: .35rem .5rem; text-align: left; vertical-align: top; }
th { background: #1e293b; color: #fff; }
tr:nth-child(even) td { background: #f8fafc; }
.sev-critical { color: #b91c1c; font-weight: 600; }
.sev-severe { color: #c2410c; font-weight: 600; }
.sev-moderate { color: #a16207; }
.counts span { margin-right: 1rem; }
</style>
</head>
<body>
<h1>{{ .Title }}</h1>
<div class="meta">{{ with .Site }}Site {{ . }} &middot; {{ end }}{{ len .Rows }} row{{ if ne (len .Rows) 1 }}s{{ end }} &middot; {{ dateInZone "2006-01-02 15:04 MST" .Generated "UTC" }} &middot; {{ .Generator }}</div>
{{- if .Counts }}
<div class="counts">{{ range .Levels }}{{ $n := index $.Counts . }}{{ if $n }}<span class="sev-{{ . }}">{{ headerTitle (printf "%s" .) }}: {{ $n }}</span>{{ end }}{{ end }}</div>
{{- end }}
{{- if .Header }}
<table>
<thead><tr>{{ range .Header }}<th>{{ headerTitle . }}</th>{{ end }}</tr></thead>
<tbody>
{{- range .Rows }}
<tr>{{ range $i, $v := . }}{{ if eq $i $.SevCol }}<td class="sev-{{ severity $v }}">{{ $v }}</td>{{ else }}<td>{{ $v | trunc 2000 }}</td>{{ end }}{{ end }}</tr>
{{- end }}
</tbody>
</table>
{{- else }}
<p>No data.</p>
{{- end }}
</body>
</html>
`
