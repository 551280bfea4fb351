// Package writers renders reports and persists run events.
//
// Renderers (CSV, HTML, Markdown, PDF, JSON, console) implement
// report.Renderer and turn one structured report into one file. Event
// writers (JSONL, verdict JSON) implement dispatcher.Writer.
package writers

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/report"
)

// Compile-time interface checks.
var (
	_ report.Renderer = (*CSVRenderer)(nil)
	_ report.Renderer = (*HTMLRenderer)(nil)
	_ report.Renderer = (*MarkdownRenderer)(nil)
	_ report.Renderer = (*PDFRenderer)(nil)
	_ report.Renderer = (*JSONRenderer)(nil)
	_ report.Renderer = (*ConsoleRenderer)(nil)
)

// headerTitle turns a column name such as "date_published" into
// "Date Published".
func headerTitle(field string) string {
	words := strings.Fields(cases.Title(language.English).String(strings.ReplaceAll(field, "_", " ")))
	for i, w := range words {
		if up, ok := acronyms[w]; ok {
			words[i] = up
		}
	}
	return strings.Join(words, " ")
}

var acronyms = map[string]string{"Ip": "IP", "Id": "ID", "Cvss": "CVSS", "Xml": "XML", "Url": "URL"}

// reportTitle turns a report name such as "nexpose-software-report" into
// "Nexpose Software Report".
func reportTitle(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
}

// generator is the credit line on rendered documents.
func generator() string {
	return defaults.ToolNameDisplay + " " + defaults.Version
}
