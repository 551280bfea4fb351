package writers

import (
	"fmt"
	"io"
	"time"

	gofpdf "github.com/go-pdf/fpdf"

	"github.com/scangate/scangate/pkg/finding"
	"github.com/scangate/scangate/pkg/report"
)

// PDFRenderer writes a report as a landscape A4 table.
type PDFRenderer struct {
	// Site is shown under the title.
	Site string

	// Now stamps the document (default: time.Now).
	Now func() time.Time

	// noCompress leaves content streams readable for tests.
	noCompress bool
}

// Extension implements report.Renderer.
func (*PDFRenderer) Extension() string { return "pdf" }

const (
	pdfMargin   = 10.0
	pdfRowH     = 6.0
	pdfFontSize = 8.0
)

// Render implements report.Renderer.
func (r *PDFRenderer) Render(w io.Writer, set *report.Set) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetCompression(!r.noCompress)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := reportTitle(set.Name)
	pdf.SetTitle(title, true)
	pdf.SetCreator(generator(), true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s - page %d/{nb}", generator(), pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 116, 139)
	meta := fmt.Sprintf("%d rows - %s", set.Len(), now().UTC().Format("2006-01-02 15:04 MST"))
	if r.Site != "" {
		meta = "Site " + r.Site + " - " + meta
	}
	pdf.CellFormat(0, 6, tr(meta), "", 1, "L", false, 0, "")

	if counts := set.Severities(); counts != nil {
		r.severityLine(pdf, tr, counts)
	}
	pdf.Ln(3)

	if len(set.Header) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(0, 8, "No data.", "", 1, "L", false, 0, "")
		return output(pdf, w)
	}

	pageW, _ := pdf.GetPageSize()
	colW := (pageW - 2*pdfMargin) / float64(len(set.Header))

	header := func() {
		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(30, 41, 59)
		pdf.SetTextColor(255, 255, 255)
		for _, h := range set.Header {
			pdf.CellFormat(colW, pdfRowH+1, fit(pdf, tr(headerTitle(h)), colW), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", pdfFontSize)
		pdf.SetTextColor(40, 40, 40)
	}
	header()

	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	sevCol, hasSev := set.Column("severity")
	for i, row := range set.Rows {
		if pdf.GetY()+pdfRowH > pageH-bottom-15 {
			pdf.AddPage()
			header()
		}
		fill := i%2 == 1
		pdf.SetFillColor(248, 250, 252)
		for c := range set.Header {
			v := row.At(c)
			if hasSev && c == sevCol {
				rgb := severityRGB(finding.Parse(v))
				pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
			}
			pdf.CellFormat(colW, pdfRowH, fit(pdf, tr(v), colW), "1", 0, "L", fill, 0, "")
			pdf.SetTextColor(40, 40, 40)
		}
		pdf.Ln(-1)
	}
	return output(pdf, w)
}

func (r *PDFRenderer) severityLine(pdf *gofpdf.Fpdf, tr func(string) string, counts finding.Counts) {
	pdf.SetFont("Helvetica", "B", 9)
	for _, sev := range finding.All {
		n := counts[sev]
		if n == 0 {
			continue
		}
		rgb := severityRGB(sev)
		pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
		pdf.CellFormat(35, 6, tr(fmt.Sprintf("%s: %d", headerTitle(string(sev)), n)), "", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

// fit shortens s with an ellipsis until it fits a cell of width w.
func fit(pdf *gofpdf.Fpdf, s string, w float64) string {
	const pad = 2.0
	if pdf.GetStringWidth(s) <= w-pad {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > w-pad {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func severityRGB(s finding.Severity) [3]int {
	switch s {
	case finding.Critical:
		return [3]int{185, 28, 28}
	case finding.Severe:
		return [3]int{194, 65, 12}
	case finding.Moderate:
		return [3]int{161, 98, 7}
	default:
		return [3]int{100, 116, 139}
	}
}

func output(pdf *gofpdf.Fpdf, w io.Writer) error {
	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
