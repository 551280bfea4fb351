package writers

import (
	"bytes"
	"strings"
	"testing"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scangate/scangate/pkg/report"
)

func TestPDFRendererValid(t *testing.T) {
	var buf bytes.Buffer
	r := &PDFRenderer{Site: "ci-run", Now: fixedNow}
	require.NoError(t, r.Render(&buf, vulnSet(t)))
	assert.Equal(t, "pdf", r.Extension())

	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	require.NoError(t, pdfapi.Validate(bytes.NewReader(buf.Bytes()), nil))

	pages, err := pdfapi.PageCount(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestPDFRendererContent(t *testing.T) {
	var buf bytes.Buffer
	r := &PDFRenderer{Site: "ci-run", Now: fixedNow, noCompress: true}
	require.NoError(t, r.Render(&buf, vulnSet(t)))

	out := buf.String()
	assert.Contains(t, out, "Nexpose Vulnerability Report")
	assert.Contains(t, out, "CVE-A")
	assert.Contains(t, out, "IP Address")
}

func TestPDFRendererPaginates(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("title,severity\n")
	for range 200 {
		sb.WriteString("CVE-X,Severe\n")
	}
	set, err := report.Parse("big", []byte(sb.String()))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, (&PDFRenderer{Now: fixedNow}).Render(&buf, set))

	pages, err := pdfapi.PageCount(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	assert.Greater(t, pages, 1)
}

func TestPDFRendererEmpty(t *testing.T) {
	set, err := report.Parse("empty", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, (&PDFRenderer{Now: fixedNow}).Render(&buf, set))
	require.NoError(t, pdfapi.Validate(bytes.NewReader(buf.Bytes()), nil))
}
