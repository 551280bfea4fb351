package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// capture redirects narration for the duration of fn.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	SetNoColor(true)
	defer SetOutput(prev)
	fn()
	return buf.String()
}

func TestPrintMessages(t *testing.T) {
	got := capture(t, func() {
		PrintSection("Provisioning")
		PrintInfo("Using existing site ci-run")
		PrintSuccess("Saved site")
		PrintWarning("scan ended as stopped")
		PrintError("report failed")
		PrintConfigLine("Site", "ci-run")
	})

	assert.Contains(t, got, "> Provisioning")
	assert.Contains(t, got, "* Using existing site ci-run")
	assert.Contains(t, got, "[+] Saved site")
	assert.Contains(t, got, "[!] scan ended as stopped")
	assert.Contains(t, got, "[X] report failed")
	assert.Contains(t, got, "ci-run")
}

func TestSilentSuppressesAllButErrors(t *testing.T) {
	SetSilent(true)
	defer SetSilent(false)

	got := capture(t, func() {
		PrintBanner()
		PrintInfo("hidden")
		PrintSuccess("hidden")
		PrintWarning("hidden")
		PrintScanStatus("ci-run", "running", 1, 1, 1)
		PrintError("shown")
	})

	assert.NotContains(t, got, "hidden")
	assert.Contains(t, got, "shown")
	assert.Equal(t, 1, strings.Count(got, "\n"))
}

func TestPrintScanStatus(t *testing.T) {
	got := capture(t, func() {
		PrintScanStatus("ci-run", "running", 2, 1, 4)
	})
	assert.Contains(t, got, "[running] ci-run")
	assert.Contains(t, got, "pending 2")
	assert.Contains(t, got, "active 1")
	assert.Contains(t, got, "completed 4")
}

func TestPrintBanner(t *testing.T) {
	got := capture(t, PrintBanner)
	assert.Contains(t, got, "v"+Version)
}

func TestStyles(t *testing.T) {
	for _, s := range []string{"critical", "Severe", "MODERATE", "other"} {
		assert.NotPanics(t, func() { _ = SeverityStyle(s).Render(s) })
	}
	for _, s := range []string{"running", "finished", "stopped", "error", "unknown"} {
		assert.NotPanics(t, func() { _ = StatusStyle(s).Render(s) })
	}
}

func TestSanitizeStringKeepsASCII(t *testing.T) {
	assert.Equal(t, "plain text [+]", SanitizeString("plain text [+]"))
}

func TestFoldForLegacy(t *testing.T) {
	tests := []struct{ in, want string }{
		{"OpenSSL \u201cHeartbleed\u201d \u2013 CVE-2014-0160", `OpenSSL "Heartbleed" - CVE-2014-0160`},
		{"Caf\u00e9 d\u00e9j\u00e0 vu", "Caf\u00e9 d\u00e9j\u00e0 vu"},
		{"scan done \u2714 \u2588\u2588", "scan done + "},
		{"variation\ufe0f selector", "variation selector"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, foldForLegacy(tt.in), tt.in)
	}
}
