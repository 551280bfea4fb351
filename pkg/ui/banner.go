package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Version information - these can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/scangate/scangate/pkg/ui.Version=1.0.0"
var (
	Version   = "1.4.0"
	BuildDate = "2026-10-01"
	Commit    = "dev"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	output      io.Writer = os.Stderr
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses all but errors)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// SetOutput redirects narration (default: os.Stderr) and returns the
// previous writer so tests can restore it.
func SetOutput(w io.Writer) io.Writer {
	uiMu.Lock()
	defer uiMu.Unlock()
	prev := output
	output = w
	return prev
}

func out() io.Writer {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return output
}

func emit(s string) {
	fmt.Fprintln(out(), SanitizeString(s))
}

const bannerArt = `
                                   __
   ______________ _____  ____ _____ _/ /____
  / ___/ ___/ __ '/ __ \/ __ '/ __ '/ __/ _ \
 (__  ) /__/ /_/ / / / / /_/ / /_/ / /_/  __/
/____/\___/\__,_/_/ /_/\__, /\__,_/\__/\___/
                      /____/
`

// Separator line
const bannerSeparator = "________________________________________________"

// PrintBanner prints the application banner with version info
func PrintBanner() {
	if IsSilent() {
		return
	}
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			emit(BannerStyle.Render(line))
		}
	}
	emit("                 v" + VersionStyle.Render(Version))
	emit("")
}

// PrintDivider prints a stylized divider
func PrintDivider() {
	if IsSilent() {
		return
	}
	emit(DividerStyle.Render(strings.Repeat("-", 75)))
}

// PrintSection prints a section header
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	emit("")
	emit(SectionStyle.Render("> " + title))
	PrintDivider()
}

// PrintConfigLine prints a single config line
func PrintConfigLine(key, value string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(out(), "  %s %s\n",
		ConfigLabelStyle.Render(key+":"),
		ConfigValueStyle.Render(value),
	)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	if IsSilent() {
		return
	}
	emit(PassStyle.Render("  [+] " + message))
}

// PrintError prints an error message. Errors are printed in silent mode.
func PrintError(message string) {
	emit(FailStyle.Render("  [X] " + message))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	if IsSilent() {
		return
	}
	emit(WarnStyle.Render("  [!] " + message))
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(out(), "  %s %s\n", AccentStyle.Render("*"), SanitizeString(message))
}

// PrintScanStatus prints one poll observation:
//
//	[running] ci-run  pending 2  active 1  completed 4
func PrintScanStatus(site, status string, pending, active, completed int) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(out(), "  %s%s%s %s  %s %d  %s %d  %s %d\n",
		BracketStyle.Render("["), StatusStyle(status).Render(status), BracketStyle.Render("]"),
		site,
		StatLabelStyle.Render("pending"), pending,
		StatLabelStyle.Render("active"), active,
		StatLabelStyle.Render("completed"), completed,
	)
}
