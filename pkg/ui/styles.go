package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary   = lipgloss.Color("#2E86DE")
	Secondary = lipgloss.Color("#00D4AA")

	// Console severity groups
	Critical = lipgloss.Color("#FF0000")
	Severe   = lipgloss.Color("#FF6B6B")
	Moderate = lipgloss.Color("#FFD93D")

	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
)

// Pre-configured styles
var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(18)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA"))

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	PassStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	AccentStyle = lipgloss.NewStyle().
			Foreground(Primary)
)

// SeverityStyle returns the style for a finding severity ("critical",
// "severe", "moderate"). Matching is case-insensitive.
func SeverityStyle(severity string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch strings.ToLower(severity) {
	case "critical":
		return base.Foreground(Critical)
	case "severe":
		return base.Foreground(Severe)
	case "moderate":
		return base.Foreground(Moderate)
	default:
		return base.Foreground(Muted)
	}
}

// StatusStyle returns the style for a scan status.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch strings.ToLower(status) {
	case "running", "dispatched":
		return base.Foreground(Primary)
	case "finished":
		return base.Foreground(Success)
	case "paused", "stopped":
		return base.Foreground(Warning)
	case "error", "aborted":
		return base.Foreground(Error)
	default:
		return base.Foreground(Muted)
	}
}
