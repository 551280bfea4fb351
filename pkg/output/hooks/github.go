package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/scangate/scangate/pkg/finding"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*GitHubActionsHook)(nil)

// ErrNotGitHubActions is returned when $GITHUB_OUTPUT is not set.
var ErrNotGitHubActions = errors.New("not running in GitHub Actions")

// GitHubActionsHook publishes the verdict to a GitHub Actions job: step
// outputs in $GITHUB_OUTPUT and, optionally, a Markdown table in
// $GITHUB_STEP_SUMMARY.
type GitHubActionsHook struct {
	outputPath  string
	summaryPath string
	opts        GitHubActionsOptions
	mu          sync.Mutex
	reports     []*events.ReportEvent
}

// GitHubActionsOptions configures the GitHub Actions hook.
type GitHubActionsOptions struct {
	// AddSummary enables the step summary.
	AddSummary bool
}

// NewGitHubActionsHook reads the output paths from the environment.
func NewGitHubActionsHook(opts GitHubActionsOptions) (*GitHubActionsHook, error) {
	outputPath := os.Getenv("GITHUB_OUTPUT")
	if outputPath == "" {
		return nil, ErrNotGitHubActions
	}
	return NewGitHubActionsHookWithPaths(outputPath, os.Getenv("GITHUB_STEP_SUMMARY"), opts), nil
}

// NewGitHubActionsHookWithPaths creates a hook with explicit paths.
func NewGitHubActionsHookWithPaths(outputPath, summaryPath string, opts GitHubActionsOptions) *GitHubActionsHook {
	return &GitHubActionsHook{
		outputPath:  outputPath,
		summaryPath: summaryPath,
		opts:        opts,
	}
}

// OnEvent collects written reports and publishes the verdict.
func (h *GitHubActionsHook) OnEvent(_ context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e := event.(type) {
	case *events.ReportEvent:
		h.reports = append(h.reports, e)
	case *events.VerdictEvent:
		if err := h.writeOutput(e); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if h.opts.AddSummary && h.summaryPath != "" {
			if err := h.writeStepSummary(e); err != nil {
				return fmt.Errorf("failed to write step summary: %w", err)
			}
		}
	}
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *GitHubActionsHook) EventTypes() []events.EventType {
	return []events.EventType{events.EventTypeReport, events.EventTypeVerdict}
}

func (h *GitHubActionsHook) writeOutput(v *events.VerdictEvent) error {
	f, err := os.OpenFile(h.outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	result := "pass"
	if !v.Pass {
		result = "fail"
	}
	lines := []string{
		"result=" + result,
		"reason=" + v.Reason,
		fmt.Sprintf("findings=%d", v.Findings),
		fmt.Sprintf("unrecognized=%d", len(v.Unrecognized)),
		fmt.Sprintf("scan_id=%d", v.ScanID),
		"scan_status=" + v.ScanStatus,
	}
	if v.ArtifactPath != "" {
		lines = append(lines, "artifact="+v.ArtifactPath)
	}
	_, err = fmt.Fprintln(f, strings.Join(lines, "\n"))
	return err
}

func (h *GitHubActionsHook) writeStepSummary(v *events.VerdictEvent) error {
	f, err := os.OpenFile(h.summaryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	var sb strings.Builder
	status := "Passed"
	if !v.Pass {
		status = "Failed"
	}
	fmt.Fprintf(&sb, "## Nexpose scan gate: %s\n\n", status)
	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Site | `%s` |\n", v.Site)
	fmt.Fprintf(&sb, "| Scan | %d (%s) |\n", v.ScanID, v.ScanStatus)
	fmt.Fprintf(&sb, "| Findings | %d |\n", v.Findings)
	fmt.Fprintf(&sb, "| Reason | %s |\n", v.Reason)
	for _, sev := range finding.All {
		if n := v.Severities[string(sev)]; n > 0 {
			fmt.Fprintf(&sb, "| %s | %d |\n", capitalize(string(sev)), n)
		}
	}

	if len(v.Unrecognized) > 0 {
		sb.WriteString("\n### Findings not in the exception list\n\n")
		for _, title := range v.Unrecognized {
			fmt.Fprintf(&sb, "- %s\n", strings.ReplaceAll(title, "\n", " "))
		}
	}

	if len(h.reports) > 0 {
		sb.WriteString("\n### Reports\n\n")
		for _, r := range h.reports {
			rows := "export"
			if r.Rows >= 0 {
				rows = fmt.Sprintf("%d rows", r.Rows)
			}
			fmt.Fprintf(&sb, "- `%s` (%s): %s\n", r.Report, rows, strings.Join(r.Paths, ", "))
		}
	}
	sb.WriteString("\n")

	_, err = f.WriteString(sb.String())
	return err
}
