// Package verify decides whether a run passes, given its vulnerability
// findings and an optional exception list.
//
// The rules apply in order:
//
//  1. findings exist and no exception list is configured: fail
//  2. no findings: pass, without loading the list
//  3. every finding title is on the list: pass; otherwise fail and write the
//     unrecognized titles to a file, one per line
package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/exceptions"
	"github.com/scangate/scangate/pkg/report"
	"github.com/scangate/scangate/pkg/ui"
)

// Reasons recorded on a Verdict.
const (
	ReasonNoFindings   = "no vulnerabilities found"
	ReasonNoExceptions = "vulnerabilities found and no exception list configured"
	ReasonAllExcepted  = "all vulnerabilities are on the exception list"
	ReasonUnrecognized = "vulnerabilities found that are not on the exception list"
)

// untitled stands in for a finding whose title cell is blank.
const untitled = "(untitled)"

// Loader fetches an exception list.
type Loader interface {
	Load(ctx context.Context, source string) (*exceptions.List, error)
}

// Verdict is the outcome of a run.
type Verdict struct {
	Pass         bool     `json:"pass"`
	Findings     int      `json:"findings"`
	Unrecognized []string `json:"unrecognized,omitempty"`
	Reason       string   `json:"reason"`
	ArtifactPath string   `json:"artifact_path,omitempty"`
}

// Gate applies the verification rules.
type Gate struct {
	// Source is the exception list URL or path; blank means none.
	Source string
	Loader Loader

	// OutputDir receives the unrecognized findings file.
	OutputDir string
}

// Evaluate returns the verdict for the vulnerability summary. An error
// means the verdict could not be reached: the list could not be loaded or
// the unrecognized findings could not be written.
func (g *Gate) Evaluate(ctx context.Context, vulns *report.Set) (Verdict, error) {
	titles := Titles(vulns)
	v := Verdict{Findings: len(titles)}

	if strings.TrimSpace(g.Source) == "" && len(titles) > 0 {
		v.Reason = ReasonNoExceptions
		ui.PrintError(fmt.Sprintf("%d vulnerabilities found and no exception list is configured", len(titles)))
		return v, nil
	}
	if len(titles) == 0 {
		v.Pass = true
		v.Reason = ReasonNoFindings
		ui.PrintSuccess("No vulnerabilities found")
		return v, nil
	}

	list, err := g.Loader.Load(ctx, g.Source)
	if err != nil {
		return v, err
	}

	v.Unrecognized = Unrecognized(titles, list)
	if len(v.Unrecognized) == 0 {
		v.Pass = true
		v.Reason = ReasonAllExcepted
		ui.PrintSuccess("All vulnerabilities are on the exception list")
		return v, nil
	}

	v.Reason = ReasonUnrecognized
	for _, title := range v.Unrecognized {
		ui.PrintWarning(title + " is not on the exception list")
	}
	path := filepath.Join(g.OutputDir, defaults.UnrecognizedFindingsFileName)
	if err := WriteUnrecognized(path, v.Unrecognized); err != nil {
		return v, fmt.Errorf("verify: write %s: %w", path, err)
	}
	v.ArtifactPath = path
	return v, nil
}

// Titles returns the finding title of every row: the title column when the
// header has one, otherwise the second column.
func Titles(vulns *report.Set) []string {
	if vulns.Len() == 0 {
		return nil
	}
	titles := make([]string, 0, vulns.Len())
	for _, row := range vulns.Rows {
		t, ok := row.Get("title")
		if !ok {
			t = row.At(1)
		}
		t = strings.TrimSpace(t)
		if t == "" {
			t = untitled
		}
		titles = append(titles, t)
	}
	return titles
}

// Unrecognized returns the titles not on the list, sorted and without
// duplicates.
func Unrecognized(titles []string, list *exceptions.List) []string {
	var out []string
	for _, t := range titles {
		if !list.Contains(t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// WriteUnrecognized writes titles one per line, replacing any earlier file.
func WriteUnrecognized(path string, titles []string) error {
	var b strings.Builder
	for _, t := range titles {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

