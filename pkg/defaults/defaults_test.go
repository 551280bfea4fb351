package defaults_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/ui"
)

// TestVersionConsistency ensures ui.Version matches defaults.Version
func TestVersionConsistency(t *testing.T) {
	if ui.Version != defaults.Version {
		t.Errorf("ui.Version (%s) != defaults.Version (%s)", ui.Version, defaults.Version)
	}

	semverPattern := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9]+)?$`)
	if !semverPattern.MatchString(defaults.Version) {
		t.Errorf("defaults.Version (%s) is not valid semver", defaults.Version)
	}
}

func TestUserAgent(t *testing.T) {
	if got := defaults.UserAgent(""); got != "scangate/"+defaults.Version {
		t.Errorf("UserAgent(\"\") = %q", got)
	}
	got := defaults.UserAgent("exceptions")
	if !strings.HasSuffix(got, "(exceptions)") {
		t.Errorf("UserAgent with context = %q, want suffix (exceptions)", got)
	}
}

func TestRetryBudgetIsPositive(t *testing.T) {
	if defaults.MaxRetryCount <= 0 {
		t.Fatalf("MaxRetryCount must be positive, got %d", defaults.MaxRetryCount)
	}
}

func TestReportNamesHaveNoExtension(t *testing.T) {
	for _, name := range []string{
		defaults.VulnerabilityReportName,
		defaults.VulnerabilityDetailReportName,
		defaults.SoftwareReportName,
		defaults.PolicyReportName,
	} {
		if strings.Contains(name, ".") {
			t.Errorf("report base name %q must not carry an extension", name)
		}
	}
}
