// Package finding models the severity of a reported vulnerability.
//
// The console grades vulnerabilities on a 1-10 scale and groups them as
// Critical (8-10), Severe (4-7) and Moderate (1-3). Reports may carry
// either the numeric score or the group name; both parse here.
package finding

import (
	"strconv"
	"strings"
)

// Severity represents the severity level of a finding.
// All values are lowercase strings.
type Severity string

const (
	// Critical is a console severity of 8-10.
	Critical Severity = "critical"

	// Severe is a console severity of 4-7.
	Severe Severity = "severe"

	// Moderate is a console severity of 1-3.
	Moderate Severity = "moderate"

	// Unknown is a missing or unparseable severity.
	Unknown Severity = "unknown"
)

// All lists the known severities from most to least severe.
var All = []Severity{Critical, Severe, Moderate, Unknown}

// Parse maps a report cell to a Severity. It accepts the group names in any
// case and numeric scores such as "9" or "7.5".
func Parse(s string) Severity {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "critical":
		return Critical
	case "severe":
		return Severe
	case "moderate":
		return Moderate
	}
	score, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Unknown
	}
	return FromScore(score)
}

// FromScore maps a 1-10 console score to a Severity.
func FromScore(score float64) Severity {
	switch {
	case score >= 8:
		return Critical
	case score >= 4:
		return Severe
	case score >= 1:
		return Moderate
	default:
		return Unknown
	}
}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, Severe, Moderate, Unknown:
		return true
	}
	return false
}

// Score returns a numeric rank for sorting and comparison.
// Critical=3, Severe=2, Moderate=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 3
	case Severe:
		return 2
	case Moderate:
		return 1
	default:
		return 0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// Counts tallies findings per severity.
type Counts map[Severity]int

// Total returns the sum over every severity.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
