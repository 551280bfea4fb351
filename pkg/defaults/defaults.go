// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for runtime configuration defaults.
//
// Usage:
//
//	cfg.MaxRetryCount = defaults.MaxRetryCount
//	req.Header.Set("Content-Type", defaults.ContentTypeXML)
//
// DO NOT hardcode file names, retry budgets or API constants elsewhere.
// Reference the appropriate constant from this package instead.
package defaults

import "fmt"

// Version is the current scangate version
const Version = "1.4.0"

// ToolName is the lowercase tool name used in User-Agent and metric prefixes
const ToolName = "scangate"

// ToolNameDisplay is the human-facing tool name
const ToolNameDisplay = "ScanGate"

// ============================================================================
// RETRY SETTINGS
// ============================================================================
//
// MaxRetryCount is shared by launch recovery and statistics polling.
// RetryMedium is used by outbound notification hooks.
// ============================================================================

const (
	// MaxRetryCount is the number of consecutive transient failures
	// tolerated at each designated retry point (5)
	MaxRetryCount = 5

	// RetryMedium is the standard retry count for hooks (3)
	RetryMedium = 3
)

// ============================================================================
// ENGINE CONNECTION
// ============================================================================

const (
	// EnginePort is the default Nexpose console port
	EnginePort = 3780

	// APIVersion is the XML API version used for all requests
	APIVersion = "1.1"

	// ReportQueryVersion is the reporting data model version for ad-hoc SQL
	ReportQueryVersion = "1.3.0"

	// RequestsPerSecond caps calls against the console (0 = unlimited)
	RequestsPerSecond = 5
)

// ============================================================================
// OUTPUT FILES
// ============================================================================
//
// Report base names get ".csv"/".html"/".pdf"/".md" appended.
// ============================================================================

const (
	// VulnerabilityReportName is the vulnerability summary report
	VulnerabilityReportName = "nexpose-vulnerability-report"

	// VulnerabilityDetailReportName is the vulnerability detail report
	VulnerabilityDetailReportName = "nexpose-vulnerability-detail-report"

	// SoftwareReportName is the installed software report
	SoftwareReportName = "nexpose-software-report"

	// PolicyReportName is the policy compliance report
	PolicyReportName = "nexpose-policy-report"

	// AuditReportFileName is the templated audit export
	AuditReportFileName = "nexpose-audit-report.html"

	// XMLReportFileName is the templated raw XML export
	XMLReportFileName = "nexpose-xml-report.xml"

	// UnrecognizedFindingsFileName lists findings absent from the exception list
	UnrecognizedFindingsFileName = "No_Exceptions_Found.txt"

	// VerdictFileName is the machine-readable verdict
	VerdictFileName = "scangate-verdict.json"

	// EventsFileName is the JSONL event log
	EventsFileName = "scangate-events.jsonl"
)

// ============================================================================
// CONTENT TYPES
// ============================================================================

const (
	// ContentTypeJSON is application/json
	ContentTypeJSON = "application/json"

	// ContentTypeXML is text/xml, which the console expects for API calls
	ContentTypeXML = "text/xml"

	// ContentTypePlain is text/plain
	ContentTypePlain = "text/plain"
)

// ============================================================================
// BUFFER SIZES
// ============================================================================

const (
	// BufferSmall is for exception lists and API envelopes (4KB)
	BufferSmall = 4 * 1024

	// BufferHuge is the exception list size limit (1MB)
	BufferHuge = 1024 * 1024

	// BufferMax is the maximum API response body size (64MB); report
	// exports are returned inline
	BufferMax = 64 * 1024 * 1024
)

// UserAgent returns the scangate user agent with context
func UserAgent(context string) string {
	if context == "" {
		return fmt.Sprintf("%s/%s", ToolName, Version)
	}
	return fmt.Sprintf("%s/%s (%s)", ToolName, Version, context)
}
