package nexpose

import (
	"slices"
	"strings"
)

// Status is the lifecycle state the console reports for a scan.
type Status string

// Scan statuses as reported by the console.
const (
	StatusRunning    Status = "running"
	StatusDispatched Status = "dispatched"
	StatusFinished   Status = "finished"
	StatusStopped    Status = "stopped"
	StatusPaused     Status = "paused"
	StatusAborted    Status = "aborted"
	StatusError      Status = "error"
	StatusUnknown    Status = "unknown"
)

// ParseStatus normalizes a status attribute. Unrecognized values map to
// StatusUnknown.
func ParseStatus(s string) Status {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusRunning, StatusDispatched, StatusFinished, StatusStopped,
		StatusPaused, StatusAborted, StatusError:
		return st
	}
	return StatusUnknown
}

// Active reports whether a scan in this state is executing or about to.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusDispatched
}

// SiteSummary is one entry of the site listing.
type SiteSummary struct {
	ID          int
	Name        string
	Description string
}

// Site is a scan target: a named set of hosts bound to a scan template.
// A Site with ID -1 has not been saved yet.
type Site struct {
	ID          int
	Name        string
	Description string
	Hosts       []string
	TemplateID  string
	EngineID    int // 0 lets the console choose

	// round-tripped from SiteConfigResponse so saving a loaded site keeps
	// settings this tool does not manage
	ranges      []rangeXML
	credentials rawXML
	alerting    rawXML
	scanConfig  scanConfigXML
	riskFactor  string
}

// NewSite returns an unsaved site bound to the given scan template.
func NewSite(name, templateID string) *Site {
	return &Site{ID: -1, Name: name, TemplateID: templateID}
}

// IsNew reports whether the site has never been saved.
func (s *Site) IsNew() bool { return s.ID <= 0 }

// AddHost appends addr to the host list unless it is already present.
// It reports whether the list changed.
func (s *Site) AddHost(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" || slices.Contains(s.Hosts, addr) {
		return false
	}
	s.Hosts = append(s.Hosts, addr)
	return true
}

// Tasks are the per-scan task counters.
type Tasks struct {
	Pending   int
	Active    int
	Completed int
}

// ScanSummary is the state of one scan as reported by scan history or
// scan statistics.
type ScanSummary struct {
	ScanID   int
	SiteID   int
	EngineID int
	Name     string
	Status   Status
	Tasks    Tasks
}

// LaunchResult is the outcome of a scan start request. Confirmed is false
// when the connection dropped before the console answered; ScanID is then
// zero and the scan may or may not be running.
type LaunchResult struct {
	Confirmed bool
	ScanID    int
	EngineID  int
}

// Device is an asset recorded against a site.
type Device struct {
	ID      int
	Address string
}

// ReportFilter scopes an ad-hoc report.
type ReportFilter struct {
	Type string // "site", "version", "query", ...
	ID   string
}

// AdhocReportConfig describes an ad-hoc report request. TemplateID is empty
// for SQL queries.
type AdhocReportConfig struct {
	TemplateID string
	Format     string
	Filters    []ReportFilter
}
