package events

// ScanStatusEvent is one observation of the running scan.
type ScanStatusEvent struct {
	BaseEvent
	SiteID    int    `json:"site_id"`
	ScanID    int    `json:"scan_id"`
	EngineID  int    `json:"engine_id,omitempty"`
	Status    string `json:"status"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Recovered bool   `json:"recovered,omitempty"`
}

// ReportEvent records a report written to disk. Rows is -1 for templated
// exports.
type ReportEvent struct {
	BaseEvent
	Report string   `json:"report"`
	Rows   int      `json:"rows"`
	Paths  []string `json:"paths"`
}

// VerdictEvent carries the verification outcome and the context a CI step
// needs to act on it.
type VerdictEvent struct {
	BaseEvent
	Pass         bool           `json:"pass"`
	Findings     int            `json:"findings"`
	Unrecognized []string       `json:"unrecognized,omitempty"`
	Reason       string         `json:"reason"`
	ArtifactPath string         `json:"artifact_path,omitempty"`
	Site         string         `json:"site"`
	ScanID       int            `json:"scan_id"`
	ScanStatus   string         `json:"scan_status"`
	Severities   map[string]int `json:"severities,omitempty"`
}
