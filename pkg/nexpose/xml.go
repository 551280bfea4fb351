package nexpose

import "encoding/xml"

// Wire documents for the 1.1 XML API. Requests carry the session as an
// attribute; every response carries success="1" or a Failure element.

type envelope struct {
	XMLName xml.Name
	Success string      `xml:"success,attr"`
	Failure *failureXML `xml:"Failure"`
}

type failureXML struct {
	Message   string `xml:"message"`
	Exception struct {
		Message string `xml:"message"`
	} `xml:"Exception"`
}

func (f *failureXML) text() string {
	if f.Message != "" {
		return f.Message
	}
	return f.Exception.Message
}

type rawXML struct {
	Inner string `xml:",innerxml"`
}

// --- session ---

type loginRequest struct {
	XMLName  xml.Name `xml:"LoginRequest"`
	UserID   string   `xml:"user-id,attr"`
	Password string   `xml:"password,attr"`
}

type loginResponse struct {
	SessionID string `xml:"session-id,attr"`
}

type logoutRequest struct {
	XMLName   xml.Name `xml:"LogoutRequest"`
	SessionID string   `xml:"session-id,attr"`
}

// --- sites ---

type siteListingRequest struct {
	XMLName   xml.Name `xml:"SiteListingRequest"`
	SessionID string   `xml:"session-id,attr"`
}

type siteListingResponse struct {
	Sites []struct {
		ID          int    `xml:"id,attr"`
		Name        string `xml:"name,attr"`
		Description string `xml:"description,attr"`
	} `xml:"SiteSummary"`
}

type siteConfigRequest struct {
	XMLName   xml.Name `xml:"SiteConfigRequest"`
	SessionID string   `xml:"session-id,attr"`
	SiteID    int      `xml:"site-id,attr"`
}

type siteConfigResponse struct {
	Site siteXML `xml:"Site"`
}

type siteSaveRequest struct {
	XMLName   xml.Name `xml:"SiteSaveRequest"`
	SessionID string   `xml:"session-id,attr"`
	Site      siteXML  `xml:"Site"`
}

type siteSaveResponse struct {
	SiteID int `xml:"site-id,attr"`
}

type siteXML struct {
	ID          int           `xml:"id,attr"`
	Name        string        `xml:"name,attr"`
	Description string        `xml:"description,attr"`
	RiskFactor  string        `xml:"riskfactor,attr,omitempty"`
	Hosts       hostsXML      `xml:"Hosts"`
	Credentials rawXML        `xml:"Credentials"`
	Alerting    rawXML        `xml:"Alerting"`
	ScanConfig  scanConfigXML `xml:"ScanConfig"`
}

type hostsXML struct {
	Hosts  []string   `xml:"host"`
	Ranges []rangeXML `xml:"range"`
}

type rangeXML struct {
	From string `xml:"from,attr"`
	To   string `xml:"to,attr,omitempty"`
}

type scanConfigXML struct {
	ConfigID      int    `xml:"configID,attr"`
	Name          string `xml:"name,attr"`
	TemplateID    string `xml:"templateID,attr"`
	EngineID      int    `xml:"engineID,attr,omitempty"`
	ConfigVersion int    `xml:"configVersion,attr,omitempty"`
	Schedules     rawXML `xml:"Schedules"`
}

// --- scans ---

type siteScanRequest struct {
	XMLName   xml.Name `xml:"SiteScanRequest"`
	SessionID string   `xml:"session-id,attr"`
	SiteID    int      `xml:"site-id,attr"`
}

type siteScanResponse struct {
	Scan struct {
		ScanID   int `xml:"scan-id,attr"`
		EngineID int `xml:"engine-id,attr"`
	} `xml:"Scan"`
}

type siteScanHistoryRequest struct {
	XMLName   xml.Name `xml:"SiteScanHistoryRequest"`
	SessionID string   `xml:"session-id,attr"`
	SiteID    int      `xml:"site-id,attr"`
}

type siteScanHistoryResponse struct {
	Scans []scanSummaryXML `xml:"ScanSummary"`
}

type scanStatisticsRequest struct {
	XMLName   xml.Name `xml:"ScanStatisticsRequest"`
	SessionID string   `xml:"session-id,attr"`
	ScanID    int      `xml:"scan-id,attr"`
}

type scanStatisticsResponse struct {
	Scan scanSummaryXML `xml:"ScanSummary"`
}

type scanSummaryXML struct {
	ScanID   int    `xml:"scan-id,attr"`
	SiteID   int    `xml:"site-id,attr"`
	EngineID int    `xml:"engine-id,attr"`
	Name     string `xml:"name,attr"`
	Status   string `xml:"status,attr"`
	Tasks    struct {
		Pending   int `xml:"pending,attr"`
		Active    int `xml:"active,attr"`
		Completed int `xml:"completed,attr"`
	} `xml:"tasks"`
}

func (s scanSummaryXML) summary() ScanSummary {
	return ScanSummary{
		ScanID:   s.ScanID,
		SiteID:   s.SiteID,
		EngineID: s.EngineID,
		Name:     s.Name,
		Status:   ParseStatus(s.Status),
		Tasks: Tasks{
			Pending:   s.Tasks.Pending,
			Active:    s.Tasks.Active,
			Completed: s.Tasks.Completed,
		},
	}
}

// --- reports ---

type reportAdhocGenerateRequest struct {
	XMLName   xml.Name       `xml:"ReportAdhocGenerateRequest"`
	SessionID string         `xml:"session-id,attr"`
	Config    adhocConfigXML `xml:"AdhocReportConfig"`
}

type adhocConfigXML struct {
	Format     string      `xml:"format,attr"`
	TemplateID string      `xml:"template-id,attr,omitempty"`
	Filters    []filterXML `xml:"Filters>filter"`
}

type filterXML struct {
	Type string `xml:"type,attr"`
	ID   string `xml:"id,attr"`
}

// --- devices ---

type siteDeviceListingRequest struct {
	XMLName   xml.Name `xml:"SiteDeviceListingRequest"`
	SessionID string   `xml:"session-id,attr"`
	SiteID    int      `xml:"site-id,attr"`
}

type siteDeviceListingResponse struct {
	SiteDevices []struct {
		SiteID  int `xml:"site-id,attr"`
		Devices []struct {
			ID      int    `xml:"id,attr"`
			Address string `xml:"address,attr"`
		} `xml:"device"`
	} `xml:"SiteDevices"`
}

type deviceDeleteRequest struct {
	XMLName   xml.Name `xml:"DeviceDeleteRequest"`
	SessionID string   `xml:"session-id,attr"`
	DeviceID  int      `xml:"device-id,attr"`
}

// --- conversions ---

func siteFromXML(x siteXML) *Site {
	s := &Site{
		ID:          x.ID,
		Name:        x.Name,
		Description: x.Description,
		Hosts:       append([]string(nil), x.Hosts.Hosts...),
		TemplateID:  x.ScanConfig.TemplateID,
		EngineID:    x.ScanConfig.EngineID,
		ranges:      x.Hosts.Ranges,
		credentials: x.Credentials,
		alerting:    x.Alerting,
		scanConfig:  x.ScanConfig,
		riskFactor:  x.RiskFactor,
	}
	return s
}

func (s *Site) toXML() siteXML {
	sc := s.scanConfig
	if sc.ConfigID == 0 {
		sc.ConfigID = -1
	}
	if sc.Name == "" {
		sc.Name = s.TemplateID
	}
	if sc.ConfigVersion == 0 {
		sc.ConfigVersion = 3
	}
	sc.TemplateID = s.TemplateID
	sc.EngineID = s.EngineID

	rf := s.riskFactor
	if rf == "" {
		rf = "1.0"
	}
	return siteXML{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		RiskFactor:  rf,
		Hosts:       hostsXML{Hosts: s.Hosts, Ranges: s.ranges},
		Credentials: s.credentials,
		Alerting:    s.alerting,
		ScanConfig:  sc,
	}
}
