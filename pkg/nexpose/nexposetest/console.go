// Package nexposetest provides an in-memory console that speaks the
// subset of the XML API used by scangate, for tests.
package nexposetest

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"slices"
	"strings"
	"sync"
	"testing"
)

// Default credentials accepted by a new Console.
const (
	Username = "ci-user"
	Password = "ci-pass"
)

// SiteState is a snapshot of a site held by the console.
type SiteState struct {
	ID         int
	Name       string
	Hosts      []string
	TemplateID string
	EngineID   int
}

// Step scripts one ScanStatistics answer. Fail answers HTTP 500.
type Step struct {
	Fail      bool
	Status    string
	Pending   int
	Active    int
	Completed int
}

type scanEntry struct {
	id, siteID int
	status     string
}

type device struct {
	id     int
	siteID int
	addr   string
}

// Console is a fake console backed by httptest.Server.
type Console struct {
	srv *httptest.Server

	mu          sync.Mutex
	sites       map[int]*SiteState
	scans       []*scanEntry
	devices     []device
	nextID      int
	stats       []Step
	history     []string
	dropScan    bool
	failOps     map[string]string
	sqlReports  map[string]string
	tmplReports map[string]string
	ops         []string
	queries     []string
}

// New starts a console and closes it when the test ends.
func New(t testing.TB) *Console {
	t.Helper()
	c := &Console{
		sites:       make(map[int]*SiteState),
		nextID:      100,
		failOps:     make(map[string]string),
		sqlReports:  make(map[string]string),
		tmplReports: make(map[string]string),
	}
	c.srv = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.srv.Close)
	return c
}

// URL returns the base URL, e.g. http://127.0.0.1:53211.
func (c *Console) URL() string { return c.srv.URL }

// AddSite stores a site and returns its id.
func (c *Console) AddSite(name, templateID string, hosts ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.sites[c.nextID] = &SiteState{ID: c.nextID, Name: name, TemplateID: templateID, Hosts: slices.Clone(hosts)}
	return c.nextID
}

// Sites returns every site ordered by id.
func (c *Console) Sites() []SiteState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SiteState, 0, len(c.sites))
	for _, s := range c.sites {
		cp := *s
		cp.Hosts = slices.Clone(s.Hosts)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b SiteState) int { return a.ID - b.ID })
	return out
}

// AddDevice records an asset against a site and returns its id.
func (c *Console) AddDevice(siteID int, addr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.devices = append(c.devices, device{id: c.nextID, siteID: siteID, addr: addr})
	return c.nextID
}

// DeviceAddresses lists the assets remaining on a site.
func (c *Console) DeviceAddresses(siteID int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, d := range c.devices {
		if d.siteID == siteID {
			out = append(out, d.addr)
		}
	}
	return out
}

// ScriptStatistics sets the successive ScanStatistics answers. Once the
// script runs out the scan reports finished.
func (c *Console) ScriptStatistics(steps ...Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = append(c.stats, steps...)
}

// ScriptHistory sets the status of the latest scan on successive history
// requests.
func (c *Console) ScriptHistory(statuses ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, statuses...)
}

// DropNextScanResponse makes the next SiteScanRequest start a scan and then
// close the connection without answering.
func (c *Console) DropNextScanResponse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropScan = true
}

// FailOp answers every request of the named operation with a Failure
// envelope carrying message.
func (c *Console) FailOp(op, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failOps[op] = message
}

// SetSQLReport answers SQL reports whose query contains fragment with csv.
func (c *Console) SetSQLReport(fragment, csv string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sqlReports[fragment] = csv
}

// SetTemplateReport answers templated reports for templateID with content.
func (c *Console) SetTemplateReport(templateID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tmplReports[templateID] = content
}

// Calls counts requests of the named operation.
func (c *Console) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, o := range c.ops {
		if o == op {
			n++
		}
	}
	return n
}

// Ops lists every operation received, in order.
func (c *Console) Ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.ops)
}

// Queries lists the SQL query filters received, in order.
func (c *Console) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.queries)
}

// --- wire ---

type request struct {
	XMLName   xml.Name
	SessionID string `xml:"session-id,attr"`
	UserID    string `xml:"user-id,attr"`
	Password  string `xml:"password,attr"`
	SiteID    int    `xml:"site-id,attr"`
	ScanID    int    `xml:"scan-id,attr"`
	DeviceID  int    `xml:"device-id,attr"`
	Site      struct {
		ID    int    `xml:"id,attr"`
		Name  string `xml:"name,attr"`
		Hosts struct {
			Hosts []string `xml:"host"`
		} `xml:"Hosts"`
		ScanConfig struct {
			TemplateID string `xml:"templateID,attr"`
			EngineID   int    `xml:"engineID,attr"`
		} `xml:"ScanConfig"`
	} `xml:"Site"`
	Report struct {
		Format     string `xml:"format,attr"`
		TemplateID string `xml:"template-id,attr"`
		Filters    []struct {
			Type string `xml:"type,attr"`
			ID   string `xml:"id,attr"`
		} `xml:"Filters>filter"`
	} `xml:"AdhocReportConfig"`
}

func (c *Console) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req request
	if err := xml.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad xml", http.StatusBadRequest)
		return
	}
	op := req.XMLName.Local
	resp := strings.TrimSuffix(op, "Request") + "Response"

	c.mu.Lock()
	c.ops = append(c.ops, op)
	failMsg, fail := c.failOps[op]
	c.mu.Unlock()

	if fail {
		writeXML(w, fmt.Sprintf(`<%s success="0"><Failure><message>%s</message></Failure></%s>`, resp, escape(failMsg), resp))
		return
	}
	if op != "LoginRequest" && req.SessionID != "SESSION-1" {
		writeXML(w, fmt.Sprintf(`<%s success="0"><Failure><Exception><message>session not found</message></Exception></Failure></%s>`, resp, resp))
		return
	}

	switch op {
	case "LoginRequest":
		if req.UserID != Username || req.Password != Password {
			writeXML(w, `<LoginResponse success="0"><Failure><message>Login failed</message></Failure></LoginResponse>`)
			return
		}
		writeXML(w, `<LoginResponse success="1" session-id="SESSION-1"/>`)
	case "LogoutRequest":
		writeXML(w, `<LogoutResponse success="1"/>`)
	case "SiteListingRequest":
		c.siteListing(w)
	case "SiteConfigRequest":
		c.siteConfig(w, req.SiteID)
	case "SiteSaveRequest":
		c.siteSave(w, &req)
	case "SiteScanRequest":
		c.siteScan(w, req.SiteID)
	case "SiteScanHistoryRequest":
		c.scanHistory(w, req.SiteID)
	case "ScanStatisticsRequest":
		c.scanStatistics(w, req.ScanID)
	case "ReportAdhocGenerateRequest":
		c.adhocReport(w, &req)
	case "SiteDeviceListingRequest":
		c.deviceListing(w, req.SiteID)
	case "DeviceDeleteRequest":
		c.deviceDelete(w, req.DeviceID)
	default:
		http.Error(w, "unsupported "+op, http.StatusNotImplemented)
	}
}

func (c *Console) siteListing(w http.ResponseWriter) {
	var b strings.Builder
	b.WriteString(`<SiteListingResponse success="1">`)
	for _, s := range c.Sites() {
		fmt.Fprintf(&b, `<SiteSummary id="%d" name="%s" description="" riskfactor="1.0" riskscore="0.0"/>`, s.ID, escape(s.Name))
	}
	b.WriteString(`</SiteListingResponse>`)
	writeXML(w, b.String())
}

func (c *Console) siteConfig(w http.ResponseWriter, id int) {
	c.mu.Lock()
	s, ok := c.sites[id]
	var cp SiteState
	if ok {
		cp = *s
	}
	c.mu.Unlock()
	if !ok {
		writeXML(w, `<SiteConfigResponse success="0"><Failure><message>site not found</message></Failure></SiteConfigResponse>`)
		return
	}
	var hosts strings.Builder
	for _, h := range cp.Hosts {
		fmt.Fprintf(&hosts, `<host>%s</host>`, escape(h))
	}
	writeXML(w, fmt.Sprintf(`<SiteConfigResponse success="1"><Site id="%d" name="%s" description="" riskfactor="1.0">`+
		`<Hosts>%s<range from="192.0.2.10" to="192.0.2.20"/></Hosts><Credentials></Credentials><Alerting></Alerting>`+
		`<ScanConfig configID="%d" name="%s" templateID="%s" engineID="%d" configVersion="3"><Schedules></Schedules></ScanConfig>`+
		`</Site></SiteConfigResponse>`,
		cp.ID, escape(cp.Name), hosts.String(), cp.ID, escape(cp.TemplateID), escape(cp.TemplateID), cp.EngineID))
}

func (c *Console) siteSave(w http.ResponseWriter, req *request) {
	c.mu.Lock()
	id := req.Site.ID
	if id <= 0 {
		c.nextID++
		id = c.nextID
	}
	c.sites[id] = &SiteState{
		ID:         id,
		Name:       req.Site.Name,
		Hosts:      slices.Clone(req.Site.Hosts.Hosts),
		TemplateID: req.Site.ScanConfig.TemplateID,
		EngineID:   req.Site.ScanConfig.EngineID,
	}
	c.mu.Unlock()
	writeXML(w, fmt.Sprintf(`<SiteSaveResponse success="1" site-id="%d"/>`, id))
}

func (c *Console) siteScan(w http.ResponseWriter, siteID int) {
	c.mu.Lock()
	c.nextID++
	scan := &scanEntry{id: c.nextID, siteID: siteID, status: "running"}
	c.scans = append(c.scans, scan)
	drop := c.dropScan
	c.dropScan = false
	c.mu.Unlock()

	if drop {
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, err := hj.Hijack()
			if err == nil {
				conn.Close()
				return
			}
		}
	}
	writeXML(w, fmt.Sprintf(`<SiteScanResponse success="1"><Scan scan-id="%d" engine-id="3"/></SiteScanResponse>`, scan.id))
}

func (c *Console) scanHistory(w http.ResponseWriter, siteID int) {
	c.mu.Lock()
	var entries []*scanEntry
	for _, s := range c.scans {
		if s.siteID == siteID {
			entries = append(entries, s)
		}
	}
	if len(entries) > 0 && len(c.history) > 0 {
		entries[len(entries)-1].status = c.history[0]
		c.history = c.history[1:]
	}
	var b strings.Builder
	b.WriteString(`<SiteScanHistoryResponse success="1">`)
	for _, s := range entries {
		fmt.Fprintf(&b, `<ScanSummary scan-id="%d" site-id="%d" engine-id="3" name="" startTime="20240101T120000000" status="%s"><tasks pending="0" active="1" completed="0"/></ScanSummary>`,
			s.id, s.siteID, s.status)
	}
	b.WriteString(`</SiteScanHistoryResponse>`)
	c.mu.Unlock()
	writeXML(w, b.String())
}

func (c *Console) scanStatistics(w http.ResponseWriter, scanID int) {
	c.mu.Lock()
	step := Step{Status: "finished", Completed: 1}
	if len(c.stats) > 0 {
		step = c.stats[0]
		c.stats = c.stats[1:]
	}
	c.mu.Unlock()

	if step.Fail {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeXML(w, fmt.Sprintf(`<ScanStatisticsResponse success="1"><ScanSummary scan-id="%d" site-id="0" engine-id="3" status="%s">`+
		`<tasks pending="%d" active="%d" completed="%d"/></ScanSummary></ScanStatisticsResponse>`,
		scanID, step.Status, step.Pending, step.Active, step.Completed))
}

func (c *Console) adhocReport(w http.ResponseWriter, req *request) {
	var content string
	found := false

	c.mu.Lock()
	if req.Report.Format == "sql" {
		for _, f := range req.Report.Filters {
			if f.Type != "query" {
				continue
			}
			c.queries = append(c.queries, f.ID)
			for fragment, csv := range c.sqlReports {
				if strings.Contains(f.ID, fragment) {
					content, found = csv, true
				}
			}
		}
	} else {
		content, found = c.tmplReports[req.Report.TemplateID]
	}
	c.mu.Unlock()

	if !found {
		writeXML(w, `<ReportAdhocGenerateResponse success="0"><Failure><message>no report configured</message></Failure></ReportAdhocGenerateResponse>`)
		return
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	envelope, _ := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/xml"}})
	_, _ = envelope.Write([]byte(`<ReportAdhocGenerateResponse success="1"/>`))

	partType := "text/csv"
	if req.Report.Format != "sql" && req.Report.Format != "csv" {
		partType = "text/" + strings.TrimPrefix(req.Report.Format, "raw-")
	}
	report, _ := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {partType},
		"Content-Transfer-Encoding": {"base64"},
	})
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	for len(encoded) > 76 {
		_, _ = report.Write([]byte(encoded[:76] + "\r\n"))
		encoded = encoded[76:]
	}
	_, _ = report.Write([]byte(encoded))
	_ = mw.Close()

	w.Header().Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary()+"; charset=UTF-8")
	_, _ = w.Write(buf.Bytes())
}

func (c *Console) deviceListing(w http.ResponseWriter, siteID int) {
	c.mu.Lock()
	var b strings.Builder
	fmt.Fprintf(&b, `<SiteDeviceListingResponse success="1"><SiteDevices site-id="%d">`, siteID)
	for _, d := range c.devices {
		if d.siteID == siteID {
			fmt.Fprintf(&b, `<device id="%d" address="%s" riskfactor="1.0" riskscore="0.0"/>`, d.id, escape(d.addr))
		}
	}
	b.WriteString(`</SiteDevices></SiteDeviceListingResponse>`)
	c.mu.Unlock()
	writeXML(w, b.String())
}

func (c *Console) deviceDelete(w http.ResponseWriter, id int) {
	c.mu.Lock()
	c.devices = slices.DeleteFunc(c.devices, func(d device) bool { return d.id == id })
	c.mu.Unlock()
	writeXML(w, `<DeviceDeleteResponse success="1"/>`)
}

func writeXML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml;charset=UTF-8")
	_, _ = io.WriteString(w, doc)
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
