package runner_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scangate/scangate/pkg/config"
	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/exceptions"
	"github.com/scangate/scangate/pkg/nexpose"
	"github.com/scangate/scangate/pkg/nexpose/nexposetest"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/events"
	"github.com/scangate/scangate/pkg/output/exitcode"
	"github.com/scangate/scangate/pkg/output/writers"
	"github.com/scangate/scangate/pkg/report"
	"github.com/scangate/scangate/pkg/retry"
	"github.com/scangate/scangate/pkg/runner"
	"github.com/scangate/scangate/pkg/ui"
)

const (
	vulnHeader   = "ip_address,title,date_published,severity,summary,fix\n"
	detailHeader = "ip_address,host_name,nexpose_id,title\n"
)

func TestMain(m *testing.M) {
	ui.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// recorder is a hook that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) OnEvent(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) EventTypes() []events.EventType { return nil }

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

func (r *recorder) phases(state events.PhaseState) []events.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Phase
	for _, e := range r.events {
		if p, ok := e.(*events.PhaseEvent); ok && p.State == state {
			out = append(out, p.Phase)
		}
	}
	return out
}

func (r *recorder) last(t events.EventType) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType() == t {
			return r.events[i]
		}
	}
	return nil
}

type harness struct {
	console  *nexposetest.Console
	cfg      *config.RunDescription
	runner   *runner.Runner
	events   *recorder
	sleeps   int
	echoed   strings.Builder
	cancelAt int // cancel the run context on this sleep; 0 never
	cancel   context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{console: nexposetest.New(t), events: &recorder{}}
	h.console.SetSQLReport("fact_asset_vulnerability_finding", vulnHeader)
	h.console.SetSQLReport("fact_asset_vulnerability_instance", detailHeader)

	cfg := config.Defaults()
	cfg.Endpoint = h.console.URL()
	cfg.Username = nexposetest.Username
	cfg.Password = nexposetest.Password
	cfg.SiteName = "ci-run"
	cfg.Addresses = []string{"10.0.0.1"}
	cfg.TemplateID = "full-audit-1"
	cfg.OutputDir = t.TempDir()
	h.cfg = cfg
	return h
}

// build wires the runner after the test has adjusted the description.
func (h *harness) build(t *testing.T) {
	t.Helper()
	client, err := nexpose.New(nexpose.Config{
		Endpoint: h.cfg.Endpoint,
		Port:     h.cfg.Port,
		Username: h.cfg.Username,
		Password: h.cfg.Password,
	})
	require.NoError(t, err)

	d := dispatcher.New(dispatcher.Config{})
	d.RegisterWriter(writers.NewVerdictWriter(h.cfg.OutputPath(defaults.VerdictFileName)))
	d.RegisterHook(h.events)

	h.runner = &runner.Runner{
		Config:     h.cfg,
		Console:    client,
		Exceptions: &exceptions.Loader{},
		Events:     d,
		Renderers:  []report.Renderer{&writers.CSVRenderer{}, &writers.HTMLRenderer{Site: h.cfg.SiteName}},
		Echo:       &writers.ConsoleRenderer{},
		Stdout:     &h.echoed,
		Sleeper: retry.SleeperFunc(func(ctx context.Context, _ time.Duration) error {
			h.sleeps++
			if h.cancelAt > 0 && h.sleeps == h.cancelAt {
				h.cancel()
			}
			return ctx.Err()
		}),
		RunID: "run-1",
	}
}

func (h *harness) run(t *testing.T) (*runner.Outcome, error) {
	t.Helper()
	if h.runner == nil {
		h.build(t)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.cancel = cancel
	out, err := h.runner.Run(ctx)
	require.NotNil(t, out)
	require.NoError(t, h.runner.Close(context.Background()))
	return out, err
}

func (h *harness) output(name string) string {
	return filepath.Join(h.cfg.OutputDir, name)
}

func TestRun_NewSiteCleanScanPasses(t *testing.T) {
	h := newHarness(t)
	h.console.ScriptStatistics(
		nexposetest.Step{Fail: true},
		nexposetest.Step{Fail: true},
		nexposetest.Step{Status: "running", Pending: 1, Active: 1},
		nexposetest.Step{Status: "finished", Completed: 2},
	)

	out, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, exitcode.Success, out.ExitCode)
	assert.Equal(t, "run-1", out.RunID)

	sites := h.console.Sites()
	require.Len(t, sites, 1)
	assert.Equal(t, "ci-run", sites[0].Name)
	assert.Equal(t, []string{"10.0.0.1"}, sites[0].Hosts)
	assert.Equal(t, "full-audit-1", sites[0].TemplateID)

	assert.Equal(t, nexpose.StatusFinished, out.Scan.Status)
	assert.Equal(t, 4, h.console.Calls("ScanStatisticsRequest"))
	require.NotNil(t, out.Verdict)
	assert.True(t, out.Verdict.Pass)
	assert.Equal(t, 0, out.Verdict.Findings)
	assert.Equal(t, 1, h.console.Calls("LogoutRequest"))
	assert.Zero(t, h.console.Calls("SiteDeviceListingRequest"), "cleanup is off by default")

	assert.FileExists(t, h.output("nexpose-vulnerability-report.csv"))
	assert.FileExists(t, h.output("nexpose-vulnerability-detail-report.html"))
	assert.NoFileExists(t, h.output(defaults.UnrecognizedFindingsFileName))

	verdict, err := os.ReadFile(h.output(defaults.VerdictFileName))
	require.NoError(t, err)
	assert.Contains(t, string(verdict), `"pass": true`)

	assert.Equal(t, []events.Phase{
		events.PhaseValidate, events.PhaseConnect, events.PhaseProvision,
		events.PhaseScan, events.PhaseReport, events.PhaseVerify,
	}, h.events.phases(events.PhaseCompleted))

	types := h.events.types()
	assert.Equal(t, events.EventTypeStart, types[0])
	assert.Equal(t, events.EventTypeComplete, types[len(types)-1])

	status := h.events.last(events.EventTypeScanStatus).(*events.ScanStatusEvent)
	assert.Equal(t, "finished", status.Status)
	assert.Equal(t, 2, status.Completed)

	complete := h.events.last(events.EventTypeComplete).(*events.CompleteEvent)
	assert.True(t, complete.Success)
	assert.Equal(t, 0, complete.ExitCode)
}

func TestRun_FindingsWithoutExceptionListFail(t *testing.T) {
	h := newHarness(t)
	h.console.SetSQLReport("fact_asset_vulnerability_finding",
		vulnHeader+"10.0.0.1,CVE-A,2024-01-02,Critical,s,f\n10.0.0.1,CVE-B,2024-01-02,Severe,s,f\n")

	out, err := h.run(t)
	require.ErrorIs(t, err, runner.ErrVulnerabilitiesFound)

	assert.Equal(t, exitcode.Vulnerabilities, out.ExitCode)
	assert.False(t, out.Verdict.Pass)
	assert.Equal(t, 2, out.Verdict.Findings)
	assert.NoFileExists(t, h.output(defaults.UnrecognizedFindingsFileName))

	v := h.events.last(events.EventTypeVerdict).(*events.VerdictEvent)
	assert.False(t, v.Pass)
	assert.Equal(t, "ci-run", v.Site)
	assert.Equal(t, map[string]int{"critical": 1, "severe": 1}, v.Severities)
}

func TestRun_UnrecognizedFindingsWriteArtifact(t *testing.T) {
	h := newHarness(t)
	h.console.SetSQLReport("fact_asset_vulnerability_finding",
		vulnHeader+"10.0.0.1,CVE-A,2024-01-02,Critical,s,f\n10.0.0.1,CVE-B,2024-01-02,Severe,s,f\n")
	list := filepath.Join(t.TempDir(), "exceptions.txt")
	require.NoError(t, os.WriteFile(list, []byte("CVE-A\n"), 0o600))
	h.cfg.ExceptionSource = list

	out, err := h.run(t)
	require.ErrorIs(t, err, runner.ErrVulnerabilitiesFound)
	assert.Equal(t, exitcode.Vulnerabilities, out.ExitCode)
	assert.Equal(t, []string{"CVE-B"}, out.Verdict.Unrecognized)

	data, err := os.ReadFile(h.output(defaults.UnrecognizedFindingsFileName))
	require.NoError(t, err)
	assert.Equal(t, "CVE-B\n", string(data))
}

func TestRun_AllExceptedPasses(t *testing.T) {
	h := newHarness(t)
	h.console.SetSQLReport("fact_asset_vulnerability_finding", vulnHeader+"10.0.0.1,CVE-A,2024-01-02,Moderate,s,f\n")
	list := filepath.Join(t.TempDir(), "exceptions.txt")
	require.NoError(t, os.WriteFile(list, []byte("CVE-A\r\n\r\n"), 0o600))
	h.cfg.ExceptionSource = list

	out, err := h.run(t)
	require.NoError(t, err)
	assert.True(t, out.Verdict.Pass)
	assert.Equal(t, exitcode.Success, out.ExitCode)
}

func TestRun_ExceptionListUnavailable(t *testing.T) {
	h := newHarness(t)
	h.console.SetSQLReport("fact_asset_vulnerability_finding", vulnHeader+"10.0.0.1,CVE-A,2024-01-02,Moderate,s,f\n")
	h.cfg.ExceptionSource = filepath.Join(t.TempDir(), "missing.txt")

	out, err := h.run(t)
	require.ErrorIs(t, err, runner.ErrExceptionList)
	assert.ErrorIs(t, err, exceptions.ErrUnavailable)
	assert.Equal(t, exitcode.Failure, out.ExitCode)
	assert.Nil(t, out.Verdict)
	assert.Nil(t, h.events.last(events.EventTypeVerdict))
}

func TestRun_InvalidDescriptionMakesNoCalls(t *testing.T) {
	h := newHarness(t)
	h.cfg.TemplateID = ""

	out, err := h.run(t)
	require.ErrorIs(t, err, runner.ErrValidation)
	assert.ErrorIs(t, err, config.ErrMissingRequired)
	assert.Equal(t, exitcode.Configuration, out.ExitCode)
	assert.Empty(t, h.console.Ops())

	e := h.events.last(events.EventTypeError).(*events.ErrorEvent)
	assert.Equal(t, events.PhaseValidate, e.Phase)
	assert.Equal(t, "validation", e.ErrorType)
	assert.True(t, e.Fatal)
}

func TestRun_LoginRejected(t *testing.T) {
	h := newHarness(t)
	h.cfg.Password = "wrong"

	out, err := h.run(t)
	require.ErrorIs(t, err, runner.ErrConnection)
	assert.True(t, nexpose.IsAuthFailure(err))
	assert.Equal(t, exitcode.Connection, out.ExitCode)
	assert.Equal(t, []string{"LoginRequest"}, h.console.Ops())
}

func TestRun_ProvisioningFailure(t *testing.T) {
	h := newHarness(t)
	h.console.FailOp("SiteSaveRequest", "disk full")

	out, err := h.run(t)
	require.ErrorIs(t, err, runner.ErrProvisioning)
	assert.Equal(t, exitcode.Failure, out.ExitCode)
	assert.Zero(t, h.console.Calls("SiteScanRequest"))
	assert.Equal(t, 1, h.console.Calls("LogoutRequest"), "logout after a failed phase")
	assert.Equal(t, []events.Phase{events.PhaseProvision}, h.events.phases(events.PhaseFailed))
}

func TestRun_PollingExhausted(t *testing.T) {
	h := newHarness(t)
	steps := make([]nexposetest.Step, defaults.MaxRetryCount+1)
	for i := range steps {
		steps[i] = nexposetest.Step{Fail: true}
	}
	h.console.ScriptStatistics(steps...)

	out, err := h.run(t)
	require.ErrorIs(t, err, runner.ErrPollingExhausted)
	assert.Equal(t, exitcode.Failure, out.ExitCode)
	assert.Equal(t, defaults.MaxRetryCount+1, h.console.Calls("ScanStatisticsRequest"))
	assert.Zero(t, h.console.Calls("ReportAdhocGenerateRequest"))

	e := h.events.last(events.EventTypeError).(*events.ErrorEvent)
	assert.Equal(t, "polling_exhausted", e.ErrorType)
}

func TestRun_DroppedLaunchRecovered(t *testing.T) {
	h := newHarness(t)
	h.console.DropNextScanResponse()
	h.console.ScriptHistory("running")

	out, err := h.run(t)
	require.NoError(t, err)
	assert.True(t, out.Scan.Recovered)
	assert.Equal(t, 1, h.console.Calls("SiteScanHistoryRequest"))
}

func TestRun_TerminalFailureStatusStillReports(t *testing.T) {
	h := newHarness(t)
	h.console.ScriptStatistics(nexposetest.Step{Status: "aborted"})

	out, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, nexpose.StatusAborted, out.Scan.Status)
	assert.FileExists(t, h.output("nexpose-vulnerability-report.csv"))

	e := h.events.last(events.EventTypeError).(*events.ErrorEvent)
	assert.Equal(t, "scan_status", e.ErrorType)
	assert.False(t, e.Fatal)
	v := h.events.last(events.EventTypeVerdict).(*events.VerdictEvent)
	assert.Equal(t, "aborted", v.ScanStatus)
}

func TestRun_ReportFailure(t *testing.T) {
	h := newHarness(t)
	h.console.FailOp("ReportAdhocGenerateRequest", "report engine down")

	out, err := h.run(t)
	require.ErrorIs(t, err, runner.ErrReportGeneration)
	assert.Equal(t, exitcode.Failure, out.ExitCode)
	assert.Nil(t, out.Verdict)
}

func TestRun_OptionalReportsAndEcho(t *testing.T) {
	h := newHarness(t)
	h.console.SetSQLReport("fact_asset_vulnerability_finding", vulnHeader+"10.0.0.1,CVE-A,2024-01-02,Critical,s,f\n")
	h.console.SetSQLReport("dim_asset_software", "ip_address,host_name,vendor,family,name,version,software_class\n")
	h.console.SetTemplateReport(report.Audit.TemplateID, "<html>audit</html>")
	h.cfg.SoftwareReport = true
	h.cfg.AuditReport = true
	h.cfg.Echo = true
	h.cfg.ExceptionSource = filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(h.cfg.ExceptionSource, []byte("CVE-A\n"), 0o600))

	out, err := h.run(t)
	require.NoError(t, err)
	assert.NotNil(t, out.Reports.Software)
	assert.FileExists(t, h.output("nexpose-software-report.csv"))
	assert.FileExists(t, h.output(defaults.AuditReportFileName))
	assert.Contains(t, h.echoed.String(), "CVE-A")
}

func TestRun_CleanupDeletesDevicesAndContinues(t *testing.T) {
	h := newHarness(t)
	siteID := h.console.AddSite("ci-run", "full-audit-1", "10.0.0.9")
	h.console.AddDevice(siteID, "10.0.0.1")
	h.console.AddDevice(siteID, "10.0.0.9")
	h.cfg.Cleanup = true

	out, err := h.run(t)
	require.NoError(t, err)
	require.NotNil(t, out.Cleanup)
	assert.Equal(t, []string{"10.0.0.1"}, out.Cleanup.Deleted)
	assert.Equal(t, []string{"10.0.0.9"}, h.console.DeviceAddresses(siteID))
	assert.Contains(t, h.events.phases(events.PhaseCompleted), events.PhaseCleanup)

	sites := h.console.Sites()
	require.Len(t, sites, 1, "existing site reused")
	assert.ElementsMatch(t, []string{"10.0.0.9", "10.0.0.1"}, sites[0].Hosts)
}

func TestRun_CleanupFailureDoesNotFailRun(t *testing.T) {
	h := newHarness(t)
	siteID := h.console.AddSite("ci-run", "full-audit-1")
	h.console.AddDevice(siteID, "10.0.0.1")
	h.console.FailOp("DeviceDeleteRequest", "locked")
	h.cfg.Cleanup = true

	out, err := h.run(t)
	require.NoError(t, err)
	assert.True(t, out.Verdict.Pass)
	assert.Contains(t, h.events.phases(events.PhaseFailed), events.PhaseCleanup)
}

func TestRun_InterruptedDuringPolling(t *testing.T) {
	h := newHarness(t)
	h.console.ScriptStatistics(nexposetest.Step{Status: "running"}, nexposetest.Step{Status: "running"})
	h.cancelAt = 2

	out, err := h.run(t)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, exitcode.Interrupted, out.ExitCode)
	assert.Equal(t, 1, h.console.Calls("LogoutRequest"), "logout survives cancellation")

	complete := h.events.last(events.EventTypeComplete).(*events.CompleteEvent)
	assert.Equal(t, int(exitcode.Interrupted), complete.ExitCode)
	e := h.events.last(events.EventTypeError).(*events.ErrorEvent)
	assert.Equal(t, "interrupted", e.ErrorType)
}

func TestRun_BaselineCreatedAndCompared(t *testing.T) {
	h := newHarness(t)
	h.console.SetSQLReport("fact_asset_vulnerability_finding", vulnHeader+"10.0.0.1,CVE-A,2024-01-02,Critical,s,f\n")
	h.cfg.BaselinePath = filepath.Join(t.TempDir(), "baseline.json")
	h.cfg.UpdateBaseline = true

	out, err := h.run(t)
	require.ErrorIs(t, err, runner.ErrVulnerabilitiesFound, "baseline never changes the verdict")
	require.NotNil(t, out.Baseline)
	assert.Len(t, out.Baseline.New, 1)
	assert.FileExists(t, h.cfg.BaselinePath)

	h2 := newHarness(t)
	h2.console.SetSQLReport("fact_asset_vulnerability_finding", vulnHeader+"10.0.0.1,CVE-A,2024-01-02,Critical,s,f\n")
	h2.cfg.BaselinePath = h.cfg.BaselinePath

	out, _ = h2.run(t)
	require.NotNil(t, out.Baseline)
	assert.Empty(t, out.Baseline.New)
	assert.Len(t, out.Baseline.Unchanged, 1)
}
