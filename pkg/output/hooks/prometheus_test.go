package hooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/scangate/scangate/pkg/output/events"
)

func feedRun(t *testing.T, h interface {
	OnEvent(context.Context, events.Event) error
}) {
	t.Helper()
	ctx := context.Background()
	run := []events.Event{
		&events.StartEvent{BaseEvent: events.NewBase(events.EventTypeStart, "run-1"), Site: "ci-run", Endpoint: "https://nexpose:3780", Addresses: []string{"10.0.0.1"}, TemplateID: "full-audit-1"},
		&events.PhaseEvent{BaseEvent: events.NewBase(events.EventTypePhase, "run-1"), Phase: events.PhaseScan, State: events.PhaseStarted},
		&events.ScanStatusEvent{BaseEvent: events.NewBase(events.EventTypeScanStatus, "run-1"), SiteID: 7, ScanID: 42, Status: "running", Pending: 3, Active: 1},
		&events.ScanStatusEvent{BaseEvent: events.NewBase(events.EventTypeScanStatus, "run-1"), SiteID: 7, ScanID: 42, Status: "finished", Completed: 4},
		&events.PhaseEvent{BaseEvent: events.NewBase(events.EventTypePhase, "run-1"), Phase: events.PhaseScan, State: events.PhaseCompleted, DurationMs: 1500},
		testReport("nexpose-vulnerability-report", 2, "a.csv", "a.html"),
		testReport("nexpose-audit-report", -1, "audit.html"),
		&events.ErrorEvent{BaseEvent: events.NewBase(events.EventTypeError, "run-1"), Phase: events.PhaseCleanup, ErrorType: "cleanup", Message: "boom"},
		testVerdict(false),
		&events.CompleteEvent{BaseEvent: events.NewBase(events.EventTypeComplete, "run-1"), ExitCode: 1, Reason: "vulnerabilities found", DurationMs: 2500},
	}
	for _, e := range run {
		if err := h.OnEvent(ctx, e); err != nil {
			t.Fatalf("OnEvent(%s): %v", e.EventType(), err)
		}
	}
}

func TestPrometheusHook_RecordsRun(t *testing.T) {
	hook, err := NewPrometheusHook(PrometheusOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer hook.Shutdown(context.Background())

	feedRun(t, hook)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"running polls", testutil.ToFloat64(hook.polls.WithLabelValues("ci-run", "running")), 1},
		{"finished polls", testutil.ToFloat64(hook.polls.WithLabelValues("ci-run", "finished")), 1},
		{"completed tasks", testutil.ToFloat64(hook.tasks.WithLabelValues("ci-run", "completed")), 4},
		{"pending tasks", testutil.ToFloat64(hook.tasks.WithLabelValues("ci-run", "pending")), 0},
		{"vuln rows", testutil.ToFloat64(hook.reportRows.WithLabelValues("nexpose-vulnerability-report")), 2},
		{"audit reports", testutil.ToFloat64(hook.reports.WithLabelValues("nexpose-audit-report")), 1},
		{"scan phase", testutil.ToFloat64(hook.phaseSeconds.WithLabelValues("scan", "completed")), 1.5},
		{"cleanup errors", testutil.ToFloat64(hook.errorsTotal.WithLabelValues("cleanup", "cleanup")), 1},
		{"findings", testutil.ToFloat64(hook.findings.WithLabelValues("ci-run")), 2},
		{"unrecognized", testutil.ToFloat64(hook.unrecognized.WithLabelValues("ci-run")), 1},
		{"critical", testutil.ToFloat64(hook.bySeverity.WithLabelValues("ci-run", "critical")), 1},
		{"verdict", testutil.ToFloat64(hook.verdictPass.WithLabelValues("ci-run", "unrecognized findings")), 0},
		{"run seconds", testutil.ToFloat64(hook.runSeconds), 2.5},
		{"exit code", testutil.ToFloat64(hook.exitCode), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if n := testutil.CollectAndCount(hook.reportRows); n != 1 {
		t.Errorf("exports must not set a row gauge, got %d series", n)
	}
}

func TestPrometheusHook_Handler(t *testing.T) {
	hook, err := NewPrometheusHook(PrometheusOptions{})
	if err != nil {
		t.Fatal(err)
	}
	feedRun(t, hook)

	rec := httptest.NewRecorder()
	hook.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `scangate_findings{site="ci-run"} 2`) {
		t.Errorf("findings gauge missing from exposition:\n%s", rec.Body.String())
	}
}

func TestPrometheusHook_WritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scangate.prom")
	hook, err := NewPrometheusHook(PrometheusOptions{TextfilePath: path})
	if err != nil {
		t.Fatal(err)
	}
	feedRun(t, hook)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("textfile not written: %v", err)
	}
	for _, want := range []string{"scangate_exit_code 1", `scangate_verdict_pass{reason="unrecognized findings",site="ci-run"} 0`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}

func TestPrometheusHook_PushesOnComplete(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	hook, err := NewPrometheusHook(PrometheusOptions{PushGateway: gw.URL})
	if err != nil {
		t.Fatal(err)
	}
	feedRun(t, hook)

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("expected PUT, got %q", method)
	}
	if path != "/metrics/job/scangate/site/ci-run" {
		t.Errorf("unexpected push path %q", path)
	}
	if body == "" {
		t.Error("expected a metrics payload")
	}
}

func TestPrometheusHook_PushFailureIsReturned(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gw.Close()

	hook, err := NewPrometheusHook(PrometheusOptions{PushGateway: gw.URL})
	if err != nil {
		t.Fatal(err)
	}
	err = hook.OnEvent(context.Background(), &events.CompleteEvent{BaseEvent: events.NewBase(events.EventTypeComplete, "r")})
	if err == nil || !strings.Contains(err.Error(), "push to") {
		t.Errorf("expected push error, got %v", err)
	}
}

func TestPrometheusHook_IgnoresEventsAfterShutdown(t *testing.T) {
	hook, err := NewPrometheusHook(PrometheusOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := hook.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := hook.Shutdown(context.Background()); err != nil {
		t.Errorf("second shutdown should be a no-op, got %v", err)
	}
	_ = hook.OnEvent(context.Background(), testVerdict(true))
	if n := testutil.CollectAndCount(hook.findings); n != 0 {
		t.Errorf("expected no series after shutdown, got %d", n)
	}
}
