package hooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scangate/scangate/pkg/jsonutil"
	"github.com/scangate/scangate/pkg/output/events"
	"github.com/scangate/scangate/pkg/retry"
)

func testVerdict(pass bool) *events.VerdictEvent {
	v := &events.VerdictEvent{
		BaseEvent:  events.NewBase(events.EventTypeVerdict, "run-1"),
		Pass:       pass,
		Findings:   2,
		Reason:     "all findings excepted",
		Site:       "ci-run",
		ScanID:     42,
		ScanStatus: "finished",
		Severities: map[string]int{"critical": 1, "moderate": 1},
	}
	if !pass {
		v.Reason = "unrecognized findings"
		v.Unrecognized = []string{"CVE-B"}
		v.ArtifactPath = "out/No_Exceptions_Found.txt"
	}
	return v
}

func testReport(name string, rows int, paths ...string) *events.ReportEvent {
	return &events.ReportEvent{
		BaseEvent: events.NewBase(events.EventTypeReport, "run-1"),
		Report:    name,
		Rows:      rows,
		Paths:     paths,
	}
}

// capture records every request body a test server receives.
type capture struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

// noSleep records retry delays without waiting.
func noSleep(delays *[]time.Duration) retry.Sleeper {
	return retry.SleeperFunc(func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

// =============================================================================
// WebhookHook
// =============================================================================

func TestWebhookHook_SendsPOSTWithJSONBody(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	hook, err := NewWebhookHook(srv.URL, WebhookOptions{Headers: map[string]string{"Authorization": "Bearer token"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := hook.OnEvent(context.Background(), testVerdict(false)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	if c.count() != 1 {
		t.Fatalf("expected 1 request, got %d", c.count())
	}
	var got map[string]any
	if err := jsonutil.Unmarshal(c.bodies[0], &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got["type"] != "verdict" || got["site"] != "ci-run" || got["pass"] != false {
		t.Errorf("unexpected body %s", c.bodies[0])
	}
	h := c.headers[0]
	if h.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", h.Get("Content-Type"))
	}
	if h.Get("X-Scangate-Event-Type") != "verdict" {
		t.Errorf("event type header = %q", h.Get("X-Scangate-Event-Type"))
	}
	if h.Get("Authorization") != "Bearer token" {
		t.Errorf("custom header missing")
	}
	if !strings.HasPrefix(h.Get("User-Agent"), "scangate/") {
		t.Errorf("User-Agent = %q", h.Get("User-Agent"))
	}
}

func TestWebhookHook_DefaultEventTypes(t *testing.T) {
	hook, err := NewWebhookHook("http://example.invalid", WebhookOptions{})
	if err != nil {
		t.Fatal(err)
	}
	types := hook.EventTypes()
	if len(types) != 2 || types[0] != events.EventTypeVerdict || types[1] != events.EventTypeComplete {
		t.Errorf("unexpected default event types %v", types)
	}

	hook, err = NewWebhookHook("http://example.invalid", WebhookOptions{Events: []events.EventType{events.EventTypeScanStatus}})
	if err != nil {
		t.Fatal(err)
	}
	if got := hook.EventTypes(); len(got) != 1 || got[0] != events.EventTypeScanStatus {
		t.Errorf("configured event types not honored: %v", got)
	}
}

func TestWebhookHook_RetriesOn5xxErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var delays []time.Duration
	hook, err := NewWebhookHook(srv.URL, WebhookOptions{RetryCount: 3, Sleeper: noSleep(&delays)})
	if err != nil {
		t.Fatal(err)
	}
	_ = hook.OnEvent(context.Background(), testVerdict(true))

	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	if len(delays) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %d", len(delays))
	}
}

func TestWebhookHook_DoesNotRetryOn4xxErrors(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(http.StatusUnauthorized))
	defer srv.Close()

	var delays []time.Duration
	hook, err := NewWebhookHook(srv.URL, WebhookOptions{RetryCount: 3, Sleeper: noSleep(&delays)})
	if err != nil {
		t.Fatal(err)
	}
	_ = hook.OnEvent(context.Background(), testVerdict(true))

	if c.count() != 1 {
		t.Errorf("expected a single attempt on 4xx, got %d", c.count())
	}
	if len(delays) != 0 {
		t.Errorf("expected no sleeps, got %v", delays)
	}
}

func TestWebhookHook_CancelledContextStopsRetries(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(http.StatusServiceUnavailable))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sleeper := retry.SleeperFunc(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	})
	hook, err := NewWebhookHook(srv.URL, WebhookOptions{RetryCount: 5, Sleeper: sleeper})
	if err != nil {
		t.Fatal(err)
	}
	if err := hook.OnEvent(ctx, testVerdict(true)); err != nil {
		t.Fatalf("OnEvent must swallow delivery errors, got %v", err)
	}
	if c.count() != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", c.count())
	}
}

// =============================================================================
// SlackHook
// =============================================================================

func TestSlackHook_SendsBlockKitMessageOnVerdict(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	hook, err := NewSlackHook(srv.URL, SlackOptions{Channel: "#security"})
	if err != nil {
		t.Fatal(err)
	}
	if err := hook.OnEvent(context.Background(), testVerdict(false)); err != nil {
		t.Fatal(err)
	}

	if c.count() != 1 {
		t.Fatalf("expected 1 message, got %d", c.count())
	}
	var msg slackBlockMessage
	if err := jsonutil.Unmarshal(c.bodies[0], &msg); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if msg.Channel != "#security" || msg.Username != "ScanGate" || msg.IconEmoji != ":shield:" {
		t.Errorf("unexpected envelope %+v", msg)
	}
	if msg.Text != "Scan gate failed for ci-run" {
		t.Errorf("unexpected fallback text %q", msg.Text)
	}
	body := string(c.bodies[0])
	for _, want := range []string{":rotating_light:", "CVE-B", "Critical: 1", "42 (finished)", "divider"} {
		if !strings.Contains(body, want) {
			t.Errorf("message missing %q: %s", want, body)
		}
	}
}

func TestSlackHook_OnlyOnFailure(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	hook, err := NewSlackHook(srv.URL, SlackOptions{OnlyOnFailure: true})
	if err != nil {
		t.Fatal(err)
	}
	_ = hook.OnEvent(context.Background(), testVerdict(true))
	if c.count() != 0 {
		t.Fatalf("passing verdict should be skipped, got %d messages", c.count())
	}
	_ = hook.OnEvent(context.Background(), testVerdict(false))
	if c.count() != 1 {
		t.Fatalf("failing verdict should be sent, got %d messages", c.count())
	}
}

func TestSlackHook_TruncatesTitleList(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	hook, err := NewSlackHook(srv.URL, SlackOptions{MaxTitles: 2})
	if err != nil {
		t.Fatal(err)
	}
	v := testVerdict(false)
	v.Unrecognized = []string{"CVE-1", "CVE-2", "CVE-3", "CVE-4"}
	_ = hook.OnEvent(context.Background(), v)

	body := string(c.bodies[0])
	if !strings.Contains(body, "CVE-2") || strings.Contains(body, "CVE-3") {
		t.Errorf("expected first two titles only: %s", body)
	}
	if !strings.Contains(body, "and 2 more") {
		t.Errorf("expected overflow note: %s", body)
	}
}

func TestSlackHook_IgnoresOtherEvents(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	hook, err := NewSlackHook(srv.URL, SlackOptions{})
	if err != nil {
		t.Fatal(err)
	}
	_ = hook.OnEvent(context.Background(), testReport("nexpose-vulnerability-report", 2))
	if c.count() != 0 {
		t.Errorf("expected no messages, got %d", c.count())
	}
	if types := hook.EventTypes(); len(types) != 1 || types[0] != events.EventTypeVerdict {
		t.Errorf("unexpected event types %v", types)
	}
}

func TestSlackHook_ErrorResponseIsNotReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook, err := NewSlackHook(srv.URL, SlackOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := hook.OnEvent(context.Background(), testVerdict(false)); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestSeverityLine(t *testing.T) {
	got := severityLine(map[string]int{"moderate": 3, "critical": 2, "severe": 0})
	if got != "Critical: 2 · Moderate: 3" {
		t.Errorf("severityLine = %q", got)
	}
	if severityLine(nil) != "" {
		t.Error("expected empty line for no counts")
	}
}

// =============================================================================
// GitHubActionsHook
// =============================================================================

func TestGitHubActionsHook_NewReturnsErrorWithoutEnv(t *testing.T) {
	t.Setenv("GITHUB_OUTPUT", "")
	if _, err := NewGitHubActionsHook(GitHubActionsOptions{}); !errors.Is(err, ErrNotGitHubActions) {
		t.Errorf("expected ErrNotGitHubActions, got %v", err)
	}
}

func TestGitHubActionsHook_NewReadsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GITHUB_OUTPUT", filepath.Join(dir, "out"))
	t.Setenv("GITHUB_STEP_SUMMARY", filepath.Join(dir, "summary"))

	hook, err := NewGitHubActionsHook(GitHubActionsOptions{AddSummary: true})
	if err != nil {
		t.Fatal(err)
	}
	if hook.summaryPath != filepath.Join(dir, "summary") {
		t.Errorf("summary path = %q", hook.summaryPath)
	}
}

func TestGitHubActionsHook_WritesOutputVariables(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "output")
	hook := NewGitHubActionsHookWithPaths(out, "", GitHubActionsOptions{})

	if err := hook.OnEvent(context.Background(), testVerdict(false)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"result=fail\n", "findings=2\n", "unrecognized=1\n", "scan_id=42\n", "scan_status=finished\n", "artifact=out/No_Exceptions_Found.txt\n"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("output missing %q:\n%s", want, data)
		}
	}
}

func TestGitHubActionsHook_GeneratesMarkdownSummary(t *testing.T) {
	dir := t.TempDir()
	summary := filepath.Join(dir, "summary.md")
	hook := NewGitHubActionsHookWithPaths(filepath.Join(dir, "output"), summary, GitHubActionsOptions{AddSummary: true})

	ctx := context.Background()
	_ = hook.OnEvent(ctx, testReport("nexpose-vulnerability-report", 2, "out/nexpose-vulnerability-report.csv"))
	_ = hook.OnEvent(ctx, testReport("nexpose-audit-report", -1, "out/nexpose-audit-report.html"))
	if err := hook.OnEvent(ctx, testVerdict(false)); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(summary)
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	for _, want := range []string{
		"## Nexpose scan gate: Failed",
		"| Site | `ci-run` |",
		"| Critical | 1 |",
		"- CVE-B",
		"`nexpose-vulnerability-report` (2 rows)",
		"`nexpose-audit-report` (export)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("summary missing %q:\n%s", want, md)
		}
	}
}

func TestGitHubActionsHook_PassSkipsSummaryWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	summary := filepath.Join(dir, "summary.md")
	hook := NewGitHubActionsHookWithPaths(filepath.Join(dir, "output"), summary, GitHubActionsOptions{})

	if err := hook.OnEvent(context.Background(), testVerdict(true)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(summary); !os.IsNotExist(err) {
		t.Errorf("summary should not be written when disabled")
	}
	data, _ := os.ReadFile(filepath.Join(dir, "output"))
	if !strings.Contains(string(data), "result=pass") {
		t.Errorf("expected result=pass, got %s", data)
	}
}
