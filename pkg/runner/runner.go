// Package runner drives one scangate run against a console.
//
// The phases are strictly sequential on one session: validate, connect,
// provision, scan, report, cleanup (best effort), verify. Each phase emits
// started/completed/failed events through the dispatcher, and the run ends
// with a verdict event and a complete event carrying the exit code.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/scangate/scangate/pkg/cleanup"
	"github.com/scangate/scangate/pkg/config"
	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/duration"
	"github.com/scangate/scangate/pkg/exceptions"
	"github.com/scangate/scangate/pkg/nexpose"
	"github.com/scangate/scangate/pkg/output/baseline"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/events"
	"github.com/scangate/scangate/pkg/output/exitcode"
	"github.com/scangate/scangate/pkg/provision"
	"github.com/scangate/scangate/pkg/report"
	"github.com/scangate/scangate/pkg/retry"
	"github.com/scangate/scangate/pkg/scan"
	"github.com/scangate/scangate/pkg/ui"
	"github.com/scangate/scangate/pkg/verify"
)

// Console is the console session a run uses.
type Console interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	provision.Service
	scan.Service
	report.Service
	cleanup.Service
}

// Runner holds the collaborators of one run.
type Runner struct {
	Config     *config.RunDescription
	Console    Console
	Exceptions verify.Loader

	// Events receives the run events. Nil drops them.
	Events *dispatcher.Dispatcher

	// Renderers write every structured report; Echo prints the
	// vulnerability rows when Config.Echo is set.
	Renderers []report.Renderer
	Echo      report.Renderer
	Stdout    io.Writer

	// Sleeper paces scan recovery and polling. Nil sleeps for real.
	Sleeper retry.Sleeper

	// RunID stamps every event (default: a new UUID per Run).
	RunID string

	Logger *slog.Logger
}

// Outcome is what a run produced. Fields of phases that did not run are
// zero.
type Outcome struct {
	RunID    string
	Site     *nexpose.Site
	Scan     scan.Handle
	Reports  *report.Result
	Cleanup  *cleanup.Result
	Verdict  *verify.Verdict
	Baseline *baseline.Comparison
	ExitCode exitcode.Code
	Reason   string
}

// Run executes every phase and returns the outcome with the error that
// ended the run. A failing verdict returns ErrVulnerabilitiesFound; the
// outcome is non-nil either way.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{RunID: r.RunID}
	if out.RunID == "" {
		out.RunID = events.NewRunID()
	}
	r.RunID = out.RunID

	cfg := r.Config
	r.emit(ctx, &events.StartEvent{
		BaseEvent:  events.NewBase(events.EventTypeStart, r.RunID),
		Version:    defaults.Version,
		Endpoint:   cfg.Endpoint,
		Site:       cfg.SiteName,
		Addresses:  cfg.Addresses,
		TemplateID: cfg.TemplateID,
		EngineID:   cfg.EngineID,
	})

	exit := exitcode.New()
	err := r.run(ctx, out, exit)
	RecordError(exit, err)
	out.ExitCode, out.Reason = exit.ExitCode()

	if err != nil && !errors.Is(err, ErrVulnerabilitiesFound) {
		ui.PrintError(err.Error())
	}
	r.emit(context.WithoutCancel(ctx), &events.CompleteEvent{
		BaseEvent:  events.NewBase(events.EventTypeComplete, r.RunID),
		Success:    err == nil,
		ExitCode:   int(out.ExitCode),
		Reason:     out.Reason,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return out, err
}

func (r *Runner) run(ctx context.Context, out *Outcome, exit *exitcode.Manager) error {
	cfg := r.Config
	log := r.logger()

	if err := r.phase(ctx, events.PhaseValidate, func() (string, error) {
		if err := cfg.Validate(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return "", nil
	}); err != nil {
		return err
	}

	if err := r.phase(ctx, events.PhaseConnect, func() (string, error) {
		ui.PrintInfo("Logging in to " + cfg.Endpoint)
		if err := r.Console.Login(ctx); err != nil {
			return "", fmt.Errorf("%w: %w", ErrConnection, err)
		}
		return cfg.Username, nil
	}); err != nil {
		return err
	}
	defer r.logout(ctx)

	prov := &provision.Provisioner{Service: r.Console, Logger: log}
	if err := r.phase(ctx, events.PhaseProvision, func() (string, error) {
		site, err := prov.Provision(ctx, provision.Request{
			SiteName:   cfg.SiteName,
			Addresses:  cfg.Addresses,
			TemplateID: cfg.TemplateID,
			EngineID:   cfg.EngineID,
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrProvisioning, err)
		}
		out.Site = site
		return fmt.Sprintf("site %d, %d hosts", site.ID, len(site.Hosts)), nil
	}); err != nil {
		return err
	}

	launcher := &scan.Launcher{
		Service:  r.Console,
		Sleeper:  r.Sleeper,
		OnStatus: r.onStatus,
		Logger:   log,
	}
	if err := r.phase(ctx, events.PhaseScan, func() (string, error) {
		h, err := launcher.Run(ctx, out.Site.ID, out.Site.Name)
		out.Scan = h
		if err != nil {
			return "", scanError(err)
		}
		return fmt.Sprintf("scan %d %s", h.ScanID, h.Status), nil
	}); err != nil {
		return err
	}
	if !out.Scan.Succeeded() {
		r.emit(ctx, &events.ErrorEvent{
			BaseEvent: events.NewBase(events.EventTypeError, r.RunID),
			Phase:     events.PhaseScan,
			ErrorType: "scan_status",
			Message:   fmt.Sprintf("scan %d ended with status %s", out.Scan.ScanID, out.Scan.Status),
		})
	}

	pipeline := &report.Pipeline{
		Service:   r.Console,
		Renderers: r.Renderers,
		Console:   r.Echo,
		Stdout:    r.Stdout,
		OnReport:  r.onReport,
		Logger:    log,
	}
	if err := r.phase(ctx, events.PhaseReport, func() (string, error) {
		res, err := pipeline.Generate(ctx, out.Site.ID, out.Site.Name, report.Options{
			OutputDir: cfg.OutputDir,
			Software:  cfg.SoftwareReport,
			Policy:    cfg.PolicyReport,
			Audit:     cfg.AuditReport,
			XML:       cfg.XMLReport,
			Echo:      cfg.Echo,
		})
		out.Reports = res
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrReportGeneration, err)
		}
		return fmt.Sprintf("%d files", len(res.Files)), nil
	}); err != nil {
		return err
	}

	if cfg.Cleanup {
		r.cleanup(ctx, out)
	}

	gate := &verify.Gate{
		Source:    cfg.ExceptionSource,
		Loader:    r.Exceptions,
		OutputDir: cfg.OutputDir,
	}
	if err := r.phase(ctx, events.PhaseVerify, func() (string, error) {
		v, err := gate.Evaluate(ctx, out.Reports.Vulnerabilities)
		if err != nil {
			if errors.Is(err, exceptions.ErrUnavailable) {
				return "", fmt.Errorf("%w: %w", ErrExceptionList, err)
			}
			return "", fmt.Errorf("%w: %w", ErrReportGeneration, err)
		}
		out.Verdict = &v
		return v.Reason, nil
	}); err != nil {
		return err
	}

	if cfg.BaselinePath != "" {
		out.Baseline = r.compareBaseline(out.Reports.Vulnerabilities)
	}

	v := out.Verdict
	r.emit(ctx, &events.VerdictEvent{
		BaseEvent:    events.NewBase(events.EventTypeVerdict, r.RunID),
		Pass:         v.Pass,
		Findings:     v.Findings,
		Unrecognized: v.Unrecognized,
		Reason:       v.Reason,
		ArtifactPath: v.ArtifactPath,
		Site:         out.Site.Name,
		ScanID:       out.Scan.ScanID,
		ScanStatus:   string(out.Scan.Status),
		Severities:   severityCounts(out.Reports.Vulnerabilities),
	})

	if v.Pass {
		ui.PrintSuccess("Verification passed: " + v.Reason)
		return nil
	}
	failing := len(v.Unrecognized)
	if failing == 0 {
		failing = v.Findings
	}
	exit.RecordVulnerabilities(failing)
	return fmt.Errorf("%w: %s", ErrVulnerabilitiesFound, v.Reason)
}

// phase runs fn between a started and a completed or failed event. The
// string fn returns is the completed event's detail.
func (r *Runner) phase(ctx context.Context, p events.Phase, fn func() (string, error)) error {
	started := time.Now()
	r.emit(ctx, &events.PhaseEvent{
		BaseEvent: events.NewBase(events.EventTypePhase, r.RunID),
		Phase:     p,
		State:     events.PhaseStarted,
	})

	detail, err := fn()
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		// the run is ending; deliver the failure even after a cancel
		ectx := context.WithoutCancel(ctx)
		r.emit(ectx, &events.PhaseEvent{
			BaseEvent:  events.NewBase(events.EventTypePhase, r.RunID),
			Phase:      p,
			State:      events.PhaseFailed,
			Detail:     err.Error(),
			DurationMs: elapsed,
		})
		r.emit(ectx, &events.ErrorEvent{
			BaseEvent: events.NewBase(events.EventTypeError, r.RunID),
			Phase:     p,
			ErrorType: ErrorType(err),
			Message:   err.Error(),
			Fatal:     true,
		})
		r.logger().Debug("phase failed", slog.String("phase", string(p)), slog.String("error", err.Error()))
		return err
	}

	r.emit(ctx, &events.PhaseEvent{
		BaseEvent:  events.NewBase(events.EventTypePhase, r.RunID),
		Phase:      p,
		State:      events.PhaseCompleted,
		Detail:     detail,
		DurationMs: elapsed,
	})
	return nil
}

// scanError maps launcher failures onto the run's sentinels. Cancellation
// passes through unwrapped.
func scanError(err error) error {
	switch {
	case errors.Is(err, scan.ErrRecoveryExhausted):
		return fmt.Errorf("%w: %w", ErrLaunchRecoveryExhausted, err)
	case errors.Is(err, scan.ErrPollingExhausted):
		return fmt.Errorf("%w: %w", ErrPollingExhausted, err)
	case errors.Is(err, scan.ErrLaunch):
		return fmt.Errorf("%w: %w", ErrScanLaunch, err)
	}
	return err
}

// cleanup deletes the scanned devices. Failures are reported and the run
// goes on to verification.
func (r *Runner) cleanup(ctx context.Context, out *Outcome) {
	agent := &cleanup.Agent{Service: r.Console, Logger: r.logger()}
	started := time.Now()
	r.emit(ctx, &events.PhaseEvent{
		BaseEvent: events.NewBase(events.EventTypePhase, r.RunID),
		Phase:     events.PhaseCleanup,
		State:     events.PhaseStarted,
	})

	res, err := agent.Run(ctx, r.Config.SiteName, r.Config.Addresses)
	out.Cleanup = &res
	state := events.PhaseCompleted
	detail := fmt.Sprintf("%d deleted, %d missing", len(res.Deleted), len(res.Missing))
	if err != nil {
		state = events.PhaseFailed
		detail = err.Error()
		ui.PrintWarning("Cleanup incomplete: " + err.Error())
		r.logger().Warn("cleanup failed", slog.String("site", r.Config.SiteName), slog.String("error", err.Error()))
		r.emit(ctx, &events.ErrorEvent{
			BaseEvent: events.NewBase(events.EventTypeError, r.RunID),
			Phase:     events.PhaseCleanup,
			ErrorType: "cleanup",
			Message:   err.Error(),
		})
	}
	r.emit(ctx, &events.PhaseEvent{
		BaseEvent:  events.NewBase(events.EventTypePhase, r.RunID),
		Phase:      events.PhaseCleanup,
		State:      state,
		Detail:     detail,
		DurationMs: time.Since(started).Milliseconds(),
	})
}

// compareBaseline diffs the findings against the stored baseline and, when
// asked, rewrites it. It never affects the verdict.
func (r *Runner) compareBaseline(vulns *report.Set) *baseline.Comparison {
	cfg := r.Config
	log := r.logger()

	b, err := baseline.Load(cfg.BaselinePath)
	switch {
	case errors.Is(err, baseline.ErrBaselineNotFound):
		ui.PrintInfo("No baseline at " + cfg.BaselinePath)
		b = baseline.New(cfg.SiteName)
	case err != nil:
		ui.PrintWarning("Baseline unusable: " + err.Error())
		log.Warn("baseline load failed", slog.String("path", cfg.BaselinePath), slog.String("error", err.Error()))
		return nil
	}

	current := baseline.EntriesFromSet(vulns)
	cmp := b.Compare(current)
	ui.PrintSection("Baseline")
	ui.PrintConfigLine("Compared with", cfg.BaselinePath)
	ui.PrintConfigLine("Result", cmp.Summary)
	for _, e := range cmp.New {
		ui.PrintWarning(fmt.Sprintf("New: %s on %s", e.Title, e.Address))
	}

	if cfg.UpdateBaseline {
		b.Update(current, r.RunID)
		if err := b.Save(cfg.BaselinePath); err != nil {
			ui.PrintWarning("Baseline not saved: " + err.Error())
			log.Warn("baseline save failed", slog.String("path", cfg.BaselinePath), slog.String("error", err.Error()))
		} else {
			ui.PrintInfo("Baseline updated: " + cfg.BaselinePath)
		}
	}
	return &cmp
}

func (r *Runner) logout(ctx context.Context) {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), duration.HookShutdown)
	defer cancel()
	if err := r.Console.Logout(lctx); err != nil {
		r.logger().Warn("logout failed", slog.String("error", err.Error()))
	}
}

func (r *Runner) onStatus(h scan.Handle) {
	r.emit(context.Background(), &events.ScanStatusEvent{
		BaseEvent: events.NewBase(events.EventTypeScanStatus, r.RunID),
		SiteID:    h.SiteID,
		ScanID:    h.ScanID,
		EngineID:  h.EngineID,
		Status:    string(h.Status),
		Pending:   h.Tasks.Pending,
		Active:    h.Tasks.Active,
		Completed: h.Tasks.Completed,
		Recovered: h.Recovered,
	})
}

func (r *Runner) onReport(g report.Generated) {
	r.emit(context.Background(), &events.ReportEvent{
		BaseEvent: events.NewBase(events.EventTypeReport, r.RunID),
		Report:    g.Name,
		Rows:      g.Rows,
		Paths:     g.Paths,
	})
}

func (r *Runner) emit(ctx context.Context, e events.Event) {
	if r.Events != nil {
		r.Events.Dispatch(ctx, e)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func severityCounts(vulns *report.Set) map[string]int {
	counts := vulns.Severities()
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(counts))
	for sev, n := range counts {
		out[string(sev)] = n
	}
	return out
}
