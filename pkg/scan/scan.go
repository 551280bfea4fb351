// Package scan starts a site scan and follows it to a terminal status.
//
// A run moves through three states. Launching asks the console to start the
// scan. If the console drops the connection before answering, Recovering
// reads the site's scan history until it shows an active scan or the retry
// budget runs out. Polling then reads scan statistics on a fixed interval
// until the scan leaves the running state.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/duration"
	"github.com/scangate/scangate/pkg/nexpose"
	"github.com/scangate/scangate/pkg/retry"
	"github.com/scangate/scangate/pkg/ui"
)

// Service is the part of the console the launcher needs.
type Service interface {
	StartScan(ctx context.Context, siteID int) (nexpose.LaunchResult, error)
	LatestScan(ctx context.Context, siteID int) (nexpose.ScanSummary, error)
	ScanStatistics(ctx context.Context, scanID int) (nexpose.ScanSummary, error)
}

// Handle is one scan followed by the launcher.
type Handle struct {
	SiteID    int
	ScanID    int
	EngineID  int
	Status    nexpose.Status
	Tasks     nexpose.Tasks
	Recovered bool // attached through scan history after a lost launch response
}

// Succeeded reports whether the scan ended in the finished state.
func (h Handle) Succeeded() bool { return h.Status == nexpose.StatusFinished }

// Launcher drives one scan through launch, recovery and polling.
// The zero value uses the default retry budget and intervals.
type Launcher struct {
	Service Service

	// Sleeper paces recovery and polling. Nil sleeps for real.
	Sleeper retry.Sleeper

	// MaxRetryCount bounds both recovery attempts and consecutive polling
	// failures. Zero means defaults.MaxRetryCount.
	MaxRetryCount int

	PollInterval  time.Duration
	RecoveryDelay time.Duration

	// OnStatus is called after every successful statistics fetch.
	OnStatus func(Handle)

	Logger *slog.Logger
}

// Run starts a scan of the site and blocks until it is no longer running.
// The returned handle carries the last observed status, which may be a
// failure status such as aborted or error; Run does not treat those as
// errors.
func (l *Launcher) Run(ctx context.Context, siteID int, siteName string) (Handle, error) {
	h, err := l.Launch(ctx, siteID)
	if err != nil {
		return h, err
	}
	ui.PrintInfo(fmt.Sprintf("Following scan %d for %s", h.ScanID, siteName))
	return l.Poll(ctx, h, siteName)
}

// Launch starts the scan and, when the console answer was lost, recovers the
// scan id from the site's history.
func (l *Launcher) Launch(ctx context.Context, siteID int) (Handle, error) {
	res, err := l.Service.StartScan(ctx, siteID)
	if err != nil {
		return Handle{SiteID: siteID}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	if res.Confirmed {
		return Handle{
			SiteID:   siteID,
			ScanID:   res.ScanID,
			EngineID: res.EngineID,
			Status:   nexpose.StatusDispatched,
		}, nil
	}
	return l.recover(ctx, siteID)
}

func (l *Launcher) recover(ctx context.Context, siteID int) (Handle, error) {
	log := orDefault(l.Logger)
	sleeper := retry.OrReal(l.Sleeper)
	attempts := l.maxRetries()
	last := nexpose.StatusUnknown
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		ui.PrintWarning(fmt.Sprintf("Connection dropped starting scan, checking whether it started anyway (attempt %d)", attempt))
		if err := sleeper.Sleep(ctx, l.recoveryDelay()); err != nil {
			return Handle{SiteID: siteID}, err
		}

		latest, err := l.Service.LatestScan(ctx, siteID)
		if err != nil {
			if ctx.Err() != nil {
				return Handle{SiteID: siteID}, ctx.Err()
			}
			lastErr = err
			log.Debug("scan history unavailable", slog.Int("site_id", siteID), slog.Int("attempt", attempt), slog.String("error", err.Error()))
			continue
		}
		last = latest.Status
		if latest.Status.Active() {
			ui.PrintSuccess(fmt.Sprintf("Found active scan %d, attaching to it", latest.ScanID))
			return Handle{
				SiteID:    siteID,
				ScanID:    latest.ScanID,
				EngineID:  latest.EngineID,
				Status:    latest.Status,
				Tasks:     latest.Tasks,
				Recovered: true,
			}, nil
		}
		log.Debug("latest scan not active", slog.Int("site_id", siteID), slog.Int("scan_id", latest.ScanID), slog.String("status", string(latest.Status)))
	}

	err := fmt.Errorf("%w: last status %s after %d attempts", ErrRecoveryExhausted, last, attempts)
	if lastErr != nil {
		err = fmt.Errorf("%w: last status %s after %d attempts: %w", ErrRecoveryExhausted, last, attempts, lastErr)
	}
	return Handle{SiteID: siteID, Status: last}, err
}

// Poll reads scan statistics while the scan is running. Any other status,
// dispatched included, ends polling. A
// statistics failure is retried; MaxRetryCount+1 failures in a row end the
// run. Any success resets the count.
func (l *Launcher) Poll(ctx context.Context, h Handle, siteName string) (Handle, error) {
	log := orDefault(l.Logger)
	sleeper := retry.OrReal(l.Sleeper)
	budget := retry.NewBudget(l.maxRetries())

	for {
		if err := sleeper.Sleep(ctx, l.pollInterval()); err != nil {
			return h, err
		}

		stats, err := l.Service.ScanStatistics(ctx, h.ScanID)
		if err != nil {
			if ctx.Err() != nil {
				return h, ctx.Err()
			}
			if budget.Fail() {
				return h, fmt.Errorf("%w: scan %d: %d failures: %w", ErrPollingExhausted, h.ScanID, budget.Consecutive(), err)
			}
			log.Warn("scan statistics failed",
				slog.Int("scan_id", h.ScanID),
				slog.Int("consecutive", budget.Consecutive()),
				slog.String("error", err.Error()))
			continue
		}
		budget.Reset()

		h.Status = stats.Status
		h.Tasks = stats.Tasks
		if stats.EngineID > 0 {
			h.EngineID = stats.EngineID
		}
		ui.PrintScanStatus(siteName, string(h.Status), h.Tasks.Pending, h.Tasks.Active, h.Tasks.Completed)
		if l.OnStatus != nil {
			l.OnStatus(h)
		}

		if h.Status != nexpose.StatusRunning {
			break
		}
	}

	if !h.Succeeded() {
		ui.PrintWarning(fmt.Sprintf("Scan %d ended with status %s", h.ScanID, h.Status))
	}
	log.Debug("scan ended", slog.Int("scan_id", h.ScanID), slog.String("status", string(h.Status)))
	return h, nil
}

func (l *Launcher) maxRetries() int {
	if l.MaxRetryCount > 0 {
		return l.MaxRetryCount
	}
	return defaults.MaxRetryCount
}

func (l *Launcher) pollInterval() time.Duration {
	if l.PollInterval > 0 {
		return l.PollInterval
	}
	return duration.PollInterval
}

func (l *Launcher) recoveryDelay() time.Duration {
	if l.RecoveryDelay > 0 {
		return l.RecoveryDelay
	}
	return duration.RecoveryDelay
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
