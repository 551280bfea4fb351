package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/scangate/scangate/pkg/config"
	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/exceptions"
	"github.com/scangate/scangate/pkg/httpclient"
	"github.com/scangate/scangate/pkg/nexpose"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/hooks"
	"github.com/scangate/scangate/pkg/output/writers"
	"github.com/scangate/scangate/pkg/report"
	"github.com/scangate/scangate/pkg/retry"
	"github.com/scangate/scangate/pkg/ui"
)

// Options are the process-level collaborators of New.
type Options struct {
	// Stdout receives echoed report rows (default: os.Stdout).
	Stdout io.Writer

	// Sleeper paces scan recovery and polling (default: real time).
	Sleeper retry.Sleeper

	// Now stamps rendered reports (default: time.Now).
	Now func() time.Time

	// Getenv reads the GitHub Actions paths (default: os.Getenv).
	Getenv func(string) string

	Logger *slog.Logger
}

// New wires a Runner from a validated run description: the console client,
// the exception loader, the report renderers, and the event dispatcher with
// its writers and hooks. A hook that cannot be set up is skipped with a
// warning. Call Close when the run is over.
func New(cfg *config.RunDescription, opts Options) (*Runner, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: output directory: %w", ErrValidation, err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.SkipVerify,
		Proxy:              cfg.Proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	console, err := nexpose.New(nexpose.Config{
		Endpoint:          cfg.Endpoint,
		Port:              cfg.Port,
		Username:          cfg.Username,
		Password:          cfg.Password,
		HTTPClient:        client,
		RequestsPerSecond: cfg.RateLimit,
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	d := dispatcher.New(dispatcher.Config{Logger: log})
	d.RegisterWriter(writers.NewVerdictWriter(cfg.OutputPath(defaults.VerdictFileName)))
	if cfg.EventLog {
		f, err := os.Create(cfg.OutputPath(defaults.EventsFileName))
		if err != nil {
			return nil, fmt.Errorf("%w: event log: %w", ErrValidation, err)
		}
		d.RegisterWriter(writers.NewJSONLWriter(f))
	}
	for _, h := range buildHooks(cfg, opts.Getenv, log) {
		d.RegisterHook(h)
	}

	return &Runner{
		Config:     cfg,
		Console:    console,
		Exceptions: &exceptions.Loader{HTTPClient: client, Logger: log},
		Events:     d,
		Renderers:  buildRenderers(cfg, opts.Now),
		Echo:       &writers.ConsoleRenderer{},
		Stdout:     opts.Stdout,
		Sleeper:    opts.Sleeper,
		Logger:     log,
	}, nil
}

// Close flushes the event writers and shuts the hooks down.
func (r *Runner) Close(ctx context.Context) error {
	if r.Events == nil {
		return nil
	}
	return r.Events.Close(ctx)
}

// buildRenderers returns CSV and HTML plus the optional formats.
func buildRenderers(cfg *config.RunDescription, now func() time.Time) []report.Renderer {
	rs := []report.Renderer{
		&writers.CSVRenderer{SanitizeFormulas: true},
		&writers.HTMLRenderer{Site: cfg.SiteName, Now: now},
	}
	if cfg.PDF {
		rs = append(rs, &writers.PDFRenderer{Site: cfg.SiteName, Now: now})
	}
	if cfg.Markdown {
		rs = append(rs, &writers.MarkdownRenderer{Site: cfg.SiteName})
	}
	if cfg.JSON {
		rs = append(rs, &writers.JSONRenderer{})
	}
	return rs
}

// buildHooks creates the hooks the description enables.
func buildHooks(cfg *config.RunDescription, getenv func(string) string, log *slog.Logger) []dispatcher.Hook {
	var out []dispatcher.Hook
	skip := func(name string, err error) {
		ui.PrintWarning(fmt.Sprintf("%s hook disabled: %v", name, err))
		log.Warn("hook disabled", slog.String("hook", name), slog.String("error", err.Error()))
	}

	if cfg.PushGateway != "" || cfg.MetricsTextfile != "" {
		h, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{
			PushGateway:  cfg.PushGateway,
			TextfilePath: cfg.MetricsTextfile,
			Logger:       log,
		})
		if err != nil {
			skip("prometheus", err)
		} else {
			out = append(out, h)
		}
	}
	if cfg.OTLPEndpoint != "" {
		h, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint: cfg.OTLPEndpoint,
			Insecure: cfg.OTLPInsecure,
		})
		if err != nil {
			skip("otel", err)
		} else {
			out = append(out, h)
		}
	}
	if cfg.WebhookURL != "" {
		h, err := hooks.NewWebhookHook(cfg.WebhookURL, hooks.WebhookOptions{Logger: log})
		if err != nil {
			skip("webhook", err)
		} else {
			out = append(out, h)
		}
	}
	if cfg.SlackWebhook != "" {
		h, err := hooks.NewSlackHook(cfg.SlackWebhook, hooks.SlackOptions{Logger: log})
		if err != nil {
			skip("slack", err)
		} else {
			out = append(out, h)
		}
	}
	if cfg.GitHubSummary {
		outputPath := getenv("GITHUB_OUTPUT")
		if outputPath == "" {
			skip("github", hooks.ErrNotGitHubActions)
		} else {
			out = append(out, hooks.NewGitHubActionsHookWithPaths(outputPath, getenv("GITHUB_STEP_SUMMARY"),
				hooks.GitHubActionsOptions{AddSummary: true}))
		}
	}
	return out
}
