package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/duration"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/events"
)

// Compile-time interface checks.
var (
	_ dispatcher.Hook       = (*PrometheusHook)(nil)
	_ dispatcher.Shutdowner = (*PrometheusHook)(nil)
)

// PrometheusHook records run metrics in a private registry.
//
// A CI run is short-lived, so the metrics leave the process in up to three
// ways: pushed to a Pushgateway when the run completes, written to a
// node_exporter textfile, or served over HTTP while the run is in progress.
type PrometheusHook struct {
	registry *prometheus.Registry
	opts     PrometheusOptions
	server   *http.Server
	logger   *slog.Logger

	polls        *prometheus.CounterVec
	tasks        *prometheus.GaugeVec
	reportRows   *prometheus.GaugeVec
	reports      *prometheus.CounterVec
	phaseSeconds *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
	findings     *prometheus.GaugeVec
	unrecognized *prometheus.GaugeVec
	bySeverity   *prometheus.GaugeVec
	verdictPass  *prometheus.GaugeVec
	runSeconds   prometheus.Gauge
	exitCode     prometheus.Gauge

	mu     sync.Mutex
	site   string
	closed bool
}

// PrometheusOptions configures the Prometheus hook.
type PrometheusOptions struct {
	// PushGateway is the Pushgateway URL. Metrics are pushed on completion.
	PushGateway string

	// Job is the Pushgateway job name (default: "scangate").
	Job string

	// TextfilePath writes the metrics in exposition format on completion.
	TextfilePath string

	// ListenAddr serves /metrics while the run is in progress (optional).
	ListenAddr string

	// PushTimeout bounds the gateway push (default: 5s).
	PushTimeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewPrometheusHook registers the run metrics and, when ListenAddr is set,
// starts the metrics server.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Job == "" {
		opts.Job = defaults.ToolName
	}
	if opts.PushTimeout == 0 {
		opts.PushTimeout = duration.HookShutdown
	}

	h := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		opts:     opts,
		logger:   orDefault(opts.Logger),
	}
	if err := h.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if opts.ListenAddr != "" {
		h.startServer()
	}
	return h, nil
}

func (h *PrometheusHook) initMetrics() error {
	h.polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scangate_scan_status_polls_total",
		Help: "Scan status observations by reported status",
	}, []string{"site", "status"})
	h.tasks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scangate_scan_tasks",
		Help: "Scan tasks at the last observation",
	}, []string{"site", "state"})
	h.reports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scangate_reports_total",
		Help: "Reports written",
	}, []string{"report"})
	h.reportRows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scangate_report_rows",
		Help: "Data rows in each structured report",
	}, []string{"report"})
	h.phaseSeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scangate_phase_duration_seconds",
		Help: "Wall time of each finished phase",
	}, []string{"phase", "state"})
	h.errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scangate_errors_total",
		Help: "Errors by phase and type",
	}, []string{"phase", "type"})
	h.findings = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scangate_findings",
		Help: "Vulnerability findings in the summary report",
	}, []string{"site"})
	h.unrecognized = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scangate_unrecognized_findings",
		Help: "Distinct finding titles absent from the exception list",
	}, []string{"site"})
	h.bySeverity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scangate_findings_by_severity",
		Help: "Vulnerability findings by severity",
	}, []string{"site", "severity"})
	h.verdictPass = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scangate_verdict_pass",
		Help: "1 when the verification gate passed, 0 when it failed",
	}, []string{"site", "reason"})
	h.runSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scangate_run_duration_seconds",
		Help: "Wall time of the whole run",
	})
	h.exitCode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scangate_exit_code",
		Help: "Process exit code of the run",
	})

	for _, c := range []prometheus.Collector{
		h.polls, h.tasks, h.reports, h.reportRows, h.phaseSeconds, h.errorsTotal,
		h.findings, h.unrecognized, h.bySeverity, h.verdictPass, h.runSeconds, h.exitCode,
	} {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (h *PrometheusHook) startServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h.Handler())
	h.server = &http.Server{
		Addr:              h.opts.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: duration.HookShutdown,
	}
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Warn("metrics server stopped", slog.String("addr", h.opts.ListenAddr), slog.String("error", err.Error()))
		}
	}()
}

// Handler serves the hook's registry in exposition format.
func (h *PrometheusHook) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the registry for tests and embedding.
func (h *PrometheusHook) Registry() *prometheus.Registry { return h.registry }

// OnEvent updates metrics. On the complete event the registry is pushed
// and exported.
func (h *PrometheusHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		h.site = e.Site
	case *events.ScanStatusEvent:
		h.polls.WithLabelValues(h.site, e.Status).Inc()
		h.tasks.WithLabelValues(h.site, "pending").Set(float64(e.Pending))
		h.tasks.WithLabelValues(h.site, "active").Set(float64(e.Active))
		h.tasks.WithLabelValues(h.site, "completed").Set(float64(e.Completed))
	case *events.ReportEvent:
		h.reports.WithLabelValues(e.Report).Inc()
		if e.Rows >= 0 {
			h.reportRows.WithLabelValues(e.Report).Set(float64(e.Rows))
		}
	case *events.PhaseEvent:
		if e.State != events.PhaseStarted {
			h.phaseSeconds.WithLabelValues(string(e.Phase), string(e.State)).Set(float64(e.DurationMs) / 1000)
		}
	case *events.ErrorEvent:
		h.errorsTotal.WithLabelValues(string(e.Phase), e.ErrorType).Inc()
	case *events.VerdictEvent:
		h.findings.WithLabelValues(e.Site).Set(float64(e.Findings))
		h.unrecognized.WithLabelValues(e.Site).Set(float64(len(e.Unrecognized)))
		for sev, n := range e.Severities {
			h.bySeverity.WithLabelValues(e.Site, sev).Set(float64(n))
		}
		pass := 0.0
		if e.Pass {
			pass = 1
		}
		h.verdictPass.WithLabelValues(e.Site, e.Reason).Set(pass)
	case *events.CompleteEvent:
		h.runSeconds.Set(float64(e.DurationMs) / 1000)
		h.exitCode.Set(float64(e.ExitCode))
		return h.export(ctx)
	}
	return nil
}

// export pushes to the gateway and writes the textfile, whichever are set.
func (h *PrometheusHook) export(ctx context.Context) error {
	var errs []error
	if h.opts.PushGateway != "" {
		pctx, cancel := context.WithTimeout(ctx, h.opts.PushTimeout)
		defer cancel()
		pusher := push.New(h.opts.PushGateway, h.opts.Job).Gatherer(h.registry)
		if h.site != "" {
			pusher = pusher.Grouping("site", h.site)
		}
		if err := pusher.PushContext(pctx); err != nil {
			errs = append(errs, fmt.Errorf("prometheus: push to %s: %w", h.opts.PushGateway, err))
		}
	}
	if h.opts.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(h.opts.TextfilePath, h.registry); err != nil {
			errs = append(errs, fmt.Errorf("prometheus: write textfile: %w", err))
		}
	}
	return errors.Join(errs...)
}

// EventTypes returns nil; the hook reads every event.
func (h *PrometheusHook) EventTypes() []events.EventType { return nil }

// Shutdown stops the metrics server, if any. It is idempotent.
func (h *PrometheusHook) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.server == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, duration.HookShutdown)
	defer cancel()
	return h.server.Shutdown(sctx)
}
