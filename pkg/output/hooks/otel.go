package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/duration"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/events"
)

// Compile-time interface checks.
var (
	_ dispatcher.Hook       = (*OTelHook)(nil)
	_ dispatcher.Shutdowner = (*OTelHook)(nil)
)

// OTelHook traces a run: one span from the start event to the complete
// event, with a span event for each phase transition, status poll, report
// and the verdict.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu       sync.Mutex
	rootSpan trace.Span
	closed   bool
}

// OTelOptions configures the OpenTelemetry hook.
type OTelOptions struct {
	// Endpoint is the OTLP gRPC endpoint (default: "localhost:4317").
	Endpoint string

	// ServiceName is the service name on the resource (default: "scangate").
	ServiceName string

	// Insecure disables TLS to the collector.
	Insecure bool

	// Headers are sent with every export.
	Headers map[string]string

	// ShutdownTimeout bounds the final flush (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout bounds exporter setup (default: 10s).
	ConnectionTimeout time.Duration

	// Exporter replaces the OTLP exporter, for tests.
	Exporter sdktrace.SpanExporter
}

// NewOTelHook builds the tracer provider. The exporter does not block on
// an unreachable collector; spans are dropped at shutdown instead.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.HookShutdown
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.WebhookTimeout
	}

	exporter := opts.Exporter
	processor := sdktrace.WithSyncer
	if exporter == nil {
		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			exporterOpts = append(exporterOpts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		if len(opts.Headers) > 0 {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
		}

		ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
		defer cancel()
		exp, err := otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("otel: create exporter: %w", err)
		}
		exporter = exp
		processor = func(e sdktrace.SpanExporter) sdktrace.TracerProviderOption {
			return sdktrace.WithBatcher(e)
		}
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
	)
	tp := sdktrace.NewTracerProvider(
		processor(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return &OTelHook{
		opts:           opts,
		tracerProvider: tp,
		tracer:         tp.Tracer(defaults.ToolName + "/runner"),
	}, nil
}

// OnEvent records the event on the run span.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	if start, ok := event.(*events.StartEvent); ok {
		h.handleStart(ctx, start)
		return nil
	}
	if h.rootSpan == nil {
		return nil
	}

	switch e := event.(type) {
	case *events.PhaseEvent:
		attrs := []attribute.KeyValue{
			attribute.String("phase", string(e.Phase)),
			attribute.String("state", string(e.State)),
		}
		if e.Detail != "" {
			attrs = append(attrs, attribute.String("detail", e.Detail))
		}
		if e.State != events.PhaseStarted {
			attrs = append(attrs, attribute.Int64("duration_ms", e.DurationMs))
		}
		h.rootSpan.AddEvent("phase_"+string(e.State), trace.WithAttributes(attrs...))
	case *events.ScanStatusEvent:
		h.rootSpan.SetAttributes(
			attribute.Int("nexpose.site_id", e.SiteID),
			attribute.Int("nexpose.scan_id", e.ScanID),
		)
		h.rootSpan.AddEvent("scan_status", trace.WithAttributes(
			attribute.String("status", e.Status),
			attribute.Int("pending", e.Pending),
			attribute.Int("active", e.Active),
			attribute.Int("completed", e.Completed),
			attribute.Bool("recovered", e.Recovered),
		))
	case *events.ReportEvent:
		h.rootSpan.AddEvent("report_written", trace.WithAttributes(
			attribute.String("report", e.Report),
			attribute.Int("rows", e.Rows),
			attribute.StringSlice("paths", e.Paths),
		))
	case *events.ErrorEvent:
		h.rootSpan.AddEvent("error", trace.WithAttributes(
			attribute.String("phase", string(e.Phase)),
			attribute.String("error_type", e.ErrorType),
			attribute.String("message", e.Message),
			attribute.Bool("fatal", e.Fatal),
		))
	case *events.VerdictEvent:
		h.rootSpan.SetAttributes(
			attribute.Bool("verdict.pass", e.Pass),
			attribute.String("verdict.reason", e.Reason),
			attribute.Int("verdict.findings", e.Findings),
			attribute.Int("verdict.unrecognized", len(e.Unrecognized)),
			attribute.String("nexpose.scan_status", e.ScanStatus),
		)
		h.rootSpan.AddEvent("verdict", trace.WithAttributes(
			attribute.Bool("pass", e.Pass),
			attribute.StringSlice("unrecognized", e.Unrecognized),
		))
	case *events.CompleteEvent:
		h.rootSpan.SetAttributes(
			attribute.Int("exit_code", e.ExitCode),
			attribute.String("exit_reason", e.Reason),
		)
		if e.Success {
			h.rootSpan.SetStatus(codes.Ok, "")
		} else {
			h.rootSpan.SetStatus(codes.Error, e.Reason)
		}
		h.rootSpan.End()
		h.rootSpan = nil
	}
	return nil
}

func (h *OTelHook) handleStart(ctx context.Context, start *events.StartEvent) {
	_, span := h.tracer.Start(ctx, defaults.ToolName+".run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(start.Timestamp()),
		trace.WithAttributes(
			attribute.String("run_id", start.RunID()),
			attribute.String("nexpose.endpoint", start.Endpoint),
			attribute.String("nexpose.site", start.Site),
			attribute.StringSlice("nexpose.addresses", start.Addresses),
			attribute.String("nexpose.template_id", start.TemplateID),
			attribute.Int("nexpose.engine_id", start.EngineID),
		),
	)
	h.rootSpan = span
}

// EventTypes returns nil; the hook reads every event.
func (h *OTelHook) EventTypes() []events.EventType { return nil }

// Shutdown ends an unfinished span and flushes the exporter.
func (h *OTelHook) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if h.rootSpan != nil {
		h.rootSpan.SetStatus(codes.Error, "run interrupted")
		h.rootSpan.End()
		h.rootSpan = nil
	}

	sctx, cancel := context.WithTimeout(ctx, h.opts.ShutdownTimeout)
	defer cancel()
	if err := h.tracerProvider.Shutdown(sctx); err != nil {
		return fmt.Errorf("otel: shutdown tracer provider: %w", err)
	}
	return nil
}

// Endpoint returns the OTLP endpoint in use.
func (h *OTelHook) Endpoint() string { return h.opts.Endpoint }
