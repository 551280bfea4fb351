// Package hooks delivers run events to external systems: Prometheus,
// OpenTelemetry, generic webhooks, Slack and GitHub Actions.
//
// Hooks are called synchronously by the dispatcher. A failing delivery is
// logged and never changes the verdict or the exit code.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/duration"
	"github.com/scangate/scangate/pkg/httpclient"
	"github.com/scangate/scangate/pkg/iohelper"
	"github.com/scangate/scangate/pkg/jsonutil"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/events"
	"github.com/scangate/scangate/pkg/retry"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*WebhookHook)(nil)

// WebhookHook posts events as JSON to an HTTP endpoint. 5xx responses and
// transport errors are retried with backoff; 4xx responses are not.
type WebhookHook struct {
	endpoint string
	client   *http.Client
	opts     WebhookOptions
	logger   *slog.Logger
}

// WebhookOptions configures the webhook hook.
type WebhookOptions struct {
	// Headers to include in requests.
	Headers map[string]string

	// Timeout for each request (default: 10s).
	Timeout time.Duration

	// RetryCount is the total number of attempts (default: 3).
	RetryCount int

	// Events restricts delivery to these types (default: verdict and
	// complete).
	Events []events.EventType

	// Sleeper paces retries (default: real time).
	Sleeper retry.Sleeper

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewWebhookHook creates a webhook hook. It fails only if the HTTP client
// cannot be built.
func NewWebhookHook(endpoint string, opts WebhookOptions) (*WebhookHook, error) {
	if opts.Timeout == 0 {
		opts.Timeout = duration.WebhookTimeout
	}
	if opts.RetryCount == 0 {
		opts.RetryCount = defaults.RetryMedium
	}
	if len(opts.Events) == 0 {
		opts.Events = []events.EventType{events.EventTypeVerdict, events.EventTypeComplete}
	}

	client, err := httpclient.New(httpclient.Config{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	return &WebhookHook{
		endpoint: endpoint,
		client:   client,
		opts:     opts,
		logger:   orDefault(opts.Logger),
	}, nil
}

// OnEvent delivers the event. Delivery failures are logged, not returned.
func (h *WebhookHook) OnEvent(ctx context.Context, event events.Event) error {
	body, err := jsonutil.Marshal(event)
	if err != nil {
		h.logger.Warn("webhook: failed to marshal event", slog.String("error", err.Error()))
		return nil
	}

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = h.opts.RetryCount
	cfg.Sleeper = h.opts.Sleeper
	err = retry.Do(ctx, cfg, func() error {
		return h.send(ctx, event.EventType(), body)
	})
	if err != nil {
		h.logger.Warn("webhook: delivery failed",
			slog.String("endpoint", h.endpoint),
			slog.String("event", string(event.EventType())),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// EventTypes returns the configured event types.
func (h *WebhookHook) EventTypes() []events.EventType {
	return slices.Clone(h.opts.Events)
}

func (h *WebhookHook) send(ctx context.Context, eventType events.EventType, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Stop(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	req.Header.Set("User-Agent", defaults.UserAgent("webhook"))
	req.Header.Set("X-Scangate-Event-Type", string(eventType))
	for key, value := range h.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iohelper.DrainAndClose(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("server error: %d", resp.StatusCode)
	default:
		return retry.Stop(fmt.Errorf("client error: %d", resp.StatusCode))
	}
}
