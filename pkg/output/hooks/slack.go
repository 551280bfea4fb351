package hooks

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/duration"
	"github.com/scangate/scangate/pkg/finding"
	"github.com/scangate/scangate/pkg/httpclient"
	"github.com/scangate/scangate/pkg/iohelper"
	"github.com/scangate/scangate/pkg/jsonutil"
	"github.com/scangate/scangate/pkg/output/dispatcher"
	"github.com/scangate/scangate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*SlackHook)(nil)

// SlackHook posts the verdict to Slack as a Block Kit message via an
// incoming webhook.
type SlackHook struct {
	webhookURL string
	client     *http.Client
	opts       SlackOptions
	logger     *slog.Logger
}

// SlackOptions configures the Slack hook.
type SlackOptions struct {
	// Channel override (uses webhook default if empty).
	Channel string

	// Username for the bot (default: "ScanGate").
	Username string

	// IconEmoji for the bot avatar (default: ":shield:").
	IconEmoji string

	// OnlyOnFailure skips passing verdicts.
	OnlyOnFailure bool

	// MaxTitles caps the unrecognized titles listed (default: 10).
	MaxTitles int

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewSlackHook creates a Slack hook for the given incoming webhook URL.
func NewSlackHook(webhookURL string, opts SlackOptions) (*SlackHook, error) {
	if opts.Username == "" {
		opts.Username = defaults.ToolNameDisplay
	}
	if opts.IconEmoji == "" {
		opts.IconEmoji = ":shield:"
	}
	if opts.MaxTitles == 0 {
		opts.MaxTitles = 10
	}
	if opts.Timeout == 0 {
		opts.Timeout = duration.WebhookTimeout
	}

	client, err := httpclient.New(httpclient.Config{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("slack: %w", err)
	}
	return &SlackHook{
		webhookURL: webhookURL,
		client:     client,
		opts:       opts,
		logger:     orDefault(opts.Logger),
	}, nil
}

// OnEvent sends the verdict summary.
func (h *SlackHook) OnEvent(ctx context.Context, event events.Event) error {
	v, ok := event.(*events.VerdictEvent)
	if !ok {
		return nil
	}
	if h.opts.OnlyOnFailure && v.Pass {
		return nil
	}
	h.send(ctx, slackBlockMessage{
		Username:  h.opts.Username,
		IconEmoji: h.opts.IconEmoji,
		Channel:   h.opts.Channel,
		Text:      verdictHeadline(v),
		Blocks:    h.buildBlocks(v),
	})
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *SlackHook) EventTypes() []events.EventType {
	return []events.EventType{events.EventTypeVerdict}
}

func verdictHeadline(v *events.VerdictEvent) string {
	if v.Pass {
		return fmt.Sprintf("Scan gate passed for %s", v.Site)
	}
	return fmt.Sprintf("Scan gate failed for %s", v.Site)
}

func (h *SlackHook) buildBlocks(v *events.VerdictEvent) []slackBlock {
	icon := ":white_check_mark:"
	if !v.Pass {
		icon = ":rotating_light:"
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: icon + " " + verdictHeadline(v)}},
		{Type: "section", Fields: []*slackText{
			{Type: "mrkdwn", Text: fmt.Sprintf("*Site:*\n%s", v.Site)},
			{Type: "mrkdwn", Text: fmt.Sprintf("*Scan:*\n%d (%s)", v.ScanID, v.ScanStatus)},
			{Type: "mrkdwn", Text: fmt.Sprintf("*Findings:*\n%d", v.Findings)},
			{Type: "mrkdwn", Text: fmt.Sprintf("*Reason:*\n%s", v.Reason)},
		}},
	}

	if line := severityLine(v.Severities); line != "" {
		blocks = append(blocks, slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: line}})
	}

	if len(v.Unrecognized) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "*Not in exception list (%d):*\n", len(v.Unrecognized))
		for i, title := range v.Unrecognized {
			if i == h.opts.MaxTitles {
				fmt.Fprintf(&b, "_...and %d more_\n", len(v.Unrecognized)-i)
				break
			}
			fmt.Fprintf(&b, "• %s\n", title)
		}
		blocks = append(blocks,
			slackBlock{Type: "divider"},
			slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: b.String()}},
		)
	}
	return blocks
}

// severityLine renders counts in severity order, e.g.
// "Critical: 2 · Severe: 1".
func severityLine(counts map[string]int) string {
	var parts []string
	for _, sev := range finding.All {
		if n := counts[string(sev)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", capitalize(string(sev)), n))
		}
	}
	return strings.Join(parts, " · ")
}

// send posts the message. Failures are logged only.
func (h *SlackHook) send(ctx context.Context, payload any) {
	body, err := jsonutil.Marshal(payload)
	if err != nil {
		h.logger.Warn("slack: failed to marshal message", slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(body))
	if err != nil {
		h.logger.Warn("slack: failed to create request", slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", defaults.ContentTypeJSON)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("slack: failed to send message", slog.String("error", err.Error()))
		return
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode >= 400 {
		h.logger.Warn("slack: error response", slog.Int("status", resp.StatusCode))
	}
}

// capitalize upper-cases the first letter of an ASCII word.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type slackBlockMessage struct {
	Username  string       `json:"username,omitempty"`
	IconEmoji string       `json:"icon_emoji,omitempty"`
	Channel   string       `json:"channel,omitempty"`
	Text      string       `json:"text"`
	Blocks    []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string       `json:"type"`
	Text   *slackText   `json:"text,omitempty"`
	Fields []*slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
