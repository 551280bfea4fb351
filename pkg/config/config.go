// Package config builds the RunDescription for one scangate run.
//
// Values come from four layers, highest precedence first: command-line
// flags, environment variables (NEXPOSE_* and SCANGATE_*), a YAML file
// named by -config, and built-in defaults. Validate must pass before any
// remote call is made.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/duration"
	"github.com/scangate/scangate/pkg/httpclient"
	"github.com/scangate/scangate/pkg/nexpose"
)

// RunDescription holds everything one run needs. It is not modified after
// Validate succeeds.
type RunDescription struct {
	// Console connection
	Endpoint string `yaml:"endpoint"` // host name or URL
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Scan target
	SiteName   string   `yaml:"site"`
	Addresses  []string `yaml:"addresses"`
	TemplateID string   `yaml:"template"`
	EngineID   int      `yaml:"engine_id"`

	// Verification
	ExceptionSource string `yaml:"exceptions"` // URL or path; empty = none
	Cleanup         bool   `yaml:"cleanup"`

	// Reports
	OutputDir      string `yaml:"output_dir"`
	SoftwareReport bool   `yaml:"software_report"`
	PolicyReport   bool   `yaml:"policy_report"`
	AuditReport    bool   `yaml:"audit_report"`
	XMLReport      bool   `yaml:"xml_report"`
	PDF            bool   `yaml:"pdf"`
	Markdown       bool   `yaml:"markdown"`
	JSON           bool   `yaml:"json"`
	Echo           bool   `yaml:"echo"` // print vulnerability rows to the console

	// Transport
	Timeout    time.Duration `yaml:"timeout"`
	Proxy      string        `yaml:"proxy"`
	SkipVerify bool          `yaml:"skip_verify"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited

	// Hooks
	PushGateway     string `yaml:"pushgateway"`
	MetricsTextfile string `yaml:"metrics_textfile"`
	OTLPEndpoint    string `yaml:"otlp_endpoint"`
	OTLPInsecure    bool   `yaml:"otlp_insecure"`
	WebhookURL      string `yaml:"webhook_url"`
	SlackWebhook    string `yaml:"slack_webhook"`
	GitHubSummary   bool   `yaml:"github_summary"`

	// Baseline
	BaselinePath   string `yaml:"baseline"`
	UpdateBaseline bool   `yaml:"update_baseline"`

	// Terminal and logs
	Verbose   bool   `yaml:"verbose"`
	Silent    bool   `yaml:"silent"`
	NoColor   bool   `yaml:"no_color"`
	LogFormat string `yaml:"log_format"` // text or json
	EventLog  bool   `yaml:"event_log"`

	// ConfigFile is the YAML file the description was read from, if any.
	ConfigFile string `yaml:"-"`
}

// Defaults returns a description with every optional field at its default.
func Defaults() *RunDescription {
	return &RunDescription{
		Port:      defaults.EnginePort,
		OutputDir: ".",
		Timeout:   duration.HTTPAPI,
		RateLimit: defaults.RequestsPerSecond,
		LogFormat: "text",
		EventLog:  true,
	}
}

// Validate checks that required fields are present and well formed.
// Failures wrap ErrMissingRequired or ErrInvalidConfig and name every
// problem found, not just the first.
func (c *RunDescription) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"endpoint", c.Endpoint},
		{"username", c.Username},
		{"password", c.Password},
		{"site", c.SiteName},
		{"template", c.TemplateID},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(c.Addresses) == 0 {
		missing = append(missing, "addresses")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}

	var invalid []string
	if _, err := nexpose.APIURL(c.Endpoint, c.Port); err != nil {
		invalid = append(invalid, err.Error())
	}
	if c.Port < 1 || c.Port > 65535 {
		invalid = append(invalid, fmt.Sprintf("port %d out of range", c.Port))
	}
	for _, a := range c.Addresses {
		if strings.TrimSpace(a) == "" || strings.ContainsAny(a, " \t,") {
			invalid = append(invalid, fmt.Sprintf("address %q", a))
		}
	}
	if c.EngineID < 0 {
		invalid = append(invalid, fmt.Sprintf("engine id %d is negative", c.EngineID))
	}
	if c.Timeout <= 0 {
		invalid = append(invalid, "timeout must be positive")
	}
	if c.RateLimit < 0 {
		invalid = append(invalid, "rate limit must not be negative")
	}
	if c.Proxy != "" {
		if _, err := httpclient.ParseProxyURL(c.Proxy); err != nil {
			invalid = append(invalid, err.Error())
		}
	}
	for _, u := range []struct{ name, value string }{
		{"pushgateway", c.PushGateway},
		{"webhook", c.WebhookURL},
		{"slack webhook", c.SlackWebhook},
	} {
		if u.value != "" && !isHTTPURL(u.value) {
			invalid = append(invalid, fmt.Sprintf("%s %q is not an http(s) URL", u.name, u.value))
		}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		invalid = append(invalid, fmt.Sprintf("log format %q (want text or json)", c.LogFormat))
	}
	if c.UpdateBaseline && c.BaselinePath == "" {
		invalid = append(invalid, "update-baseline requires baseline")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(invalid, "; "))
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// OutputPath joins a file name onto the output directory.
func (c *RunDescription) OutputPath(file string) string {
	return filepath.Join(c.OutputDir, file)
}

// Redacted returns a copy safe to print or log.
func (c *RunDescription) Redacted() RunDescription {
	r := *c
	r.Addresses = append([]string(nil), c.Addresses...)
	if r.Password != "" {
		r.Password = "********"
	}
	r.SlackWebhook = redactURL(r.SlackWebhook)
	r.WebhookURL = redactURL(r.WebhookURL)
	return r
}

// redactURL keeps the scheme and host of a URL whose path may hold a token.
func redactURL(s string) string {
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "********"
	}
	return u.Scheme + "://" + u.Host + "/********"
}
