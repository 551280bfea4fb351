package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// listFlag is a string list given comma-separated or by repeating the
// flag. The first use on the command line replaces any value from the file
// or environment.
type listFlag struct {
	target *[]string
	set    bool
}

func (l *listFlag) String() string {
	if l == nil || l.target == nil {
		return ""
	}
	return strings.Join(*l.target, ",")
}

func (l *listFlag) Set(v string) error {
	if !l.set {
		*l.target = nil
		l.set = true
	}
	*l.target = append(*l.target, splitList(v)...)
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Register binds the run flags to fs. Flag defaults are the current values
// of c, so registering onto a description that already holds file and
// environment values makes flags override them.
func (c *RunDescription) Register(fs *flag.FlagSet) {
	// === CONSOLE ===
	fs.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "Nexpose console host or URL")
	fs.StringVar(&c.Endpoint, "e", c.Endpoint, "Console endpoint (alias)")
	fs.IntVar(&c.Port, "port", c.Port, "Console port")
	fs.StringVar(&c.Username, "username", c.Username, "Console user")
	fs.StringVar(&c.Username, "U", c.Username, "Console user (alias)")
	fs.StringVar(&c.Password, "password", c.Password, "Console password (prefer NEXPOSE_PASSWORD)")
	fs.StringVar(&c.Password, "P", c.Password, "Console password (alias)")

	// === TARGET ===
	fs.StringVar(&c.SiteName, "site", c.SiteName, "Site name; reused when it exists")
	fs.StringVar(&c.SiteName, "n", c.SiteName, "Site name (alias)")
	addrs := &listFlag{target: &c.Addresses}
	fs.Var(addrs, "address", "Address(es) to scan - comma-separated or repeated")
	fs.Var(addrs, "a", "Address(es) (alias)")
	fs.StringVar(&c.TemplateID, "template", c.TemplateID, "Scan template id")
	fs.StringVar(&c.TemplateID, "t", c.TemplateID, "Scan template (alias)")
	fs.IntVar(&c.EngineID, "engine", c.EngineID, "Scan engine id (0 = console default)")

	// === VERIFICATION ===
	fs.StringVar(&c.ExceptionSource, "exceptions", c.ExceptionSource, "Exception list URL or file, one title per line")
	fs.StringVar(&c.ExceptionSource, "x", c.ExceptionSource, "Exception list (alias)")
	fs.BoolVar(&c.Cleanup, "cleanup", c.Cleanup, "Delete scanned devices after reporting")

	// === REPORTS ===
	fs.StringVar(&c.OutputDir, "output-dir", c.OutputDir, "Directory for reports and artifacts")
	fs.StringVar(&c.OutputDir, "o", c.OutputDir, "Output directory (alias)")
	fs.BoolVar(&c.SoftwareReport, "software", c.SoftwareReport, "Generate the installed software report")
	fs.BoolVar(&c.PolicyReport, "policy", c.PolicyReport, "Generate the policy compliance report")
	fs.BoolVar(&c.AuditReport, "audit", c.AuditReport, "Export the audit report (HTML)")
	fs.BoolVar(&c.XMLReport, "xml", c.XMLReport, "Export the raw XML report")
	fs.BoolVar(&c.PDF, "pdf", c.PDF, "Also render the vulnerability report as PDF")
	fs.BoolVar(&c.Markdown, "md", c.Markdown, "Also render the vulnerability report as Markdown")
	fs.BoolVar(&c.JSON, "json", c.JSON, "Also render the vulnerability report as JSON")
	fs.BoolVar(&c.Echo, "echo", c.Echo, "Print vulnerability rows to the console")

	// === NETWORK ===
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Console request timeout")
	fs.StringVar(&c.Proxy, "proxy", c.Proxy, "HTTP/SOCKS5 proxy URL")
	fs.BoolVar(&c.SkipVerify, "skip-verify", c.SkipVerify, "Skip TLS verification (self-signed consoles)")
	fs.BoolVar(&c.SkipVerify, "k", c.SkipVerify, "Skip TLS (alias)")
	fs.Float64Var(&c.RateLimit, "rate-limit", c.RateLimit, "Max console requests per second (0 = unlimited)")
	fs.Float64Var(&c.RateLimit, "rl", c.RateLimit, "Rate limit (alias)")

	// === HOOKS ===
	fs.StringVar(&c.PushGateway, "pushgateway", c.PushGateway, "Prometheus Pushgateway URL")
	fs.StringVar(&c.MetricsTextfile, "metrics-textfile", c.MetricsTextfile, "Write Prometheus metrics to this textfile")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", c.OTLPEndpoint, "OTLP gRPC endpoint for traces")
	fs.BoolVar(&c.OTLPInsecure, "otlp-insecure", c.OTLPInsecure, "Disable TLS to the OTLP endpoint")
	fs.StringVar(&c.WebhookURL, "webhook", c.WebhookURL, "POST the verdict to this URL")
	fs.StringVar(&c.SlackWebhook, "slack-webhook", c.SlackWebhook, "Slack incoming webhook URL")
	fs.BoolVar(&c.GitHubSummary, "github-summary", c.GitHubSummary, "Write a GitHub Actions step summary")

	// === BASELINE ===
	fs.StringVar(&c.BaselinePath, "baseline", c.BaselinePath, "Compare findings with this baseline file")
	fs.BoolVar(&c.UpdateBaseline, "update-baseline", c.UpdateBaseline, "Rewrite the baseline with this run's findings")

	// === OUTPUT ===
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "Debug logging")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "Verbose (alias)")
	fs.BoolVar(&c.Silent, "silent", c.Silent, "Silent mode - no narration")
	fs.BoolVar(&c.Silent, "s", c.Silent, "Silent (alias)")
	fs.BoolVar(&c.NoColor, "no-color", c.NoColor, "Disable colored output")
	fs.BoolVar(&c.NoColor, "nc", c.NoColor, "No color (alias)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: text or json")
	fs.BoolVar(&c.EventLog, "event-log", c.EventLog, "Write the JSONL event log to the output directory")
}

// Parse builds a RunDescription from args, the environment and an optional
// YAML file. It does not validate. flag.ErrHelp is returned as is.
//
// The YAML file is named by -config (or SCANGATE_CONFIG) and must be
// known before the other layers are applied, so args are parsed twice:
// once to find the file, then onto the merged description.
func Parse(args []string, getenv func(string) string, output io.Writer) (*RunDescription, error) {
	if output == nil {
		output = io.Discard
	}

	configFile := getenv("SCANGATE_CONFIG")
	probe := flag.NewFlagSet("scangate", flag.ContinueOnError)
	probe.SetOutput(io.Discard)
	Defaults().Register(probe)
	probe.StringVar(&configFile, "config", configFile, "")
	probe.StringVar(&configFile, "c", configFile, "")
	_ = probe.Parse(args)

	c := Defaults()
	if configFile != "" {
		if err := c.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := c.ApplyEnv(getenv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("scangate", flag.ContinueOnError)
	fs.SetOutput(output)
	c.Register(fs)
	fs.StringVar(&c.ConfigFile, "config", configFile, "YAML run description")
	fs.StringVar(&c.ConfigFile, "c", configFile, "Config file (alias)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %q", ErrInvalidConfig, fs.Args())
	}
	return c, nil
}
