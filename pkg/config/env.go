package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ApplyEnv overlays environment variables onto c. Empty variables are
// ignored. Console settings use the NEXPOSE_ prefix, tool settings use
// SCANGATE_.
func (c *RunDescription) ApplyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"NEXPOSE_HOST":              &c.Endpoint,
		"NEXPOSE_USER":              &c.Username,
		"NEXPOSE_PASSWORD":          &c.Password,
		"NEXPOSE_SITE":              &c.SiteName,
		"NEXPOSE_TEMPLATE":          &c.TemplateID,
		"NEXPOSE_EXCEPTIONS":        &c.ExceptionSource,
		"SCANGATE_OUTPUT_DIR":       &c.OutputDir,
		"SCANGATE_PROXY":            &c.Proxy,
		"SCANGATE_PUSHGATEWAY":      &c.PushGateway,
		"SCANGATE_OTLP_ENDPOINT":    &c.OTLPEndpoint,
		"SCANGATE_WEBHOOK_URL":      &c.WebhookURL,
		"SCANGATE_SLACK_WEBHOOK":    &c.SlackWebhook,
		"SCANGATE_BASELINE":         &c.BaselinePath,
		"SCANGATE_LOG_FORMAT":       &c.LogFormat,
		"SCANGATE_METRICS_TEXTFILE": &c.MetricsTextfile,
	}
	for key, dst := range str {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := getenv("NEXPOSE_ADDRESSES"); v != "" {
		c.Addresses = splitList(v)
	}

	var errs []string
	ints := map[string]*int{
		"NEXPOSE_PORT":      &c.Port,
		"NEXPOSE_ENGINE_ID": &c.EngineID,
	}
	for key, dst := range ints {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not an integer", key, v))
				continue
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"NEXPOSE_CLEANUP":      &c.Cleanup,
		"SCANGATE_SKIP_VERIFY": &c.SkipVerify,
		"SCANGATE_NO_COLOR":    &c.NoColor,
		"SCANGATE_VERBOSE":     &c.Verbose,
	}
	for key, dst := range bools {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not a boolean", key, v))
				continue
			}
			*dst = b
		}
	}

	if v := strings.TrimSpace(getenv("SCANGATE_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SCANGATE_TIMEOUT=%q is not a duration", v))
		} else {
			c.Timeout = d
		}
	}
	if v := strings.TrimSpace(getenv("SCANGATE_RATE_LIMIT")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SCANGATE_RATE_LIMIT=%q is not a number", v))
		} else {
			c.RateLimit = f
		}
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
