// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	sleeper.Sleep(ctx, duration.PollInterval)
//	Timeout: duration.HTTPAPI,
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// SCAN LIFECYCLE
// ============================================================================
//
// The launcher sleeps before every statistics fetch and before every
// recovery probe. Both intervals are fixed; there is no backoff growth.
// ============================================================================

const (
	// PollInterval is the delay before each scan statistics fetch (3s)
	PollInterval = 3 * time.Second

	// RecoveryDelay is the delay before each scan history probe after a
	// launch whose response was lost (3s)
	RecoveryDelay = 3 * time.Second
)

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================
//
// These match the presets in pkg/httpclient and are re-exported here for
// packages that need timeout values without importing httpclient.
// ============================================================================

const (
	// HTTPProbing is for exception list fetches (5s)
	HTTPProbing = 5 * time.Second

	// HTTPAPI is for engine XML API calls (60s)
	HTTPAPI = 60 * time.Second

	// HTTPReports is for ad-hoc report generation, which the console
	// renders synchronously (5min)
	HTTPReports = 5 * time.Minute
)

// ============================================================================
// HOOK TIMEOUTS
// ============================================================================
//
// Hooks run after the verdict and must never hold the pipeline hostage.
// ============================================================================

const (
	// WebhookTimeout bounds a single webhook or Slack delivery (10s)
	WebhookTimeout = 10 * time.Second

	// HookShutdown bounds span export and gateway pushes at exit (5s)
	HookShutdown = 5 * time.Second

	// RetryFast is the delay between hook delivery attempts (1s)
	RetryFast = 1 * time.Second

	// SignalGrace is how long a second interrupt aborts instead of waiting
	// for logout and hook delivery (30s)
	SignalGrace = 30 * time.Second
)

// ============================================================================
// NETWORK/TRANSPORT
// ============================================================================
//
// Use these for low-level network configuration.
// ============================================================================

const (
	// DialTimeout is for establishing TCP connections (10s)
	DialTimeout = 10 * time.Second

	// KeepAlive is for TCP keep-alive interval (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is for idle connection pool timeout (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is for TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second
)
