// Package retry holds the retry primitives shared by the scan lifecycle and
// the notification hooks.
//
// Two shapes are supported:
//   - Budget: a consecutive-failure counter for loops that keep going on
//     success (statistics polling, launch recovery). Success resets it.
//   - Do: a bounded attempt loop with Exponential, Linear or Constant
//     backoff for one-shot deliveries (webhooks, gateway pushes).
//
// Both sleep through a Sleeper, so tests can observe delays without waiting.
//
// Usage:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return hook.deliver(ctx, body)
//	})
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/scangate/scangate/pkg/duration"
)

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f(ctx, d).
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// RealSleeper uses a timer for production code.
type RealSleeper struct{}

// Sleep blocks for d. It returns ctx.Err() if the context ends first.
func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OrReal returns s, or RealSleeper when s is nil.
func OrReal(s Sleeper) Sleeper {
	if s == nil {
		return RealSleeper{}
	}
	return s
}

// Budget counts consecutive failures against a fixed allowance.
// The zero value has no allowance; the first failure exhausts it.
type Budget struct {
	max         int
	consecutive int
}

// NewBudget returns a budget that tolerates max consecutive failures.
func NewBudget(max int) *Budget {
	if max < 0 {
		max = 0
	}
	return &Budget{max: max}
}

// Fail records a failure and reports whether the allowance is now exceeded.
// With max = 5, the sixth consecutive failure returns true.
func (b *Budget) Fail() bool {
	b.consecutive++
	return b.consecutive > b.max
}

// Reset clears the consecutive count after a success.
func (b *Budget) Reset() { b.consecutive = 0 }

// Consecutive returns the current run of failures.
func (b *Budget) Consecutive() int { return b.consecutive }

// Strategy defines the backoff algorithm.
type Strategy int

const (
	// Exponential doubles the delay each attempt: initDelay * 2^attempt.
	Exponential Strategy = iota
	// Linear increases the delay linearly: initDelay * (attempt+1).
	Linear
	// Constant uses the same delay between every attempt.
	Constant
)

// Config controls retry behaviour.
type Config struct {
	MaxAttempts int           // Total attempts (including the first). 0 means no-op.
	InitDelay   time.Duration // Base delay before first retry.
	MaxDelay    time.Duration // Upper bound on any single delay.
	Strategy    Strategy      // Backoff algorithm.
	Jitter      bool          // Add ±25% random jitter to each delay.
	Sleeper     Sleeper       // nil uses RealSleeper.
}

// DefaultConfig returns 3 attempts with exponential backoff from
// duration.RetryFast, capped at duration.WebhookTimeout, with jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitDelay:   duration.RetryFast,
		MaxDelay:    duration.WebhookTimeout,
		Strategy:    Exponential,
		Jitter:      true,
	}
}

// StopError wraps an error to signal that retrying should stop immediately.
// Use this when the caller knows the error is permanent (e.g. 4xx HTTP status).
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop wraps err so that Do returns it without further retries.
func Stop(err error) error {
	return &StopError{Err: err}
}

// Do executes fn up to cfg.MaxAttempts times, sleeping between failures
// according to the configured strategy. It returns nil on the first
// successful call, or the last error if all attempts fail. If the context
// is cancelled, ctx.Err() is returned immediately.
//
// If fn returns a StopError, Do returns the wrapped error without retrying.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		return nil
	}
	s := OrReal(cfg.Sleeper)

	var lastErr error
	for attempt := range cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var stop *StopError
		if errors.As(lastErr, &stop) {
			return stop.Err
		}

		if attempt < cfg.MaxAttempts-1 {
			if err := s.Sleep(ctx, CalcDelay(cfg, attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// CalcDelay computes the sleep duration for a given attempt (0-indexed).
// The result is always within [0, cfg.MaxDelay].
func CalcDelay(cfg Config, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	var f float64
	switch cfg.Strategy {
	case Exponential:
		f = float64(cfg.InitDelay) * math.Pow(2, float64(attempt))
	case Linear:
		f = float64(cfg.InitDelay) * float64(attempt+1)
	case Constant:
		f = float64(cfg.InitDelay)
	}

	delay := cfg.MaxDelay
	if !math.IsInf(f, 0) && !math.IsNaN(f) && f < float64(cfg.MaxDelay) {
		delay = time.Duration(f)
	}

	if cfg.Jitter && delay > 0 {
		quarter := int64(delay) / 4
		if quarter > 0 {
			j := time.Duration(rand.Int64N(quarter))
			if rand.IntN(2) == 0 {
				delay += j
			} else {
				delay -= j
			}
		}
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
