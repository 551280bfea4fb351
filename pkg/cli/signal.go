// Package cli holds process-level helpers shared by the scangate command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scangate/scangate/pkg/output/exitcode"
)

// SignalContext returns a child of parent that is cancelled on SIGINT or
// SIGTERM. Cancellation lets the run log out of the console and flush its
// hooks. A second signal within gracePeriod exits immediately with
// exitcode.Interrupted.
func SignalContext(parent context.Context, gracePeriod time.Duration, msg io.Writer) (context.Context, context.CancelFunc) {
	return signalContext(parent, gracePeriod, msg, nil, nil)
}

// signalContext is SignalContext with the signal channel and os.Exit
// replaceable for tests.
func signalContext(
	parent context.Context,
	gracePeriod time.Duration,
	msg io.Writer,
	sigChan chan os.Signal,
	exitFn func(int),
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if msg == nil {
		msg = io.Discard
	}

	ownChannel := sigChan == nil
	if ownChannel {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}
	if exitFn == nil {
		exitFn = os.Exit
	}

	go func() {
		defer func() {
			if ownChannel {
				signal.Stop(sigChan)
			}
		}()

		select {
		case sig := <-sigChan:
			fmt.Fprintf(msg, "\n%s received, logging out of the console (again to abort)...\n", sig)
			cancel()
		case <-ctx.Done():
			return
		}

		timer := time.NewTimer(gracePeriod)
		defer timer.Stop()
		select {
		case <-sigChan:
			exitFn(int(exitcode.Interrupted))
		case <-timer.C:
		}
	}()

	return ctx, cancel
}
