package scan

import "errors"

// Sentinel errors for the scan lifecycle.
var (
	// ErrLaunch indicates the console rejected the scan start request.
	ErrLaunch = errors.New("scan: launch failed")

	// ErrRecoveryExhausted indicates a launch whose response was lost could
	// not be matched to an active scan within the retry budget.
	ErrRecoveryExhausted = errors.New("scan: could not confirm the scan started")

	// ErrPollingExhausted indicates scan statistics could not be fetched for
	// more consecutive attempts than the retry budget allows.
	ErrPollingExhausted = errors.New("scan: too many consecutive status failures")
)
