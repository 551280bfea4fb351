package runner

import "errors"

// Sentinel errors for the run's failure modes. Component errors are wrapped
// with these, so both stay matchable with errors.Is.
var (
	// ErrValidation indicates the run description is incomplete or invalid.
	ErrValidation = errors.New("runner: invalid run description")

	// ErrConnection indicates the console could not be reached or rejected
	// the credentials.
	ErrConnection = errors.New("runner: console connection failed")

	// ErrProvisioning indicates the site could not be listed, loaded or saved.
	ErrProvisioning = errors.New("runner: provisioning failed")

	// ErrScanLaunch indicates the console refused to start the scan.
	ErrScanLaunch = errors.New("runner: scan launch failed")

	// ErrLaunchRecoveryExhausted indicates a lost launch response could not
	// be matched to an active scan.
	ErrLaunchRecoveryExhausted = errors.New("runner: scan launch could not be confirmed")

	// ErrPollingExhausted indicates scan status could not be read for too
	// many consecutive attempts.
	ErrPollingExhausted = errors.New("runner: scan status polling failed")

	// ErrReportGeneration indicates a report could not be generated or
	// written.
	ErrReportGeneration = errors.New("runner: report generation failed")

	// ErrExceptionList indicates the exception list could not be loaded.
	ErrExceptionList = errors.New("runner: exception list unavailable")

	// ErrVulnerabilitiesFound indicates the verification gate failed.
	ErrVulnerabilitiesFound = errors.New("runner: vulnerabilities found")
)

// errorTypes names each sentinel in error events.
var errorTypes = []struct {
	err  error
	name string
}{
	{ErrValidation, "validation"},
	{ErrConnection, "connection"},
	{ErrProvisioning, "provisioning"},
	{ErrScanLaunch, "scan_launch"},
	{ErrLaunchRecoveryExhausted, "launch_recovery_exhausted"},
	{ErrPollingExhausted, "polling_exhausted"},
	{ErrReportGeneration, "report_generation"},
	{ErrExceptionList, "exception_list"},
	{ErrVulnerabilitiesFound, "vulnerabilities_found"},
}

// ErrorType returns the machine-readable name of the sentinel err wraps,
// "interrupted" for a cancelled run, or "unknown".
func ErrorType(err error) string {
	for _, t := range errorTypes {
		if errors.Is(err, t.err) {
			return t.name
		}
	}
	if isInterrupt(err) {
		return "interrupted"
	}
	return "unknown"
}
