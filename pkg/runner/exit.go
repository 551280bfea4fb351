package runner

import (
	"context"
	"errors"

	"github.com/scangate/scangate/pkg/config"
	"github.com/scangate/scangate/pkg/output/exitcode"
)

// RecordError marks m with the outcome err stands for. A nil error records
// nothing.
func RecordError(m *exitcode.Manager, err error) {
	switch {
	case err == nil:
	case isInterrupt(err):
		m.SetInterrupted()
	case errors.Is(err, ErrValidation),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrMissingRequired):
		m.SetConfigError()
	case errors.Is(err, ErrConnection):
		m.SetConnectionError()
	case errors.Is(err, ErrVulnerabilitiesFound):
		// the count is recorded from the verdict
	default:
		m.SetFailure()
	}
}

// ExitCode returns the exit code for a run that ended with err.
func ExitCode(err error) (exitcode.Code, string) {
	m := exitcode.New()
	RecordError(m, err)
	if errors.Is(err, ErrVulnerabilitiesFound) {
		m.RecordVulnerabilities(1)
	}
	return m.ExitCode()
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}
