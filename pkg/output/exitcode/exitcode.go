// Package exitcode provides semantic exit codes for CI/CD integration.
//
// Exit codes:
//   - 0: Success (no findings, or every finding is an accepted exception)
//   - 1: Vulnerabilities found
//   - 2: Scan or report failure (provisioning, launch, polling, reports,
//     exception list)
//   - 3: Invalid configuration
//   - 4: Console unreachable or authentication failed
//   - 5: Run interrupted
package exitcode

import (
	"fmt"
	"sync"
)

// Code represents a semantic exit code for CI/CD pipelines.
type Code int

const (
	// Success indicates the run passed verification.
	Success Code = 0
	// Vulnerabilities indicates verification failed.
	Vulnerabilities Code = 1
	// Failure indicates a scan lifecycle or report step failed.
	Failure Code = 2
	// Configuration indicates invalid configuration was provided.
	Configuration Code = 3
	// Connection indicates the console was unreachable or rejected the login.
	Connection Code = 4
	// Interrupted indicates the run was interrupted (e.g., SIGINT).
	Interrupted Code = 5
)

var codeStrings = map[Code]string{
	Success:         "success",
	Vulnerabilities: "vulnerabilities_found",
	Failure:         "scan_failure",
	Configuration:   "invalid_configuration",
	Connection:      "console_unreachable",
	Interrupted:     "run_interrupted",
}

var codeDescriptions = map[Code]string{
	Success:         "Run completed and passed verification",
	Vulnerabilities: "Vulnerabilities found that are not accepted exceptions",
	Failure:         "Scan or report generation failed",
	Configuration:   "Invalid configuration provided",
	Connection:      "Console is unreachable or rejected the credentials",
	Interrupted:     "Run was interrupted by user or signal",
}

// Manager tracks run outcomes and determines the exit code.
type Manager struct {
	mu sync.Mutex

	vulnerabilities int
	failure         bool
	configError     bool
	connError       bool
	interrupted     bool
}

// New creates an exit code manager.
func New() *Manager {
	return &Manager{}
}

// RecordVulnerabilities records unaccepted findings.
func (m *Manager) RecordVulnerabilities(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vulnerabilities += n
}

// SetFailure marks a scan lifecycle or report failure.
func (m *Manager) SetFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = true
}

// SetConfigError marks that a configuration error occurred.
func (m *Manager) SetConfigError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configError = true
}

// SetConnectionError marks that the console was unreachable.
func (m *Manager) SetConnectionError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connError = true
}

// SetInterrupted marks that the run was interrupted.
func (m *Manager) SetInterrupted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interrupted = true
}

// ExitCode returns the exit code for the recorded outcomes and a
// human-readable reason.
//
// Priority order (highest to lowest):
//  1. Interrupted
//  2. Configuration error
//  3. Connection error
//  4. Scan or report failure
//  5. Vulnerabilities found
//  6. Success
func (m *Manager) ExitCode() (Code, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.interrupted:
		return Interrupted, codeDescriptions[Interrupted]
	case m.configError:
		return Configuration, codeDescriptions[Configuration]
	case m.connError:
		return Connection, codeDescriptions[Connection]
	case m.failure:
		return Failure, codeDescriptions[Failure]
	case m.vulnerabilities > 0:
		return Vulnerabilities, fmt.Sprintf("%s (count: %d)", codeDescriptions[Vulnerabilities], m.vulnerabilities)
	}
	return Success, codeDescriptions[Success]
}

// Reset clears all recorded outcomes.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vulnerabilities = 0
	m.failure = false
	m.configError = false
	m.connError = false
	m.interrupted = false
}

// CodeString returns the machine-readable name of an exit code.
func CodeString(code Code) string {
	if s, ok := codeStrings[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown_code_%d", code)
}

// CodeDescription returns a detailed description of an exit code.
func CodeDescription(code Code) string {
	if s, ok := codeDescriptions[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown exit code: %d", code)
}
