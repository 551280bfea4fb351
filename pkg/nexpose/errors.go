package nexpose

import (
	"errors"
	"fmt"
)

// Sentinel errors for console failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrDisconnected indicates the console closed the stream before a
	// response was read. The request may or may not have taken effect.
	ErrDisconnected = errors.New("nexpose: connection closed before response")

	// ErrNotLoggedIn indicates a call was made without a session.
	ErrNotLoggedIn = errors.New("nexpose: not logged in")

	// ErrMalformedResponse indicates the console answered with content that
	// does not parse as the expected document.
	ErrMalformedResponse = errors.New("nexpose: malformed response")

	// ErrEmptyHistory indicates a site has no scan history yet.
	ErrEmptyHistory = errors.New("nexpose: site has no scan history")

	// ErrNoReportContent indicates an ad-hoc report response carried no
	// report part.
	ErrNoReportContent = errors.New("nexpose: report response has no content part")
)

// APIError is a failure reported by the console, either as an HTTP error
// status or as a Failure envelope in the response document.
type APIError struct {
	Op         string // request element, e.g. "SiteSaveRequest"
	StatusCode int    // HTTP status; 200 for envelope failures
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("nexpose: %s failed (HTTP %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("nexpose: %s failed: %s", e.Op, e.Message)
}

// IsAuthFailure reports whether err is a rejected login or an expired session.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Op == "LoginRequest" || apiErr.StatusCode == 401 || apiErr.StatusCode == 403
}
