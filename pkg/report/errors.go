package report

import "errors"

// ErrGeneration indicates a report could not be generated, parsed, rendered
// or written.
var ErrGeneration = errors.New("report: generation failed")
