package exceptions

import "errors"

// ErrUnavailable is returned when the exception list cannot be read.
var ErrUnavailable = errors.New("exceptions: list unavailable")
