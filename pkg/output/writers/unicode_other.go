//go:build !windows

package writers

import "io"

// unicodeSupported reports whether box-drawing separators are safe for w.
// Unix terminals are assumed to be UTF-8.
func unicodeSupported(io.Writer) bool { return true }
