//go:build windows

package writers

import (
	"io"
	"os"

	"golang.org/x/sys/windows"
	"golang.org/x/term"
)

// unicodeSupported reports whether box-drawing separators are safe for w.
// In-memory writers always are. A console qualifies only when it is a
// terminal with the UTF-8 output code page; piped output is re-encoded by
// the shell and falls back to ASCII.
func unicodeSupported(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return true
	}
	if !term.IsTerminal(int(f.Fd())) {
		return false
	}
	const utf8CodePage = 65001
	cp, err := windows.GetConsoleOutputCP()
	return err == nil && cp == utf8CodePage
}
