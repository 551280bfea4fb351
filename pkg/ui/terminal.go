package ui

import (
	"os"
	"runtime"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/term"
)

var (
	unicodeOnce sync.Once
	unicodeOK   bool
)

// UnicodeTerminal reports whether stderr can render Unicode glyphs. Piped
// output, TERM=dumb and legacy Windows consoles cannot, so CI logs stay
// plain.
func UnicodeTerminal() bool {
	unicodeOnce.Do(func() {
		switch {
		case os.Getenv("TERM") == "dumb", !term.IsTerminal(int(os.Stderr.Fd())):
		case runtime.GOOS == "windows":
			unicodeOK = os.Getenv("WT_SESSION") != ""
		default:
			unicodeOK = true
		}
	})
	return unicodeOK
}

// asciiFolds maps the typographic punctuation common in advisory titles and
// summaries to plain ASCII.
var asciiFolds = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201c", `"`, "\u201d", `"`,
	"\u2013", "-", "\u2014", "-", "\u2026", "...", "\u00a0", " ",
	"\u2022", "*", "\u2713", "+", "\u2714", "+", "\u2717", "x",
)

// SanitizeString makes s safe for a terminal without Unicode support:
// typographic punctuation is folded to ASCII, Latin letters are kept, and
// other symbols are dropped. On a Unicode terminal s is returned as is.
// Print* functions apply it to every line.
func SanitizeString(s string) string {
	if UnicodeTerminal() {
		return s
	}
	return foldForLegacy(s)
}

func foldForLegacy(s string) string {
	s = asciiFolds.Replace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x80, r <= 0xFF && unicode.IsPrint(r), unicode.Is(unicode.Latin, r):
			return r
		default:
			return -1
		}
	}, s)
}
