//go:build windows

package main

import (
	"golang.org/x/sys/windows"
)

// Switch the console to UTF-8 so box-drawing report tables render, and
// enable ANSI colour sequences on Windows 10+ terminals.
func init() {
	const cpUTF8 = 65001
	_ = windows.SetConsoleOutputCP(cpUTF8)

	for _, std := range []uint32{windows.STD_OUTPUT_HANDLE, windows.STD_ERROR_HANDLE} {
		h, err := windows.GetStdHandle(std)
		if err != nil {
			continue
		}
		var mode uint32
		if windows.GetConsoleMode(h, &mode) == nil {
			_ = windows.SetConsoleMode(h, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
		}
	}
}
