package main

import (
	"github.com/scangate/scangate/pkg/runner"
	"github.com/scangate/scangate/pkg/ui"
)

// exitWithError prints err and returns the exit code it maps to.
func exitWithError(err error) int {
	ui.PrintError(err.Error())
	code, _ := runner.ExitCode(err)
	return int(code)
}
