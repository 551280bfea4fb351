// Command scangate provisions a Nexpose site, scans it, writes the reports
// and fails the pipeline on findings that are not on the exception list.
//
// Usage:
//
//	scangate [run] -endpoint console.example.com -site ci-$BUILD -address 10.0.0.5 \
//	    -template full-audit-without-web-spider -exceptions https://example.com/exceptions.txt
//	scangate version
//
// Credentials are best passed as NEXPOSE_USER and NEXPOSE_PASSWORD.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/scangate/scangate/pkg/cli"
	"github.com/scangate/scangate/pkg/config"
	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/duration"
	"github.com/scangate/scangate/pkg/output/exitcode"
	"github.com/scangate/scangate/pkg/runner"
	"github.com/scangate/scangate/pkg/ui"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	if len(args) > 0 {
		switch args[0] {
		case "version", "-version", "--version":
			fmt.Fprintf(stdout, "%s %s\n", defaults.ToolName, defaults.Version)
			return int(exitcode.Success)
		case "help", "-h", "-help", "--help":
			printUsage(stderr)
			return int(exitcode.Success)
		case "run":
			args = args[1:]
		}
	}

	cfg, err := config.Parse(args, getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return int(exitcode.Success)
	}
	if err != nil {
		return exitWithError(err)
	}

	ui.SetSilent(cfg.Silent)
	ui.SetNoColor(cfg.NoColor)
	logger := newLogger(stderr, cfg.LogFormat, cfg.Verbose)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return exitWithError(fmt.Errorf("%w: %w", runner.ErrValidation, err))
	}

	ui.PrintBanner()
	printRunConfig(cfg)

	ctx, cancel := cli.SignalContext(ctx, duration.SignalGrace, stderr)
	defer cancel()

	r, err := runner.New(cfg, runner.Options{Stdout: stdout, Logger: logger})
	if err != nil {
		return exitWithError(err)
	}
	out, runErr := r.Run(ctx)

	closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), duration.HookShutdown)
	defer closeCancel()
	if err := r.Close(closeCtx); err != nil {
		logger.Warn("closing outputs", slog.String("error", err.Error()))
	}

	printSummary(out, runErr)
	return int(out.ExitCode)
}

func printRunConfig(cfg *config.RunDescription) {
	red := cfg.Redacted()
	ui.PrintSection("Run")
	ui.PrintConfigLine("Console", red.Endpoint+":"+strconv.Itoa(red.Port))
	ui.PrintConfigLine("User", red.Username)
	ui.PrintConfigLine("Site", red.SiteName)
	ui.PrintConfigLine("Addresses", strings.Join(red.Addresses, ", "))
	ui.PrintConfigLine("Template", red.TemplateID)
	if red.EngineID > 0 {
		ui.PrintConfigLine("Engine", strconv.Itoa(red.EngineID))
	}
	exceptions := red.ExceptionSource
	if exceptions == "" {
		exceptions = "(none)"
	}
	ui.PrintConfigLine("Exceptions", exceptions)
	ui.PrintConfigLine("Output", red.OutputDir)
	if red.ConfigFile != "" {
		ui.PrintConfigLine("Config file", red.ConfigFile)
	}
}

func printSummary(out *runner.Outcome, err error) {
	ui.PrintSection("Result")
	if out.Verdict != nil {
		ui.PrintConfigLine("Findings", strconv.Itoa(out.Verdict.Findings))
		if n := len(out.Verdict.Unrecognized); n > 0 {
			ui.PrintConfigLine("Not excepted", strconv.Itoa(n))
		}
		if out.Verdict.ArtifactPath != "" {
			ui.PrintConfigLine("Artifact", out.Verdict.ArtifactPath)
		}
	}
	ui.PrintConfigLine("Exit", fmt.Sprintf("%d (%s)", out.ExitCode, exitcode.CodeString(out.ExitCode)))
	switch {
	case err == nil:
		ui.PrintSuccess(out.Reason)
	case errors.Is(err, runner.ErrVulnerabilitiesFound):
		ui.PrintError(out.Reason)
	default:
		ui.PrintError(fmt.Sprintf("%s: %s", runner.ErrorType(err), out.Reason))
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s %s - Nexpose scan gate for CI pipelines

Usage:
  %s [run] [flags]
  %s version

Required (flag, env or -config file):
  -endpoint   NEXPOSE_HOST       console host or URL
  -username   NEXPOSE_USER       console user
  -password   NEXPOSE_PASSWORD   console password
  -site       NEXPOSE_SITE       site name, reused when it exists
  -address    NEXPOSE_ADDRESSES  address(es) to scan
  -template   NEXPOSE_TEMPLATE   scan template id

Exit codes:
`, defaults.ToolNameDisplay, defaults.Version, defaults.ToolName, defaults.ToolName)
	for _, code := range []exitcode.Code{
		exitcode.Success, exitcode.Vulnerabilities, exitcode.Failure,
		exitcode.Configuration, exitcode.Connection, exitcode.Interrupted,
	} {
		fmt.Fprintf(w, "  %d  %s\n", code, exitcode.CodeString(code))
	}
	fmt.Fprintf(w, "\nRun '%s run -h' for every flag.\n", defaults.ToolName)
}
