package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/scangate/scangate/pkg/nexpose"
	"github.com/scangate/scangate/pkg/ui"
)

// Service is the part of the console the pipeline needs.
type Service interface {
	AdhocReport(ctx context.Context, cfg nexpose.AdhocReportConfig) ([]byte, error)
}

// Renderer turns a Set into one output format.
type Renderer interface {
	// Extension is the file extension without the dot, e.g. "csv".
	Extension() string
	Render(w io.Writer, set *Set) error
}

// Options select the optional reports.
type Options struct {
	OutputDir string
	Software  bool
	Policy    bool
	Audit     bool
	XML       bool

	// Echo prints the vulnerability summary rows through Console.
	Echo bool
}

// Generated describes one report written to disk.
type Generated struct {
	Name  string
	Rows  int // -1 for templated exports
	Paths []string
}

// Result holds the structured reports of a run. Optional reports that were
// not requested are nil.
type Result struct {
	Vulnerabilities *Set
	Details         *Set
	Software        *Set
	Policy          *Set
	Files           []string
}

// Pipeline generates a run's reports in a fixed order and stops at the
// first failure.
type Pipeline struct {
	Service Service

	// Renderers receive every structured Set. Each writes <name>.<ext>.
	Renderers []Renderer

	// Console renders the echoed vulnerability rows to Stdout.
	Console Renderer
	Stdout  io.Writer

	// OnReport is called after each report is written.
	OnReport func(Generated)

	Logger *slog.Logger
}

// Generate runs every requested report for the site. Any failure is
// returned wrapped in ErrGeneration; reports already written stay on disk.
func (p *Pipeline) Generate(ctx context.Context, siteID int, siteName string, opts Options) (*Result, error) {
	res := &Result{}
	var err error

	if res.Vulnerabilities, err = p.structured(ctx, Vulnerability, siteID, siteName, opts, res); err != nil {
		return res, err
	}
	if opts.Echo {
		if err := p.echo(res.Vulnerabilities); err != nil {
			return res, err
		}
	}
	if res.Details, err = p.structured(ctx, VulnerabilityDetail, siteID, siteName, opts, res); err != nil {
		return res, err
	}
	if opts.Software {
		if res.Software, err = p.structured(ctx, Software, siteID, siteName, opts, res); err != nil {
			return res, err
		}
	}
	if opts.Policy {
		if res.Policy, err = p.structured(ctx, Policy, siteID, siteName, opts, res); err != nil {
			return res, err
		}
	}
	if opts.Audit {
		if err := p.export(ctx, Audit, siteID, siteName, opts, res); err != nil {
			return res, err
		}
	}
	if opts.XML {
		if err := p.export(ctx, XML, siteID, siteName, opts, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (p *Pipeline) structured(ctx context.Context, def Definition, siteID int, siteName string, opts Options, res *Result) (*Set, error) {
	ui.PrintInfo(fmt.Sprintf("Generating %s report for %s", def.Title, siteName))

	data, err := p.Service.AdhocReport(ctx, SQLConfig(def, siteID))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrGeneration, def.Name, err)
	}
	set, err := Parse(def.Name, data)
	if err != nil {
		return nil, err
	}

	gen := Generated{Name: def.Name, Rows: set.Len()}
	for _, r := range p.Renderers {
		path := filepath.Join(opts.OutputDir, def.Name+"."+r.Extension())
		if err := writeFile(path, func(w io.Writer) error { return r.Render(w, set) }); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrGeneration, path, err)
		}
		gen.Paths = append(gen.Paths, path)
		res.Files = append(res.Files, path)
	}

	orDefault(p.Logger).Debug("report generated",
		slog.String("report", def.Name),
		slog.Int("rows", set.Len()),
		slog.Int("files", len(gen.Paths)))
	p.notify(gen)
	return set, nil
}

func (p *Pipeline) export(ctx context.Context, e Export, siteID int, siteName string, opts Options, res *Result) error {
	ui.PrintInfo(fmt.Sprintf("Generating %s report for %s", e.Title, siteName))

	data, err := p.Service.AdhocReport(ctx, e.Config(siteID))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrGeneration, e.FileName, err)
	}
	path := filepath.Join(opts.OutputDir, e.FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrGeneration, path, err)
	}
	res.Files = append(res.Files, path)
	orDefault(p.Logger).Debug("export written", slog.String("path", path), slog.Int("bytes", len(data)))
	p.notify(Generated{Name: e.FileName, Rows: -1, Paths: []string{path}})
	return nil
}

func (p *Pipeline) echo(set *Set) error {
	if p.Console == nil {
		return nil
	}
	w := p.Stdout
	if w == nil {
		w = os.Stdout
	}
	if err := p.Console.Render(w, set); err != nil {
		return fmt.Errorf("%w: echo: %w", ErrGeneration, err)
	}
	return nil
}

func (p *Pipeline) notify(g Generated) {
	if p.OnReport != nil {
		p.OnReport(g)
	}
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return render(f)
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
