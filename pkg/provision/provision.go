// Package provision makes sure a named site exists on the console with
// every address the run needs to scan.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scangate/scangate/pkg/nexpose"
	"github.com/scangate/scangate/pkg/ui"
)

// Service is the part of the console the provisioner needs.
type Service interface {
	Sites(ctx context.Context) ([]nexpose.SiteSummary, error)
	LoadSite(ctx context.Context, id int) (*nexpose.Site, error)
	SaveSite(ctx context.Context, site *nexpose.Site) error
}

// Request describes the site a run scans.
type Request struct {
	SiteName   string
	Addresses  []string
	TemplateID string
	EngineID   int // 0 keeps the console's choice
}

// Provisioner reuses or creates sites.
type Provisioner struct {
	Service Service
	Logger  *slog.Logger
}

// FindByName returns the first site whose name equals name exactly.
func FindByName(sites []nexpose.SiteSummary, name string) (nexpose.SiteSummary, bool) {
	for _, s := range sites {
		if s.Name == name {
			return s, true
		}
	}
	return nexpose.SiteSummary{}, false
}

// Provision returns the saved site for req. An existing site with the same
// name is loaded and keeps its hosts; configured addresses are added to it.
// Every failure wraps ErrProvisioning.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*nexpose.Site, error) {
	log := orDefault(p.Logger)

	sites, err := p.Service.Sites(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list sites: %w", ErrProvisioning, err)
	}

	var site *nexpose.Site
	if existing, found := FindByName(sites, req.SiteName); found {
		ui.PrintInfo("Using existing site " + existing.Name)
		site, err = p.Service.LoadSite(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: load site %d: %w", ErrProvisioning, existing.ID, err)
		}
	} else {
		ui.PrintInfo("Creating site " + req.SiteName)
		site = nexpose.NewSite(req.SiteName, req.TemplateID)
	}

	added := 0
	for _, addr := range req.Addresses {
		if site.AddHost(addr) {
			added++
		}
	}
	if req.EngineID > 0 {
		site.EngineID = req.EngineID
	}

	if err := p.Service.SaveSite(ctx, site); err != nil {
		return nil, fmt.Errorf("%w: save site %q: %w", ErrProvisioning, site.Name, err)
	}

	log.Debug("site provisioned",
		slog.Int("site_id", site.ID),
		slog.Int("hosts", len(site.Hosts)),
		slog.Int("added", added),
		slog.Int("engine_id", site.EngineID))
	ui.PrintSuccess(fmt.Sprintf("Saved site %s with host(s) %s", site.Name, strings.Join(req.Addresses, ", ")))
	return site, nil
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
