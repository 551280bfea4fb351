// Package cleanup removes the assets a run scanned from the console so the
// next run starts from an empty asset list.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scangate/scangate/pkg/nexpose"
	"github.com/scangate/scangate/pkg/provision"
	"github.com/scangate/scangate/pkg/ui"
)

// ErrSiteNotFound indicates the site disappeared between the scan and the
// cleanup.
var ErrSiteNotFound = errors.New("cleanup: site not found")

// Service is the part of the console cleanup needs.
type Service interface {
	Sites(ctx context.Context) ([]nexpose.SiteSummary, error)
	SiteDevices(ctx context.Context, siteID int) ([]nexpose.Device, error)
	DeleteDevice(ctx context.Context, deviceID int) error
}

// Agent deletes scanned devices.
type Agent struct {
	Service Service
	Logger  *slog.Logger
}

// Result summarizes one cleanup.
type Result struct {
	Deleted []string // addresses removed
	Missing []string // configured addresses with no device
}

// Run finds the site by name and deletes every device whose address is one
// of addresses. It keeps going after a failed delete; the returned error
// joins every failure.
func (a *Agent) Run(ctx context.Context, siteName string, addresses []string) (Result, error) {
	var res Result
	log := orDefault(a.Logger)

	sites, err := a.Service.Sites(ctx)
	if err != nil {
		return res, fmt.Errorf("cleanup: list sites: %w", err)
	}
	site, found := provision.FindByName(sites, siteName)
	if !found {
		return res, fmt.Errorf("%w: %s", ErrSiteNotFound, siteName)
	}

	devices, err := a.Service.SiteDevices(ctx, site.ID)
	if err != nil {
		return res, fmt.Errorf("cleanup: list devices of site %d: %w", site.ID, err)
	}
	byAddr := make(map[string][]nexpose.Device, len(devices))
	for _, d := range devices {
		byAddr[d.Address] = append(byAddr[d.Address], d)
	}

	var errs []error
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		matches := byAddr[addr]
		if len(matches) == 0 {
			res.Missing = append(res.Missing, addr)
			log.Debug("no device for address", slog.String("address", addr), slog.Int("site_id", site.ID))
			continue
		}
		for _, d := range matches {
			ui.PrintInfo(fmt.Sprintf("Deleting device %s (%d)", addr, d.ID))
			if err := a.Service.DeleteDevice(ctx, d.ID); err != nil {
				errs = append(errs, fmt.Errorf("cleanup: delete device %d (%s): %w", d.ID, addr, err))
				continue
			}
			res.Deleted = append(res.Deleted, addr)
		}
		delete(byAddr, addr)
	}
	return res, errors.Join(errs...)
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
