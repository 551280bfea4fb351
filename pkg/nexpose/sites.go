package nexpose

import (
	"context"
	"fmt"
)

// Sites lists every site visible to the session.
func (c *Client) Sites(ctx context.Context) ([]SiteSummary, error) {
	sid, err := c.session()
	if err != nil {
		return nil, err
	}
	var resp siteListingResponse
	if err := c.execute(ctx, "SiteListingRequest", siteListingRequest{SessionID: sid}, &resp); err != nil {
		return nil, err
	}
	out := make([]SiteSummary, 0, len(resp.Sites))
	for _, s := range resp.Sites {
		out = append(out, SiteSummary{ID: s.ID, Name: s.Name, Description: s.Description})
	}
	return out, nil
}

// LoadSite fetches the full configuration of a site.
func (c *Client) LoadSite(ctx context.Context, id int) (*Site, error) {
	sid, err := c.session()
	if err != nil {
		return nil, err
	}
	var resp siteConfigResponse
	if err := c.execute(ctx, "SiteConfigRequest", siteConfigRequest{SessionID: sid, SiteID: id}, &resp); err != nil {
		return nil, err
	}
	if resp.Site.Name == "" {
		return nil, fmt.Errorf("%w: SiteConfigRequest returned no site for id %d", ErrMalformedResponse, id)
	}
	return siteFromXML(resp.Site), nil
}

// SaveSite creates or updates a site and stores the assigned id on it.
func (c *Client) SaveSite(ctx context.Context, site *Site) error {
	sid, err := c.session()
	if err != nil {
		return err
	}
	var resp siteSaveResponse
	req := siteSaveRequest{SessionID: sid, Site: site.toXML()}
	if err := c.execute(ctx, "SiteSaveRequest", req, &resp); err != nil {
		return err
	}
	if resp.SiteID <= 0 {
		return fmt.Errorf("%w: SiteSaveRequest returned site-id %d", ErrMalformedResponse, resp.SiteID)
	}
	site.ID = resp.SiteID
	return nil
}

// SiteDevices lists the assets recorded against a site.
func (c *Client) SiteDevices(ctx context.Context, siteID int) ([]Device, error) {
	sid, err := c.session()
	if err != nil {
		return nil, err
	}
	var resp siteDeviceListingResponse
	if err := c.execute(ctx, "SiteDeviceListingRequest", siteDeviceListingRequest{SessionID: sid, SiteID: siteID}, &resp); err != nil {
		return nil, err
	}
	var out []Device
	for _, sd := range resp.SiteDevices {
		for _, d := range sd.Devices {
			out = append(out, Device{ID: d.ID, Address: d.Address})
		}
	}
	return out, nil
}

// DeleteDevice removes an asset and its scan data.
func (c *Client) DeleteDevice(ctx context.Context, deviceID int) error {
	sid, err := c.session()
	if err != nil {
		return err
	}
	return c.execute(ctx, "DeviceDeleteRequest", deviceDeleteRequest{SessionID: sid, DeviceID: deviceID}, nil)
}
