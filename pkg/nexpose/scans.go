package nexpose

import (
	"context"
	"errors"
	"fmt"
)

// StartScan asks the console to scan a site.
//
// When the connection drops before the console answers, StartScan returns
// an unconfirmed LaunchResult and no error: the scan may have started and
// the caller decides how to find out. Every other failure is an error.
func (c *Client) StartScan(ctx context.Context, siteID int) (LaunchResult, error) {
	sid, err := c.session()
	if err != nil {
		return LaunchResult{}, err
	}
	var resp siteScanResponse
	err = c.execute(ctx, "SiteScanRequest", siteScanRequest{SessionID: sid, SiteID: siteID}, &resp)
	if errors.Is(err, ErrDisconnected) {
		c.logger.Warn("scan start response lost", "site_id", siteID)
		return LaunchResult{Confirmed: false}, nil
	}
	if err != nil {
		return LaunchResult{}, err
	}
	if resp.Scan.ScanID <= 0 {
		return LaunchResult{}, fmt.Errorf("%w: SiteScanRequest returned scan-id %d", ErrMalformedResponse, resp.Scan.ScanID)
	}
	return LaunchResult{Confirmed: true, ScanID: resp.Scan.ScanID, EngineID: resp.Scan.EngineID}, nil
}

// LatestScan returns the most recent entry of a site's scan history. The
// console lists history oldest first. A site that was never scanned yields
// ErrEmptyHistory.
func (c *Client) LatestScan(ctx context.Context, siteID int) (ScanSummary, error) {
	sid, err := c.session()
	if err != nil {
		return ScanSummary{}, err
	}
	var resp siteScanHistoryResponse
	if err := c.execute(ctx, "SiteScanHistoryRequest", siteScanHistoryRequest{SessionID: sid, SiteID: siteID}, &resp); err != nil {
		return ScanSummary{}, err
	}
	if len(resp.Scans) == 0 {
		return ScanSummary{}, ErrEmptyHistory
	}
	return resp.Scans[len(resp.Scans)-1].summary(), nil
}

// ScanStatistics returns the current status and task counts of a scan.
func (c *Client) ScanStatistics(ctx context.Context, scanID int) (ScanSummary, error) {
	sid, err := c.session()
	if err != nil {
		return ScanSummary{}, err
	}
	var resp scanStatisticsResponse
	if err := c.execute(ctx, "ScanStatisticsRequest", scanStatisticsRequest{SessionID: sid, ScanID: scanID}, &resp); err != nil {
		return ScanSummary{}, err
	}
	if resp.Scan.ScanID == 0 && resp.Scan.Status == "" {
		return ScanSummary{}, fmt.Errorf("%w: ScanStatisticsRequest returned no summary for scan %d", ErrMalformedResponse, scanID)
	}
	return resp.Scan.summary(), nil
}
