package report

import (
	"fmt"
	"strconv"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/nexpose"
)

// Definition is a structured report: a SQL query over the console's
// reporting data model, scoped to one site when built.
type Definition struct {
	Name    string // base file name, no extension
	Title   string // narration label
	Query   string // SELECT ... FROM ... without a WHERE clause
	OrderBy string // optional, appended after the site condition
}

// Structured reports. The vulnerability summary keeps the title in the
// second column; the verification gate falls back to that position.
var (
	Vulnerability = Definition{
		Name:  defaults.VulnerabilityReportName,
		Title: "Vulnerability",
		Query: "SELECT DISTINCT da.ip_address, dv.title, dv.date_published, dv.severity, " +
			"ds.summary, proofAsText(ds.fix) AS fix " +
			"FROM fact_asset_vulnerability_finding favf " +
			"JOIN dim_asset da USING (asset_id) " +
			"JOIN dim_site_asset dsa USING (asset_id) " +
			"JOIN dim_vulnerability dv USING (vulnerability_id) " +
			"JOIN dim_vulnerability_solution dvs USING (vulnerability_id) " +
			"JOIN dim_solution ds USING (solution_id)",
	}

	VulnerabilityDetail = Definition{
		Name:  defaults.VulnerabilityDetailReportName,
		Title: "Vulnerability Detail",
		Query: "SELECT da.ip_address, da.host_name, dv.nexpose_id, dv.title, dv.severity, " +
			"dv.cvss_score, dv.riskscore, proofAsText(dv.description) AS description, " +
			"proofAsText(favi.proof) AS proof, favi.port, dv.date_published, dv.date_modified " +
			"FROM fact_asset_vulnerability_instance favi " +
			"JOIN dim_asset da USING (asset_id) " +
			"JOIN dim_site_asset dsa USING (asset_id) " +
			"JOIN dim_vulnerability dv USING (vulnerability_id)",
	}

	Software = Definition{
		Name:  defaults.SoftwareReportName,
		Title: "Software",
		Query: "SELECT da.ip_address, da.host_name, ds.vendor, ds.family, ds.name, ds.version, ds.software_class " +
			"FROM dim_asset_software das " +
			"JOIN dim_software ds USING (software_id) " +
			"JOIN dim_asset da USING (asset_id) " +
			"JOIN dim_site_asset dsa USING (asset_id)",
		OrderBy: "ORDER BY ds.vendor ASC, ds.name ASC, ds.version ASC",
	}

	Policy = Definition{
		Name:  defaults.PolicyReportName,
		Title: "Policy",
		Query: "SELECT da.ip_address, da.host_name, dp.title AS policy, dpr.title AS rule, " +
			"dpr.severity, fapr.compliance, fapr.date_tested " +
			"FROM fact_asset_policy_rule fapr " +
			"JOIN dim_policy dp USING (policy_id) " +
			"JOIN dim_policy_rule dpr USING (policy_id, rule_id) " +
			"JOIN dim_asset da USING (asset_id) " +
			"JOIN dim_site_asset dsa USING (asset_id)",
		OrderBy: "ORDER BY dp.title ASC, dpr.title ASC",
	}
)

// BuildQuery scopes def to one site.
func BuildQuery(def Definition, siteID int) string {
	q := fmt.Sprintf("%s WHERE site_id = %d", def.Query, siteID)
	if def.OrderBy != "" {
		q += " " + def.OrderBy
	}
	return q
}

// SQLConfig is the ad-hoc request for def scoped to one site.
func SQLConfig(def Definition, siteID int) nexpose.AdhocReportConfig {
	return nexpose.AdhocReportConfig{
		Format: "sql",
		Filters: []nexpose.ReportFilter{
			{Type: "version", ID: defaults.ReportQueryVersion},
			{Type: "query", ID: BuildQuery(def, siteID)},
		},
	}
}

// Export is a report rendered by a console template.
type Export struct {
	Title      string
	TemplateID string
	Format     string
	FileName   string
}

// Templated exports.
var (
	Audit = Export{
		Title:      "Audit",
		TemplateID: "audit-report",
		Format:     "html",
		FileName:   defaults.AuditReportFileName,
	}

	XML = Export{
		Title:      "XML",
		TemplateID: "raw-xml-v2",
		Format:     "raw-xml-v2",
		FileName:   defaults.XMLReportFileName,
	}
)

// Config is the ad-hoc request for e scoped to one site.
func (e Export) Config(siteID int) nexpose.AdhocReportConfig {
	return nexpose.AdhocReportConfig{
		TemplateID: e.TemplateID,
		Format:     e.Format,
		Filters:    []nexpose.ReportFilter{{Type: "site", ID: strconv.Itoa(siteID)}},
	}
}
