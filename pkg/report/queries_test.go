package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scangate/scangate/pkg/defaults"
	"github.com/scangate/scangate/pkg/nexpose"
)

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(Vulnerability, 12)
	assert.True(t, strings.HasPrefix(q, Vulnerability.Query))
	assert.True(t, strings.HasSuffix(q, " WHERE site_id = 12"))

	q = BuildQuery(Software, 12)
	assert.Equal(t, Software.Query+" WHERE site_id = 12 "+Software.OrderBy, q)
}

func TestDefinitions(t *testing.T) {
	for _, def := range []Definition{Vulnerability, VulnerabilityDetail, Software, Policy} {
		t.Run(def.Name, func(t *testing.T) {
			assert.NotContains(t, def.Query, "WHERE")
			assert.NotContains(t, def.Name, ".")
			assert.NotEmpty(t, def.Title)
		})
	}
	assert.Empty(t, Vulnerability.OrderBy)
	assert.Empty(t, VulnerabilityDetail.OrderBy)
	assert.NotEmpty(t, Software.OrderBy)
	assert.NotEmpty(t, Policy.OrderBy)
}

func TestVulnerabilityTitleIsSecondColumn(t *testing.T) {
	cols := strings.SplitN(strings.TrimPrefix(Vulnerability.Query, "SELECT DISTINCT "), ",", 3)
	assert.Equal(t, "dv.title", strings.TrimSpace(cols[1]))
}

func TestSQLConfig(t *testing.T) {
	cfg := SQLConfig(Policy, 4)
	assert.Equal(t, "sql", cfg.Format)
	assert.Empty(t, cfg.TemplateID)
	assert.Equal(t, []nexpose.ReportFilter{
		{Type: "version", ID: defaults.ReportQueryVersion},
		{Type: "query", ID: BuildQuery(Policy, 4)},
	}, cfg.Filters)
}

func TestExportConfig(t *testing.T) {
	cfg := Audit.Config(9)
	assert.Equal(t, "audit-report", cfg.TemplateID)
	assert.Equal(t, "html", cfg.Format)
	assert.Equal(t, []nexpose.ReportFilter{{Type: "site", ID: "9"}}, cfg.Filters)

	cfg = XML.Config(9)
	assert.Equal(t, "raw-xml-v2", cfg.TemplateID)
	assert.Equal(t, "raw-xml-v2", cfg.Format)
}
