package catalog

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

func TestRecordScan_KeepsOtherTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_scan.json")

	require.NoError(t, RecordScan(path, "prod", 120, scanTime))
	require.NoError(t, RecordScan(path, "qa", 40, scanTime.Add(time.Hour)))

	ls, err := LoadLastScan(path)
	require.NoError(t, err)
	require.Len(t, ls.Scans, 2)
	assert.Equal(t, 120, ls.Scans["prod"].RowCount)
	assert.True(t, ls.Scans["qa"].Timestamp.Equal(scanTime.Add(time.Hour)))
	require.NotNil(t, ls.LastUpdated)
	assert.True(t, ls.LastUpdated.Equal(scanTime.Add(time.Hour)))
}

func TestLoadLastScan_Missing(t *testing.T) {
	ls, err := LoadLastScan(filepath.Join(t.TempDir(), "last_scan.json"))
	require.NoError(t, err)
	assert.Empty(t, ls.Scans)
	assert.NotNil(t, ls.Scans)
}

func TestStatus(t *testing.T) {
	now := scanTime.Add(10 * 24 * time.Hour)
	rows := []models.CatalogRow{
		row("prod", "Sales", "Orders", "OrderID"),
		row("prod", "Sales", "Orders", "Total"),
		row("prod", "Sales", "Customer", "CustomerID"),
		row("qa", "Staging", "Orders", "OrderID"),
	}
	ls := &models.LastScan{Scans: map[string]models.ScanInfo{
		"qa":   {Timestamp: now.Add(-2 * 24 * time.Hour), RowCount: 1},
		"prod": {Timestamp: scanTime, RowCount: 3},
	}}

	status := Status(rows, ls, now, 7)

	assert.True(t, status.Available)
	assert.Equal(t, 2, status.Databases)
	assert.Equal(t, 3, status.Tables)
	assert.Equal(t, 4, status.Columns)
	require.Len(t, status.Targets, 2)
	assert.Equal(t, "prod", status.Targets[0].Target)
	assert.Equal(t, 10, status.Targets[0].AgeDays)
	assert.True(t, status.Targets[0].Stale)
	assert.False(t, status.Targets[1].Stale)
	assert.Contains(t, status.Guidance, "prod")
	assert.NotContains(t, status.Guidance, "qa")
}

func TestStatus_NoCatalog(t *testing.T) {
	status := Status(nil, nil, scanTime, 0)

	assert.False(t, status.Available)
	assert.Contains(t, status.Guidance, "refresh")
	assert.NotNil(t, status.Targets)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestWriteSearch_Formats(t *testing.T) {
	results := Search(searchCatalog(), []string{"invoice"}, 5)
	require.Len(t, results, 1)

	var table bytes.Buffer
	require.NoError(t, WriteSearch(&table, FormatTable, results))
	assert.Contains(t, table.String(), "Billing.dbo.Invoice")
	assert.Contains(t, table.String(), "9,000,000")

	var csvOut bytes.Buffer
	require.NoError(t, WriteSearch(&csvOut, FormatCSV, results))
	lines := strings.Split(strings.TrimSpace(csvOut.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "relevance,target,database"))
	assert.Equal(t, "3,prod,Billing,dbo,Invoice,Total,int,false,false,,9000000", lines[1])

	var jsonOut bytes.Buffer
	require.NoError(t, WriteSearch(&jsonOut, FormatJSON, results))
	assert.Contains(t, jsonOut.String(), `"relevance": 3`)
	assert.Contains(t, jsonOut.String(), `"table_name": "Invoice"`)
}

func TestWriteJoins_Table(t *testing.T) {
	paths, err := Joins(joinCatalog(), "Sales.dbo.Region")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, WriteJoins(&out, FormatTable, paths))
	assert.Contains(t, out.String(), "Outbound foreign keys of Sales.dbo.Region:\n  (none)")
	assert.Contains(t, out.String(), "RegionID")
}

func TestSummary(t *testing.T) {
	big := row("prod", "Sales", "Orders", "OrderID")
	big.RowCountEstimate = 2_500_000
	rows := []models.CatalogRow{
		row("prod", "Sales", "Customer", "CustomerID"),
		big,
		row("prod", "Sales", "Orders", "Total"),
		row("qa", "Staging", "Orders", "OrderID"),
	}

	md := Summary(rows, scanTime)

	assert.Contains(t, md, "- **Databases:** 2")
	assert.Contains(t, md, "- **Tables:** 3")
	assert.Contains(t, md, "| prod | Sales | 2 | 3 |")
	assert.Contains(t, md, "| Sales.dbo.Orders | 2,500,000 | 2 |")
	assert.Less(t, strings.Index(md, "Sales.dbo.Orders | 2,500,000"), strings.Index(md, "Sales.dbo.Customer |"))
}
