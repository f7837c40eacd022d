package testhelpers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// CatalogScanTime is the scan timestamp of SalesCatalog rows.
var CatalogScanTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// SalesCatalog is a three-table catalog of the "prod" target: Orders
// references Customers, and Audit stands alone.
func SalesCatalog() []models.CatalogRow {
	col := func(table, column, dataType string, ordinal int, rowCount int64) models.CatalogRow {
		return models.CatalogRow{
			Target:           "prod",
			Database:         "Sales",
			Schema:           "dbo",
			TableName:        table,
			ColumnName:       column,
			DataType:         dataType,
			IsNullable:       true,
			OrdinalPosition:  ordinal,
			RowCountEstimate: rowCount,
			ScannedAt:        CatalogScanTime,
		}
	}

	customerID := col("Customers", "CustomerID", "int", 1, 5000)
	customerID.IsPrimaryKey = true
	customerID.IsNullable = false
	email := col("Customers", "Email", "nvarchar", 2, 5000)

	orderID := col("Orders", "OrderID", "int", 1, 90000)
	orderID.IsPrimaryKey = true
	orderID.IsNullable = false
	orderCustomer := col("Orders", "CustomerID", "int", 2, 90000)
	orderCustomer.IsForeignKey = true
	orderCustomer.FKReferences = "dbo.Customers.CustomerID"
	status := col("Orders", "Status", "varchar", 3, 90000)

	auditID := col("Audit", "AuditID", "bigint", 1, 10)

	return []models.CatalogRow{customerID, email, orderID, orderCustomer, status, auditID}
}

// WriteCatalog writes rows as the snapshot of a fresh catalog directory and
// returns its paths.
func WriteCatalog(t *testing.T, rows []models.CatalogRow) config.Paths {
	t.Helper()
	paths := config.NewPaths(filepath.Join(t.TempDir(), "catalog"))
	store := catalog.NewStore(paths.Metadata, zaptest.NewLogger(t))
	require.NoError(t, store.Write(context.Background(), rows))
	return paths
}
