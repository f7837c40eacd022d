package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

func joinCatalog() []models.CatalogRow {
	custID := row("prod", "Sales", "Customer", "CustomerID")
	custID.IsPrimaryKey = true
	custID.OrdinalPosition = 1

	region := row("prod", "Sales", "Customer", "RegionID")
	region.IsForeignKey = true
	region.FKReferences = "dbo.Region.RegionID"
	region.OrdinalPosition = 3

	name := row("prod", "Sales", "Customer", "Name")
	name.OrdinalPosition = 2

	orderCust := row("prod", "Sales", "Orders", "CustomerID")
	orderCust.IsForeignKey = true
	orderCust.FKReferences = "dbo.Customer.CustomerID"

	other := row("prod", "Sales", "Orders", "ShipperID")
	other.IsForeignKey = true
	other.FKReferences = "dbo.Shipper.ShipperID"

	return []models.CatalogRow{custID, region, name, orderCust, other}
}

func TestDescribe(t *testing.T) {
	cols, err := Describe(joinCatalog(), "Sales.dbo.Customer")
	require.NoError(t, err)

	var names []string
	for _, c := range cols {
		names = append(names, c.ColumnName)
	}
	assert.Equal(t, []string{"CustomerID", "Name", "RegionID"}, names)
}

func TestDescribe_Errors(t *testing.T) {
	_, err := Describe(joinCatalog(), "Customer")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = Describe(joinCatalog(), "Sales.dbo.Missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestJoins(t *testing.T) {
	paths, err := Joins(joinCatalog(), "Sales.dbo.Customer")
	require.NoError(t, err)

	require.Len(t, paths.Outbound, 1)
	assert.Equal(t, "RegionID", paths.Outbound[0].ColumnName)

	require.Len(t, paths.Inbound, 1)
	assert.Equal(t, "Orders", paths.Inbound[0].TableName)
	assert.Equal(t, "CustomerID", paths.Inbound[0].ColumnName)
}

func TestJoins_NoForeignKeys(t *testing.T) {
	paths, err := Joins(joinCatalog(), "Sales.dbo.Unknown")
	require.NoError(t, err)
	assert.Empty(t, paths.Outbound)
	assert.Empty(t, paths.Inbound)
}
