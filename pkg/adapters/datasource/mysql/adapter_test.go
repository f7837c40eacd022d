package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/testhelpers"
)

func setupAdapter(t *testing.T) *Adapter {
	t.Helper()

	testDB := testhelpers.GetMySQLDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adapter, err := NewAdapter(ctx, &Config{
		Host:     testDB.Host,
		Port:     testDB.Port,
		User:     testhelpers.MySQLUser,
		Password: testhelpers.MySQLPassword,
		TLS:      "false",
		Timeout:  10 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func TestAdapter_ListDatabases(t *testing.T) {
	adapter := setupAdapter(t)

	dbs, err := adapter.ListDatabases(context.Background())
	require.NoError(t, err)

	assert.Contains(t, dbs, testhelpers.MySQLDatabase)
	assert.NotContains(t, dbs, "mysql")
	assert.NotContains(t, dbs, "performance_schema")
}

func TestAdapter_DiscoverSchema(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	tables, err := adapter.DiscoverTables(ctx, testhelpers.MySQLDatabase)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "customers", tables[0].TableName)
	assert.Equal(t, testhelpers.MySQLDatabase, tables[0].SchemaName)

	columns, err := adapter.DiscoverColumns(ctx, testhelpers.MySQLDatabase)
	require.NoError(t, err)

	byName := map[string]datasource.ColumnMetadata{}
	for _, c := range columns {
		byName[c.TableName+"."+c.ColumnName] = c
	}
	assert.True(t, byName["customers.customer_id"].IsPrimaryKey)
	assert.True(t, byName["customers.region"].IsNullable)
	assert.Equal(t, "varchar", byName["customers.email"].DataType)

	fk := byName["orders.customer_id"]
	assert.True(t, fk.IsForeignKey)
	assert.Equal(t, "test_data.customers.customer_id", fk.FKReferences)
	assert.Equal(t, 2, fk.OrdinalPosition)
}

func TestAdapter_ProfileColumns(t *testing.T) {
	adapter := setupAdapter(t)

	profiles, err := adapter.ProfileColumns(context.Background(), testhelpers.MySQLDatabase, "", "customers",
		[]datasource.ColumnMetadata{
			{ColumnName: "email", DataType: "varchar"},
			{ColumnName: "region", DataType: "varchar"},
		}, 0)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, int64(4), profiles[0].DistinctCount)
	assert.Equal(t, int64(2), profiles[1].NullCount)
	assert.Equal(t, 0.5, profiles[1].NullRate)
}

func TestAdapter_ProgrammableObjects(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	objects, err := adapter.DiscoverProgrammableObjects(ctx, testhelpers.MySQLDatabase)
	require.NoError(t, err)

	types := map[string]string{}
	for _, o := range objects {
		types[o.Name] = o.Type
	}
	assert.Equal(t, models.ObjectTypeProcedure, types["customer_orders"])
	assert.Equal(t, models.ObjectTypeView, types["open_orders"])

	deps, err := adapter.ObjectDependencies(ctx, testhelpers.MySQLDatabase)
	require.NoError(t, err)
	assert.Contains(t, deps, models.ObjectDependency{
		Database:          testhelpers.MySQLDatabase,
		ReferencingObject: "open_orders",
		ReferencedTable:   "orders",
	})

	stats, err := adapter.ExecutionStats(ctx, testhelpers.MySQLDatabase)
	require.NoError(t, err)
	assert.NotNil(t, stats)
}
