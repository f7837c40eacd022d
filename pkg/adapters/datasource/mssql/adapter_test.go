package mssql

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
)

// integrationAdapter connects to the server named by MSSQL_HOST, MSSQL_USER,
// MSSQL_PASSWORD and MSSQL_DATABASE, skipping the test when any is unset.
func integrationAdapter(t *testing.T) (*Adapter, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	host := os.Getenv("MSSQL_HOST")
	user := os.Getenv("MSSQL_USER")
	password := os.Getenv("MSSQL_PASSWORD")
	database := os.Getenv("MSSQL_DATABASE")
	if host == "" || user == "" || password == "" || database == "" {
		t.Skip("skipping integration test: MSSQL_HOST, MSSQL_USER, MSSQL_PASSWORD, or MSSQL_DATABASE not set")
	}

	port := DefaultPort()
	if p := os.Getenv("MSSQL_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		require.NoError(t, err, "invalid MSSQL_PORT")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adapter, err := NewAdapter(ctx, &Config{
		Host:                   host,
		Port:                   port,
		Database:               "master",
		AuthMethod:             "sql",
		Username:               user,
		Password:               password,
		Encrypt:                false,
		TrustServerCertificate: true,
		ConnectionTimeout:      DefaultConnectionTimeout(),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter, database
}

func TestAdapter_TestConnection(t *testing.T) {
	adapter, _ := integrationAdapter(t)

	require.NoError(t, adapter.TestConnection(context.Background()))
}

func TestAdapter_ListDatabases(t *testing.T) {
	adapter, database := integrationAdapter(t)

	names, err := adapter.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Contains(t, names, database)
	assert.NotContains(t, names, "master")
	assert.NotContains(t, names, "tempdb")
}

func TestAdapter_DiscoverSchema(t *testing.T) {
	adapter, database := integrationAdapter(t)
	ctx := context.Background()

	tables, err := adapter.DiscoverTables(ctx, database)
	require.NoError(t, err)

	columns, err := adapter.DiscoverColumns(ctx, database)
	require.NoError(t, err)

	tableSet := map[string]bool{}
	for _, tbl := range tables {
		tableSet[tbl.SchemaName+"."+tbl.TableName] = true
		assert.GreaterOrEqual(t, tbl.RowCount, int64(0))
	}
	for _, col := range columns {
		assert.True(t, tableSet[col.SchemaName+"."+col.TableName], "column %s of unknown table %s", col.ColumnName, col.TableName)
		if col.IsForeignKey {
			assert.NotEmpty(t, col.FKReferences)
		}
	}

	if len(tables) == 0 {
		return
	}
	first := tables[0]
	var tableCols []datasource.ColumnMetadata
	for _, col := range columns {
		if col.SchemaName == first.SchemaName && col.TableName == first.TableName {
			tableCols = append(tableCols, col)
		}
	}
	profiles, err := adapter.ProfileColumns(ctx, database, first.SchemaName, first.TableName, tableCols, 100)
	require.NoError(t, err)
	for _, p := range profiles {
		assert.LessOrEqual(t, p.ProfiledRows, int64(100))
		assert.GreaterOrEqual(t, p.NullRate, 0.0)
		assert.LessOrEqual(t, p.NullRate, 1.0)
	}
}

func TestAdapter_ProgrammableObjects(t *testing.T) {
	adapter, database := integrationAdapter(t)
	ctx := context.Background()

	objects, err := adapter.DiscoverProgrammableObjects(ctx, database)
	require.NoError(t, err)
	for _, obj := range objects {
		assert.Equal(t, database, obj.Database)
		assert.NotEmpty(t, obj.Type)
	}

	_, err = adapter.ExecutionStats(ctx, database)
	require.NoError(t, err)

	_, err = adapter.ObjectDependencies(ctx, database)
	require.NoError(t, err)
}
