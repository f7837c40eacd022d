package refresh

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/retry"
)

var scanTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeSource serves a fixed schema. The "Broken" database fails.
type fakeSource struct {
	databases []string
	closed    bool
}

func (f *fakeSource) TestConnection(ctx context.Context) error { return nil }

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) ListDatabases(ctx context.Context) ([]string, error) {
	return f.databases, nil
}

func (f *fakeSource) DiscoverTables(ctx context.Context, db string) ([]datasource.TableMetadata, error) {
	if db == "Broken" {
		return nil, errors.New("permission denied")
	}
	return []datasource.TableMetadata{
		{SchemaName: "dbo", TableName: "Customer", RowCount: 500},
		{SchemaName: "dbo", TableName: "Orders", RowCount: 9000},
	}, nil
}

func (f *fakeSource) DiscoverColumns(ctx context.Context, db string) ([]datasource.ColumnMetadata, error) {
	return []datasource.ColumnMetadata{
		{SchemaName: "dbo", TableName: "Orders", ColumnName: "CustomerID", DataType: "int", IsForeignKey: true, FKReferences: "dbo.Customer.CustomerID", OrdinalPosition: 2},
		{SchemaName: "dbo", TableName: "Orders", ColumnName: "OrderID", DataType: "int", IsPrimaryKey: true, OrdinalPosition: 1},
		{SchemaName: "dbo", TableName: "Customer", ColumnName: "CustomerID", DataType: "int", IsPrimaryKey: true, OrdinalPosition: 1},
		{SchemaName: "dbo", TableName: "Customer", ColumnName: "Email", DataType: "nvarchar", IsNullable: true, OrdinalPosition: 2},
	}, nil
}

func (f *fakeSource) ProfileColumns(ctx context.Context, db, schema, table string, columns []datasource.ColumnMetadata, sample int) ([]datasource.ColumnProfile, error) {
	if table == "Orders" {
		return nil, errors.New("sample query failed")
	}
	var out []datasource.ColumnProfile
	for _, c := range columns {
		out = append(out, datasource.NewColumnProfile(c.ColumnName, 100, 25, 40))
	}
	return out, nil
}

func (f *fakeSource) DiscoverProgrammableObjects(ctx context.Context, db string) ([]models.ProgrammableObject, error) {
	return nil, nil
}

func (f *fakeSource) ExecutionStats(ctx context.Context, db string) ([]models.ExecutionStat, error) {
	return nil, nil
}

func (f *fakeSource) ObjectDependencies(ctx context.Context, db string) ([]models.ObjectDependency, error) {
	return nil, nil
}

// fakeFactory hands out fakeSource per host; hosts in down fail to connect.
type fakeFactory struct {
	sources map[string]*fakeSource
	down    map[string]bool
}

func (f *fakeFactory) NewMetadataSource(ctx context.Context, dsType string, cfg datasource.ConnectionConfig) (datasource.MetadataSource, error) {
	if f.down[cfg.Host] {
		return nil, errors.New("login failed")
	}
	return f.sources[cfg.Host], nil
}

func (f *fakeFactory) ListTypes() []datasource.DatasourceAdapterInfo { return nil }

type fixture struct {
	refresher *Refresher
	factory   *fakeFactory
	store     *catalog.Store
	paths     config.Paths
	targets   config.Targets
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	logger := zaptest.NewLogger(t)
	store := catalog.NewStore(paths.Metadata, logger)
	factory := &fakeFactory{
		sources: map[string]*fakeSource{
			"prod-host":  {databases: []string{"Broken", "Sales", "master"}},
			"stage-host": {databases: []string{"Sales"}},
		},
		down: map[string]bool{},
	}

	r := New(store, factory, paths, logger)
	env := map[string]string{
		"PROD_HOST": "prod-host", "PROD_USER": "u", "PROD_PASSWORD": "p",
		"STAGE_HOST": "stage-host", "STAGE_USER": "u", "STAGE_PASSWORD": "p",
	}
	r.lookup = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	r.retry = &retry.Config{MaxRetries: 0}
	r.now = func() time.Time { return scanTime }

	targets := config.Targets{
		"prod": {
			Name: "prod", Type: "mssql", HostEnv: "PROD_HOST", UserEnv: "PROD_USER", PasswordEnv: "PROD_PASSWORD",
			IncludeDatabases: []string{"*"}, ExcludeDatabases: []string{"master"},
		},
		"stage": {
			Name: "stage", Type: "mssql", HostEnv: "STAGE_HOST", UserEnv: "STAGE_USER", PasswordEnv: "STAGE_PASSWORD",
			IncludeDatabases: []string{"*"},
		},
	}
	return &fixture{refresher: r, factory: factory, store: store, paths: paths, targets: targets}
}

func TestRun_ScansTargetAndSkipsFailedDatabase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.refresher.Run(ctx, f.targets, Options{Targets: []string{"prod"}, Parallelism: 2, Timeout: time.Minute})
	require.NoError(t, err)
	require.Len(t, result.Targets, 1)

	tr := result.Targets[0]
	assert.Equal(t, "prod", tr.Target)
	assert.Equal(t, 2, tr.Databases)
	assert.Equal(t, 4, tr.Rows)
	assert.Empty(t, tr.Error)
	require.Len(t, tr.Failures, 1)
	assert.Equal(t, "Broken", tr.Failures[0].Database)
	assert.Equal(t, 4, result.TotalRows)
	assert.True(t, f.factory.sources["prod-host"].closed)

	rows, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Tables in discovery order, columns by ordinal position.
	assert.Equal(t, "Customer", rows[0].TableName)
	assert.Equal(t, "Orders", rows[2].TableName)
	assert.Equal(t, "OrderID", rows[2].ColumnName)
	assert.Equal(t, "CustomerID", rows[3].ColumnName)
	assert.Equal(t, "dbo.Customer.CustomerID", rows[3].FKReferences)
	assert.Equal(t, int64(9000), rows[3].RowCountEstimate)
	assert.Equal(t, "prod-host", rows[0].Server)
	assert.Equal(t, "Sales", rows[0].Database)
	assert.True(t, rows[0].ScannedAt.Equal(scanTime))
	assert.Nil(t, rows[0].NullRate)

	lastScan, err := catalog.LoadLastScan(f.paths.LastScan)
	require.NoError(t, err)
	assert.Equal(t, 4, lastScan.Scans["prod"].RowCount)

	summary, err := os.ReadFile(f.paths.CatalogSummary)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "# Data Catalog Summary")
}

func TestRun_ProfilingKeepsTablesWhenSamplingFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.refresher.Run(ctx, f.targets, Options{Targets: []string{"stage"}, Profile: true, ProfileSample: 100})
	require.NoError(t, err)

	rows, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	email := rows[1]
	require.Equal(t, "Email", email.ColumnName)
	require.NotNil(t, email.NullRate)
	assert.Equal(t, 0.25, *email.NullRate)
	assert.Equal(t, int64(40), *email.DistinctCount)
	assert.True(t, email.IsProfiled())

	assert.Nil(t, rows[2].NullRate, "Orders profiling failed")
}

func TestRun_PreservesOtherPartitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.refresher.Run(ctx, f.targets, Options{})
	require.NoError(t, err)
	rows, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 8)

	// stage goes down: its partition must survive the failed refresh.
	f.factory.down["stage-host"] = true
	result, err := f.refresher.Run(ctx, f.targets, Options{})
	require.NoError(t, err)

	byTarget := map[string]TargetResult{}
	for _, tr := range result.Targets {
		byTarget[tr.Target] = tr
	}
	assert.Contains(t, byTarget["stage"].Error, "connect to target stage")
	assert.Empty(t, byTarget["prod"].Error)

	rows, err = f.store.Load(ctx)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.Target]++
	}
	assert.Equal(t, map[string]int{"prod": 4, "stage": 4}, counts)
}

func TestRun_ValidatesTargetsUpFront(t *testing.T) {
	f := newFixture(t)

	_, err := f.refresher.Run(context.Background(), f.targets, Options{Targets: []string{"nope"}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	f.targets["broken"] = config.Target{Name: "broken", HostEnv: "MISSING_HOST"}
	_, err = f.refresher.Run(context.Background(), f.targets, Options{})
	assert.ErrorIs(t, err, apperrors.ErrMissingCredentials)

	_, statErr := os.Stat(f.paths.Metadata)
	assert.True(t, os.IsNotExist(statErr), "nothing scanned before validation passed")
}

func TestRun_NoSnapshotWhenEveryTargetFails(t *testing.T) {
	f := newFixture(t)
	f.factory.down["prod-host"] = true

	result, err := f.refresher.Run(context.Background(), f.targets, Options{Targets: []string{"prod"}})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Targets[0].Error)

	_, statErr := os.Stat(f.paths.CatalogSummary)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.ScanConfig{Profile: true, ProfileSample: 50, TimeoutSeconds: 30, Parallelism: 3})

	assert.True(t, opts.Profile)
	assert.Equal(t, 50, opts.ProfileSample)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 3, opts.Parallelism)
}
