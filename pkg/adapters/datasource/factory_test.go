package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// mockSource records how the factory called it.
type mockSource struct {
	cfg    ConnectionConfig
	logger *zap.Logger
}

func (m *mockSource) TestConnection(ctx context.Context) error { return nil }
func (m *mockSource) Close() error                             { return nil }
func (m *mockSource) ListDatabases(ctx context.Context) ([]string, error) {
	return []string{"Sales"}, nil
}
func (m *mockSource) DiscoverTables(ctx context.Context, database string) ([]TableMetadata, error) {
	return nil, nil
}
func (m *mockSource) DiscoverColumns(ctx context.Context, database string) ([]ColumnMetadata, error) {
	return nil, nil
}
func (m *mockSource) ProfileColumns(ctx context.Context, database, schemaName, tableName string, columns []ColumnMetadata, sampleSize int) ([]ColumnProfile, error) {
	return nil, nil
}
func (m *mockSource) DiscoverProgrammableObjects(ctx context.Context, database string) ([]models.ProgrammableObject, error) {
	return nil, nil
}
func (m *mockSource) ExecutionStats(ctx context.Context, database string) ([]models.ExecutionStat, error) {
	return nil, nil
}
func (m *mockSource) ObjectDependencies(ctx context.Context, database string) ([]models.ObjectDependency, error) {
	return nil, nil
}

func registerMock(t *testing.T, dsType string) {
	t.Helper()
	Register(DatasourceAdapterRegistration{
		Info: DatasourceAdapterInfo{Type: dsType, DisplayName: "Mock"},
		Factory: func(ctx context.Context, cfg ConnectionConfig, logger *zap.Logger) (MetadataSource, error) {
			return &mockSource{cfg: cfg, logger: logger}, nil
		},
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, dsType)
		registryMu.Unlock()
	})
}

func TestFactoryPassesConnectionConfig(t *testing.T) {
	registerMock(t, "mock-config")
	factory := NewDatasourceAdapterFactory(zaptest.NewLogger(t))

	cfg := ConnectionConfig{Host: "db.internal", Port: 1433, User: "reader", Password: "secret", Options: map[string]string{"encrypt": "false"}}
	source, err := factory.NewMetadataSource(context.Background(), "mock-config", cfg)
	require.NoError(t, err)

	mock, ok := source.(*mockSource)
	require.True(t, ok)
	assert.Equal(t, cfg, mock.cfg)
	assert.NotNil(t, mock.logger)
}

func TestFactoryErrorHandling(t *testing.T) {
	factory := NewDatasourceAdapterFactory(zaptest.NewLogger(t))

	source, err := factory.NewMetadataSource(context.Background(), "unsupported-type", ConnectionConfig{})
	require.ErrorIs(t, err, apperrors.ErrUnsupportedSource)
	assert.Nil(t, source)
	assert.Contains(t, err.Error(), "unsupported-type")
}

func TestFactoryListTypes(t *testing.T) {
	registerMock(t, "mock-b")
	registerMock(t, "mock-a")
	factory := NewDatasourceAdapterFactory(nil)

	var types []string
	for _, info := range factory.ListTypes() {
		types = append(types, info.Type)
	}
	assert.Subset(t, types, []string{"mock-a", "mock-b"})
	assert.NotContains(t, types, "mock-c")
	assert.Less(t, indexOf(types, "mock-a"), indexOf(types, "mock-b"), "ordered by type")
	assert.Nil(t, GetFactory("mock-c"))
}

func TestFactoryNilLogger(t *testing.T) {
	factory := NewDatasourceAdapterFactory(nil)
	require.NotNil(t, factory)

	regFactory, ok := factory.(*registryFactory)
	require.True(t, ok)
	assert.NotNil(t, regFactory.logger)
}

func TestNewColumnProfile(t *testing.T) {
	p := NewColumnProfile("Notes", 3, 1, 2)
	assert.Equal(t, 0.3333, p.NullRate)
	assert.Equal(t, int64(3), p.ProfiledRows)

	empty := NewColumnProfile("Notes", 0, 0, 0)
	assert.Equal(t, 0.0, empty.NullRate)
}

func TestProfilableColumns(t *testing.T) {
	cols := []ColumnMetadata{
		{ColumnName: "ID", DataType: "int"},
		{ColumnName: "Shape", DataType: "GEOGRAPHY"},
		{ColumnName: "Doc", DataType: "xml"},
		{ColumnName: "Name", DataType: "nvarchar"},
	}

	got := ProfilableColumns(cols)

	require.Len(t, got, 2)
	assert.Equal(t, "ID", got[0].ColumnName)
	assert.Equal(t, "Name", got[1].ColumnName)
}

func TestConnectionConfigFor(t *testing.T) {
	target := config.Target{
		Name:        "prod",
		Type:        "mock",
		HostEnv:     "PROD_HOST",
		Port:        1433,
		UserEnv:     "PROD_USER",
		PasswordEnv: "PROD_PASSWORD",
		Options:     map[string]string{"encrypt": "false"},
	}
	env := map[string]string{"PROD_HOST": "db.internal", "PROD_USER": "reader", "PROD_PASSWORD": "secret"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cc, err := ConnectionConfigFor(target, lookup)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cc.Host)
	assert.Equal(t, 1433, cc.Port)
	assert.Equal(t, "reader", cc.User)
	assert.Equal(t, "false", cc.Option("encrypt", "true"))

	delete(env, "PROD_PASSWORD")
	_, err = ConnectionConfigFor(target, lookup)
	assert.ErrorIs(t, err, apperrors.ErrMissingCredentials)
}

func TestOpenDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	Register(DatasourceAdapterRegistration{
		Info: DatasourceAdapterInfo{Type: "mock-denied"},
		Factory: func(ctx context.Context, cfg ConnectionConfig, logger *zap.Logger) (MetadataSource, error) {
			calls++
			return nil, errors.New("login failed for user 'reader'")
		},
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "mock-denied")
		registryMu.Unlock()
	})

	_, err := Open(context.Background(), NewDatasourceAdapterFactory(nil), config.Target{Name: "prod", Type: "mock-denied"}, ConnectionConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to target prod")
	assert.Equal(t, 1, calls)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
