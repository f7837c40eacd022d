package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// ConnectionTester tests source connectivity.
type ConnectionTester interface {
	// TestConnection verifies the server is reachable with valid credentials.
	// Returns nil if connection is healthy, error otherwise.
	TestConnection(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// MetadataSource reads catalog metadata from one source server.
// Each implementation owns its connection and must be closed when done.
// Every per-database call is independent so that a failure in one database
// never poisons the scan of the next.
type MetadataSource interface {
	ConnectionTester

	// ListDatabases returns the online user databases of the server, sorted
	// by name. System databases are excluded.
	ListDatabases(ctx context.Context) ([]string, error)

	// DiscoverTables returns the user tables of a database with row count
	// estimates and last access time where the engine tracks it.
	DiscoverTables(ctx context.Context, database string) ([]TableMetadata, error)

	// DiscoverColumns returns every column of every user table of a database
	// in one round trip, with primary and foreign key flags resolved.
	DiscoverColumns(ctx context.Context, database string) ([]ColumnMetadata, error)

	// ProfileColumns computes null and distinct counts over a sample of
	// sampleSize rows (0 scans the whole table). Columns whose type cannot be
	// profiled are skipped.
	ProfileColumns(ctx context.Context, database, schemaName, tableName string, columns []ColumnMetadata, sampleSize int) ([]ColumnProfile, error)

	// DiscoverProgrammableObjects returns procedures, views, functions and
	// triggers with their definitions.
	DiscoverProgrammableObjects(ctx context.Context, database string) ([]models.ProgrammableObject, error)

	// ExecutionStats returns per-object execution statistics. Engines without
	// statistics return an empty slice.
	ExecutionStats(ctx context.Context, database string) ([]models.ExecutionStat, error)

	// ObjectDependencies returns the tables and columns referenced by each
	// programmable object.
	ObjectDependencies(ctx context.Context, database string) ([]models.ObjectDependency, error)
}
