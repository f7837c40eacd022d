package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
)

// systemSchemas never hold user tables.
var systemSchemas = []any{"mysql", "information_schema", "performance_schema", "sys"}

// Adapter reads catalog metadata from a MySQL server. A MySQL database is a
// schema, so one connection pool covers the whole server and every query
// names its schema explicitly.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens and pings a MySQL connection pool.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := cfg.DSN()
	logger.Debug("Opening MySQL connection", zap.String("dsn", logging.SanitizeConnectionString(dsn)))
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %s", logging.SanitizeError(err))
	}

	return &Adapter{
		config: cfg,
		db:     db,
		logger: logger,
	}, nil
}

// TestConnection verifies the server is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// ListDatabases returns the user schemas of the server.
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	const query = `
		SELECT SCHEMA_NAME
		FROM information_schema.SCHEMATA
		WHERE SCHEMA_NAME NOT IN (?, ?, ?, ?)
		ORDER BY SCHEMA_NAME
	`

	rows, err := a.db.QueryContext(ctx, query, systemSchemas...)
	if err != nil {
		return nil, fmt.Errorf("query databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Ensure Adapter implements MetadataSource at compile time.
var _ datasource.MetadataSource = (*Adapter)(nil)
