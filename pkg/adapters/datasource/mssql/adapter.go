package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
)

// Adapter reads catalog metadata from a SQL Server instance. One adapter
// covers every database of the server; per-database queries run on a
// dedicated connection switched with USE.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter creates a SQL Server adapter with the given config.
// Supports two authentication methods:
//  1. SQL Authentication (username/password)
//  2. Service Principal (Azure AD with client credentials)
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var driver, connStr string
	switch cfg.AuthMethod {
	case "sql":
		driver, connStr = "sqlserver", sqlAuthConnString(cfg)
	case "service_principal":
		// For Azure AD, use azuresql driver
		driver, connStr = "azuresql", servicePrincipalConnString(cfg)
	default:
		return nil, fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
	logger.Debug("Opening SQL Server connection",
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("dsn", logging.SanitizeConnectionString(connStr)))

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %s", driver, logging.SanitizeError(err))
	}

	// Test the connection immediately
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

// sqlAuthConnString builds the URL for SQL Server authentication.
func sqlAuthConnString(cfg *Config) string {
	query := connectionQuery(cfg)
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		query.Encode(),
	)
}

// servicePrincipalConnString builds the URL for an Azure AD service
// principal, authenticated through the fedauth parameter.
func servicePrincipalConnString(cfg *Config) string {
	query := connectionQuery(cfg)
	query.Add("fedauth", "ActiveDirectoryServicePrincipal")
	query.Add("user id", cfg.ClientID)
	query.Add("password", cfg.ClientSecret)
	query.Add("tenant id", cfg.TenantID)
	return fmt.Sprintf("sqlserver://%s:%d?%s", cfg.Host, cfg.Port, query.Encode())
}

func connectionQuery(cfg *Config) url.Values {
	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("app name", "ekaya-catalog")

	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}
	return query
}

// TestConnection verifies the server is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	// Run a simple query to ensure we have database access
	var result int
	err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// ListDatabases returns the online user databases of the server.
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	query := `
	SELECT name
	FROM sys.databases
	WHERE state = 0  -- ONLINE
	  AND name NOT IN ('master', 'tempdb', 'model', 'msdb')
	ORDER BY name
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate database rows: %w", err)
	}
	return names, nil
}

// withDatabase runs fn on a connection switched to database. The connection
// is reserved for fn so the USE cannot leak into other queries.
func (a *Adapter) withDatabase(ctx context.Context, database string, fn func(conn *sql.Conn) error) error {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "USE "+quoteName(database)); err != nil {
		return fmt.Errorf("switch to database %s: %w", database, err)
	}
	return fn(conn)
}

// Ensure Adapter implements MetadataSource at compile time.
var _ datasource.MetadataSource = (*Adapter)(nil)
