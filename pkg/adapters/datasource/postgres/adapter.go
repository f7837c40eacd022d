package postgres

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
)

// maxPoolConns bounds each per-database pool. Metadata reads are sequential
// within a database.
const maxPoolConns = 2

// Adapter reads catalog metadata from a PostgreSQL server. A PostgreSQL
// connection is bound to one database, so the adapter keeps one pool per
// database it has visited.
type Adapter struct {
	config *Config
	logger *zap.Logger
	pools  *datasource.PoolCache
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// IMPORTANT: All user-provided fields must be URL-escaped to handle special characters
// in passwords (e.g., @, /, #, ?) that would otherwise break URL parsing.
func buildConnectionString(cfg *Config, database string) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + database,
		RawQuery: url.Values{"sslmode": {sslMode}, "application_name": {"ekaya-catalog"}}.Encode(),
	}
	return u.String()
}

// NewAdapter connects to the configured initial database and verifies it.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Adapter{
		config: cfg,
		logger: logger,
	}
	a.pools = datasource.NewPoolCache(datasource.DefaultMaxPools, a.openPool, logger)
	if _, err := a.pool(ctx, cfg.Database); err != nil {
		a.pools.Close()
		return nil, err
	}
	return a, nil
}

// pool returns the pool for database, creating it on first use.
func (a *Adapter) pool(ctx context.Context, database string) (*pgxpool.Pool, error) {
	conn, err := a.pools.Get(ctx, database)
	if err != nil {
		return nil, err
	}
	return unwrapPool(conn)
}

func (a *Adapter) openPool(ctx context.Context, database string) (datasource.PoolConnector, error) {
	connStr := buildConnectionString(a.config, database)
	a.logger.Debug("Opening PostgreSQL pool", zap.String("dsn", logging.SanitizeConnectionString(connStr)))
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %s", logging.SanitizeError(err))
	}
	poolCfg.MaxConns = maxPoolConns

	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %s", database, logging.SanitizeError(err))
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("connection test failed: %s", logging.SanitizeError(err))
	}

	return cachedPool{p}, nil
}

// TestConnection verifies the server is reachable and the initial database
// is the one configured.
func (a *Adapter) TestConnection(ctx context.Context) error {
	p, err := a.pool(ctx, a.config.Database)
	if err != nil {
		return err
	}

	var currentDB string
	if err := p.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}
	if currentDB != a.config.Database {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}
	return nil
}

// Close releases every pool the adapter opened.
func (a *Adapter) Close() error {
	return a.pools.Close()
}

// ListDatabases returns the databases that accept connections, excluding
// templates.
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	const query = `
		SELECT datname
		FROM pg_database
		WHERE datallowconn
		  AND NOT datistemplate
		  AND datname NOT IN ('rdsadmin', 'azure_maintenance', 'azure_sys', 'cloudsqladmin')
		ORDER BY datname
	`

	p, err := a.pool(ctx, a.config.Database)
	if err != nil {
		return nil, err
	}
	rows, err := p.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query databases: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan databases: %w", err)
	}
	return names, nil
}

// qualifiedTableName returns a properly quoted table reference.
func qualifiedTableName(schemaName, tableName string) string {
	return pgx.Identifier{schemaName, tableName}.Sanitize()
}

// Ensure Adapter implements MetadataSource at compile time.
var _ datasource.MetadataSource = (*Adapter)(nil)
