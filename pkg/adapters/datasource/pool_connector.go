package datasource

import "context"

// PoolConnector abstracts a connection pool bound to one database, whatever
// the driver.
type PoolConnector interface {
	// Ping verifies the connection is alive
	Ping(ctx context.Context) error

	// Close closes all connections in the pool
	Close() error

	// GetType returns the database type for logging/stats
	GetType() string
}

// OpenPoolFunc opens a pool connected to database.
type OpenPoolFunc func(ctx context.Context, database string) (PoolConnector, error)
