package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
)

// cachedPool lets a pgx pool live in the shared datasource.PoolCache.
type cachedPool struct {
	*pgxpool.Pool
}

func (p cachedPool) Close() error {
	p.Pool.Close()
	return nil
}

func (cachedPool) GetType() string { return "postgres" }

// unwrapPool returns the pgx pool behind a connector handed out by the cache.
func unwrapPool(conn datasource.PoolConnector) (*pgxpool.Pool, error) {
	p, ok := conn.(cachedPool)
	if !ok {
		return nil, fmt.Errorf("pool cache returned %T, want a PostgreSQL pool", conn)
	}
	return p.Pool, nil
}
