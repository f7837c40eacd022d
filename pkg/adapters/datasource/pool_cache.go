package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
	"github.com/ekaya-inc/ekaya-catalog/pkg/retry"
)

const (
	// DefaultMaxPools bounds the pools a PoolCache keeps open at once.
	DefaultMaxPools = 8
	// healthCheckAfter is how long a pool may sit idle before it is pinged
	// again on reuse.
	healthCheckAfter = 30 * time.Second
	pingTimeout      = 5 * time.Second
)

// PoolCache keeps one connection pool per database for engines whose
// connections are bound to a single database. When more than maxPools
// databases are open, the least recently used pool is closed.
type PoolCache struct {
	mu       sync.Mutex
	pools    map[string]*cachedPool
	maxPools int
	open     OpenPoolFunc
	retry    *retry.Config
	closed   bool
	logger   *zap.Logger
	now      func() time.Time
}

type cachedPool struct {
	conn     PoolConnector
	lastUsed time.Time
}

// PoolStats describes the open pools of a PoolCache.
type PoolStats struct {
	Open      int      `json:"open"`
	MaxPools  int      `json:"max_pools"`
	Databases []string `json:"databases"`
}

// NewPoolCache creates a PoolCache that opens pools with open.
func NewPoolCache(maxPools int, open OpenPoolFunc, logger *zap.Logger) *PoolCache {
	if maxPools <= 0 {
		maxPools = DefaultMaxPools
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolCache{
		pools:    make(map[string]*cachedPool),
		maxPools: maxPools,
		open:     open,
		retry:    retry.DefaultConfig(),
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the pool for database, opening it on first use. A cached pool
// idle for a while is pinged first and reopened if the ping fails.
func (c *PoolCache) Get(ctx context.Context, database string) (PoolConnector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("pool cache is closed")
	}

	now := c.now()
	if cached, ok := c.pools[database]; ok {
		if now.Sub(cached.lastUsed) < healthCheckAfter {
			cached.lastUsed = now
			return cached.conn, nil
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := cached.conn.Ping(pingCtx)
		cancel()
		if err == nil {
			cached.lastUsed = now
			return cached.conn, nil
		}
		c.logger.Warn("Pool unhealthy, reopening",
			zap.String("database", database),
			zap.String("error", logging.SanitizeError(err)))
		c.closePool(database)
	}

	if len(c.pools) >= c.maxPools {
		c.evictOldest()
	}

	conn, err := retry.DoWithResultIfRetryable(ctx, c.retry, func() (PoolConnector, error) {
		return c.open(ctx, database)
	})
	if err != nil {
		return nil, err
	}
	c.pools[database] = &cachedPool{conn: conn, lastUsed: c.now()}
	c.logger.Debug("Opened pool",
		zap.String("database", database),
		zap.String("type", conn.GetType()),
		zap.Int("open", len(c.pools)))
	return conn, nil
}

// evictOldest closes the least recently used pool. Caller holds c.mu.
func (c *PoolCache) evictOldest() {
	var oldest string
	var oldestAt time.Time
	for db, p := range c.pools {
		if oldest == "" || p.lastUsed.Before(oldestAt) {
			oldest, oldestAt = db, p.lastUsed
		}
	}
	if oldest != "" {
		c.logger.Debug("Evicting idle pool", zap.String("database", oldest))
		c.closePool(oldest)
	}
}

// closePool closes and forgets one pool. Caller holds c.mu.
func (c *PoolCache) closePool(database string) {
	if p, ok := c.pools[database]; ok {
		if err := p.conn.Close(); err != nil {
			c.logger.Debug("Failed to close pool", zap.String("database", database), zap.Error(err))
		}
		delete(c.pools, database)
	}
}

// Close closes every pool. Further calls to Get fail. Close is idempotent.
func (c *PoolCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for db := range c.pools {
		c.closePool(db)
	}
	return nil
}

// Stats reports the open pools.
func (c *PoolCache) Stats() PoolStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := PoolStats{Open: len(c.pools), MaxPools: c.maxPools, Databases: make([]string, 0, len(c.pools))}
	for db := range c.pools {
		stats.Databases = append(stats.Databases, db)
	}
	sort.Strings(stats.Databases)
	return stats
}
