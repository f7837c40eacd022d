package catalog

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// snapshotVersions bounds how many decoded snapshots a Reader holds. A refresh
// replaces the file, so older versions age out quickly.
const snapshotVersions = 2

type snapshotKey struct {
	path    string
	modTime time.Time
}

// Reader serves the rows of the current snapshot to long-running servers. A
// snapshot is decoded once per file version and shared across requests;
// callers must not modify the returned rows.
type Reader struct {
	store  *Store
	cache  *lru.Cache[snapshotKey, []models.CatalogRow]
	logger *zap.Logger
}

// NewReader wraps store with a per-version cache.
func NewReader(store *Store, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[snapshotKey, []models.CatalogRow](snapshotVersions)
	if err != nil {
		return nil, err
	}
	return &Reader{store: store, cache: cache, logger: logger.Named("catalog-reader")}, nil
}

// Rows returns the rows of the snapshot currently on disk.
func (r *Reader) Rows(ctx context.Context) ([]models.CatalogRow, error) {
	modTime, err := r.store.ModTime()
	if err != nil {
		return nil, err
	}
	key := snapshotKey{path: r.store.Path(), modTime: modTime}
	if rows, ok := r.cache.Get(key); ok {
		return rows, nil
	}

	rows, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, rows)
	r.logger.Debug("Loaded catalog snapshot",
		zap.Time("mod_time", modTime),
		zap.Int("rows", len(rows)))
	return rows, nil
}
