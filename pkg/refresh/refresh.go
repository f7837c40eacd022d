// Package refresh scans source servers into the catalog snapshot.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/retry"
)

// Options control one refresh run.
type Options struct {
	// Targets limits the run to these target keys; empty means all.
	Targets       []string
	Profile       bool
	ProfileSample int
	// Timeout bounds the scan of a single database.
	Timeout     time.Duration
	Parallelism int
}

// OptionsFromConfig maps the scan settings onto Options.
func OptionsFromConfig(c config.ScanConfig) Options {
	return Options{
		Profile:       c.Profile,
		ProfileSample: c.ProfileSample,
		Timeout:       c.Timeout(),
		Parallelism:   c.Parallelism,
	}
}

// DatabaseFailure is a database whose scan was abandoned.
type DatabaseFailure struct {
	Database string `json:"database"`
	Error    string `json:"error"`
}

// TargetResult reports the refresh of one target.
type TargetResult struct {
	Target    string            `json:"target"`
	Databases int               `json:"databases"`
	Rows      int               `json:"rows"`
	Failures  []DatabaseFailure `json:"failures,omitempty"`
	// Error is set when the target could not be scanned at all; its previous
	// partition is left untouched.
	Error string `json:"error,omitempty"`
}

// Result reports a refresh run.
type Result struct {
	Targets   []TargetResult `json:"targets"`
	TotalRows int            `json:"total_rows"`
}

// Refresher scans targets and maintains the snapshot, last_scan.json and
// the catalog summary.
type Refresher struct {
	store   *catalog.Store
	factory datasource.DatasourceAdapterFactory
	paths   config.Paths
	lookup  func(string) (string, bool)
	retry   *retry.Config
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Refresher. Credentials are looked up in the environment.
func New(store *catalog.Store, factory datasource.DatasourceAdapterFactory, paths config.Paths, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		store:   store,
		factory: factory,
		paths:   paths,
		lookup:  os.LookupEnv,
		retry:   retry.DefaultConfig(),
		logger:  logger.Named("refresh"),
		now:     time.Now,
	}
}

// Run refreshes the selected targets one after another. Unknown target keys
// and missing credentials fail the run before anything is scanned.
// Unreachable targets and failing databases are reported in the result.
func (r *Refresher) Run(ctx context.Context, targets config.Targets, opts Options) (*Result, error) {
	keys := opts.Targets
	if len(keys) == 0 {
		keys = targets.Keys()
	}

	conns := make(map[string]datasource.ConnectionConfig, len(keys))
	for _, key := range keys {
		t, ok := targets[key]
		if !ok {
			return nil, fmt.Errorf("%w: target %q is not in targets.yaml", apperrors.ErrNotFound, key)
		}
		cc, err := datasource.ConnectionConfigFor(t, r.lookup)
		if err != nil {
			return nil, err
		}
		conns[key] = cc
	}

	result := &Result{}
	var merged []models.CatalogRow
	for _, key := range keys {
		tr, rows := r.refreshTarget(ctx, key, targets[key], conns[key], opts)
		result.Targets = append(result.Targets, tr)
		if rows != nil {
			merged = rows
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	if merged == nil {
		rows, err := r.store.Load(ctx)
		if errors.Is(err, apperrors.ErrCatalogNotFound) {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("reload catalog: %w", err)
		}
		merged = rows
	}
	result.TotalRows = len(merged)
	if err := jsonutil.WriteBytes(r.paths.CatalogSummary, []byte(catalog.Summary(merged, r.now()))); err != nil {
		return result, fmt.Errorf("write catalog summary: %w", err)
	}
	return result, nil
}

// refreshTarget scans one target and replaces its partition. It returns the
// merged catalog, or nil when the partition was left untouched.
func (r *Refresher) refreshTarget(ctx context.Context, key string, t config.Target, cc datasource.ConnectionConfig, opts Options) (TargetResult, []models.CatalogRow) {
	logger := r.logger.With(zap.String("target", key))
	tr := TargetResult{Target: key}
	fail := func(err error) (TargetResult, []models.CatalogRow) {
		tr.Error = logging.SanitizeError(err)
		logger.Error("Target refresh failed", zap.String("error", tr.Error))
		return tr, nil
	}

	src, err := datasource.Open(ctx, r.factory, t, cc, r.retry)
	if err != nil {
		return fail(err)
	}
	defer src.Close()

	var all []string
	err = retry.DoIfRetryable(ctx, r.retry, func() error {
		var err error
		all, err = src.ListDatabases(ctx)
		return err
	})
	if err != nil {
		return fail(fmt.Errorf("list databases: %w", err))
	}
	var databases []string
	for _, db := range all {
		if t.IncludesDatabase(db) {
			databases = append(databases, db)
		}
	}
	tr.Databases = len(databases)
	logger.Info("Scanning target", zap.Int("databases", len(databases)))

	scanned := r.scanDatabases(ctx, logger, src, key, cc.Host, databases, opts)

	var rows []models.CatalogRow
	for i, db := range databases {
		if scanned[i].err != nil {
			tr.Failures = append(tr.Failures, DatabaseFailure{Database: db, Error: logging.SanitizeError(scanned[i].err)})
			continue
		}
		rows = append(rows, scanned[i].rows...)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	merged, err := r.store.ReplaceTarget(ctx, key, rows)
	if err != nil {
		return fail(fmt.Errorf("write catalog: %w", err))
	}
	if err := catalog.RecordScan(r.paths.LastScan, key, len(rows), r.now()); err != nil {
		return fail(fmt.Errorf("record scan: %w", err))
	}
	tr.Rows = len(rows)
	logger.Info("Target refreshed",
		zap.Int("rows", len(rows)),
		zap.Int("failed_databases", len(tr.Failures)))
	return tr, merged
}

type databaseScan struct {
	rows []models.CatalogRow
	err  error
}

// scanDatabases scans up to opts.Parallelism databases at once. Results
// keep the order of databases.
func (r *Refresher) scanDatabases(ctx context.Context, logger *zap.Logger, src datasource.MetadataSource, target, server string, databases []string, opts Options) []databaseScan {
	results := make([]databaseScan, len(databases))
	limit := opts.Parallelism
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, db := range databases {
		g.Go(func() error {
			dbCtx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				dbCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}
			rows, err := r.scanDatabase(dbCtx, logger, src, target, server, db, opts)
			if err != nil {
				logger.Warn("Database scan failed, continuing",
					zap.String("database", db),
					zap.String("error", logging.SanitizeError(err)))
			}
			results[i] = databaseScan{rows: rows, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// scanDatabase builds the catalog rows of one database: every column of
// every table, optionally with profiling stats. A profiling failure only
// drops the stats of that table.
func (r *Refresher) scanDatabase(ctx context.Context, logger *zap.Logger, src datasource.MetadataSource, target, server, db string, opts Options) ([]models.CatalogRow, error) {
	tables, err := src.DiscoverTables(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("scan database %s: discover tables: %w", db, err)
	}
	columns, err := src.DiscoverColumns(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("scan database %s: discover columns: %w", db, err)
	}

	type tableRef struct{ schema, table string }
	byTable := make(map[tableRef][]datasource.ColumnMetadata)
	for _, c := range columns {
		ref := tableRef{c.SchemaName, c.TableName}
		byTable[ref] = append(byTable[ref], c)
	}

	scannedAt := r.now().UTC()
	var rows []models.CatalogRow
	for _, t := range tables {
		cols := byTable[tableRef{t.SchemaName, t.TableName}]
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].OrdinalPosition < cols[j].OrdinalPosition })

		var profiles map[string]datasource.ColumnProfile
		if opts.Profile && len(cols) > 0 {
			profiles, err = profileTable(ctx, src, db, t, cols, opts.ProfileSample)
			if err != nil {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("scan database %s: %w", db, ctx.Err())
				}
				logger.Warn("Profiling failed, keeping table without stats",
					zap.String("database", db),
					zap.String("table", t.SchemaName+"."+t.TableName),
					zap.String("error", logging.SanitizeError(err)))
			}
		}

		for _, c := range cols {
			row := models.CatalogRow{
				Target:           target,
				Server:           server,
				Database:         db,
				Schema:           c.SchemaName,
				TableName:        c.TableName,
				ColumnName:       c.ColumnName,
				DataType:         c.DataType,
				IsNullable:       c.IsNullable,
				IsPrimaryKey:     c.IsPrimaryKey,
				IsForeignKey:     c.IsForeignKey,
				FKReferences:     c.FKReferences,
				OrdinalPosition:  c.OrdinalPosition,
				RowCountEstimate: t.RowCount,
				LastModified:     t.LastModified,
				ScannedAt:        scannedAt,
			}
			if p, ok := profiles[c.ColumnName]; ok {
				row.NullCount = &p.NullCount
				row.NullRate = &p.NullRate
				row.DistinctCount = &p.DistinctCount
				row.ProfiledRows = &p.ProfiledRows
			}
			rows = append(rows, row)
		}
	}

	logger.Debug("Scanned database",
		zap.String("database", db),
		zap.Int("tables", len(tables)),
		zap.Int("columns", len(rows)))
	return rows, nil
}

func profileTable(ctx context.Context, src datasource.MetadataSource, db string, t datasource.TableMetadata, cols []datasource.ColumnMetadata, sample int) (map[string]datasource.ColumnProfile, error) {
	list, err := src.ProfileColumns(ctx, db, t.SchemaName, t.TableName, cols, sample)
	if err != nil {
		return nil, err
	}
	out := make(map[string]datasource.ColumnProfile, len(list))
	for _, p := range list {
		out[p.ColumnName] = p
	}
	return out, nil
}
