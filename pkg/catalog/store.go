// Package catalog owns the column-level catalog snapshot: a SQLite file with
// one row per scanned column, replaced wholesale on every refresh. It also
// answers keyword searches, table lookups, join paths and freshness checks
// over the loaded rows.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/database"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

const insertColumnSQL = `
	INSERT INTO catalog_columns (
		target, server, database_name, schema_name, table_name, column_name, data_type,
		is_nullable, is_primary_key, is_foreign_key, fk_references, ordinal_position,
		row_count_estimate, last_modified, scanned_at,
		null_count, null_rate, distinct_count, profiled_rows
	) VALUES (
		:target, :server, :database_name, :schema_name, :table_name, :column_name, :data_type,
		:is_nullable, :is_primary_key, :is_foreign_key, :fk_references, :ordinal_position,
		:row_count_estimate, :last_modified, :scanned_at,
		:null_count, :null_rate, :distinct_count, :profiled_rows
	)`

const selectColumnsSQL = `
	SELECT target, server, database_name, schema_name, table_name, column_name, data_type,
		is_nullable, is_primary_key, is_foreign_key, fk_references, ordinal_position,
		row_count_estimate, last_modified, scanned_at,
		null_count, null_rate, distinct_count, profiled_rows
	FROM catalog_columns
	ORDER BY id`

// columnRecord is the storage shape of a models.CatalogRow.
type columnRecord struct {
	Target           string          `db:"target"`
	Server           string          `db:"server"`
	Database         string          `db:"database_name"`
	Schema           string          `db:"schema_name"`
	TableName        string          `db:"table_name"`
	ColumnName       string          `db:"column_name"`
	DataType         string          `db:"data_type"`
	IsNullable       bool            `db:"is_nullable"`
	IsPrimaryKey     bool            `db:"is_primary_key"`
	IsForeignKey     bool            `db:"is_foreign_key"`
	FKReferences     string          `db:"fk_references"`
	OrdinalPosition  int             `db:"ordinal_position"`
	RowCountEstimate int64           `db:"row_count_estimate"`
	LastModified     sql.NullString  `db:"last_modified"`
	ScannedAt        string          `db:"scanned_at"`
	NullCount        sql.NullInt64   `db:"null_count"`
	NullRate         sql.NullFloat64 `db:"null_rate"`
	DistinctCount    sql.NullInt64   `db:"distinct_count"`
	ProfiledRows     sql.NullInt64   `db:"profiled_rows"`
}

func toRecord(r *models.CatalogRow) columnRecord {
	rec := columnRecord{
		Target:           r.Target,
		Server:           r.Server,
		Database:         r.Database,
		Schema:           r.Schema,
		TableName:        r.TableName,
		ColumnName:       r.ColumnName,
		DataType:         r.DataType,
		IsNullable:       r.IsNullable,
		IsPrimaryKey:     r.IsPrimaryKey,
		IsForeignKey:     r.IsForeignKey,
		FKReferences:     r.FKReferences,
		OrdinalPosition:  r.OrdinalPosition,
		RowCountEstimate: r.RowCountEstimate,
		ScannedAt:        r.ScannedAt.UTC().Format(time.RFC3339Nano),
	}
	if r.LastModified != nil {
		rec.LastModified = sql.NullString{String: r.LastModified.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	if r.NullCount != nil {
		rec.NullCount = sql.NullInt64{Int64: *r.NullCount, Valid: true}
	}
	if r.NullRate != nil {
		rec.NullRate = sql.NullFloat64{Float64: *r.NullRate, Valid: true}
	}
	if r.DistinctCount != nil {
		rec.DistinctCount = sql.NullInt64{Int64: *r.DistinctCount, Valid: true}
	}
	if r.ProfiledRows != nil {
		rec.ProfiledRows = sql.NullInt64{Int64: *r.ProfiledRows, Valid: true}
	}
	return rec
}

func (rec *columnRecord) toRow() (models.CatalogRow, error) {
	scannedAt, err := time.Parse(time.RFC3339Nano, rec.ScannedAt)
	if err != nil {
		return models.CatalogRow{}, fmt.Errorf("parse scanned_at %q: %w", rec.ScannedAt, err)
	}
	row := models.CatalogRow{
		Target:           rec.Target,
		Server:           rec.Server,
		Database:         rec.Database,
		Schema:           rec.Schema,
		TableName:        rec.TableName,
		ColumnName:       rec.ColumnName,
		DataType:         rec.DataType,
		IsNullable:       rec.IsNullable,
		IsPrimaryKey:     rec.IsPrimaryKey,
		IsForeignKey:     rec.IsForeignKey,
		FKReferences:     rec.FKReferences,
		OrdinalPosition:  rec.OrdinalPosition,
		RowCountEstimate: rec.RowCountEstimate,
		ScannedAt:        scannedAt,
	}
	if rec.LastModified.Valid {
		t, err := time.Parse(time.RFC3339Nano, rec.LastModified.String)
		if err != nil {
			return models.CatalogRow{}, fmt.Errorf("parse last_modified %q: %w", rec.LastModified.String, err)
		}
		row.LastModified = &t
	}
	if rec.NullCount.Valid {
		row.NullCount = &rec.NullCount.Int64
	}
	if rec.NullRate.Valid {
		row.NullRate = &rec.NullRate.Float64
	}
	if rec.DistinctCount.Valid {
		row.DistinctCount = &rec.DistinctCount.Int64
	}
	if rec.ProfiledRows.Valid {
		row.ProfiledRows = &rec.ProfiledRows.Int64
	}
	return row, nil
}

// Store reads and replaces the snapshot file.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore returns a store for the snapshot at path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger.Named("catalog")}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// ModTime returns the snapshot's modification time. A missing snapshot wraps
// apperrors.ErrCatalogNotFound.
func (s *Store) ModTime() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, fmt.Errorf("%w: %s", apperrors.ErrCatalogNotFound, s.path)
		}
		return time.Time{}, fmt.Errorf("stat catalog: %w", err)
	}
	return info.ModTime(), nil
}

// Load reads every row of the snapshot in insertion order. A missing snapshot
// wraps apperrors.ErrCatalogNotFound.
func (s *Store) Load(ctx context.Context) ([]models.CatalogRow, error) {
	if _, err := s.ModTime(); err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(ctx, s.path, true)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()

	var records []columnRecord
	if err := db.SelectContext(ctx, &records, selectColumnsSQL); err != nil {
		return nil, fmt.Errorf("read catalog rows: %w", err)
	}

	rows := make([]models.CatalogRow, 0, len(records))
	for i := range records {
		row, err := records[i].toRow()
		if err != nil {
			return nil, fmt.Errorf("decode catalog row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Write replaces the snapshot with rows. The new snapshot is built in a
// temporary file next to the old one and renamed over it, so readers see
// either the previous or the new catalog.
func (s *Store) Write(ctx context.Context, rows []models.CatalogRow) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := s.writeFile(ctx, tmpPath, rows); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}

	s.logger.Info("Wrote catalog snapshot",
		zap.String("path", s.path),
		zap.Int("rows", len(rows)))
	return nil
}

func (s *Store) writeFile(ctx context.Context, path string, rows []models.CatalogRow) error {
	db, err := database.OpenSQLite(ctx, path, false)
	if err != nil {
		return fmt.Errorf("open temp catalog: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.DB, s.logger); err != nil {
		return err
	}

	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, insertColumnSQL)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i := range rows {
			if _, err := stmt.ExecContext(ctx, toRecord(&rows[i])); err != nil {
				return fmt.Errorf("insert %s.%s: %w", rows[i].Key(), rows[i].ColumnName, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write catalog rows: %w", err)
	}
	return db.Close()
}

// ReplaceTarget swaps the partition of one target for rows and keeps every
// other target's partition. It returns the merged catalog.
func (s *Store) ReplaceTarget(ctx context.Context, target string, rows []models.CatalogRow) ([]models.CatalogRow, error) {
	existing, err := s.Load(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrCatalogNotFound) {
		return nil, err
	}
	merged := Merge(existing, target, rows)
	if err := s.Write(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Merge drops the existing partition of target and appends rows.
func Merge(existing []models.CatalogRow, target string, rows []models.CatalogRow) []models.CatalogRow {
	merged := make([]models.CatalogRow, 0, len(existing)+len(rows))
	for _, r := range existing {
		if r.Target != target {
			merged = append(merged, r)
		}
	}
	return append(merged, rows...)
}
