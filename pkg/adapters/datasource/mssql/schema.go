package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
)

// DiscoverTables returns all user tables (excludes system schemas) with row
// count estimates and the latest index access recorded by the server.
func (a *Adapter) DiscoverTables(ctx context.Context, database string) ([]datasource.TableMetadata, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    s.name AS table_schema,
	    t.name AS table_name,
	    CAST(ISNULL(SUM(p.rows), 0) AS BIGINT) AS row_count
	FROM sys.tables t
	INNER JOIN sys.schemas s ON t.schema_id = s.schema_id
	LEFT JOIN sys.partitions p ON t.object_id = p.object_id AND p.index_id IN (0, 1)  -- Heap or clustered index
	WHERE t.type = 'U'
	  AND t.is_ms_shipped = 0
	  AND s.name NOT IN ('sys', 'INFORMATION_SCHEMA')
	GROUP BY s.name, t.name
	ORDER BY table_schema, table_name
	`

	var tables []datasource.TableMetadata
	err := a.withDatabase(ctx, database, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("query tables: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var table datasource.TableMetadata
			if err := rows.Scan(&table.SchemaName, &table.TableName, &table.RowCount); err != nil {
				return fmt.Errorf("scan table row: %w", err)
			}
			tables = append(tables, table)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate table rows: %w", err)
		}

		// Index usage needs VIEW SERVER STATE; tables stay usable without it.
		usage, err := a.lastAccess(ctx, conn)
		if err != nil {
			a.logger.Warn("Index usage stats unavailable",
				zap.String("database", database),
				zap.String("error", logging.SanitizeError(err)))
			return nil
		}
		for i := range tables {
			tables[i].LastModified = usage[tables[i].SchemaName+"."+tables[i].TableName]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// lastAccess returns the latest seek, scan, lookup or update per table, keyed
// by "schema.table".
func (a *Adapter) lastAccess(ctx context.Context, conn *sql.Conn) (map[string]*time.Time, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    s.name AS table_schema,
	    t.name AS table_name,
	    MAX(ius.last_user_seek),
	    MAX(ius.last_user_scan),
	    MAX(ius.last_user_lookup),
	    MAX(ius.last_user_update)
	FROM sys.tables t
	INNER JOIN sys.schemas s ON t.schema_id = s.schema_id
	LEFT JOIN sys.dm_db_index_usage_stats ius
	    ON t.object_id = ius.object_id
	    AND ius.database_id = DB_ID()
	WHERE s.name NOT IN ('sys', 'INFORMATION_SCHEMA')
	GROUP BY s.name, t.name
	`

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query index usage: %w", err)
	}
	defer rows.Close()

	usage := map[string]*time.Time{}
	for rows.Next() {
		var schema, table string
		var seek, scan, lookup, update sql.NullTime
		if err := rows.Scan(&schema, &table, &seek, &scan, &lookup, &update); err != nil {
			return nil, fmt.Errorf("scan index usage row: %w", err)
		}
		if t := latest(nullTime(seek), nullTime(scan), nullTime(lookup), nullTime(update)); t != nil {
			usage[schema+"."+table] = t
		}
	}
	return usage, rows.Err()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// DiscoverColumns returns every column of every user table of a database
// with key flags. A column in several foreign keys reports the first one.
func (a *Adapter) DiscoverColumns(ctx context.Context, database string) ([]datasource.ColumnMetadata, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    c.TABLE_SCHEMA,
	    c.TABLE_NAME,
	    c.COLUMN_NAME,
	    c.DATA_TYPE,
	    CAST(CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS BIT) AS is_nullable,
	    CAST(c.ORDINAL_POSITION AS INT) AS ordinal_position,
	    CAST(CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS BIT) AS is_primary_key,
	    fk.ref_schema,
	    fk.ref_table,
	    fk.ref_column
	FROM INFORMATION_SCHEMA.COLUMNS c
	INNER JOIN INFORMATION_SCHEMA.TABLES t
	    ON c.TABLE_SCHEMA = t.TABLE_SCHEMA
	    AND c.TABLE_NAME = t.TABLE_NAME
	INNER JOIN sys.columns sc
	    ON sc.object_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + N'.' + QUOTENAME(c.TABLE_NAME))
	    AND sc.name = c.COLUMN_NAME
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON sc.object_id = pk.object_id AND sc.column_id = pk.column_id
	OUTER APPLY (
	    SELECT TOP 1
	        rs.name AS ref_schema,
	        rt.name AS ref_table,
	        rc.name AS ref_column
	    FROM sys.foreign_key_columns fkc
	    INNER JOIN sys.tables rt ON fkc.referenced_object_id = rt.object_id
	    INNER JOIN sys.schemas rs ON rt.schema_id = rs.schema_id
	    INNER JOIN sys.columns rc ON fkc.referenced_object_id = rc.object_id AND fkc.referenced_column_id = rc.column_id
	    WHERE fkc.parent_object_id = sc.object_id
	      AND fkc.parent_column_id = sc.column_id
	    ORDER BY fkc.constraint_object_id
	) fk
	WHERE t.TABLE_TYPE = 'BASE TABLE'
	  AND c.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
	ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION
	`

	var columns []datasource.ColumnMetadata
	err := a.withDatabase(ctx, database, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("query columns: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var col datasource.ColumnMetadata
			var refSchema, refTable, refColumn sql.NullString
			if err := rows.Scan(&col.SchemaName, &col.TableName, &col.ColumnName, &col.DataType,
				&col.IsNullable, &col.OrdinalPosition, &col.IsPrimaryKey,
				&refSchema, &refTable, &refColumn); err != nil {
				return fmt.Errorf("scan column row: %w", err)
			}
			if refTable.Valid {
				col.IsForeignKey = true
				col.FKReferences = datasource.FKReference(refSchema.String, refTable.String, refColumn.String)
			}
			columns = append(columns, col)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate column rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// ProfileColumns counts nulls and distinct values over the first sampleSize
// rows of a table.
func (a *Adapter) ProfileColumns(ctx context.Context, database, schemaName, tableName string, columns []datasource.ColumnMetadata, sampleSize int) ([]datasource.ColumnProfile, error) {
	var names []string
	for _, c := range columns {
		if isProfilable(c.DataType) {
			names = append(names, c.ColumnName)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	query := buildProfileQuery(schemaName, tableName, names, sampleSize)

	var profiles []datasource.ColumnProfile
	err := a.withDatabase(ctx, database, func(conn *sql.Conn) error {
		counts := make([]sql.NullInt64, 1+2*len(names))
		dest := make([]any, len(counts))
		for i := range counts {
			dest[i] = &counts[i]
		}
		if err := conn.QueryRowContext(ctx, query).Scan(dest...); err != nil {
			return fmt.Errorf("profile %s.%s: %w", schemaName, tableName, err)
		}

		total := counts[0].Int64
		for i, name := range names {
			profiles = append(profiles, datasource.NewColumnProfile(name, total, counts[1+2*i].Int64, counts[2+2*i].Int64))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
