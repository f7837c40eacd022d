package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
)

// largeTypes are skipped by profiling on top of the shared list.
var largeTypes = map[string]bool{
	"tinyblob":        true,
	"mediumblob":      true,
	"longtext":        true,
	"point":           true,
	"linestring":      true,
	"polygon":         true,
	"multipoint":      true,
	"multilinestring": true,
	"multipolygon":    true,
	"geomcollection":  true,
}

func isProfilable(dataType string) bool {
	return datasource.IsProfilable(dataType) && !largeTypes[strings.ToLower(dataType)]
}

// quoteName quotes an identifier with backticks.
func quoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// DiscoverTables returns the base tables of a schema. TABLE_ROWS is an
// estimate for InnoDB; UPDATE_TIME is the last write the server remembers.
func (a *Adapter) DiscoverTables(ctx context.Context, database string) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT TABLE_NAME, COALESCE(TABLE_ROWS, 0), UPDATE_TIME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`

	rows, err := a.db.QueryContext(ctx, query, database)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		t := datasource.TableMetadata{SchemaName: database}
		var updated sql.NullTime
		if err := rows.Scan(&t.TableName, &t.RowCount, &updated); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if updated.Valid {
			ts := updated.Time.UTC()
			t.LastModified = &ts
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// DiscoverColumns returns every column of every base table in a schema. For
// a column in several foreign keys the lowest reference wins.
func (a *Adapter) DiscoverColumns(ctx context.Context, database string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			c.TABLE_NAME,
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.IS_NULLABLE = 'YES',
			c.COLUMN_KEY = 'PRI',
			k.ref,
			c.ORDINAL_POSITION
		FROM information_schema.COLUMNS c
		JOIN information_schema.TABLES t
		  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME AND t.TABLE_TYPE = 'BASE TABLE'
		LEFT JOIN (
			SELECT TABLE_NAME, COLUMN_NAME,
				MIN(CONCAT_WS('.', REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME)) AS ref
			FROM information_schema.KEY_COLUMN_USAGE
			WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL
			GROUP BY TABLE_NAME, COLUMN_NAME
		) k ON k.TABLE_NAME = c.TABLE_NAME AND k.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = ?
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION
	`

	rows, err := a.db.QueryContext(ctx, query, database, database)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		c := datasource.ColumnMetadata{SchemaName: database}
		var ref sql.NullString
		if err := rows.Scan(&c.TableName, &c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &ref, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if ref.Valid && ref.String != "" {
			c.IsForeignKey = true
			c.FKReferences = ref.String
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// buildProfileQuery counts rows, nulls and distinct values of each column in
// one pass over a LIMIT sample.
func buildProfileQuery(schemaName, tableName string, columns []string, sampleSize int) string {
	exprs := make([]string, 0, 1+2*len(columns))
	exprs = append(exprs, "COUNT(*)")
	for _, col := range columns {
		q := quoteName(col)
		exprs = append(exprs,
			fmt.Sprintf("COUNT(*) - COUNT(%s)", q),
			fmt.Sprintf("COUNT(DISTINCT %s)", q))
	}

	source := quoteName(schemaName) + "." + quoteName(tableName)
	if sampleSize > 0 {
		source = fmt.Sprintf("(SELECT * FROM %s LIMIT %d) AS sampled", source, sampleSize)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), source)
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
	if schemaName == "" {
		schemaName = database
	}

	counts := make([]sql.NullInt64, 1+2*len(names))
	dest := make([]any, len(counts))
	for i := range counts {
		dest[i] = &counts[i]
	}
	query := buildProfileQuery(schemaName, tableName, names, sampleSize)
	if err := a.db.QueryRowContext(ctx, query).Scan(dest...); err != nil {
		return nil, fmt.Errorf("profile %s.%s: %w", schemaName, tableName, err)
	}

	total := counts[0].Int64
	profiles := make([]datasource.ColumnProfile, 0, len(names))
	for i, name := range names {
		profiles = append(profiles, datasource.NewColumnProfile(name, total, counts[1+2*i].Int64, counts[2+2*i].Int64))
	}
	return profiles, nil
}
