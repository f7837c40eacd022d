package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
)

// geometricTypes have no equality operator, so COUNT(DISTINCT) rejects them.
var geometricTypes = map[string]bool{
	"point":   true,
	"line":    true,
	"lseg":    true,
	"box":     true,
	"path":    true,
	"polygon": true,
	"circle":  true,
}

func isProfilable(dataType string) bool {
	return datasource.IsProfilable(dataType) && !geometricTypes[dataType]
}

// DiscoverTables returns all user tables (excludes system schemas). Row
// counts come from planner statistics; tables never analyzed report zero.
// PostgreSQL keeps no per-table access time, so LastModified stays nil.
func (a *Adapter) DiscoverTables(ctx context.Context, database string) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT
			n.nspname AS table_schema,
			c.relname AS table_name,
			GREATEST(c.reltuples, 0)::bigint AS row_count
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
		  AND NOT c.relispartition
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		  AND n.nspname NOT LIKE 'pg_toast%'
		ORDER BY table_schema, table_name
	`

	p, err := a.pool(ctx, database)
	if err != nil {
		return nil, err
	}
	rows, err := p.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.SchemaName, &t.TableName, &t.RowCount); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// DiscoverColumns returns every column of every user table. Uses
// pg_index.indisprimary for primary keys, which also catches keys created
// as unique indexes by ORMs. For a column in several foreign keys the
// oldest constraint wins.
func (a *Adapter) DiscoverColumns(ctx context.Context, database string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			n.nspname AS table_schema,
			c.relname AS table_name,
			att.attname AS column_name,
			format_type(att.atttypid, NULL) AS data_type,
			NOT att.attnotnull AS is_nullable,
			EXISTS (
				SELECT 1 FROM pg_index ix
				WHERE ix.indrelid = c.oid
				  AND ix.indisprimary
				  AND att.attnum = ANY(ix.indkey)
			) AS is_primary_key,
			fk.ref_schema,
			fk.ref_table,
			fk.ref_column,
			att.attnum::int AS ordinal_position
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute att ON att.attrelid = c.oid AND att.attnum > 0 AND NOT att.attisdropped
		LEFT JOIN LATERAL (
			SELECT rn.nspname AS ref_schema, rc.relname AS ref_table, ra.attname AS ref_column
			FROM pg_constraint con
			JOIN LATERAL unnest(con.conkey, con.confkey) AS k(src, dst) ON true
			JOIN pg_class rc ON rc.oid = con.confrelid
			JOIN pg_namespace rn ON rn.oid = rc.relnamespace
			JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.dst
			WHERE con.contype = 'f'
			  AND con.conrelid = c.oid
			  AND k.src = att.attnum
			ORDER BY con.oid
			LIMIT 1
		) fk ON true
		WHERE c.relkind IN ('r', 'p')
		  AND NOT c.relispartition
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		  AND n.nspname NOT LIKE 'pg_toast%'
		ORDER BY table_schema, table_name, att.attnum
	`

	p, err := a.pool(ctx, database)
	if err != nil {
		return nil, err
	}
	rows, err := p.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var c datasource.ColumnMetadata
		var refSchema, refTable, refColumn *string
		if err := rows.Scan(&c.SchemaName, &c.TableName, &c.ColumnName, &c.DataType,
			&c.IsNullable, &c.IsPrimaryKey, &refSchema, &refTable, &refColumn, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if refTable != nil {
			c.IsForeignKey = true
			c.FKReferences = datasource.FKReference(*refSchema, *refTable, *refColumn)
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
	exprs = append(exprs, "count(*)")
	for _, col := range columns {
		q := pgx.Identifier{col}.Sanitize()
		exprs = append(exprs,
			fmt.Sprintf("count(*) - count(%s)", q),
			fmt.Sprintf("count(DISTINCT %s)", q))
	}

	source := qualifiedTableName(schemaName, tableName)
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

	p, err := a.pool(ctx, database)
	if err != nil {
		return nil, err
	}

	counts := make([]int64, 1+2*len(names))
	dest := make([]any, len(counts))
	for i := range counts {
		dest[i] = &counts[i]
	}
	query := buildProfileQuery(schemaName, tableName, names, sampleSize)
	if err := p.QueryRow(ctx, query).Scan(dest...); err != nil {
		return nil, fmt.Errorf("profile %s.%s: %w", schemaName, tableName, err)
	}

	total := counts[0]
	profiles := make([]datasource.ColumnProfile, 0, len(names))
	for i, name := range names {
		profiles = append(profiles, datasource.NewColumnProfile(name, total, counts[1+2*i], counts[2+2*i]))
	}
	return profiles, nil
}
