package mssql

import (
	"fmt"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
)

// quoteName returns a bracket-quoted identifier, the equivalent of QUOTENAME().
// ] is escaped as ]].
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "]", "]]")
	return fmt.Sprintf("[%s]", escaped)
}

// buildFullyQualifiedName builds a fully qualified table name: [schema].[table]
func buildFullyQualifiedName(schema, table string) string {
	return fmt.Sprintf("%s.%s", quoteName(schema), quoteName(table))
}

// lobTypes cannot be compared, so COUNT(DISTINCT) fails on them.
var lobTypes = map[string]bool{
	"text":        true,
	"ntext":       true,
	"sql_variant": true,
}

func isProfilable(dataType string) bool {
	return datasource.IsProfilable(dataType) && !lobTypes[strings.ToLower(dataType)]
}

// buildProfileQuery counts rows, nulls and distinct values of every column
// over the first sampleSize rows of a table (all rows when sampleSize <= 0).
// Column i's counts are at positions 1+2i and 2+2i.
func buildProfileQuery(schema, table string, columns []string, sampleSize int) string {
	stats := make([]string, 0, len(columns))
	for _, col := range columns {
		q := quoteName(col)
		stats = append(stats, fmt.Sprintf("SUM(CASE WHEN %s IS NULL THEN 1 ELSE 0 END), COUNT(DISTINCT %s)", q, q))
	}

	from := buildFullyQualifiedName(schema, table)
	if sampleSize > 0 {
		from = fmt.Sprintf("(SELECT TOP (%d) * FROM %s) AS sampled", sampleSize, from)
	}
	return fmt.Sprintf("SELECT COUNT_BIG(*), %s FROM %s", strings.Join(stats, ", "), from)
}

// latest returns the most recent of the valid times, nil when none is set.
func latest(times ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range times {
		if t != nil && (out == nil || t.After(*out)) {
			out = t
		}
	}
	return out
}
