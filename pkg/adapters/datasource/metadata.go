package datasource

import (
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-catalog/pkg/scoring"
)

// TableMetadata represents a discovered database table.
type TableMetadata struct {
	SchemaName   string
	TableName    string
	RowCount     int64
	LastModified *time.Time // latest user access, nil when unknown
}

// ColumnMetadata represents a discovered database column.
type ColumnMetadata struct {
	SchemaName      string
	TableName       string
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	IsForeignKey    bool
	FKReferences    string // "schema.table.column" of the referenced column
	OrdinalPosition int
}

// ColumnProfile contains sampled statistics for a column.
type ColumnProfile struct {
	ColumnName    string
	ProfiledRows  int64
	NullCount     int64
	NullRate      float64 // rounded to 4 decimals
	DistinctCount int64
}

// unprofiledTypes are too large or opaque to count distinct values over.
var unprofiledTypes = map[string]bool{
	"xml":         true,
	"image":       true,
	"varbinary":   true,
	"binary":      true,
	"bytea":       true,
	"blob":        true,
	"longblob":    true,
	"geography":   true,
	"geometry":    true,
	"hierarchyid": true,
	"json":        true,
	"jsonb":       true,
}

// IsProfilable reports whether a column of dataType can be profiled.
func IsProfilable(dataType string) bool {
	return !unprofiledTypes[strings.ToLower(dataType)]
}

// ProfilableColumns filters columns down to the ones ProfileColumns handles.
func ProfilableColumns(columns []ColumnMetadata) []ColumnMetadata {
	var out []ColumnMetadata
	for _, c := range columns {
		if IsProfilable(c.DataType) {
			out = append(out, c)
		}
	}
	return out
}

// NewColumnProfile derives the null rate from raw counts.
func NewColumnProfile(column string, total, nulls, distinct int64) ColumnProfile {
	rate := 0.0
	if total > 0 {
		rate = scoring.Round(float64(nulls)/float64(total), 4)
	}
	return ColumnProfile{
		ColumnName:    column,
		ProfiledRows:  total,
		NullCount:     nulls,
		NullRate:      rate,
		DistinctCount: distinct,
	}
}

// FKReference formats the referenced column of a foreign key.
func FKReference(schema, table, column string) string {
	return schema + "." + table + "." + column
}

// ConnectionConfig is the resolved connection of one target.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	// Database is the initial database for engines that need one to connect.
	Database string
	Options  map[string]string
}

// Option returns an adapter-specific option or fallback.
func (c ConnectionConfig) Option(key, fallback string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}
