package models

import (
	"strings"
	"time"
)

// CatalogRow is one column of one scanned table. The catalog snapshot is a
// flat list of these, one partition per target.
type CatalogRow struct {
	Target           string     `json:"target"`
	Server           string     `json:"server,omitempty"`
	Database         string     `json:"database"`
	Schema           string     `json:"schema"`
	TableName        string     `json:"table_name"`
	ColumnName       string     `json:"column_name"`
	DataType         string     `json:"data_type"`
	IsNullable       bool       `json:"is_nullable"`
	IsPrimaryKey     bool       `json:"is_primary_key"`
	IsForeignKey     bool       `json:"is_foreign_key"`
	FKReferences     string     `json:"fk_references"` // "schema.table.column", empty if none
	OrdinalPosition  int        `json:"ordinal_position"`
	RowCountEstimate int64      `json:"row_count_estimate"`
	LastModified     *time.Time `json:"last_modified"`
	ScannedAt        time.Time  `json:"scanned_at"`

	// Profiling stats, present only when the scan sampled the table.
	NullCount     *int64   `json:"null_count,omitempty"`
	NullRate      *float64 `json:"null_rate,omitempty"`
	DistinctCount *int64   `json:"distinct_count,omitempty"`
	ProfiledRows  *int64   `json:"profiled_rows,omitempty"`
}

// TableKey identifies the table a row belongs to.
type TableKey struct {
	Database string
	Schema   string
	Table    string
}

// Key returns the table the row belongs to.
func (r *CatalogRow) Key() TableKey {
	return TableKey{Database: r.Database, Schema: r.Schema, Table: r.TableName}
}

// String renders the key as database.schema.table.
func (k TableKey) String() string {
	return k.Database + "." + k.Schema + "." + k.Table
}

// ParseTableKey parses "database.schema.table". The table part may itself
// contain dots.
func ParseTableKey(s string) (TableKey, bool) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return TableKey{}, false
	}
	return TableKey{Database: parts[0], Schema: parts[1], Table: parts[2]}, true
}

// IsProfiled reports whether the row carries profiling stats.
func (r *CatalogRow) IsProfiled() bool {
	return r.ProfiledRows != nil && *r.ProfiledRows > 0
}

// ScoredRow is a catalog row ranked against a keyword search.
type ScoredRow struct {
	CatalogRow
	KeywordScore int `json:"keyword_score"`
	PKBonus      int `json:"pk_bonus"`
	FKBonus      int `json:"fk_bonus"`
	Relevance    int `json:"relevance"`
}

// ScanInfo records the last refresh of one target.
type ScanInfo struct {
	Timestamp time.Time `json:"timestamp"`
	RowCount  int       `json:"row_count"`
}

// LastScan is the content of last_scan.json.
type LastScan struct {
	Scans       map[string]ScanInfo `json:"scans"`
	LastUpdated *time.Time          `json:"last_updated,omitempty"`
}

// TargetStatus is the freshness report for one scanned target.
type TargetStatus struct {
	Target    string    `json:"target"`
	ScannedAt time.Time `json:"scanned_at"`
	RowCount  int       `json:"row_count"`
	AgeDays   int       `json:"age_days"`
	Stale     bool      `json:"stale"`
}

// CatalogStatus summarizes the catalog and its freshness.
type CatalogStatus struct {
	Available bool           `json:"available"`
	Databases int            `json:"databases"`
	Tables    int            `json:"tables"`
	Columns   int            `json:"columns"`
	Targets   []TargetStatus `json:"targets"`
	Guidance  string         `json:"guidance,omitempty"`
}
