package models

import (
	"time"

	"github.com/ekaya-inc/ekaya-catalog/pkg/patterns"
)

// Programmable object types reported by metadata sources.
const (
	ObjectTypeProcedure      = "PROCEDURE"
	ObjectTypeView           = "VIEW"
	ObjectTypeScalarFunction = "SCALAR_FUNCTION"
	ObjectTypeInlineFunction = "INLINE_FUNCTION"
	ObjectTypeTableFunction  = "TABLE_FUNCTION"
	ObjectTypeTrigger        = "TRIGGER"
)

// ProcedureAnalysis is the content of procedure_analysis.json.
type ProcedureAnalysis struct {
	Context        map[string]string        `json:"@context"`
	GeneratedAt    time.Time                `json:"generatedAt"`
	Targets        []string                 `json:"targets"`
	Summary        AnalysisSummary          `json:"summary"`
	Procedures     []ProcedureEntry         `json:"procedures"`
	GlobalPatterns *patterns.GlobalPatterns `json:"globalPatterns,omitempty"`
	ColumnUsage    map[string]ColumnUsage   `json:"columnUsage"`
	TableUsage     map[string]TableUsage    `json:"tableUsage"`
	UnusedObjects  UnusedObjects            `json:"unusedObjects"`
	ReviewFeedback *ReviewFeedback          `json:"reviewFeedback,omitempty"`
}

// AnalysisSummary counts programmable objects by type.
type AnalysisSummary struct {
	TotalProcedures int `json:"totalProcedures"`
	TotalViews      int `json:"totalViews"`
	TotalFunctions  int `json:"totalFunctions"`
	TotalTriggers   int `json:"totalTriggers"`
	TotalWithStats  int `json:"totalWithStats"`
	Parsed          int `json:"parsed"`
	ParseErrors     int `json:"parseErrors"`
}

// Add folds another summary into s.
func (s *AnalysisSummary) Add(o AnalysisSummary) {
	s.TotalProcedures += o.TotalProcedures
	s.TotalViews += o.TotalViews
	s.TotalFunctions += o.TotalFunctions
	s.TotalTriggers += o.TotalTriggers
	s.TotalWithStats += o.TotalWithStats
	s.Parsed += o.Parsed
	s.ParseErrors += o.ParseErrors
}

// ProcedureEntry is one ranked programmable object.
type ProcedureEntry struct {
	ID              string          `json:"@id"`
	Database        string          `json:"database"`
	Schema          string          `json:"schema"`
	ObjectName      string          `json:"objectName"`
	ObjectType      string          `json:"objectType"`
	ExecutionCount  int64           `json:"executionCount"`
	LastExecuted    *time.Time      `json:"lastExecuted"`
	AvgDurationMs   float64         `json:"avgDurationMs"`
	TotalCPUMs      float64         `json:"totalCpuMs"`
	ImportanceScore float64         `json:"importanceScore"`
	HasDefinition   bool            `json:"hasDefinition"`
	ParsedPatterns  *ParsedPatterns `json:"parsedPatterns,omitempty"`
}

// ParsedPatterns is the extractor output stored with a procedure.
type ParsedPatterns struct {
	Joins            []patterns.JoinPattern        `json:"joins"`
	Aggregations     []patterns.AggregationPattern `json:"aggregations"`
	Filters          []patterns.FilterPattern      `json:"filters"`
	Metrics          []patterns.MetricFormula      `json:"metrics"`
	TablesReferenced []string                      `json:"tablesReferenced"`
	Complexity       patterns.Complexity           `json:"complexity"`
	ParseErrors      []string                      `json:"parseErrors,omitempty"`
}

// NewParsedPatterns copies the stored subset of an extraction result.
func NewParsedPatterns(p *patterns.ParsedProcedure) *ParsedPatterns {
	return &ParsedPatterns{
		Joins:            p.Joins,
		Aggregations:     p.Aggregations,
		Filters:          p.Filters,
		Metrics:          p.Metrics,
		TablesReferenced: p.TablesReferenced,
		Complexity:       p.Complexity,
		ParseErrors:      p.ParseErrors,
	}
}

// ColumnUsage counts how often procedures reference a column.
type ColumnUsage struct {
	ReferenceCount  int `json:"referenceCount"`
	UniqueReferrers int `json:"uniqueReferrers"`
}

// TableUsage counts how often procedures reference a table.
type TableUsage struct {
	ReferenceCount  int `json:"referenceCount"`
	UniqueReferrers int `json:"uniqueReferrers"`
}

// UnusedObjects lists catalog objects no procedure references.
type UnusedObjects struct {
	Tables  []string `json:"tables"`
	Columns []string `json:"columns"`
}

// ============================================================================
// Source collaborator rows
// ============================================================================

// ProgrammableObject is a procedure, view, function, or trigger with its body.
type ProgrammableObject struct {
	Database   string `json:"database"`
	Schema     string `json:"schema"`
	Name       string `json:"object_name"`
	Type       string `json:"object_type"`
	Definition string `json:"definition,omitempty"`
}

// ExecutionStat is one execution-statistics row for an object.
type ExecutionStat struct {
	Database       string     `json:"database"`
	ObjectName     string     `json:"object_name"`
	ExecutionCount int64      `json:"execution_count"`
	LastExecution  *time.Time `json:"last_execution_time,omitempty"`
	AvgDurationMs  float64    `json:"avg_duration_ms"`
	TotalCPUMs     float64    `json:"total_cpu_ms"`
}

// ObjectDependency is one "object references table[.column]" edge.
type ObjectDependency struct {
	Database          string `json:"database"`
	ReferencingObject string `json:"referencing_object"`
	ReferencedTable   string `json:"referenced_table"`
	ReferencedColumn  string `json:"referenced_column,omitempty"`
}
