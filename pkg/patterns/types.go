// Package patterns extracts relational usage facts (joins, aggregations,
// filters, derived metrics) from procedural SQL and rolls them up across
// procedures.
package patterns

// UnknownTable is reported as the left side of a join whose FROM root could
// not be resolved.
const UnknownTable = "UNKNOWN"

// JoinPattern is one join between two tables with its equality pairs.
type JoinPattern struct {
	LeftTable  string      `json:"leftTable"`
	RightTable string      `json:"rightTable"`
	JoinType   string      `json:"joinType"`
	OnColumns  [][2]string `json:"onColumns"`
}

// AggregationPattern is one SUM/COUNT/AVG/MIN/MAX call.
type AggregationPattern struct {
	Function string `json:"function"`
	Column   string `json:"column"`
	Alias    string `json:"alias,omitempty"`
	Context  string `json:"context,omitempty"`
}

// FilterPattern is one WHERE predicate on a column.
type FilterPattern struct {
	Column       string `json:"column"`
	Operator     string `json:"operator"`
	ValuePattern string `json:"valuePattern"`
}

// MetricFormula is a derived calculation discovered in a query.
type MetricFormula struct {
	Name        string   `json:"name,omitempty"`
	Formula     string   `json:"formula"`
	ColumnsUsed []string `json:"columnsUsed"`
	IsRatio     bool     `json:"isRatio"`
}

// Complexity counts the facts of one parsed procedure.
type Complexity struct {
	Tables       int `json:"tables"`
	Joins        int `json:"joins"`
	Aggregations int `json:"aggregations"`
	Filters      int `json:"filters"`
	Metrics      int `json:"metrics"`
}

// ParsedProcedure is everything extracted from one SQL body. ParseErrors
// lists statements that could not be parsed; Warnings lists individual
// nodes an extraction phase had to skip.
type ParsedProcedure struct {
	Joins             []JoinPattern        `json:"joinPatterns"`
	Aggregations      []AggregationPattern `json:"aggregations"`
	Filters           []FilterPattern      `json:"filters"`
	Metrics           []MetricFormula      `json:"discoveredMetrics"`
	TablesReferenced  []string             `json:"tablesReferenced"`
	ColumnsReferenced []string             `json:"columnsReferenced"`
	Complexity        Complexity           `json:"complexity"`
	ParseErrors       []string             `json:"parseErrors,omitempty"`
	Warnings          []string             `json:"warnings,omitempty"`
}

func newParsedProcedure() *ParsedProcedure {
	return &ParsedProcedure{
		Joins:             []JoinPattern{},
		Aggregations:      []AggregationPattern{},
		Filters:           []FilterPattern{},
		Metrics:           []MetricFormula{},
		TablesReferenced:  []string{},
		ColumnsReferenced: []string{},
	}
}
