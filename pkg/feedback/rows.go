// Package feedback exports the discovered SQL patterns to a review workbook
// and folds what reviewers entered back into the ontology and the analysis.
package feedback

import (
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/patterns"
)

const (
	maxFormulaCell       = 200
	maxValuesCell        = 100
	maxColumnsListed     = 5
	maxFilterUsedIn      = 3
	unnamedMetric        = "(unnamed)"
	defaultReviewedProcs = 100
)

// MetricRow is one line of the "Discovered Metrics" sheet.
type MetricRow struct {
	ImportanceScore float64
	ExecutionCount  int64
	LastExecuted    string
	Procedure       string
	MetricName      string
	Formula         string
	ColumnsUsed     string
	PlainEnglish    string
}

// JoinRow is one line of the "Table Relationships" sheet.
type JoinRow struct {
	ImportanceScore float64
	Procedure       string
	LeftTable       string
	RightTable      string
	JoinType        string
	JoinColumns     string
	Meaning         string
}

// AggregationRow is one line of the "Aggregations" sheet.
type AggregationRow struct {
	ImportanceScore float64
	Procedure       string
	Function        string
	Column          string
	Alias           string
	Meaning         string
}

// FilterRow is one distinct filter of the "Common Filters" sheet.
type FilterRow struct {
	Frequency  int
	Importance float64
	Column     string
	Operator   string
	Values     string
	UsedIn     string
	Meaning    string
}

// ReviewData is everything the workbook shows.
type ReviewData struct {
	Metrics      []MetricRow
	Joins        []JoinRow
	Aggregations []AggregationRow
	Filters      []FilterRow
}

// BuildReviewData collects the patterns of the topN procedures of the
// analysis, already ordered by importance. Discovered metrics of the global
// rollup whose formula no procedure row carries are appended unscored.
func BuildReviewData(analysis *models.ProcedureAnalysis, topN int) ReviewData {
	if topN <= 0 {
		topN = defaultReviewedProcs
	}
	procs := analysis.Procedures
	if len(procs) > topN {
		procs = procs[:topN]
	}

	var data ReviewData
	filters := map[filterKey]*FilterRow{}
	usedIn := map[filterKey][]string{}
	var filterOrder []filterKey
	for _, p := range procs {
		pp := p.ParsedPatterns
		if pp == nil {
			continue
		}
		name := p.Database + "." + p.ObjectName
		lastExecuted := ""
		if p.LastExecuted != nil {
			lastExecuted = p.LastExecuted.Format("2006-01-02T15:04:05")
		}

		for _, m := range pp.Metrics {
			data.Metrics = append(data.Metrics, metricRow(m, p.ImportanceScore, p.ExecutionCount, lastExecuted, name))
		}
		for _, j := range pp.Joins {
			data.Joins = append(data.Joins, JoinRow{
				ImportanceScore: p.ImportanceScore,
				Procedure:       name,
				LeftTable:       j.LeftTable,
				RightTable:      j.RightTable,
				JoinType:        j.JoinType,
				JoinColumns:     joinColumns(j.OnColumns),
				Meaning:         patterns.JoinMeaning(j.LeftTable, j.RightTable),
			})
		}
		for _, a := range pp.Aggregations {
			data.Aggregations = append(data.Aggregations, AggregationRow{
				ImportanceScore: p.ImportanceScore,
				Procedure:       name,
				Function:        a.Function,
				Column:          a.Column,
				Alias:           a.Alias,
				Meaning:         patterns.AggregationMeaning(a.Function, a.Column, a.Alias),
			})
		}
		for _, f := range pp.Filters {
			key := filterKey{f.Column, f.Operator, f.ValuePattern}
			row, ok := filters[key]
			if !ok {
				row = &FilterRow{
					Column:   f.Column,
					Operator: f.Operator,
					Values:   truncate(f.ValuePattern, maxValuesCell),
					Meaning:  patterns.FilterMeaning(f.Column, f.Operator, f.ValuePattern),
				}
				filters[key] = row
				filterOrder = append(filterOrder, key)
			}
			row.Frequency++
			if p.ImportanceScore > row.Importance {
				row.Importance = p.ImportanceScore
			}
			if len(usedIn[key]) < maxFilterUsedIn {
				usedIn[key] = append(usedIn[key], p.ObjectName)
			}
		}
	}

	if analysis.GlobalPatterns != nil {
		for _, m := range analysis.GlobalPatterns.DiscoveredMetrics {
			if hasFormula(data.Metrics, truncate(m.Formula, maxFormulaCell)) {
				continue
			}
			data.Metrics = append(data.Metrics, metricRow(m.MetricFormula, 0, 0, "", m.Procedure))
		}
	}

	for _, key := range filterOrder {
		row := *filters[key]
		row.UsedIn = strings.Join(usedIn[key], ", ")
		data.Filters = append(data.Filters, row)
	}

	sort.SliceStable(data.Metrics, func(i, j int) bool {
		return data.Metrics[i].ImportanceScore > data.Metrics[j].ImportanceScore
	})
	sort.SliceStable(data.Joins, func(i, j int) bool {
		return data.Joins[i].ImportanceScore > data.Joins[j].ImportanceScore
	})
	sort.SliceStable(data.Aggregations, func(i, j int) bool {
		return data.Aggregations[i].ImportanceScore > data.Aggregations[j].ImportanceScore
	})
	sort.SliceStable(data.Filters, func(i, j int) bool {
		a, b := data.Filters[i], data.Filters[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Importance > b.Importance
	})
	return data
}

type filterKey struct {
	column, operator, values string
}

func metricRow(m patterns.MetricFormula, score float64, executions int64, lastExecuted, procedure string) MetricRow {
	name := m.Name
	if name == "" {
		name = unnamedMetric
	}
	cols := m.ColumnsUsed
	if len(cols) > maxColumnsListed {
		cols = cols[:maxColumnsListed]
	}
	return MetricRow{
		ImportanceScore: score,
		ExecutionCount:  executions,
		LastExecuted:    lastExecuted,
		Procedure:       procedure,
		MetricName:      name,
		Formula:         truncate(m.Formula, maxFormulaCell),
		ColumnsUsed:     strings.Join(cols, ", "),
		PlainEnglish:    patterns.MetricMeaning(m),
	}
}

func hasFormula(rows []MetricRow, formula string) bool {
	for _, r := range rows {
		if r.Formula == formula {
			return true
		}
	}
	return false
}

func joinColumns(pairs [][2]string) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p[0]+" = "+p[1])
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
