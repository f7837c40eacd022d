package patterns

import (
	"sort"
	"strings"
)

const (
	maxRankedEntries    = 20
	maxDiscoveredMetric = 50
)

// TableCount is one entry of the most-joined tables ranking.
type TableCount struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// ColumnCount is one entry of a column ranking.
type ColumnCount struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// PatternCount is one "column operator" filter pair with its frequency.
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// ProcedureMetric is a metric tagged with the procedure it came from.
type ProcedureMetric struct {
	Procedure string `json:"proc"`
	MetricFormula
}

// Totals counts every fact fed to the aggregator.
type Totals struct {
	Joins        int `json:"joins"`
	Aggregations int `json:"aggregations"`
	Filters      int `json:"filters"`
	Metrics      int `json:"metrics"`
}

// GlobalPatterns is the cross-procedure rollup.
type GlobalPatterns struct {
	MostJoinedTables      []TableCount      `json:"mostJoinedTables"`
	MostAggregatedColumns []ColumnCount     `json:"mostAggregatedColumns"`
	MostFilteredColumns   []ColumnCount     `json:"mostFilteredColumns"`
	CommonFilterPatterns  []PatternCount    `json:"commonFilterPatterns"`
	DiscoveredMetrics     []ProcedureMetric `json:"discoveredMetrics"`
	Totals                Totals            `json:"totals"`
}

// Aggregator accumulates parsed procedures in input order. It is not safe
// for concurrent use.
type Aggregator struct {
	joinedTables      *counter
	aggregatedColumns *counter
	filteredColumns   *counter
	filterPatterns    *counter
	metrics           []ProcedureMetric
	totals            Totals
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		joinedTables:      newCounter(),
		aggregatedColumns: newCounter(),
		filteredColumns:   newCounter(),
		filterPatterns:    newCounter(),
		metrics:           []ProcedureMetric{},
	}
}

// Add folds the facts of one procedure into the rollup.
func (a *Aggregator) Add(procedure string, p *ParsedProcedure) {
	if p == nil {
		return
	}
	for _, j := range p.Joins {
		a.joinedTables.add(j.RightTable)
		if j.LeftTable != "" && j.LeftTable != UnknownTable {
			a.joinedTables.add(j.LeftTable)
		}
	}
	for _, agg := range p.Aggregations {
		if agg.Column != "*" {
			a.aggregatedColumns.add(agg.Column)
		}
	}
	for _, f := range p.Filters {
		if f.Column != "" {
			a.filteredColumns.add(bareColumn(f.Column))
		}
		a.filterPatterns.add(f.Column + " " + f.Operator)
	}
	for _, m := range p.Metrics {
		a.metrics = append(a.metrics, ProcedureMetric{Procedure: procedure, MetricFormula: m})
	}

	a.totals.Joins += len(p.Joins)
	a.totals.Aggregations += len(p.Aggregations)
	a.totals.Filters += len(p.Filters)
	a.totals.Metrics += len(p.Metrics)
}

// Result returns the ranked rollup. Each ranking holds at most 20 entries,
// ties keep first-seen order, and at most 50 metrics are kept in input order.
func (a *Aggregator) Result() GlobalPatterns {
	gp := GlobalPatterns{
		MostJoinedTables:      []TableCount{},
		MostAggregatedColumns: []ColumnCount{},
		MostFilteredColumns:   []ColumnCount{},
		CommonFilterPatterns:  []PatternCount{},
		Totals:                a.totals,
	}
	for _, e := range a.joinedTables.top(maxRankedEntries) {
		gp.MostJoinedTables = append(gp.MostJoinedTables, TableCount{Table: e.key, Count: e.count})
	}
	for _, e := range a.aggregatedColumns.top(maxRankedEntries) {
		gp.MostAggregatedColumns = append(gp.MostAggregatedColumns, ColumnCount{Column: e.key, Count: e.count})
	}
	for _, e := range a.filteredColumns.top(maxRankedEntries) {
		gp.MostFilteredColumns = append(gp.MostFilteredColumns, ColumnCount{Column: e.key, Count: e.count})
	}
	for _, e := range a.filterPatterns.top(maxRankedEntries) {
		gp.CommonFilterPatterns = append(gp.CommonFilterPatterns, PatternCount{Pattern: e.key, Count: e.count})
	}
	n := min(len(a.metrics), maxDiscoveredMetric)
	gp.DiscoveredMetrics = append([]ProcedureMetric{}, a.metrics[:n]...)
	return gp
}

func bareColumn(col string) string {
	if i := strings.LastIndex(col, "."); i >= 0 {
		return col[i+1:]
	}
	return col
}

type counterEntry struct {
	key   string
	count int
}

// counter counts keys and remembers first-seen order for tie-breaks.
type counter struct {
	index   map[string]int
	entries []counterEntry
}

func newCounter() *counter {
	return &counter{index: map[string]int{}}
}

func (c *counter) add(key string) {
	if i, ok := c.index[key]; ok {
		c.entries[i].count++
		return
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, counterEntry{key: key, count: 1})
}

func (c *counter) top(n int) []counterEntry {
	sorted := append([]counterEntry(nil), c.entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].count > sorted[j].count })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
