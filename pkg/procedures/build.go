package procedures

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/patterns"
	"github.com/ekaya-inc/ekaya-catalog/pkg/scoring"
)

// build assembles the analysis document from what was read from each
// target. Objects are ranked and cut to opts.TopN per target; the global
// rollup spans every parsed object of every target.
func build(collected []*targetData, opts Options, now time.Time, logger *zap.Logger) *models.ProcedureAnalysis {
	topN := opts.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "catalog"
	}

	analysis := &models.ProcedureAnalysis{
		Context:     map[string]string{"rdfs": "http://www.w3.org/2000/01/rdf-schema#"},
		GeneratedAt: now.UTC(),
		Targets:     []string{},
		Procedures:  []models.ProcedureEntry{},
		ColumnUsage: map[string]models.ColumnUsage{},
		TableUsage:  map[string]models.TableUsage{},
		UnusedObjects: models.UnusedObjects{
			Tables:  []string{},
			Columns: []string{},
		},
	}
	if opts.BaseURI != "" {
		analysis.Context[ns] = opts.BaseURI
	}

	agg := patterns.NewAggregator()
	var deps []models.ObjectDependency
	for _, data := range collected {
		analysis.Targets = append(analysis.Targets, data.target)
		entries, summary := rankTarget(data, ns, topN, now, agg, logger)
		analysis.Procedures = append(analysis.Procedures, entries...)
		analysis.Summary.Add(summary)
		deps = append(deps, data.deps...)
	}
	gp := agg.Result()
	analysis.GlobalPatterns = &gp
	analysis.TableUsage, analysis.ColumnUsage = Usage(deps)
	return analysis
}

// statsTotal is the execution statistics of one object summed over every
// statistics source that reported it.
type statsTotal struct {
	count    int64
	last     *time.Time
	avgSum   float64
	avgRows  int
	totalCPU float64
}

func (s *statsTotal) add(st models.ExecutionStat) {
	s.count += st.ExecutionCount
	if st.LastExecution != nil && (s.last == nil || st.LastExecution.After(*s.last)) {
		last := *st.LastExecution
		s.last = &last
	}
	s.avgSum += st.AvgDurationMs
	s.avgRows++
	s.totalCPU += st.TotalCPUMs
}

func (s *statsTotal) avgDuration() float64 {
	if s.avgRows == 0 {
		return 0
	}
	return s.avgSum / float64(s.avgRows)
}

// rankTarget scores every object of a target, keeps the topN by
// (importance desc, name asc) and parses their definitions.
func rankTarget(data *targetData, ns string, topN int, now time.Time, agg *patterns.Aggregator, logger *zap.Logger) ([]models.ProcedureEntry, models.AnalysisSummary) {
	var summary models.AnalysisSummary
	for _, o := range data.objects {
		switch o.Type {
		case models.ObjectTypeProcedure:
			summary.TotalProcedures++
		case models.ObjectTypeView:
			summary.TotalViews++
		case models.ObjectTypeScalarFunction, models.ObjectTypeInlineFunction, models.ObjectTypeTableFunction:
			summary.TotalFunctions++
		case models.ObjectTypeTrigger:
			summary.TotalTriggers++
		}
	}

	stats := map[string]*statsTotal{}
	for _, st := range data.stats {
		key := st.Database + "." + st.ObjectName
		if stats[key] == nil {
			stats[key] = &statsTotal{}
		}
		stats[key].add(st)
	}
	summary.TotalWithStats = len(stats)

	entries := make([]models.ProcedureEntry, 0, len(data.objects))
	definitions := make(map[int]string, len(data.objects))
	for _, o := range data.objects {
		entry := models.ProcedureEntry{
			ID:            ns + ":" + o.Database + "." + o.Schema + "." + o.Name,
			Database:      o.Database,
			Schema:        o.Schema,
			ObjectName:    o.Name,
			ObjectType:    o.Type,
			HasDefinition: o.Definition != "",
		}
		if st, ok := stats[o.Database+"."+o.Name]; ok {
			entry.ExecutionCount = st.count
			entry.LastExecuted = st.last
			entry.AvgDurationMs = scoring.Round(st.avgDuration(), 2)
			entry.TotalCPUMs = scoring.Round(st.totalCPU, 2)
		}
		entry.ImportanceScore = scoring.Importance(entry.ExecutionCount, entry.LastExecuted, now)
		definitions[len(entries)] = o.Definition
		entries = append(entries, entry)
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := entries[order[i]], entries[order[j]]
		if a.ImportanceScore != b.ImportanceScore {
			return a.ImportanceScore > b.ImportanceScore
		}
		return a.ObjectName < b.ObjectName
	})
	if len(order) > topN {
		order = order[:topN]
	}

	top := make([]models.ProcedureEntry, 0, len(order))
	for _, idx := range order {
		entry := entries[idx]
		if def := definitions[idx]; def != "" {
			parsed := patterns.Extract(def)
			entry.ParsedPatterns = models.NewParsedPatterns(parsed)
			agg.Add(entry.ObjectName, parsed)
			summary.Parsed++
			if len(parsed.ParseErrors) > 0 {
				summary.ParseErrors++
				logger.Debug("Definition did not fully parse",
					zap.String("target", data.target),
					zap.String("object", entry.Database+"."+entry.Schema+"."+entry.ObjectName),
					zap.String("error", parsed.ParseErrors[0]),
					zap.String("definition", logging.SanitizeDefinition(def)))
			}
		}
		top = append(top, entry)
	}
	return top, summary
}

// Usage counts dependency rows per referenced table and per referenced
// "table.column". Referrers are distinct database.object pairs.
func Usage(deps []models.ObjectDependency) (map[string]models.TableUsage, map[string]models.ColumnUsage) {
	type tally struct {
		refs      int
		referrers map[string]bool
	}
	bump := func(m map[string]*tally, key, referrer string) {
		t := m[key]
		if t == nil {
			t = &tally{referrers: map[string]bool{}}
			m[key] = t
		}
		t.refs++
		t.referrers[referrer] = true
	}

	tables := map[string]*tally{}
	columns := map[string]*tally{}
	for _, d := range deps {
		if d.ReferencedTable == "" {
			continue
		}
		referrer := d.Database + "." + d.ReferencingObject
		bump(tables, d.ReferencedTable, referrer)
		if d.ReferencedColumn != "" {
			bump(columns, d.ReferencedTable+"."+d.ReferencedColumn, referrer)
		}
	}

	tableUsage := make(map[string]models.TableUsage, len(tables))
	for k, t := range tables {
		tableUsage[k] = models.TableUsage{ReferenceCount: t.refs, UniqueReferrers: len(t.referrers)}
	}
	columnUsage := make(map[string]models.ColumnUsage, len(columns))
	for k, t := range columns {
		columnUsage[k] = models.ColumnUsage{ReferenceCount: t.refs, UniqueReferrers: len(t.referrers)}
	}
	return tableUsage, columnUsage
}

// unusedObjects lists the catalog tables no object references, within the
// databases whose dependencies were read. Columns are only reported for
// referenced tables that have column-level usage, since table-level
// dependencies say nothing about individual columns.
func unusedObjects(rows []models.CatalogRow, collected []*targetData, tableUsage map[string]models.TableUsage, columnUsage map[string]models.ColumnUsage) models.UnusedObjects {
	unused := models.UnusedObjects{Tables: []string{}, Columns: []string{}}

	covered := map[string]map[string]bool{}
	for _, data := range collected {
		covered[data.target] = data.depsRead
	}

	columnLevel := map[string]bool{}
	for key := range columnUsage {
		if i := strings.LastIndex(key, "."); i > 0 {
			columnLevel[key[:i]] = true
		}
	}

	seenTables := map[models.TableKey]bool{}
	for i := range rows {
		r := &rows[i]
		if !covered[r.Target][r.Database] {
			continue
		}
		tableKey := usedTableKey(r, tableUsage)
		if tableKey == "" {
			k := r.Key()
			if !seenTables[k] {
				seenTables[k] = true
				unused.Tables = append(unused.Tables, k.String())
			}
			continue
		}
		if !columnLevel[tableKey] {
			continue
		}
		if _, ok := columnUsage[tableKey+"."+r.ColumnName]; !ok {
			unused.Columns = append(unused.Columns, r.Key().String()+"."+r.ColumnName)
		}
	}
	sort.Strings(unused.Tables)
	sort.Strings(unused.Columns)
	return unused
}

// usedTableKey returns the usage key a row's table is referenced under, or
// "" when it is unreferenced.
func usedTableKey(r *models.CatalogRow, tableUsage map[string]models.TableUsage) string {
	for _, key := range []string{r.TableName, r.Schema + "." + r.TableName} {
		if _, ok := tableUsage[key]; ok {
			return key
		}
	}
	return ""
}
