package patterns

import (
	"fmt"
	"sort"
	"strings"

	tsql "github.com/ekaya-inc/ekaya-catalog/pkg/sql"
)

const (
	maxErrorLength   = 200
	maxValueLength   = 50
	maxFormulaLength = 500
	maxInValues      = 5
)

// aggregateFuncs is the extraction order for aggregation patterns.
var aggregateFuncs = []string{"SUM", "COUNT", "AVG", "MIN", "MAX"}

// metricAggregates are the calls that turn a CASE expression into a metric.
var metricAggregates = map[string]bool{"SUM": true, "COUNT": true, "AVG": true}

var comparisonOperators = map[string]string{
	"=":  "=",
	"<>": "!=",
	"!=": "!=",
	">":  ">",
	">=": ">=",
	"<":  "<",
	"<=": "<=",
}

// phaseResult is what one extraction phase produces for one statement.
type phaseResult[T any] struct {
	Items    []T
	Warnings []string
}

func (r *phaseResult[T]) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Extract parses a SQL body and collects its joins, aggregations, filters,
// metrics, and table/column references. It never fails: unparseable
// statements are listed in ParseErrors and the facts of every other
// statement are still returned.
func Extract(sqlText string) *ParsedProcedure {
	result := newParsedProcedure()

	if strings.TrimSpace(sqlText) == "" {
		result.ParseErrors = append(result.ParseErrors, "Empty SQL")
		return result
	}

	script, err := tsql.Parse(sqlText)
	if err != nil {
		result.ParseErrors = append(result.ParseErrors, "Parse error: "+truncate(err.Error(), maxErrorLength))
		return result
	}
	for _, se := range script.Errors {
		result.ParseErrors = append(result.ParseErrors, "Parse error: "+truncate(se.Error(), maxErrorLength))
	}
	for _, sk := range script.Skipped {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s statement at offset %d not analyzed", sk.Keyword, sk.Pos))
	}
	if len(script.Statements) == 0 && len(script.Errors) == 0 && len(script.Skipped) == 0 {
		result.Warnings = append(result.Warnings, "no supported statements found")
	}

	tables := map[string]bool{}
	columns := map[string]bool{}
	for _, stmt := range script.Statements {
		collect(result, stmt, "joins", extractJoins, &result.Joins)
		collect(result, stmt, "aggregations", extractAggregations, &result.Aggregations)
		collect(result, stmt, "filters", extractFilters, &result.Filters)
		collect(result, stmt, "metrics", extractMetrics, &result.Metrics)
		runPhase(result, "references", func() []string {
			collectReferences(stmt, tables, columns)
			return nil
		})
	}

	result.TablesReferenced = sortedKeys(tables)
	result.ColumnsReferenced = sortedKeys(columns)
	result.Complexity = Complexity{
		Tables:       len(result.TablesReferenced),
		Joins:        len(result.Joins),
		Aggregations: len(result.Aggregations),
		Filters:      len(result.Filters),
		Metrics:      len(result.Metrics),
	}
	return result
}

// collect runs one extraction phase over stmt and appends its items to dst.
func collect[T any](result *ParsedProcedure, stmt tsql.Statement, phase string, fn func(tsql.Statement) phaseResult[T], dst *[]T) {
	runPhase(result, phase, func() []string {
		r := fn(stmt)
		*dst = append(*dst, r.Items...)
		return r.Warnings
	})
}

// runPhase isolates a phase so a failure on one statement cannot abort the
// other phases.
func runPhase(result *ParsedProcedure, phase string, fn func() []string) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%s: %v", phase, r)
			result.ParseErrors = append(result.ParseErrors, "Analysis error: "+truncate(msg, maxErrorLength))
		}
	}()
	result.Warnings = append(result.Warnings, fn()...)
}

// ---- joins ----

func extractJoins(stmt tsql.Statement) phaseResult[JoinPattern] {
	var r phaseResult[JoinPattern]
	tsql.Inspect(stmt, func(n tsql.Node, _ []tsql.Node) bool {
		from, ok := n.(*tsql.FromClause)
		if !ok {
			return true
		}
		left := tableSourceName(from.Root)
		if left == "" {
			left = UnknownTable
		}
		for _, j := range from.Joins {
			right := tableSourceName(j.Source)
			if right == "" {
				r.warnf("join skipped: unnamed table source %s", truncate(tsql.Format(j.Source), maxValueLength))
				continue
			}
			kind := j.Kind
			if kind == "" {
				kind = "INNER"
			}
			r.Items = append(r.Items, JoinPattern{
				LeftTable:  left,
				RightTable: right,
				JoinType:   kind,
				OnColumns:  joinConditions(j.On),
			})
		}
		return true
	})
	return r
}

// joinConditions collects column pairs from every equality in an ON clause.
func joinConditions(on tsql.Expr) [][2]string {
	pairs := [][2]string{}
	if on == nil {
		return pairs
	}
	for _, n := range tsql.Find(on, isEquality) {
		eq := n.(*tsql.BinaryExpr)
		l, lok := unparen(eq.Left).(*tsql.ColumnRef)
		r, rok := unparen(eq.Right).(*tsql.ColumnRef)
		if lok && rok {
			pairs = append(pairs, [2]string{l.QualifiedName(), r.QualifiedName()})
		}
	}
	return pairs
}

func isEquality(n tsql.Node) bool {
	b, ok := n.(*tsql.BinaryExpr)
	return ok && b.Op == "="
}

// tableSourceName returns the canonical table name, or the alias of a
// derived table.
func tableSourceName(ts tsql.TableSource) string {
	switch t := ts.(type) {
	case *tsql.TableRef:
		return t.QualifiedName()
	case *tsql.DerivedTable:
		return t.Alias
	}
	return ""
}

// ---- aggregations ----

func extractAggregations(stmt tsql.Statement) phaseResult[AggregationPattern] {
	var r phaseResult[AggregationPattern]
	for _, fn := range aggregateFuncs {
		tsql.Inspect(stmt, func(n tsql.Node, ancestors []tsql.Node) bool {
			call, ok := n.(*tsql.FuncCall)
			if !ok || call.Name != fn {
				return true
			}
			p := AggregationPattern{
				Function: fn,
				Column:   "*",
				Alias:    enclosingAlias(ancestors),
			}
			if len(call.Args) > 0 {
				arg := unparen(call.Args[0])
				switch a := arg.(type) {
				case *tsql.Star:
				case *tsql.ColumnRef:
					p.Column = a.QualifiedName()
					p.Context = a.Table
				default:
					p.Column = tsql.Format(call.Args[0])
				}
			}
			r.Items = append(r.Items, p)
			return true
		})
	}
	return r
}

// enclosingAlias returns the alias of the select item wrapping the innermost
// node, looking through parentheses only.
func enclosingAlias(ancestors []tsql.Node) string {
	for i := len(ancestors) - 1; i >= 0; i-- {
		switch a := ancestors[i].(type) {
		case *tsql.ParenExpr:
			continue
		case *tsql.AliasExpr:
			return a.Alias
		}
		return ""
	}
	return ""
}

// ---- filters ----

func extractFilters(stmt tsql.Statement) phaseResult[FilterPattern] {
	var r phaseResult[FilterPattern]
	tsql.Inspect(stmt, func(n tsql.Node, _ []tsql.Node) bool {
		switch s := n.(type) {
		case *tsql.SelectStmt:
			filterConditions(s.Where, &r)
		case *tsql.UpdateStmt:
			filterConditions(s.Where, &r)
		case *tsql.DeleteStmt:
			filterConditions(s.Where, &r)
		}
		return true
	})
	return r
}

func filterConditions(cond tsql.Expr, r *phaseResult[FilterPattern]) {
	switch c := cond.(type) {
	case *tsql.ParenExpr:
		filterConditions(c.X, r)
	case *tsql.BinaryExpr:
		if c.Op == "AND" || c.Op == "OR" {
			filterConditions(c.Left, r)
			filterConditions(c.Right, r)
			return
		}
		if op, ok := comparisonOperators[c.Op]; ok {
			addFilter(r, c.Left, op, valuePattern(c.Right))
		}
	case *tsql.InExpr:
		if c.Not {
			return
		}
		addFilter(r, c.X, "IN", inValuePattern(c))
	case *tsql.BetweenExpr:
		if c.Not {
			return
		}
		addFilter(r, c.X, "BETWEEN", valuePattern(c.Low)+" AND "+valuePattern(c.High))
	case *tsql.LikeExpr:
		if c.Not {
			return
		}
		addFilter(r, c.X, "LIKE", valuePattern(c.Pattern))
	case *tsql.IsExpr:
		_, isNull := c.Right.(*tsql.Null)
		switch {
		case isNull && !c.Not:
			addFilter(r, c.X, "IS NULL", "NULL")
		case c.Not:
			addFilter(r, c.X, "IS", "NOT "+valuePattern(c.Right))
		default:
			addFilter(r, c.X, "IS", valuePattern(c.Right))
		}
	}
}

func addFilter(r *phaseResult[FilterPattern], left tsql.Expr, op, value string) {
	col, ok := columnName(left)
	if !ok {
		r.warnf("filter skipped: %s is not a column", truncate(tsql.Format(left), maxValueLength))
		return
	}
	r.Items = append(r.Items, FilterPattern{Column: col, Operator: op, ValuePattern: value})
}

func inValuePattern(in *tsql.InExpr) string {
	if in.Query != nil || len(in.List) == 0 {
		return "(subquery)"
	}
	values := make([]string, 0, maxInValues+1)
	for i, e := range in.List {
		if i == maxInValues {
			values = append(values, "...")
			break
		}
		values = append(values, valuePattern(e))
	}
	return "(" + strings.Join(values, ", ") + ")"
}

// columnName resolves a predicate operand to table.column. Function and
// CAST wrappers resolve to the first column they contain.
func columnName(e tsql.Expr) (string, bool) {
	switch c := e.(type) {
	case *tsql.ColumnRef:
		return c.QualifiedName(), true
	case *tsql.ParenExpr:
		return columnName(c.X)
	case *tsql.FuncCall, *tsql.CastExpr:
		cols := tsql.Find(c, isColumn)
		if len(cols) > 0 {
			return cols[0].(*tsql.ColumnRef).QualifiedName(), true
		}
	}
	return "", false
}

func isColumn(n tsql.Node) bool {
	_, ok := n.(*tsql.ColumnRef)
	return ok
}

// valuePattern describes a compared value without leaking long literals.
func valuePattern(e tsql.Expr) string {
	switch v := e.(type) {
	case nil:
		return "NULL"
	case *tsql.Literal:
		return truncate(v.Value, maxValueLength)
	case *tsql.Variable:
		return "@" + v.Name
	case *tsql.Placeholder:
		return "?"
	case *tsql.Null:
		return "NULL"
	case *tsql.SubqueryExpr:
		return "(subquery)"
	}
	if s := tsql.Format(e); s != "" {
		return truncate(s, maxValueLength)
	}
	return "?"
}

// ---- metrics ----

func extractMetrics(stmt tsql.Statement) phaseResult[MetricFormula] {
	var r phaseResult[MetricFormula]
	tsql.Inspect(stmt, func(n tsql.Node, ancestors []tsql.Node) bool {
		if b, ok := n.(*tsql.BinaryExpr); ok && b.Op == "/" {
			r.Items = append(r.Items, newMetric(b, ancestors, true))
		}
		return true
	})
	tsql.Inspect(stmt, func(n tsql.Node, ancestors []tsql.Node) bool {
		c, ok := n.(*tsql.CaseExpr)
		if !ok {
			return true
		}
		hasAggregate := tsql.Contains(c, func(n tsql.Node) bool {
			call, ok := n.(*tsql.FuncCall)
			return ok && metricAggregates[call.Name]
		})
		if hasAggregate {
			r.Items = append(r.Items, newMetric(c, ancestors, false))
		}
		return true
	})
	return r
}

func newMetric(e tsql.Expr, ancestors []tsql.Node, ratio bool) MetricFormula {
	used := []string{}
	for _, n := range tsql.Find(e, isColumn) {
		used = append(used, n.(*tsql.ColumnRef).QualifiedName())
	}
	return MetricFormula{
		Name:        enclosingAlias(ancestors),
		Formula:     truncate(tsql.Format(e), maxFormulaLength),
		ColumnsUsed: used,
		IsRatio:     ratio,
	}
}

// ---- references ----

func collectReferences(stmt tsql.Statement, tables, columns map[string]bool) {
	aliasTarget := dmlAliasTarget(stmt)
	tsql.Inspect(stmt, func(n tsql.Node, _ []tsql.Node) bool {
		switch v := n.(type) {
		case *tsql.TableRef:
			if v == aliasTarget {
				return true
			}
			if name := v.QualifiedName(); name != "" {
				tables[name] = true
			}
		case *tsql.ColumnRef:
			if name := v.QualifiedName(); name != "" {
				columns[name] = true
			}
		}
		return true
	})
}

// dmlAliasTarget returns the target of an UPDATE or DELETE that names an
// alias of the statement's own FROM clause, as in UPDATE o ... FROM Orders o.
// The aliased table is recorded from the FROM clause instead.
func dmlAliasTarget(stmt tsql.Statement) *tsql.TableRef {
	var target tsql.TableSource
	var from *tsql.FromClause
	switch s := stmt.(type) {
	case *tsql.UpdateStmt:
		target, from = s.Target, s.From
	case *tsql.DeleteStmt:
		target, from = s.Target, s.From
	}
	ref, ok := target.(*tsql.TableRef)
	if !ok || from == nil || ref.Schema != "" || ref.Catalog != "" {
		return nil
	}
	sources := []tsql.TableSource{from.Root}
	for _, j := range from.Joins {
		sources = append(sources, j.Source)
	}
	for _, src := range sources {
		var alias string
		switch t := src.(type) {
		case *tsql.TableRef:
			alias = t.Alias
		case *tsql.DerivedTable:
			alias = t.Alias
		}
		if alias != "" && strings.EqualFold(alias, ref.Name) {
			return ref
		}
	}
	return nil
}

func unparen(e tsql.Expr) tsql.Expr {
	for {
		p, ok := e.(*tsql.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Cut on a rune boundary.
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
