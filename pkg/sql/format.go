package sql

import (
	"strings"
)

// Format renders n as canonical SQL text: keywords and built-in function
// names upper-cased, single spaces around binary operators, identifiers
// bracketed only when they need it.
func Format(n Node) string {
	var sb strings.Builder
	f := &formatter{sb: &sb}
	f.node(n)
	return sb.String()
}

type formatter struct {
	sb *strings.Builder
}

func (f *formatter) write(parts ...string) {
	for _, s := range parts {
		f.sb.WriteString(s)
	}
}

func (f *formatter) exprs(list []Expr, sep string) {
	for i, e := range list {
		if i > 0 {
			f.write(sep)
		}
		f.node(e)
	}
}

func (f *formatter) node(n Node) {
	if isNil(n) {
		return
	}
	switch n := n.(type) {
	case *ColumnRef:
		f.write(quoteParts(n.Catalog, n.Schema, n.Table, n.Name))
	case *Star:
		if n.Table != "" {
			f.write(QuoteIdent(n.Table), ".")
		}
		f.write("*")
	case *Literal:
		if n.Kind == LiteralString {
			f.write("'", strings.ReplaceAll(n.Value, "'", "''"), "'")
		} else {
			f.write(n.Value)
		}
	case *Variable:
		f.write("@", n.Name)
	case *Placeholder:
		f.write("?")
	case *Null:
		f.write("NULL")
	case *BinaryExpr:
		f.node(n.Left)
		f.write(" ", n.Op, " ")
		f.node(n.Right)
	case *UnaryExpr:
		if n.Op == "NOT" {
			f.write("NOT ")
		} else {
			f.write(n.Op)
		}
		f.node(n.X)
	case *InExpr:
		f.node(n.X)
		f.write(not(n.Not), " IN (")
		if n.Query != nil {
			f.node(n.Query)
		} else {
			f.exprs(n.List, ", ")
		}
		f.write(")")
	case *BetweenExpr:
		f.node(n.X)
		f.write(not(n.Not), " BETWEEN ")
		f.node(n.Low)
		f.write(" AND ")
		f.node(n.High)
	case *LikeExpr:
		f.node(n.X)
		f.write(not(n.Not), " LIKE ")
		f.node(n.Pattern)
		if n.Escape != nil {
			f.write(" ESCAPE ")
			f.node(n.Escape)
		}
	case *IsExpr:
		f.node(n.X)
		f.write(" IS ")
		if n.Not {
			f.write("NOT ")
		}
		f.node(n.Right)
	case *FuncCall:
		f.write(n.Name)
		if n.Niladic {
			return
		}
		f.write("(")
		if n.Distinct {
			f.write("DISTINCT ")
		}
		f.exprs(n.Args, ", ")
		f.write(")")
		if n.Over != nil {
			f.write(" OVER (")
			f.node(n.Over)
			f.write(")")
		}
	case *CastExpr:
		f.write(n.Func, "(")
		if n.Func == "CONVERT" || n.Func == "TRY_CONVERT" {
			f.write(n.Type, ", ")
			f.node(n.X)
			if n.Style != nil {
				f.write(", ")
				f.node(n.Style)
			}
		} else {
			f.node(n.X)
			f.write(" AS ", n.Type)
		}
		f.write(")")
	case *CaseExpr:
		f.write("CASE")
		if n.Operand != nil {
			f.write(" ")
			f.node(n.Operand)
		}
		for _, w := range n.Whens {
			f.write(" ")
			f.node(w)
		}
		if n.Else != nil {
			f.write(" ELSE ")
			f.node(n.Else)
		}
		f.write(" END")
	case *WhenClause:
		f.write("WHEN ")
		f.node(n.Cond)
		f.write(" THEN ")
		f.node(n.Result)
	case *SubqueryExpr:
		f.write("(")
		f.node(n.Query)
		f.write(")")
	case *ExistsExpr:
		f.write("EXISTS (")
		f.node(n.Query)
		f.write(")")
	case *ParenExpr:
		f.write("(")
		f.node(n.X)
		f.write(")")
	case *AliasExpr:
		f.node(n.X)
		f.write(" AS ", QuoteIdent(n.Alias))
	case *Keyword:
		f.write(n.Text)
	case *WindowSpec:
		sep := ""
		if len(n.PartitionBy) > 0 {
			f.write("PARTITION BY ")
			f.exprs(n.PartitionBy, ", ")
			sep = " "
		}
		if len(n.OrderBy) > 0 {
			f.write(sep, "ORDER BY ")
			f.orderItems(n.OrderBy)
			sep = " "
		}
		if n.Frame != "" {
			f.write(sep, n.Frame)
		}
	case *OrderItem:
		f.node(n.X)
		if n.Desc {
			f.write(" DESC")
		}
	case *TableRef:
		if strings.HasPrefix(n.Name, "@") {
			f.write(n.Name)
		} else {
			f.write(quoteParts(n.Catalog, n.Schema, n.Name))
		}
		if n.IsFunc {
			f.write("(")
			f.exprs(n.Args, ", ")
			f.write(")")
		}
		if n.Alias != "" {
			f.write(" AS ", QuoteIdent(n.Alias))
		}
	case *DerivedTable:
		f.write("(")
		f.node(n.Query)
		f.write(")")
		if n.Alias != "" {
			f.write(" AS ", QuoteIdent(n.Alias))
		}
	case *FromClause:
		f.node(n.Root)
		for _, j := range n.Joins {
			f.node(j)
		}
	case *Join:
		if j := n.Kind; j == "" && n.On == nil {
			f.write(", ")
		} else {
			f.write(" ")
			if j != "" {
				f.write(j, " ")
			}
			f.write("JOIN ")
		}
		f.node(n.Source)
		if n.On != nil {
			f.write(" ON ")
			f.node(n.On)
		}
	case *CTE:
		f.write(QuoteIdent(n.Name))
		if len(n.Columns) > 0 {
			f.write(" (", quoteList(n.Columns), ")")
		}
		f.write(" AS (")
		f.node(n.Query)
		f.write(")")
	case *SelectStmt:
		f.with(n.With)
		f.write("SELECT ")
		if n.Distinct {
			f.write("DISTINCT ")
		}
		if n.Top != nil {
			f.write("TOP ")
			f.node(n.Top)
			f.write(" ")
		}
		f.exprs(n.Items, ", ")
		if n.Into != nil {
			f.write(" INTO ")
			f.node(n.Into)
		}
		if n.From != nil {
			f.write(" FROM ")
			f.node(n.From)
		}
		if n.Where != nil {
			f.write(" WHERE ")
			f.node(n.Where)
		}
		if len(n.GroupBy) > 0 {
			f.write(" GROUP BY ")
			f.exprs(n.GroupBy, ", ")
		}
		if n.Having != nil {
			f.write(" HAVING ")
			f.node(n.Having)
		}
		if len(n.OrderBy) > 0 {
			f.write(" ORDER BY ")
			f.orderItems(n.OrderBy)
		}
		if n.Next != nil {
			f.write(" ", n.SetOp, " ")
			f.node(n.Next)
		}
	case *InsertStmt:
		f.with(n.With)
		f.write("INSERT INTO ")
		f.node(n.Target)
		if len(n.Columns) > 0 {
			f.write(" (", quoteList(n.Columns), ")")
		}
		if len(n.Values) > 0 {
			f.write(" VALUES ")
			for i, row := range n.Values {
				if i > 0 {
					f.write(", ")
				}
				f.write("(")
				f.exprs(row, ", ")
				f.write(")")
			}
		}
		if n.Query != nil {
			f.write(" ")
			f.node(n.Query)
		}
	case *Assignment:
		f.node(n.Target)
		f.write(" ", n.Op, " ")
		f.node(n.Value)
	case *UpdateStmt:
		f.with(n.With)
		f.write("UPDATE ")
		f.node(n.Target)
		f.write(" SET ")
		for i, a := range n.Set {
			if i > 0 {
				f.write(", ")
			}
			f.node(a)
		}
		if n.From != nil {
			f.write(" FROM ")
			f.node(n.From)
		}
		if n.Where != nil {
			f.write(" WHERE ")
			f.node(n.Where)
		}
	case *DeleteStmt:
		f.with(n.With)
		f.write("DELETE FROM ")
		f.node(n.Target)
		if n.From != nil {
			f.write(" FROM ")
			f.node(n.From)
		}
		if n.Where != nil {
			f.write(" WHERE ")
			f.node(n.Where)
		}
	case *SetStmt:
		f.write("SET ")
		f.node(n.Assign)
	case *VarDecl:
		f.write("@", n.Name, " ", n.Type)
		if n.Value != nil {
			f.write(" = ")
			f.node(n.Value)
		}
	case *DeclareStmt:
		f.write("DECLARE ")
		for i, v := range n.Vars {
			if i > 0 {
				f.write(", ")
			}
			f.node(v)
		}
	}
}

func (f *formatter) with(ctes []*CTE) {
	if len(ctes) == 0 {
		return
	}
	f.write("WITH ")
	for i, c := range ctes {
		if i > 0 {
			f.write(", ")
		}
		f.node(c)
	}
	f.write(" ")
}

func (f *formatter) orderItems(items []*OrderItem) {
	for i, o := range items {
		if i > 0 {
			f.write(", ")
		}
		f.node(o)
	}
}

func not(b bool) string {
	if b {
		return " NOT"
	}
	return ""
}

// QuoteIdent brackets name when it is not a plain identifier or collides with
// a reserved word.
func QuoteIdent(name string) string {
	if isPlainIdent(name) && !reserved[strings.ToUpper(name)] {
		return name
	}
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func isPlainIdent(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_' || c == '#' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && (isDigit(c) || c == '$' || c == '@'):
		default:
			return false
		}
	}
	return true
}

func quoteParts(parts ...string) string {
	var out []string
	seen := false
	for _, p := range parts {
		if p == "" && !seen {
			continue
		}
		seen = true
		if p == "" {
			out = append(out, "")
			continue
		}
		out = append(out, QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

func quoteList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = QuoteIdent(n)
	}
	return strings.Join(out, ", ")
}
