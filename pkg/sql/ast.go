package sql

// Node is any element of the parsed syntax tree. The set of node types is
// closed: only the types in this file implement it.
type Node interface {
	node()
}

// Expr is a scalar or boolean expression.
type Expr interface {
	Node
	expr()
}

// Statement is a top-level statement recognized inside a script.
type Statement interface {
	Node
	stmt()
}

// TableSource is an item of a FROM clause or a DML target.
type TableSource interface {
	Node
	tableSource()
}

// Script is the result of parsing a procedure body or batch.
type Script struct {
	Statements []Statement
	// Errors holds one entry per statement that could not be parsed.
	// Parsing resumes after each failure.
	Errors []*SyntaxError
	// Skipped lists statements outside the supported subset, such as MERGE.
	Skipped []SkippedStatement
}

// SkippedStatement is a statement keyword the parser stepped over.
type SkippedStatement struct {
	Keyword string
	Pos     int
}

// ---- expressions ----

// ColumnRef is a possibly qualified column reference (catalog.schema.table.column).
type ColumnRef struct {
	Catalog string
	Schema  string
	Table   string
	Name    string
}

// Star is * or qualifier.* in a select list or aggregate call.
type Star struct {
	Table string
}

// LiteralKind distinguishes string and numeric literals.
type LiteralKind int

const (
	LiteralNumber LiteralKind = iota
	LiteralString
)

// Literal is a constant. Value is the literal text without quotes.
type Literal struct {
	Kind  LiteralKind
	Value string
}

// Variable is an @name parameter or local variable. Name excludes the
// leading @.
type Variable struct {
	Name string
}

// Placeholder is a positional ? parameter.
type Placeholder struct{}

// Null is the NULL literal.
type Null struct{}

// BinaryExpr covers arithmetic, comparison, and AND/OR.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr covers NOT and unary arithmetic operators.
type UnaryExpr struct {
	Op string
	X  Expr
}

// InExpr is X [NOT] IN (list) or X [NOT] IN (subquery).
type InExpr struct {
	X     Expr
	Not   bool
	List  []Expr
	Query *SelectStmt
}

// BetweenExpr is X [NOT] BETWEEN Low AND High.
type BetweenExpr struct {
	X    Expr
	Not  bool
	Low  Expr
	High Expr
}

// LikeExpr is X [NOT] LIKE Pattern [ESCAPE Escape].
type LikeExpr struct {
	X       Expr
	Not     bool
	Pattern Expr
	Escape  Expr
}

// IsExpr is X IS [NOT] Right. Right is *Null for the null test.
type IsExpr struct {
	X     Expr
	Not   bool
	Right Expr
}

// FuncCall is a function invocation, including aggregates and window calls.
// Name is upper-cased for built-ins and keeps its qualifier for user functions.
type FuncCall struct {
	Name     string
	Args     []Expr
	Distinct bool
	Over     *WindowSpec
	// Niladic marks calls written without parentheses (CURRENT_TIMESTAMP).
	Niladic bool
}

// CastExpr is CAST/TRY_CAST(X AS Type) or CONVERT/TRY_CONVERT(Type, X[, Style]).
type CastExpr struct {
	Func  string
	X     Expr
	Type  string
	Style Expr
}

// CaseExpr is a simple (Operand set) or searched CASE expression.
type CaseExpr struct {
	Operand Expr
	Whens   []*WhenClause
	Else    Expr
}

// WhenClause is one WHEN ... THEN ... arm of a CASE.
type WhenClause struct {
	Cond   Expr
	Result Expr
}

// SubqueryExpr is a parenthesized SELECT used as a value.
type SubqueryExpr struct {
	Query *SelectStmt
}

// ExistsExpr is EXISTS (subquery).
type ExistsExpr struct {
	Query *SelectStmt
}

// ParenExpr is a parenthesized expression.
type ParenExpr struct {
	X Expr
}

// AliasExpr names an expression in a select list (expr AS alias or alias = expr).
type AliasExpr struct {
	X     Expr
	Alias string
}

// Keyword is a bare keyword argument such as the datepart of DATEADD.
type Keyword struct {
	Text string
}

// WindowSpec is the OVER clause of a window call.
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []*OrderItem
	Frame       string
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	X    Expr
	Desc bool
}

// ---- table sources ----

// TableRef is a named table, view, table variable, or table-valued function call.
type TableRef struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
	Args    []Expr
	IsFunc  bool
}

// DerivedTable is a parenthesized SELECT in a FROM clause.
type DerivedTable struct {
	Query *SelectStmt
	Alias string
}

// FromClause is the root table source followed by its joins, in order.
type FromClause struct {
	Root  TableSource
	Joins []*Join
}

// Join is one joined table source. Kind is INNER, LEFT, RIGHT, FULL, or CROSS,
// or empty when the join keyword carried no qualifier.
type Join struct {
	Kind   string
	Source TableSource
	On     Expr
}

// ---- statements ----

// CTE is a common table expression of a WITH clause.
type CTE struct {
	Name    string
	Columns []string
	Query   *SelectStmt
}

// SelectStmt is a SELECT query. Next links the right operand of a set
// operation (UNION, EXCEPT, INTERSECT) named by SetOp.
type SelectStmt struct {
	With     []*CTE
	Distinct bool
	Top      Expr
	Items    []Expr
	Into     *TableRef
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []*OrderItem
	SetOp    string
	Next     *SelectStmt
}

// InsertStmt is INSERT INTO target [(columns)] VALUES ... | SELECT ....
type InsertStmt struct {
	With    []*CTE
	Target  TableSource
	Columns []string
	Values  [][]Expr
	Query   *SelectStmt
}

// Assignment is a SET item of UPDATE or a SET @var statement.
type Assignment struct {
	Target Expr
	Op     string
	Value  Expr
}

// UpdateStmt is UPDATE target SET ... [FROM ...] [WHERE ...].
type UpdateStmt struct {
	With   []*CTE
	Target TableSource
	Set    []*Assignment
	From   *FromClause
	Where  Expr
}

// DeleteStmt is DELETE [FROM] target [FROM ...] [WHERE ...].
type DeleteStmt struct {
	With   []*CTE
	Target TableSource
	From   *FromClause
	Where  Expr
}

// SetStmt is SET @var = expr.
type SetStmt struct {
	Assign *Assignment
}

// VarDecl is one variable of a DECLARE statement.
type VarDecl struct {
	Name  string
	Type  string
	Value Expr
}

// DeclareStmt is DECLARE @a type [= expr], ....
type DeclareStmt struct {
	Vars []*VarDecl
}

func (*ColumnRef) node()    {}
func (*Star) node()         {}
func (*Literal) node()      {}
func (*Variable) node()     {}
func (*Placeholder) node()  {}
func (*Null) node()         {}
func (*BinaryExpr) node()   {}
func (*UnaryExpr) node()    {}
func (*InExpr) node()       {}
func (*BetweenExpr) node()  {}
func (*LikeExpr) node()     {}
func (*IsExpr) node()       {}
func (*FuncCall) node()     {}
func (*CastExpr) node()     {}
func (*CaseExpr) node()     {}
func (*WhenClause) node()   {}
func (*SubqueryExpr) node() {}
func (*ExistsExpr) node()   {}
func (*ParenExpr) node()    {}
func (*AliasExpr) node()    {}
func (*Keyword) node()      {}
func (*WindowSpec) node()   {}
func (*OrderItem) node()    {}
func (*TableRef) node()     {}
func (*DerivedTable) node() {}
func (*FromClause) node()   {}
func (*Join) node()         {}
func (*CTE) node()          {}
func (*SelectStmt) node()   {}
func (*InsertStmt) node()   {}
func (*Assignment) node()   {}
func (*UpdateStmt) node()   {}
func (*DeleteStmt) node()   {}
func (*SetStmt) node()      {}
func (*VarDecl) node()      {}
func (*DeclareStmt) node()  {}

func (*ColumnRef) expr()    {}
func (*Star) expr()         {}
func (*Literal) expr()      {}
func (*Variable) expr()     {}
func (*Placeholder) expr()  {}
func (*Null) expr()         {}
func (*BinaryExpr) expr()   {}
func (*UnaryExpr) expr()    {}
func (*InExpr) expr()       {}
func (*BetweenExpr) expr()  {}
func (*LikeExpr) expr()     {}
func (*IsExpr) expr()       {}
func (*FuncCall) expr()     {}
func (*CastExpr) expr()     {}
func (*CaseExpr) expr()     {}
func (*SubqueryExpr) expr() {}
func (*ExistsExpr) expr()   {}
func (*ParenExpr) expr()    {}
func (*AliasExpr) expr()    {}
func (*Keyword) expr()      {}

func (*TableRef) tableSource()     {}
func (*DerivedTable) tableSource() {}

func (*SelectStmt) stmt()  {}
func (*InsertStmt) stmt()  {}
func (*UpdateStmt) stmt()  {}
func (*DeleteStmt) stmt()  {}
func (*SetStmt) stmt()     {}
func (*DeclareStmt) stmt() {}

// QualifiedName joins the non-empty catalog, schema, and name parts with dots.
func (t *TableRef) QualifiedName() string {
	return joinParts(t.Catalog, t.Schema, t.Name)
}

// QualifiedName returns table.column when a table qualifier is present,
// else the bare column name.
func (c *ColumnRef) QualifiedName() string {
	return joinParts(c.Table, c.Name)
}

func joinParts(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "."
		}
		out += p
	}
	return out
}
