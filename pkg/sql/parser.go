package sql

import (
	"fmt"
	"strings"
)

// SyntaxError describes a statement that could not be parsed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// Parse tokenizes src and parses every statement of the supported subset it
// can find. Statements outside the subset (EXEC, IF, BEGIN/END, DDL, ...) are
// skipped token by token, so queries nested in them are still found. A
// statement that fails to parse is recorded in Script.Errors and scanning
// resumes right after its first token, skipping SELECTs already known to
// fail. Parentheses may nest maxDepth levels. Only lexical errors fail the
// call.
func Parse(src string) (*Script, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseScript(), nil
}

// maxDepth bounds how deeply queries and expressions may nest.
const maxDepth = 128

type parser struct {
	toks []Token
	pos  int

	depth   int
	tooDeep bool
	deepAt  int
	// open holds the start of every SELECT still being parsed.
	open []int
	// failed marks SELECT starts whose parse already failed at any depth.
	failed map[int]bool

	skipped []SkippedStatement
}

// bailout carries a *SyntaxError up to the nearest statement boundary.
type bailout struct {
	err *SyntaxError
}

func (p *parser) fail(format string, args ...any) {
	panic(bailout{&SyntaxError{Pos: p.peek().Pos, Msg: fmt.Sprintf(format, args...)}})
}

func (p *parser) enter() {
	p.depth++
	if p.depth > maxDepth {
		p.tooDeep = true
		p.deepAt = p.pos
		p.fail("nesting deeper than %d levels", maxDepth)
	}
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) peek() Token {
	return p.peekN(0)
}

func (p *parser) peekN(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) prev() Token {
	if p.pos > 0 {
		return p.toks[p.pos-1]
	}
	return Token{Kind: TokenEOF}
}

func (p *parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) isKw(kws ...string) bool {
	tok := p.peek()
	for _, kw := range kws {
		if tok.IsKeyword(kw) {
			return true
		}
	}
	return false
}

func (p *parser) acceptKw(kw string) bool {
	if p.isKw(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectKw(kw string) {
	if !p.acceptKw(kw) {
		p.fail("expected %s, found %s", kw, p.peek())
	}
}

func (p *parser) accept(kind TokenKind) bool {
	if p.peek().Kind == kind {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kind TokenKind, what string) Token {
	if p.peek().Kind != kind {
		p.fail("expected %s, found %s", what, p.peek())
	}
	return p.advance()
}

func (p *parser) isOp(ops ...string) bool {
	tok := p.peek()
	if tok.Kind != TokenOperator {
		return false
	}
	for _, op := range ops {
		if tok.Text == op {
			return true
		}
	}
	return false
}

// isName reports whether tok can be used as an identifier or alias.
func isName(tok Token) bool {
	switch tok.Kind {
	case TokenQuotedIdent:
		return true
	case TokenIdent:
		return !reserved[tok.Upper()]
	}
	return false
}

func (p *parser) expectName(what string) string {
	tok := p.peek()
	if tok.Kind == TokenIdent || tok.Kind == TokenQuotedIdent {
		p.advance()
		return tok.Text
	}
	p.fail("expected %s, found %s", what, tok)
	return ""
}

// skipGroup consumes a balanced parenthesized group starting at '('.
func (p *parser) skipGroup() {
	p.expect(TokenLParen, "(")
	depth := 1
	for depth > 0 {
		switch p.peek().Kind {
		case TokenEOF:
			p.fail("unbalanced parentheses")
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
		}
		p.advance()
	}
}

// ---- statements ----

func (p *parser) parseScript() *Script {
	script := &Script{}
	suppressUntil := -1
	for p.peek().Kind != TokenEOF {
		start := p.pos
		if p.failed[start] {
			p.advance()
			continue
		}
		stmt, err := p.tryStatement()
		if err != nil {
			if start >= suppressUntil {
				script.Errors = append(script.Errors, err)
				suppressUntil = p.pos
			}
			if p.tooDeep {
				// Every SELECT inside the region nests too deeply as well.
				p.pos = p.deepAt + 1
			} else {
				p.markFailed()
				p.pos = start + 1
			}
			p.open = p.open[:0]
			p.depth = 0
			p.tooDeep = false
			continue
		}
		if stmt != nil {
			script.Statements = append(script.Statements, stmt)
		}
		if p.pos == start {
			p.advance()
		}
	}
	script.Skipped = p.skipped
	return script
}

// markFailed remembers the SELECTs that were open when a statement failed.
// Parsing one of them again from the same token fails the same way, so the
// recovery scan skips them.
func (p *parser) markFailed() {
	if p.failed == nil {
		p.failed = make(map[int]bool)
	}
	for _, pos := range p.open {
		p.failed[pos] = true
	}
}

func (p *parser) tryStatement() (stmt Statement, synErr *SyntaxError) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			synErr = b.err
		}
	}()
	return p.parseStatement(), nil
}

// parseStatement parses one supported statement at the cursor, or consumes a
// single token and returns nil.
func (p *parser) parseStatement() Statement {
	tok := p.peek()
	next := p.peekN(1)
	prev := p.prev()

	// DML keywords also appear in trigger headers and permission statements.
	permission := prev.IsKeyword("GRANT") || prev.IsKeyword("REVOKE") || prev.IsKeyword("DENY")
	afterDMLContext := permission || prev.IsKeyword("FOR") || prev.IsKeyword("AFTER") || prev.IsKeyword("OF")

	switch {
	case tok.IsKeyword("WITH") && (next.Kind == TokenIdent || next.Kind == TokenQuotedIdent) &&
		!next.IsKeyword("XMLNAMESPACES") && (p.peekN(2).IsKeyword("AS") || p.peekN(2).Kind == TokenLParen):
		return p.parseWith()
	case tok.IsKeyword("SELECT") && !permission && !next.IsKeyword("ON"):
		return p.parseSelect()
	case tok.IsKeyword("INSERT") && !afterDMLContext && (next.IsKeyword("INTO") || next.IsKeyword("TOP") || isTargetStart(next)):
		return p.parseInsert()
	case tok.IsKeyword("UPDATE") && !afterDMLContext && !next.IsKeyword("STATISTICS") && (next.IsKeyword("TOP") || isTargetStart(next)):
		return p.parseUpdate()
	case tok.IsKeyword("DELETE") && !afterDMLContext && (next.IsKeyword("FROM") || next.IsKeyword("TOP") || isTargetStart(next)):
		return p.parseDelete()
	case tok.IsKeyword("SET") && next.Kind == TokenVariable && p.peekN(2).Kind == TokenOperator:
		return p.parseSet()
	case tok.IsKeyword("DECLARE") && next.Kind == TokenVariable:
		return p.parseDeclare()
	case tok.Kind == TokenIdent && skippedStatements[tok.Upper()] && !next.IsKeyword("JOIN") &&
		!joinWords[prev.Upper()] && prev.Kind != TokenLParen && prev.Kind != TokenComma:
		p.skipped = append(p.skipped, SkippedStatement{Keyword: tok.Upper(), Pos: tok.Pos})
	}
	p.advance()
	return nil
}

// skippedStatements are data statements the parser does not analyze.
var skippedStatements = toSet("MERGE", "TRUNCATE", "BULK")

var joinWords = toSet("INNER", "LEFT", "RIGHT", "FULL", "OUTER", "CROSS")

func isTargetStart(tok Token) bool {
	return isName(tok) || tok.Kind == TokenVariable
}

func (p *parser) parseWith() Statement {
	ctes := p.parseCTEs()
	switch {
	case p.isKw("SELECT"):
		s := p.parseSelect()
		s.With = ctes
		return s
	case p.isKw("INSERT"):
		s := p.parseInsert()
		s.With = ctes
		return s
	case p.isKw("UPDATE"):
		s := p.parseUpdate()
		s.With = ctes
		return s
	case p.isKw("DELETE"):
		s := p.parseDelete()
		s.With = ctes
		return s
	}
	p.fail("expected SELECT, INSERT, UPDATE or DELETE after WITH, found %s", p.peek())
	return nil
}

func (p *parser) parseCTEs() []*CTE {
	p.expectKw("WITH")
	var ctes []*CTE
	for {
		cte := &CTE{Name: p.expectName("common table expression name")}
		if p.peek().Kind == TokenLParen {
			cte.Columns = p.parseNameList()
		}
		p.expectKw("AS")
		p.expect(TokenLParen, "(")
		cte.Query = p.parseQuery()
		p.expect(TokenRParen, ")")
		ctes = append(ctes, cte)
		if !p.accept(TokenComma) {
			return ctes
		}
	}
}

func (p *parser) parseNameList() []string {
	p.expect(TokenLParen, "(")
	var names []string
	for {
		names = append(names, p.expectName("column name"))
		if !p.accept(TokenComma) {
			break
		}
	}
	p.expect(TokenRParen, ")")
	return names
}

// parseQuery parses a SELECT, optionally preceded by WITH or wrapped in parentheses.
func (p *parser) parseQuery() *SelectStmt {
	if p.isKw("WITH") {
		ctes := p.parseCTEs()
		s := p.parseSelect()
		s.With = ctes
		return s
	}
	if p.peek().Kind == TokenLParen {
		p.advance()
		p.enter()
		s := p.parseQuery()
		p.expect(TokenRParen, ")")
		p.leave()
		return s
	}
	return p.parseSelect()
}

func (p *parser) parseSelect() *SelectStmt {
	mark := len(p.open)
	p.open = append(p.open, p.pos)
	p.expectKw("SELECT")
	s := &SelectStmt{}
	if p.acceptKw("DISTINCT") {
		s.Distinct = true
	} else {
		p.acceptKw("ALL")
	}
	if p.acceptKw("TOP") {
		s.Top = p.parseTop()
	}

	s.Items = p.parseSelectItems()

	if p.acceptKw("INTO") {
		s.Into = p.parseTableName()
	}
	if p.acceptKw("FROM") {
		s.From = p.parseFrom()
	}
	if p.acceptKw("WHERE") {
		s.Where = p.parseExpr()
	}
	if p.isKw("GROUP") && p.peekN(1).IsKeyword("BY") {
		p.advance()
		p.advance()
		s.GroupBy = p.parseExprList()
	}
	if p.acceptKw("HAVING") {
		s.Having = p.parseExpr()
	}
	if p.isKw("ORDER") && p.peekN(1).IsKeyword("BY") {
		p.advance()
		p.advance()
		s.OrderBy = p.parseOrderItems()
		p.skipOffsetFetch()
	}
	p.skipQueryTrailers()

	if op := p.setOperator(); op != "" {
		s.SetOp = op
		s.Next = p.parseQuery()
	}
	p.open = p.open[:mark]
	return s
}

func (p *parser) parseTop() Expr {
	var top Expr
	if p.peek().Kind == TokenLParen {
		p.advance()
		top = p.parseExpr()
		p.expect(TokenRParen, ")")
	} else {
		top = p.parsePrimary()
	}
	p.acceptKw("PERCENT")
	if p.isKw("WITH") && p.peekN(1).IsKeyword("TIES") {
		p.advance()
		p.advance()
	}
	return top
}

func (p *parser) setOperator() string {
	switch {
	case p.acceptKw("UNION"):
		if p.acceptKw("ALL") {
			return "UNION ALL"
		}
		return "UNION"
	case p.acceptKw("EXCEPT"):
		return "EXCEPT"
	case p.acceptKw("INTERSECT"):
		return "INTERSECT"
	}
	return ""
}

func (p *parser) skipOffsetFetch() {
	if !p.acceptKw("OFFSET") {
		return
	}
	p.parseAdditive()
	if !p.acceptKw("ROWS") {
		p.acceptKw("ROW")
	}
	if p.acceptKw("FETCH") {
		if !p.acceptKw("NEXT") {
			p.expectKw("FIRST")
		}
		p.parseAdditive()
		if !p.acceptKw("ROWS") {
			p.expectKw("ROW")
		}
		p.expectKw("ONLY")
	}
}

// skipQueryTrailers drops FOR XML/JSON/BROWSE and OPTION (...) clauses.
func (p *parser) skipQueryTrailers() {
	for {
		switch {
		case p.isKw("FOR") && (p.peekN(1).IsKeyword("XML") || p.peekN(1).IsKeyword("JSON") || p.peekN(1).IsKeyword("BROWSE")):
			p.advance()
			p.advance()
			for {
				tok := p.peek()
				if tok.Kind == TokenEOF || tok.Kind == TokenRParen || tok.Kind == TokenSemicolon ||
					(tok.Kind == TokenIdent && reserved[tok.Upper()] && !forClauseWords[tok.Upper()]) {
					break
				}
				if tok.Kind == TokenLParen {
					p.skipGroup()
					continue
				}
				p.advance()
			}
		case p.isKw("OPTION") && p.peekN(1).Kind == TokenLParen:
			p.advance()
			p.skipGroup()
		default:
			return
		}
	}
}

func (p *parser) parseSelectItems() []Expr {
	var items []Expr
	for {
		items = append(items, p.parseSelectItem())
		if !p.accept(TokenComma) {
			return items
		}
	}
}

func (p *parser) parseSelectItem() Expr {
	tok := p.peek()
	next := p.peekN(1)

	if tok.Kind == TokenOperator && tok.Text == "*" {
		p.advance()
		return &Star{}
	}
	// alias = expr and @var = expr
	if next.Kind == TokenOperator && isAssignOp(next.Text) {
		switch {
		case tok.Kind == TokenVariable:
			p.advance()
			p.advance()
			return &AliasExpr{X: p.parseExpr(), Alias: tok.Text}
		case (isName(tok) || tok.Kind == TokenString) && next.Text == "=":
			p.advance()
			p.advance()
			return &AliasExpr{X: p.parseExpr(), Alias: tok.Text}
		}
	}

	e := p.parseExpr()
	if alias, ok := p.parseAlias(); ok {
		return &AliasExpr{X: e, Alias: alias}
	}
	return e
}

func isAssignOp(op string) bool {
	switch op {
	case "=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=":
		return true
	}
	return false
}

// parseAlias reads [AS] alias. String literals are accepted after AS.
func (p *parser) parseAlias() (string, bool) {
	if p.acceptKw("AS") {
		tok := p.peek()
		if tok.Kind == TokenIdent || tok.Kind == TokenQuotedIdent || tok.Kind == TokenString {
			p.advance()
			return tok.Text, true
		}
		p.fail("expected alias after AS, found %s", tok)
	}
	if isName(p.peek()) {
		return p.advance().Text, true
	}
	return "", false
}

func (p *parser) parseFrom() *FromClause {
	fc := &FromClause{Root: p.parseTableSource()}
	for {
		if p.accept(TokenComma) {
			fc.Joins = append(fc.Joins, &Join{Source: p.parseTableSource()})
			continue
		}
		kind, ok := p.parseJoinKeyword()
		if !ok {
			return fc
		}
		j := &Join{Kind: kind, Source: p.parseTableSource()}
		if p.acceptKw("ON") {
			j.On = p.parseExpr()
		}
		fc.Joins = append(fc.Joins, j)
	}
}

// parseJoinKeyword consumes a join operator and returns its kind. The cursor
// is left untouched when no join operator follows.
func (p *parser) parseJoinKeyword() (string, bool) {
	start := p.pos
	kind := ""
	switch {
	case p.acceptKw("JOIN"):
		return "", true
	case p.acceptKw("INNER"):
		kind = "INNER"
	case p.isKw("LEFT", "RIGHT", "FULL"):
		kind = p.advance().Upper()
		p.acceptKw("OUTER")
	case p.acceptKw("CROSS"):
		if p.acceptKw("APPLY") {
			return "CROSS", true
		}
		kind = "CROSS"
	case p.isKw("OUTER") && p.peekN(1).IsKeyword("APPLY"):
		p.advance()
		p.advance()
		return "LEFT", true
	default:
		return "", false
	}
	if p.isKw("LOOP", "HASH", "MERGE", "REMOTE") {
		p.advance()
	}
	if !p.acceptKw("JOIN") {
		p.pos = start
		return "", false
	}
	return kind, true
}

func (p *parser) parseTableSource() TableSource {
	if p.peek().Kind == TokenLParen {
		next := p.peekN(1)
		if next.IsKeyword("SELECT") || next.IsKeyword("WITH") || next.Kind == TokenLParen {
			p.advance()
			p.enter()
			q := p.parseQuery()
			p.expect(TokenRParen, ")")
			p.leave()
			dt := &DerivedTable{Query: q}
			dt.Alias, _ = p.parseAlias()
			if p.peek().Kind == TokenLParen {
				p.parseNameList()
			}
			return dt
		}
		p.fail("unsupported table source starting with %s", next)
	}

	t := p.parseTableName()
	if p.peek().Kind == TokenLParen && !p.isHintGroup() {
		t.IsFunc = true
		t.Args = p.parseCallArgs(t.Name, nil)
	}
	p.skipTableHints()
	if alias, ok := p.parseAlias(); ok {
		t.Alias = alias
	}
	p.skipTableHints()
	return t
}

// isHintGroup reports whether a '(' at the cursor opens a legacy table hint
// list such as (NOLOCK).
func (p *parser) isHintGroup() bool {
	return p.peek().Kind == TokenLParen && tableHints[p.peekN(1).Upper()] &&
		(p.peekN(2).Kind == TokenRParen || p.peekN(2).Kind == TokenComma)
}

func (p *parser) skipTableHints() {
	if p.isKw("WITH") && p.peekN(1).Kind == TokenLParen {
		p.advance()
		p.skipGroup()
		return
	}
	if p.isHintGroup() {
		p.skipGroup()
	}
}

// parseTableName reads a multi-part object name. Server names of four-part
// names are dropped.
func (p *parser) parseTableName() *TableRef {
	tok := p.peek()
	if tok.Kind == TokenVariable {
		p.advance()
		return &TableRef{Name: tok.Text}
	}
	if !isName(tok) {
		p.fail("expected table name, found %s", tok)
	}
	parts := []string{p.advance().Text}
	for p.peek().Kind == TokenDot {
		p.advance()
		if p.peek().Kind == TokenDot {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, p.expectName("name part"))
	}
	t := &TableRef{Name: parts[len(parts)-1]}
	if len(parts) >= 2 {
		t.Schema = parts[len(parts)-2]
	}
	if len(parts) >= 3 {
		t.Catalog = parts[len(parts)-3]
	}
	return t
}

func (p *parser) parseInsert() *InsertStmt {
	p.expectKw("INSERT")
	if p.acceptKw("TOP") {
		p.parseTop()
	}
	p.acceptKw("INTO")
	s := &InsertStmt{Target: p.parseTableName()}
	p.skipTableHints()
	if p.peek().Kind == TokenLParen && !p.peekN(1).IsKeyword("SELECT") && !p.peekN(1).IsKeyword("WITH") {
		s.Columns = p.parseNameList()
	}
	p.skipOutput()

	switch {
	case p.acceptKw("VALUES"):
		for {
			p.expect(TokenLParen, "(")
			s.Values = append(s.Values, p.parseExprList())
			p.expect(TokenRParen, ")")
			if !p.accept(TokenComma) {
				break
			}
		}
	case p.isKw("SELECT", "WITH") || p.peek().Kind == TokenLParen:
		s.Query = p.parseQuery()
	case p.isKw("DEFAULT") && p.peekN(1).IsKeyword("VALUES"):
		p.advance()
		p.advance()
	case p.isKw("EXEC", "EXECUTE"):
		// INSERT ... EXEC: the procedure call itself is not analyzed.
	default:
		p.fail("expected VALUES or SELECT in INSERT, found %s", p.peek())
	}
	return s
}

// skipOutput drops an OUTPUT clause and its optional INTO target.
func (p *parser) skipOutput() {
	if !p.acceptKw("OUTPUT") {
		return
	}
	p.parseSelectItems()
	if p.acceptKw("INTO") {
		p.parseTableName()
		if p.peek().Kind == TokenLParen {
			p.parseNameList()
		}
	}
}

func (p *parser) parseUpdate() *UpdateStmt {
	p.expectKw("UPDATE")
	if p.acceptKw("TOP") {
		p.parseTop()
	}
	s := &UpdateStmt{Target: p.parseTableName()}
	p.skipTableHints()
	p.expectKw("SET")
	for {
		s.Set = append(s.Set, p.parseAssignment())
		if !p.accept(TokenComma) {
			break
		}
	}
	p.skipOutput()
	if p.acceptKw("FROM") {
		s.From = p.parseFrom()
	}
	s.Where = p.parseDMLWhere()
	return s
}

func (p *parser) parseDelete() *DeleteStmt {
	p.expectKw("DELETE")
	if p.acceptKw("TOP") {
		p.parseTop()
	}
	p.acceptKw("FROM")
	s := &DeleteStmt{Target: p.parseTableName()}
	p.skipTableHints()
	p.skipOutput()
	if p.acceptKw("FROM") {
		s.From = p.parseFrom()
	}
	s.Where = p.parseDMLWhere()
	return s
}

func (p *parser) parseDMLWhere() Expr {
	if !p.acceptKw("WHERE") {
		return nil
	}
	if p.isKw("CURRENT") && p.peekN(1).IsKeyword("OF") {
		p.advance()
		p.advance()
		p.acceptKw("GLOBAL")
		p.advance()
		return nil
	}
	return p.parseExpr()
}

func (p *parser) parseAssignment() *Assignment {
	var target Expr
	tok := p.peek()
	if tok.Kind == TokenVariable {
		p.advance()
		target = &Variable{Name: strings.TrimPrefix(tok.Text, "@")}
	} else {
		target = p.parsePrimary()
		if _, ok := target.(*ColumnRef); !ok {
			p.fail("expected column in SET clause")
		}
	}
	if !p.isOp("=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=") {
		p.fail("expected assignment operator, found %s", p.peek())
	}
	op := p.advance().Text
	return &Assignment{Target: target, Op: op, Value: p.parseExpr()}
}

func (p *parser) parseSet() *SetStmt {
	p.expectKw("SET")
	return &SetStmt{Assign: p.parseAssignment()}
}

func (p *parser) parseDeclare() *DeclareStmt {
	p.expectKw("DECLARE")
	s := &DeclareStmt{}
	for {
		tok := p.expect(TokenVariable, "variable")
		p.acceptKw("AS")
		v := &VarDecl{Name: strings.TrimPrefix(tok.Text, "@")}
		if p.isKw("TABLE") {
			p.advance()
			v.Type = "TABLE"
			p.skipGroup()
		} else {
			v.Type = p.parseTypeName()
		}
		if p.isOp("=") {
			p.advance()
			v.Value = p.parseExpr()
		}
		s.Vars = append(s.Vars, v)
		if !p.accept(TokenComma) {
			return s
		}
	}
}

func (p *parser) parseTypeName() string {
	name := p.expectName("type name")
	for p.accept(TokenDot) {
		name += "." + p.expectName("type name")
	}
	name = strings.ToUpper(name)
	if p.peek().Kind == TokenLParen {
		p.advance()
		var args []string
		for {
			tok := p.peek()
			if tok.Kind != TokenNumber && !tok.IsKeyword("MAX") {
				p.fail("expected type length, found %s", tok)
			}
			args = append(args, strings.ToUpper(p.advance().Text))
			if !p.accept(TokenComma) {
				break
			}
		}
		p.expect(TokenRParen, ")")
		name += "(" + strings.Join(args, ", ") + ")"
	}
	return name
}

// ---- expressions ----

func (p *parser) parseExprList() []Expr {
	var exprs []Expr
	for {
		exprs = append(exprs, p.parseExpr())
		if !p.accept(TokenComma) {
			return exprs
		}
	}
}

func (p *parser) parseOrderItems() []*OrderItem {
	var items []*OrderItem
	for {
		item := &OrderItem{X: p.parseExpr()}
		if p.acceptKw("DESC") {
			item.Desc = true
		} else {
			p.acceptKw("ASC")
		}
		items = append(items, item)
		if !p.accept(TokenComma) {
			return items
		}
	}
}

func (p *parser) parseExpr() Expr {
	return p.parseOr()
}

func (p *parser) parseOr() Expr {
	left := p.parseAnd()
	for p.acceptKw("OR") {
		left = &BinaryExpr{Op: "OR", Left: left, Right: p.parseAnd()}
	}
	return left
}

func (p *parser) parseAnd() Expr {
	left := p.parseNot()
	for p.acceptKw("AND") {
		left = &BinaryExpr{Op: "AND", Left: left, Right: p.parseNot()}
	}
	return left
}

func (p *parser) parseNot() Expr {
	if p.acceptKw("NOT") {
		return &UnaryExpr{Op: "NOT", X: p.parseNot()}
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() Expr {
	left := p.parseAdditive()

	if p.isOp("=", "<>", "!=", "<", ">", "<=", ">=", "!<", "!>") {
		op := p.advance().Text
		return &BinaryExpr{Op: op, Left: left, Right: p.parseAdditive()}
	}

	not := false
	if p.isKw("NOT") && (p.peekN(1).IsKeyword("IN") || p.peekN(1).IsKeyword("BETWEEN") || p.peekN(1).IsKeyword("LIKE")) {
		p.advance()
		not = true
	}

	switch {
	case p.acceptKw("IN"):
		in := &InExpr{X: left, Not: not}
		p.expect(TokenLParen, "( after IN")
		p.enter()
		if p.isKw("SELECT", "WITH") {
			in.Query = p.parseQuery()
		} else {
			in.List = p.parseExprList()
		}
		p.expect(TokenRParen, ")")
		p.leave()
		return in
	case p.acceptKw("BETWEEN"):
		b := &BetweenExpr{X: left, Not: not, Low: p.parseAdditive()}
		p.expectKw("AND")
		b.High = p.parseAdditive()
		return b
	case p.acceptKw("LIKE"):
		l := &LikeExpr{X: left, Not: not, Pattern: p.parseAdditive()}
		if p.acceptKw("ESCAPE") {
			l.Escape = p.parsePrimary()
		}
		return l
	case not:
		p.fail("expected IN, BETWEEN or LIKE after NOT")
	case p.acceptKw("IS"):
		is := &IsExpr{X: left, Not: p.acceptKw("NOT")}
		if p.acceptKw("NULL") {
			is.Right = &Null{}
		} else {
			is.Right = p.parseAdditive()
		}
		return is
	}
	return left
}

func (p *parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for p.isOp("+", "-", "&", "|", "^") {
		op := p.advance().Text
		left = &BinaryExpr{Op: op, Left: left, Right: p.parseMultiplicative()}
	}
	return left
}

func (p *parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for p.isOp("*", "/", "%") {
		op := p.advance().Text
		left = &BinaryExpr{Op: op, Left: left, Right: p.parseUnary()}
	}
	return left
}

func (p *parser) parseUnary() Expr {
	if p.isOp("-", "+", "~") {
		op := p.advance().Text
		return &UnaryExpr{Op: op, X: p.parseUnary()}
	}
	e := p.parsePrimary()
	for {
		switch {
		case p.acceptKw("COLLATE"):
			p.expectName("collation name")
		case p.isKw("AT") && p.peekN(1).IsKeyword("TIME") && p.peekN(2).IsKeyword("ZONE"):
			p.advance()
			p.advance()
			p.advance()
			e = &FuncCall{Name: "AT TIME ZONE", Args: []Expr{e, p.parsePrimary()}}
		default:
			return e
		}
	}
}

func (p *parser) parsePrimary() Expr {
	tok := p.peek()
	switch tok.Kind {
	case TokenNumber:
		p.advance()
		return &Literal{Kind: LiteralNumber, Value: tok.Text}
	case TokenString:
		p.advance()
		return &Literal{Kind: LiteralString, Value: tok.Text}
	case TokenVariable:
		p.advance()
		return &Variable{Name: strings.TrimPrefix(tok.Text, "@")}
	case TokenPlaceholder:
		p.advance()
		return &Placeholder{}
	case TokenLParen:
		p.advance()
		p.enter()
		defer p.leave()
		if p.isKw("SELECT", "WITH") {
			q := p.parseQuery()
			p.expect(TokenRParen, ")")
			return &SubqueryExpr{Query: q}
		}
		e := p.parseExpr()
		p.expect(TokenRParen, ")")
		return &ParenExpr{X: e}
	case TokenIdent, TokenQuotedIdent:
		return p.parseNamedPrimary()
	}
	p.fail("unexpected %s in expression", tok)
	return nil
}

func (p *parser) parseNamedPrimary() Expr {
	tok := p.peek()
	upper := tok.Upper()
	next := p.peekN(1)

	if tok.Kind == TokenIdent {
		switch {
		case upper == "NULL":
			p.advance()
			return &Null{}
		case upper == "CASE":
			return p.parseCase()
		case upper == "EXISTS" && next.Kind == TokenLParen:
			p.advance()
			p.advance()
			q := p.parseQuery()
			p.expect(TokenRParen, ")")
			return &ExistsExpr{Query: q}
		case (upper == "CAST" || upper == "TRY_CAST") && next.Kind == TokenLParen:
			p.advance()
			p.advance()
			c := &CastExpr{Func: upper, X: p.parseExpr()}
			p.expectKw("AS")
			c.Type = p.parseTypeName()
			p.expect(TokenRParen, ")")
			return c
		case (upper == "CONVERT" || upper == "TRY_CONVERT") && next.Kind == TokenLParen:
			p.advance()
			p.advance()
			c := &CastExpr{Func: upper, Type: p.parseTypeName()}
			p.expect(TokenComma, ",")
			c.X = p.parseExpr()
			if p.accept(TokenComma) {
				c.Style = p.parseExpr()
			}
			p.expect(TokenRParen, ")")
			return c
		case niladic[upper] && next.Kind != TokenLParen:
			p.advance()
			return &FuncCall{Name: upper, Niladic: true}
		case reserved[upper]:
			if next.Kind != TokenLParen || upper == "SELECT" || upper == "VALUES" || upper == "IN" {
				p.fail("unexpected keyword %s in expression", upper)
			}
			p.advance()
			return p.parseCall(upper)
		}
	}

	parts := []string{p.advance().Text}
	for p.peek().Kind == TokenDot {
		p.advance()
		nt := p.peek()
		switch {
		case nt.Kind == TokenOperator && nt.Text == "*":
			p.advance()
			return &Star{Table: parts[len(parts)-1]}
		case nt.Kind == TokenDot:
			parts = append(parts, "")
		default:
			parts = append(parts, p.expectName("name part"))
		}
	}

	if p.peek().Kind == TokenLParen {
		name := strings.Join(parts, ".")
		if len(parts) == 1 {
			name = strings.ToUpper(name)
		}
		return p.parseCall(name)
	}

	col := &ColumnRef{Name: parts[len(parts)-1]}
	if len(parts) >= 2 {
		col.Table = parts[len(parts)-2]
	}
	if len(parts) >= 3 {
		col.Schema = parts[len(parts)-3]
	}
	if len(parts) >= 4 {
		col.Catalog = parts[len(parts)-4]
	}
	return col
}

// parseCall parses the argument list and OVER clause of a function whose
// name has been consumed.
func (p *parser) parseCall(name string) Expr {
	f := &FuncCall{Name: name}
	f.Args = p.parseCallArgs(name, f)
	if p.isKw("WITHIN") && p.peekN(1).IsKeyword("GROUP") {
		p.advance()
		p.advance()
		p.skipGroup()
	}
	if p.acceptKw("OVER") {
		f.Over = p.parseWindow()
	}
	return f
}

func (p *parser) parseCallArgs(name string, f *FuncCall) []Expr {
	p.expect(TokenLParen, "(")
	p.enter()
	defer p.leave()
	var args []Expr
	if p.accept(TokenRParen) {
		return args
	}
	if f != nil {
		if p.acceptKw("DISTINCT") {
			f.Distinct = true
		} else {
			p.acceptKw("ALL")
		}
	}
	for i := 0; ; i++ {
		tok := p.peek()
		switch {
		case tok.Kind == TokenOperator && tok.Text == "*":
			p.advance()
			args = append(args, &Star{})
		case i == 0 && datepartFuncs[strings.ToUpper(name)] && tok.Kind == TokenIdent:
			p.advance()
			args = append(args, &Keyword{Text: strings.ToUpper(tok.Text)})
		case tok.IsKeyword("SELECT"):
			args = append(args, &SubqueryExpr{Query: p.parseQuery()})
		default:
			args = append(args, p.parseExpr())
		}
		if !p.accept(TokenComma) {
			break
		}
	}
	p.expect(TokenRParen, ")")
	return args
}

func (p *parser) parseWindow() *WindowSpec {
	p.expect(TokenLParen, "( after OVER")
	w := &WindowSpec{}
	if p.isKw("PARTITION") && p.peekN(1).IsKeyword("BY") {
		p.advance()
		p.advance()
		w.PartitionBy = p.parseExprList()
	}
	if p.isKw("ORDER") && p.peekN(1).IsKeyword("BY") {
		p.advance()
		p.advance()
		w.OrderBy = p.parseOrderItems()
	}
	if p.isKw("ROWS", "RANGE") {
		var frame []string
		for p.peek().Kind != TokenRParen && p.peek().Kind != TokenEOF {
			frame = append(frame, strings.ToUpper(p.advance().Text))
		}
		w.Frame = strings.Join(frame, " ")
	}
	p.expect(TokenRParen, ")")
	return w
}

func (p *parser) parseCase() Expr {
	p.expectKw("CASE")
	c := &CaseExpr{}
	if !p.isKw("WHEN") {
		c.Operand = p.parseExpr()
	}
	for p.acceptKw("WHEN") {
		w := &WhenClause{Cond: p.parseExpr()}
		p.expectKw("THEN")
		w.Result = p.parseExpr()
		c.Whens = append(c.Whens, w)
	}
	if len(c.Whens) == 0 {
		p.fail("CASE without WHEN")
	}
	if p.acceptKw("ELSE") {
		c.Else = p.parseExpr()
	}
	p.expectKw("END")
	return c
}

var reserved = toSet(
	"ADD", "ALL", "ALTER", "AND", "ANY", "APPLY", "AS", "ASC", "BEGIN", "BETWEEN", "BREAK", "BY",
	"CASE", "CATCH", "CLOSE", "COLLATE", "COMMIT", "CONTINUE", "CREATE", "CROSS", "DEALLOCATE",
	"DECLARE", "DEFAULT", "DELETE", "DENY", "DESC", "DISTINCT", "DROP", "ELSE", "END", "ESCAPE",
	"EXCEPT", "EXEC", "EXECUTE", "EXISTS", "FETCH", "FOR", "FROM", "FULL", "GO", "GOTO", "GRANT",
	"GROUP", "HAVING", "IF", "IN", "INNER", "INSERT", "INTERSECT", "INTO", "IS", "JOIN", "LEFT",
	"LIKE", "MERGE", "NOT", "NULL", "OF", "OFFSET", "ON", "OPEN", "OPTION", "OR", "ORDER", "OUTER",
	"OUTPUT", "OVER", "PERCENT", "PIVOT", "PRINT", "RAISERROR", "RETURN", "REVOKE", "RIGHT",
	"ROLLBACK", "SAVE", "SELECT", "SET", "THEN", "THROW", "TOP", "TRAN", "TRANSACTION", "TRUNCATE",
	"TRY", "UNION", "UNPIVOT", "UPDATE", "USE", "USING", "VALUES", "WAITFOR", "WHEN", "WHERE",
	"WHILE", "WITH", "WITHIN",
)

var forClauseWords = toSet("PATH", "RAW", "AUTO", "EXPLICIT", "TYPE", "ROOT", "ELEMENTS", "INCLUDE_NULL_VALUES", "WITHOUT_ARRAY_WRAPPER")

var niladic = toSet("CURRENT_TIMESTAMP", "CURRENT_USER", "SESSION_USER", "SYSTEM_USER", "CURRENT_DATE")

var datepartFuncs = toSet("DATEADD", "DATEDIFF", "DATEDIFF_BIG", "DATEPART", "DATENAME", "DATETRUNC", "DATE_BUCKET")

var tableHints = toSet(
	"NOLOCK", "READUNCOMMITTED", "READCOMMITTED", "REPEATABLEREAD", "SERIALIZABLE", "HOLDLOCK",
	"UPDLOCK", "ROWLOCK", "PAGLOCK", "TABLOCK", "TABLOCKX", "XLOCK", "NOWAIT", "READPAST",
	"FORCESEEK", "FORCESCAN", "NOEXPAND", "INDEX",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
