package sql

// Inspect traverses the tree rooted at n in depth-first order. For each node
// f receives the node and its ancestors, innermost last. If f returns false
// the children of that node are skipped.
func Inspect(n Node, f func(n Node, ancestors []Node) bool) {
	var stack []Node
	var visit func(Node)
	visit = func(n Node) {
		if isNil(n) {
			return
		}
		if !f(n, stack) {
			return
		}
		stack = append(stack, n)
		for _, c := range Children(n) {
			visit(c)
		}
		stack = stack[:len(stack)-1]
	}
	visit(n)
}

// Find returns every node below and including root for which match is true,
// in depth-first order.
func Find(root Node, match func(Node) bool) []Node {
	var out []Node
	Inspect(root, func(n Node, _ []Node) bool {
		if match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Contains reports whether any node below root (root excluded) satisfies match.
func Contains(root Node, match func(Node) bool) bool {
	found := false
	Inspect(root, func(n Node, _ []Node) bool {
		if found {
			return false
		}
		if n != root && match(n) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(nodes ...Node) {
		for _, c := range nodes {
			if !isNil(c) {
				out = append(out, c)
			}
		}
	}
	addExprs := func(exprs []Expr) {
		for _, e := range exprs {
			add(e)
		}
	}
	addCTEs := func(ctes []*CTE) {
		for _, c := range ctes {
			add(c)
		}
	}

	switch n := n.(type) {
	case *BinaryExpr:
		add(n.Left, n.Right)
	case *UnaryExpr:
		add(n.X)
	case *InExpr:
		add(n.X)
		addExprs(n.List)
		add(n.Query)
	case *BetweenExpr:
		add(n.X, n.Low, n.High)
	case *LikeExpr:
		add(n.X, n.Pattern, n.Escape)
	case *IsExpr:
		add(n.X, n.Right)
	case *FuncCall:
		addExprs(n.Args)
		add(n.Over)
	case *CastExpr:
		add(n.X, n.Style)
	case *CaseExpr:
		add(n.Operand)
		for _, w := range n.Whens {
			add(w)
		}
		add(n.Else)
	case *WhenClause:
		add(n.Cond, n.Result)
	case *SubqueryExpr:
		add(n.Query)
	case *ExistsExpr:
		add(n.Query)
	case *ParenExpr:
		add(n.X)
	case *AliasExpr:
		add(n.X)
	case *WindowSpec:
		addExprs(n.PartitionBy)
		for _, o := range n.OrderBy {
			add(o)
		}
	case *OrderItem:
		add(n.X)
	case *TableRef:
		addExprs(n.Args)
	case *DerivedTable:
		add(n.Query)
	case *FromClause:
		add(n.Root)
		for _, j := range n.Joins {
			add(j)
		}
	case *Join:
		add(n.Source, n.On)
	case *CTE:
		add(n.Query)
	case *SelectStmt:
		addCTEs(n.With)
		add(n.Top)
		addExprs(n.Items)
		add(n.Into, n.From, n.Where)
		addExprs(n.GroupBy)
		add(n.Having)
		for _, o := range n.OrderBy {
			add(o)
		}
		add(n.Next)
	case *InsertStmt:
		addCTEs(n.With)
		add(n.Target)
		for _, row := range n.Values {
			addExprs(row)
		}
		add(n.Query)
	case *Assignment:
		add(n.Target, n.Value)
	case *UpdateStmt:
		addCTEs(n.With)
		add(n.Target)
		for _, a := range n.Set {
			add(a)
		}
		add(n.From, n.Where)
	case *DeleteStmt:
		addCTEs(n.With)
		add(n.Target, n.From, n.Where)
	case *SetStmt:
		add(n.Assign)
	case *VarDecl:
		add(n.Value)
	case *DeclareStmt:
		for _, v := range n.Vars {
			add(v)
		}
	}
	return out
}

// isNil catches typed nil pointers stored in interfaces.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	switch v := n.(type) {
	case *SelectStmt:
		return v == nil
	case *FromClause:
		return v == nil
	case *TableRef:
		return v == nil
	case *WindowSpec:
		return v == nil
	case *Assignment:
		return v == nil
	case *WhenClause:
		return v == nil
	case *OrderItem:
		return v == nil
	case *CTE:
		return v == nil
	case *Join:
		return v == nil
	case *VarDecl:
		return v == nil
	}
	return false
}
