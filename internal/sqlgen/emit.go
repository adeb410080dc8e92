// Package sqlgen turns a partitioned relational tree into SQL text for a
// concrete dialect. Each materialized node becomes one CTE; every fused
// chain between boundaries becomes a single SELECT with the fixed clause
// order SELECT, FROM, JOIN, WHERE, GROUP BY, HAVING, ORDER BY, limit.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/paulomach/prql/internal/rel"
	"github.com/paulomach/prql/internal/resolve"
)

// Emit renders the tree as one SQL statement.
func Emit(t *rel.Tree, dialect *Dialect) (string, error) {
	if dialect == nil {
		dialect = DefaultDialect
	}
	e := &emitter{tree: t, d: dialect}

	var parts []string
	for id := range t.Nodes {
		n := t.Node(rel.NodeID(id))
		if !n.Materialize {
			continue
		}
		body, err := e.selectFor(rel.NodeID(id))
		if err != nil {
			return "", err
		}
		part := fmt.Sprintf("%s AS (\n%s\n)", dialect.QuoteIdent(n.Name), indent(body, "  "))
		parts = append(parts, part)
	}
	if len(parts) > 0 && !dialect.SupportsWith {
		return "", &UnsupportedConstructError{Construct: "common table expressions", Dialect: dialect.Type}
	}

	var body string
	var err error
	if root := t.Node(t.Root); root.Materialize {
		body = e.referenceSelect(root)
	} else {
		body, err = e.selectFor(t.Root)
		if err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	if len(parts) > 0 {
		sb.WriteString("WITH ")
		sb.WriteString(strings.Join(parts, ",\n"))
		sb.WriteString("\n")
	}
	sb.WriteString(body)
	return strings.TrimSpace(sb.String()), nil
}

type emitter struct {
	tree *rel.Tree
	d    *Dialect
}

// referenceSelect reads a materialized node back out by name with its
// frozen column list.
func (e *emitter) referenceSelect(n *rel.Node) string {
	cols := make([]string, len(n.Out))
	for i, c := range n.Out {
		cols[i] = e.d.QuoteIdent(c.Name)
	}
	return "SELECT\n  " + strings.Join(cols, ",\n  ") +
		"\nFROM\n  " + e.d.QuoteIdent(n.Name)
}

// selectFor renders the fused chain ending at top as one SELECT (or a
// UNION of SELECTs when top is a union node).
func (e *emitter) selectFor(top rel.NodeID) (string, error) {
	n := e.tree.Node(top)
	if n.Kind == rel.KindUnion {
		left, err := e.armSQL(n.Input)
		if err != nil {
			return "", err
		}
		right, err := e.armSQL(n.Right)
		if err != nil {
			return "", err
		}
		return left + "\nUNION\nALL\n" + right, nil
	}

	chain := e.chainOf(top)
	b := newBuilder(e.d)

	base := e.tree.Node(chain[0])
	if base.Kind == rel.KindScan {
		b.from = e.d.QuoteIdent(base.Table)
		b.fromName = base.Table
		if base.Alias != "" {
			b.from += " AS " + e.d.QuoteIdent(base.Alias)
			b.fromName = base.Alias
		}
	} else {
		b.from = e.d.QuoteIdent(base.Name)
		b.fromName = base.Name
	}
	cols := make([]string, len(base.Out))
	for i, c := range base.Out {
		cols[i] = e.d.QuoteIdent(c.Name)
	}
	b.selects = cols

	for _, id := range chain[1:] {
		e.applyStage(b, e.tree.Node(id))
	}
	return b.render(), nil
}

func (e *emitter) armSQL(id rel.NodeID) (string, error) {
	n := e.tree.Node(id)
	if n.Materialize {
		return e.referenceSelect(n), nil
	}
	return e.selectFor(id)
}

// chainOf walks from top down to its boundary (a scan or a materialized
// node) and returns the node ids bottom-up.
func (e *emitter) chainOf(top rel.NodeID) []rel.NodeID {
	var rev []rel.NodeID
	id := top
	for {
		n := e.tree.Node(id)
		rev = append(rev, id)
		if n.Kind == rel.KindScan {
			break
		}
		if id != top && n.Materialize {
			break
		}
		id = n.Input
	}
	out := make([]rel.NodeID, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

func (e *emitter) applyStage(b *builder, n *rel.Node) {
	switch n.Kind {
	case rel.KindProject:
		items := make([]string, len(n.Out))
		for i, c := range n.Out {
			items[i] = b.selectItem(c)
			if ref, ok := c.Expr.(*resolve.ColumnRef); ok && ref.Relation == "" && ref.Name == c.Name {
				continue
			}
			b.aliases[c.Name] = c.Expr
		}
		b.selects = items

	case rel.KindFilter:
		if b.agg {
			b.havings = append(b.havings, n.Cond)
		} else {
			b.wheres = append(b.wheres, n.Cond)
		}

	case rel.KindAggregate:
		b.agg = true
		var sel, gb []string
		for _, k := range n.Keys {
			expr := b.expr(k, 0)
			gb = append(gb, expr)
			if expr != b.refSQL(k) {
				expr += " AS " + b.d.QuoteIdent(k.Name)
			}
			sel = append(sel, expr)
		}
		for _, c := range n.Aggs {
			b.aliases[c.Name] = c.Expr
			sel = append(sel, b.expr(c.Expr, 0)+" AS "+b.d.QuoteIdent(c.Name))
		}
		b.selects = sel
		b.groupBy = gb

	case rel.KindJoin:
		e.applyJoin(b, n)

	case rel.KindSort:
		items := make([]string, len(n.SortItems))
		for i, it := range n.SortItems {
			items[i] = b.orderItem(it)
		}
		b.orderBy = items

	case rel.KindTake:
		b.limit = n.Limit
		b.offset = n.Offset
	}
}

func (e *emitter) applyJoin(b *builder, n *rel.Node) {
	right := e.tree.Node(n.Right)
	var rightSQL, rightName string
	if right.Kind == rel.KindScan {
		rightSQL = e.d.QuoteIdent(right.Table)
		rightName = right.Table
		if right.Alias != "" {
			rightSQL += " AS " + e.d.QuoteIdent(right.Alias)
			rightName = right.Alias
		}
	} else {
		rightSQL = e.d.QuoteIdent(right.Name)
		rightName = right.Name
		if n.Alias != "" {
			rightSQL += " AS " + e.d.QuoteIdent(n.Alias)
			rightName = n.Alias
		}
	}

	joinType := "INNER JOIN"
	switch strings.ToLower(n.Side) {
	case "left":
		joinType = "LEFT OUTER JOIN"
	case "right":
		joinType = "RIGHT OUTER JOIN"
	case "full":
		joinType = "FULL OUTER JOIN"
	}

	var clause string
	switch {
	case len(n.Using) > 0 && e.d.UseUsingJoin:
		quoted := make([]string, len(n.Using))
		for i, c := range n.Using {
			quoted[i] = e.d.QuoteIdent(c)
		}
		clause = fmt.Sprintf("%s %s USING (%s)", joinType, rightSQL, strings.Join(quoted, ", "))
	case len(n.Using) > 0:
		conds := make([]string, len(n.Using))
		for i, c := range n.Using {
			conds[i] = fmt.Sprintf("%s.%s = %s.%s",
				e.d.QuoteIdent(b.fromName), e.d.QuoteIdent(c),
				e.d.QuoteIdent(rightName), e.d.QuoteIdent(c))
		}
		clause = fmt.Sprintf("%s %s ON %s", joinType, rightSQL, strings.Join(conds, " AND "))
	default:
		clause = fmt.Sprintf("%s %s ON %s", joinType, rightSQL, b.expr(n.On, 0))
	}
	b.joins = append(b.joins, clause)

	items := make([]string, len(n.Out))
	for i, c := range n.Out {
		items[i] = b.selectItem(c)
	}
	b.selects = items
}

// builder accumulates the clauses of one SELECT in emission order.
type builder struct {
	d        *Dialect
	from     string
	fromName string
	joins    []string
	selects  []string
	wheres   []resolve.Expr
	groupBy  []string
	havings  []resolve.Expr
	orderBy  []string
	limit    int
	offset   int

	// aliases maps output column names to the expressions that computed
	// them, so WHERE, HAVING and later projections can be rewritten in
	// terms of source columns.
	aliases map[string]resolve.Expr
	agg     bool
}

func newBuilder(d *Dialect) *builder {
	return &builder{d: d, limit: -1, aliases: map[string]resolve.Expr{}}
}

func (b *builder) selectItem(c resolve.Column) string {
	if ref, ok := c.Expr.(*resolve.ColumnRef); ok {
		_, aliased := b.aliases[ref.Name]
		if !aliased || ref.Relation != "" {
			expr := b.refSQL(ref)
			if ref.Name == c.Name {
				return expr
			}
			return expr + " AS " + b.d.QuoteIdent(c.Name)
		}
	}
	return b.expr(c.Expr, 0) + " AS " + b.d.QuoteIdent(c.Name)
}

// orderItem keeps plain column references as-is: output aliases are legal
// in ORDER BY, and rewriting them back to expressions only hurts
// readability.
func (b *builder) orderItem(it resolve.SortItem) string {
	var s string
	if ref, ok := it.Expr.(*resolve.ColumnRef); ok {
		s = b.refSQL(ref)
	} else {
		s = b.expr(it.Expr, 0)
	}
	if it.Desc {
		s += " DESC"
	}
	return s
}

func (b *builder) render() string {
	var sb strings.Builder

	header := "SELECT"
	useTop := b.d.UseTopClause && b.limit >= 0 && b.offset == 0
	if useTop {
		header = fmt.Sprintf("SELECT TOP %d", b.limit)
	}
	sb.WriteString(header)
	sb.WriteString("\n  ")
	sb.WriteString(strings.Join(b.selects, ",\n  "))

	sb.WriteString("\nFROM\n  ")
	sb.WriteString(b.from)
	for _, j := range b.joins {
		sb.WriteString("\n  ")
		sb.WriteString(j)
	}

	if len(b.wheres) > 0 {
		sb.WriteString("\nWHERE\n  ")
		sb.WriteString(b.conjunction(b.wheres))
	}
	if len(b.groupBy) > 0 {
		sb.WriteString("\nGROUP BY\n  ")
		sb.WriteString(strings.Join(b.groupBy, ",\n  "))
	}
	if len(b.havings) > 0 {
		sb.WriteString("\nHAVING\n  ")
		sb.WriteString(b.conjunction(b.havings))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString("\nORDER BY\n  ")
		sb.WriteString(strings.Join(b.orderBy, ",\n  "))
	}

	if b.limit >= 0 && !useTop {
		switch {
		case b.d.OffsetFetchSyntax:
			sb.WriteString(fmt.Sprintf("\nOFFSET\n  %d ROWS FETCH NEXT %d ROWS ONLY", b.offset, b.limit))
		case b.d.UseLimitComma && b.offset > 0:
			sb.WriteString(fmt.Sprintf("\nLIMIT\n  %d, %d", b.offset, b.limit))
		case b.offset > 0:
			sb.WriteString(fmt.Sprintf("\nLIMIT\n  %d OFFSET %d", b.limit, b.offset))
		default:
			sb.WriteString(fmt.Sprintf("\nLIMIT\n  %d", b.limit))
		}
	}
	return sb.String()
}

// conjunction joins conditions with AND, parenthesizing any condition
// whose top-level operator binds looser than AND.
func (b *builder) conjunction(conds []resolve.Expr) string {
	parent := 0
	if len(conds) > 1 {
		parent = sqlPrec["and"]
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = b.expr(c, parent)
	}
	return strings.Join(parts, " AND ")
}

// SQL operator precedence, loosest first. COALESCE renders as a function
// call, so ?? never needs a level.
var sqlPrec = map[string]int{
	"or":  1,
	"and": 2,
	"==":  3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5, "%": 5,
}

var sqlOp = map[string]string{
	"or": "OR", "and": "AND",
	"==": "=", "!=": "<>",
	"<": "<", "<=": "<=", ">": ">", ">=": ">=",
	"+": "+", "-": "-", "*": "*", "/": "/", "%": "%",
}

// nonAssociative reports operators whose right operand keeps its parens
// at equal precedence (a - (b - c) is not (a - b) - c).
func nonAssociative(op string) bool {
	switch op {
	case "-", "/", "%":
		return true
	}
	return false
}

func (b *builder) expr(e resolve.Expr, parent int) string {
	switch x := e.(type) {
	case *resolve.ColumnRef:
		if x.Relation == "" {
			if sub, ok := b.aliases[x.Name]; ok {
				return b.expr(sub, parent)
			}
		}
		return b.refSQL(x)

	case *resolve.Literal:
		return b.literal(x)

	case *resolve.Binary:
		if x.Op == "??" {
			return fmt.Sprintf("COALESCE(%s, %s)", b.expr(x.Left, 0), b.expr(x.Right, 0))
		}
		prec := sqlPrec[x.Op]
		rightPrec := prec
		if nonAssociative(x.Op) {
			rightPrec = prec + 1
		}
		s := fmt.Sprintf("%s %s %s", b.expr(x.Left, prec), sqlOp[x.Op], b.expr(x.Right, rightPrec))
		if prec < parent {
			return "(" + s + ")"
		}
		return s

	case *resolve.Unary:
		if x.Op == "not" {
			operand := b.expr(x.Expr, 0)
			if _, ok := x.Expr.(*resolve.Binary); ok {
				operand = "(" + operand + ")"
			}
			return "NOT " + operand
		}
		operand := b.expr(x.Expr, 0)
		if _, ok := x.Expr.(*resolve.Binary); ok {
			operand = "(" + operand + ")"
		}
		return "-" + operand

	case *resolve.FuncCall:
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			args[i] = b.expr(a, 0)
		}
		if pattern, ok := b.d.Functions[x.Name]; ok {
			anyArgs := make([]any, len(args))
			for i, a := range args {
				anyArgs[i] = a
			}
			return fmt.Sprintf(pattern, anyArgs...)
		}
		return strings.ToUpper(x.Name) + "(" + strings.Join(args, ", ") + ")"

	case *resolve.AggCall:
		if x.Arg == nil {
			return "COUNT(*)"
		}
		return strings.ToUpper(x.Func) + "(" + b.expr(x.Arg, 0) + ")"
	}
	return ""
}

func (b *builder) refSQL(ref *resolve.ColumnRef) string {
	if ref.Relation != "" {
		return b.d.QuoteIdent(ref.Relation) + "." + b.d.QuoteIdent(ref.Name)
	}
	return b.d.QuoteIdent(ref.Name)
}

func (b *builder) literal(l *resolve.Literal) string {
	switch l.Kind {
	case resolve.LitString:
		return sqlString(l.Value)
	case resolve.LitNull:
		return "NULL"
	default:
		return l.Value
	}
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
