// Package resolve checks names and scoping for a parsed pipeline and
// produces an annotated query for the IR builder.
//
// Resolution never mutates the parsed tree. Each stage is rewritten into a
// resolved form carrying its output column list, so every later phase knows
// the exact shape of the relation at every point in the pipeline.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulomach/prql/internal/ast"
	"github.com/paulomach/prql/internal/schema"
)

// Query is a fully resolved pipeline with its let bindings.
type Query struct {
	Bindings []Binding
	Main     *Pipeline
}

// Binding is a resolved let binding.
type Binding struct {
	Name     string
	Pipeline *Pipeline
}

// Pipeline is a resolved stage chain.
type Pipeline struct {
	From   From
	Stages []Stage
	Output []Column
	Span   ast.Span
}

// From is the resolved source relation.
type From struct {
	Table   string
	Alias   string
	Binding bool // Table names a let binding rather than a schema table
	Columns []string
	Span    ast.Span
}

// Column is one output column of a stage: its name and the expression
// that produces it (a plain ColumnRef for passthrough columns).
type Column struct {
	Name string
	Expr Expr
	Span ast.Span
}

// Stage is a resolved pipeline stage.
type Stage interface {
	isStage()
	OutputCols() []Column
	StageSpan() ast.Span
}

type (
	// Project narrows or renames the relation's columns.
	Project struct {
		Cols []Column
		Span ast.Span
	}

	// Filter keeps rows satisfying Cond.
	Filter struct {
		Cond Expr
		Out  []Column
		Span ast.Span
	}

	// Derive appends computed columns.
	Derive struct {
		New  []Column
		Out  []Column
		Span ast.Span
	}

	// Aggregate groups by Keys and collapses each group to Aggs.
	Aggregate struct {
		Keys []*ColumnRef
		Aggs []Column
		Out  []Column
		Span ast.Span
	}

	// Join combines the pipeline with another relation.
	Join struct {
		Relation  string
		Alias     string
		Binding   bool
		Side      string
		Using     []string
		On        Expr
		RightCols []string
		Out       []Column
		Span      ast.Span
	}

	// Sort orders rows.
	Sort struct {
		Items []SortItem
		Out   []Column
		Span  ast.Span
	}

	SortItem struct {
		Expr Expr
		Desc bool
	}

	// Take limits the relation to a row window.
	Take struct {
		Limit  int
		Offset int
		Out    []Column
		Span   ast.Span
	}

	// Union appends the rows of another pipeline (UNION ALL).
	Union struct {
		Pipeline *Pipeline
		Out      []Column
		Span     ast.Span
	}
)

func (*Project) isStage()   {}
func (*Filter) isStage()    {}
func (*Derive) isStage()    {}
func (*Aggregate) isStage() {}
func (*Join) isStage()      {}
func (*Sort) isStage()      {}
func (*Take) isStage()      {}
func (*Union) isStage()     {}

func (s *Project) OutputCols() []Column   { return s.Cols }
func (s *Filter) OutputCols() []Column    { return s.Out }
func (s *Derive) OutputCols() []Column    { return s.Out }
func (s *Aggregate) OutputCols() []Column { return s.Out }
func (s *Join) OutputCols() []Column      { return s.Out }
func (s *Sort) OutputCols() []Column      { return s.Out }
func (s *Take) OutputCols() []Column      { return s.Out }
func (s *Union) OutputCols() []Column     { return s.Out }

func (s *Project) StageSpan() ast.Span   { return s.Span }
func (s *Filter) StageSpan() ast.Span    { return s.Span }
func (s *Derive) StageSpan() ast.Span    { return s.Span }
func (s *Aggregate) StageSpan() ast.Span { return s.Span }
func (s *Join) StageSpan() ast.Span      { return s.Span }
func (s *Sort) StageSpan() ast.Span      { return s.Span }
func (s *Take) StageSpan() ast.Span      { return s.Span }
func (s *Union) StageSpan() ast.Span     { return s.Span }

// Expr is a resolved expression.
type Expr interface{ isExpr() }

type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitString
	LitBool
	LitNull
)

type (
	// ColumnRef names a column, optionally qualified by its relation.
	ColumnRef struct {
		Relation string
		Name     string
		Span     ast.Span
	}

	Literal struct {
		Kind  LitKind
		Value string
		Span  ast.Span
	}

	Binary struct {
		Op    string
		Left  Expr
		Right Expr
		Span  ast.Span
	}

	Unary struct {
		Op   string
		Expr Expr
		Span ast.Span
	}

	// FuncCall is a scalar function application.
	FuncCall struct {
		Name string
		Args []Expr
		Span ast.Span
	}

	// AggCall is an aggregate function; Arg is nil for count.
	AggCall struct {
		Func string
		Arg  Expr
		Span ast.Span
	}
)

func (*ColumnRef) isExpr() {}
func (*Literal) isExpr()   {}
func (*Binary) isExpr()    {}
func (*Unary) isExpr()     {}
func (*FuncCall) isExpr()  {}
func (*AggCall) isExpr()   {}

var aggFuncs = map[string]string{
	"sum":     "sum",
	"average": "avg",
	"avg":     "avg",
	"count":   "count",
	"min":     "min",
	"max":     "max",
}

// Error reports a name resolution failure.
type Error struct {
	Span      ast.Span
	Msg       string
	Available []string
}

func (e *Error) Error() string {
	if len(e.Available) > 0 {
		return fmt.Sprintf("%d:%d: %s; available columns: %s",
			e.Span.Start.Line, e.Span.Start.Column, e.Msg, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Msg)
}

func errAt(span ast.Span, format string, args ...any) *Error {
	return &Error{Span: span, Msg: fmt.Sprintf(format, args...)}
}

// Resolve checks the pipeline against the schema provider and produces a
// resolved query.
func Resolve(p *ast.Pipeline, provider schema.Provider) (*Query, error) {
	r := &resolver{
		provider: provider,
		bindings: map[string][]string{},
	}
	q := &Query{}
	for _, b := range p.Bindings {
		if _, exists := r.bindings[b.Name]; exists {
			return nil, errAt(b.Span, "duplicate binding name %q", b.Name)
		}
		rp, err := r.pipeline(b.Pipeline)
		if err != nil {
			return nil, err
		}
		r.bindings[b.Name] = columnNames(rp.Output)
		q.Bindings = append(q.Bindings, Binding{Name: b.Name, Pipeline: rp})
	}
	main, err := r.pipeline(p)
	if err != nil {
		return nil, err
	}
	q.Main = main
	return q, nil
}

type resolver struct {
	provider schema.Provider
	bindings map[string][]string // let binding name -> output columns
}

func (r *resolver) relationColumns(name string, span ast.Span) (cols []string, isBinding bool, err error) {
	if cols, ok := r.bindings[name]; ok {
		return cols, true, nil
	}
	cols, perr := r.provider.ColumnsOf(name)
	if perr != nil {
		return nil, false, &Error{Span: span, Msg: perr.Error()}
	}
	return cols, false, nil
}

func (r *resolver) pipeline(p *ast.Pipeline) (*Pipeline, error) {
	cols, isBinding, err := r.relationColumns(p.From.Table, p.From.Span)
	if err != nil {
		return nil, err
	}
	rel := p.From.Table
	if p.From.Alias != "" {
		rel = p.From.Alias
	}
	sc := newScope()
	for _, c := range cols {
		sc.add(c, rel)
	}

	out := &Pipeline{
		From: From{
			Table:   p.From.Table,
			Alias:   p.From.Alias,
			Binding: isBinding,
			Columns: cols,
			Span:    p.From.Span,
		},
		Span: p.Span,
	}

	current := passthrough(cols, p.From.Span)
	for _, st := range p.Stages {
		stage, next, nextScope, err := r.stage(st, sc, current)
		if err != nil {
			return nil, err
		}
		out.Stages = append(out.Stages, stage)
		current = next
		sc = nextScope
	}
	out.Output = current
	return out, nil
}

func passthrough(cols []string, span ast.Span) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = Column{Name: c, Expr: &ColumnRef{Name: c, Span: span}, Span: span}
	}
	return out
}

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func (r *resolver) stage(st ast.Stage, sc *scope, in []Column) (Stage, []Column, *scope, error) {
	switch s := st.(type) {
	case *ast.SelectStage:
		return r.selectStage(s, sc)
	case *ast.FilterStage:
		cond, err := r.expr(s.Cond, sc)
		if err != nil {
			return nil, nil, nil, err
		}
		stage := &Filter{Cond: cond, Out: in, Span: s.Span}
		return stage, in, sc, nil
	case *ast.DeriveStage:
		return r.deriveStage(s, sc, in)
	case *ast.GroupStage:
		return r.aggregateStage(s.Keys, s.Aggregate, s.Span, sc)
	case *ast.AggregateStage:
		return r.aggregateStage(nil, s, s.Span, sc)
	case *ast.JoinStage:
		return r.joinStage(s, sc, in)
	case *ast.SortStage:
		var items []SortItem
		for _, it := range s.Items {
			e, err := r.expr(it.Expr, sc)
			if err != nil {
				return nil, nil, nil, err
			}
			items = append(items, SortItem{Expr: e, Desc: it.Desc})
		}
		stage := &Sort{Items: items, Out: in, Span: s.Span}
		return stage, in, sc, nil
	case *ast.TakeStage:
		stage := &Take{Limit: s.Limit, Offset: s.Offset, Out: in, Span: s.Span}
		return stage, in, sc, nil
	case *ast.AppendStage:
		sub, err := r.pipeline(s.Pipeline)
		if err != nil {
			return nil, nil, nil, err
		}
		if len(sub.Output) != len(in) {
			return nil, nil, nil, errAt(s.Span,
				"append requires matching column counts: %d vs %d", len(in), len(sub.Output))
		}
		stage := &Union{Pipeline: sub, Out: in, Span: s.Span}
		return stage, in, sc, nil
	}
	return nil, nil, nil, errAt(st.StageSpan(), "unsupported stage %T", st)
}

func (r *resolver) selectStage(s *ast.SelectStage, sc *scope) (Stage, []Column, *scope, error) {
	var cols []Column
	seen := map[string]bool{}
	for _, it := range s.Items {
		e, err := r.expr(it.Expr, sc)
		if err != nil {
			return nil, nil, nil, err
		}
		name := it.Alias
		if name == "" {
			ref, ok := e.(*ColumnRef)
			if !ok {
				return nil, nil, nil, errAt(it.Span, "select expression needs a name (use name = expression)")
			}
			name = ref.Name
		}
		if seen[name] {
			return nil, nil, nil, errAt(it.Span, "duplicate column %q in select", name)
		}
		seen[name] = true
		cols = append(cols, Column{Name: name, Expr: e, Span: it.Span})
	}
	next := newScope()
	for _, c := range cols {
		next.add(c.Name, "")
	}
	stage := &Project{Cols: cols, Span: s.Span}
	return stage, cols, next, nil
}

func (r *resolver) deriveStage(s *ast.DeriveStage, sc *scope, in []Column) (Stage, []Column, *scope, error) {
	next := sc.clone()
	var added []Column
	out := append([]Column{}, in...)
	for _, a := range s.Assignments {
		if next.has(a.Name) {
			return nil, nil, nil, errAt(a.Span, "column %q already exists; derive cannot shadow it", a.Name)
		}
		e, err := r.expr(a.Expr, next)
		if err != nil {
			return nil, nil, nil, err
		}
		col := Column{Name: a.Name, Expr: e, Span: a.Span}
		added = append(added, col)
		out = append(out, col)
		next.add(a.Name, "")
	}
	stage := &Derive{New: added, Out: out, Span: s.Span}
	return stage, out, next, nil
}

func (r *resolver) aggregateStage(keys []*ast.Ident, agg *ast.AggregateStage, span ast.Span, sc *scope) (Stage, []Column, *scope, error) {
	var keyRefs []*ColumnRef
	keyNames := map[string]bool{}
	for _, k := range keys {
		e, err := r.expr(k, sc)
		if err != nil {
			return nil, nil, nil, err
		}
		ref, ok := e.(*ColumnRef)
		if !ok {
			return nil, nil, nil, errAt(k.Span, "group key must be a column")
		}
		keyRefs = append(keyRefs, ref)
		keyNames[ref.Name] = true
	}

	var aggs []Column
	seen := map[string]bool{}
	for _, item := range agg.Items {
		if keyNames[item.Name] || seen[item.Name] {
			return nil, nil, nil, errAt(item.Span, "duplicate column %q in aggregate", item.Name)
		}
		seen[item.Name] = true
		e, err := r.aggExpr(item.Expr, sc, keyNames)
		if err != nil {
			return nil, nil, nil, err
		}
		aggs = append(aggs, Column{Name: item.Name, Expr: e, Span: item.Span})
	}

	out := make([]Column, 0, len(keyRefs)+len(aggs))
	next := newScope()
	for _, k := range keyRefs {
		out = append(out, Column{Name: k.Name, Expr: k, Span: k.Span})
		next.add(k.Name, "")
	}
	for _, a := range aggs {
		out = append(out, a)
		next.add(a.Name, "")
	}
	stage := &Aggregate{Keys: keyRefs, Aggs: aggs, Out: out, Span: span}
	return stage, out, next, nil
}

func (r *resolver) joinStage(s *ast.JoinStage, sc *scope, in []Column) (Stage, []Column, *scope, error) {
	rightCols, isBinding, err := r.relationColumns(s.Relation, s.Span)
	if err != nil {
		return nil, nil, nil, err
	}
	rightRel := s.Relation
	if s.Alias != "" {
		rightRel = s.Alias
	}

	next := sc.clone()
	using := map[string]bool{}
	for _, u := range s.Using {
		using[u] = true
	}
	for _, c := range rightCols {
		if using[c] {
			continue // merged by USING, stays unambiguous
		}
		next.add(c, rightRel)
	}

	out := append([]Column{}, in...)
	for _, c := range rightCols {
		if using[c] {
			continue
		}
		col := Column{Name: c, Expr: &ColumnRef{Name: c, Span: s.Span}, Span: s.Span}
		if sc.has(c) {
			// Name collision across the join: keep it reachable, but only
			// via qualification.
			col.Name = rightRel + "." + c
			col.Expr = &ColumnRef{Relation: rightRel, Name: c, Span: s.Span}
		}
		out = append(out, col)
	}

	stage := &Join{
		Relation:  s.Relation,
		Alias:     s.Alias,
		Binding:   isBinding,
		Side:      s.Side,
		RightCols: rightCols,
		Span:      s.Span,
	}

	if len(s.Using) > 0 {
		rightSet := map[string]bool{}
		for _, c := range rightCols {
			rightSet[c] = true
		}
		for _, u := range s.Using {
			if !sc.has(u) {
				return nil, nil, nil, &Error{Span: s.Span,
					Msg:       fmt.Sprintf("join column %q not found on left side", u),
					Available: sc.names()}
			}
			if !rightSet[u] {
				return nil, nil, nil, &Error{Span: s.Span,
					Msg:       fmt.Sprintf("join column %q not found in %s", u, s.Relation),
					Available: rightCols}
			}
		}
		stage.Using = s.Using
	} else {
		on, err := r.expr(s.On, next)
		if err != nil {
			return nil, nil, nil, err
		}
		stage.On = on
	}

	stage.Out = out
	return stage, out, next, nil
}

// expr resolves a row-level expression. Aggregate functions are rejected
// here; they are only legal inside aggregate stages.
func (r *resolver) expr(e ast.Expr, sc *scope) (Expr, error) {
	switch x := e.(type) {
	case *ast.Ident:
		return r.columnRef(x, sc)
	case *ast.IntLit:
		return &Literal{Kind: LitInt, Value: x.Value, Span: x.Span}, nil
	case *ast.FloatLit:
		return &Literal{Kind: LitFloat, Value: x.Value, Span: x.Span}, nil
	case *ast.StringLit:
		return &Literal{Kind: LitString, Value: x.Value, Span: x.Span}, nil
	case *ast.BoolLit:
		v := "false"
		if x.Value {
			v = "true"
		}
		return &Literal{Kind: LitBool, Value: v, Span: x.Span}, nil
	case *ast.NullLit:
		return &Literal{Kind: LitNull, Value: "null", Span: x.Span}, nil
	case *ast.Binary:
		left, err := r.expr(x.Left, sc)
		if err != nil {
			return nil, err
		}
		right, err := r.expr(x.Right, sc)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: x.Op, Left: left, Right: right, Span: x.Span}, nil
	case *ast.Unary:
		inner, err := r.expr(x.Expr, sc)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: x.Op, Expr: inner, Span: x.Span}, nil
	case *ast.Call:
		name := x.Func.Name()
		if _, isAgg := aggFuncs[name]; isAgg {
			return nil, errAt(x.Span, "aggregate function %q outside aggregate stage", name)
		}
		if len(x.Named) > 0 {
			return nil, errAt(x.Named[0].Span, "named argument %q not supported for function %q", x.Named[0].Name, name)
		}
		var args []Expr
		for _, a := range x.Args {
			ra, err := r.expr(a, sc)
			if err != nil {
				return nil, err
			}
			args = append(args, ra)
		}
		return &FuncCall{Name: name, Args: args, Span: x.Span}, nil
	}
	return nil, errAt(e.ExprSpan(), "unsupported expression %T", e)
}

// aggExpr resolves an aggregate item: aggregate calls over row expressions,
// arithmetic over those calls, and group keys.
func (r *resolver) aggExpr(e ast.Expr, sc *scope, keys map[string]bool) (Expr, error) {
	switch x := e.(type) {
	case *ast.Ident:
		name := x.Name()
		if canonical, ok := aggFuncs[name]; ok {
			// Bare "count" with no argument.
			if canonical == "count" {
				return &AggCall{Func: "count", Span: x.Span}, nil
			}
			return nil, errAt(x.Span, "aggregate function %q needs an argument", name)
		}
		ref, err := r.columnRef(x, sc)
		if err != nil {
			return nil, err
		}
		if !keys[ref.Name] {
			return nil, errAt(x.Span, "column %q must be a grouping key or wrapped in an aggregate function", ref.Name)
		}
		return ref, nil
	case *ast.Call:
		name := x.Func.Name()
		canonical, isAgg := aggFuncs[name]
		if !isAgg {
			return nil, errAt(x.Span, "expected aggregate function, found %q", name)
		}
		if len(x.Args) > 1 {
			return nil, errAt(x.Span, "aggregate function %q takes one argument", name)
		}
		var arg Expr
		if len(x.Args) == 1 {
			var err error
			arg, err = r.expr(x.Args[0], sc)
			if err != nil {
				return nil, err
			}
		} else if canonical != "count" {
			return nil, errAt(x.Span, "aggregate function %q needs an argument", name)
		}
		return &AggCall{Func: canonical, Arg: arg, Span: x.Span}, nil
	case *ast.Binary:
		left, err := r.aggExpr(x.Left, sc, keys)
		if err != nil {
			return nil, err
		}
		right, err := r.aggExpr(x.Right, sc, keys)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: x.Op, Left: left, Right: right, Span: x.Span}, nil
	case *ast.IntLit, *ast.FloatLit, *ast.StringLit, *ast.BoolLit, *ast.NullLit:
		return r.expr(e, sc)
	case *ast.Unary:
		inner, err := r.aggExpr(x.Expr, sc, keys)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: x.Op, Expr: inner, Span: x.Span}, nil
	}
	return nil, errAt(e.ExprSpan(), "unsupported expression in aggregate")
}

func (r *resolver) columnRef(id *ast.Ident, sc *scope) (*ColumnRef, error) {
	switch len(id.Parts) {
	case 1:
		name := id.Parts[0]
		matches := sc.lookup(name)
		switch len(matches) {
		case 0:
			return nil, &Error{Span: id.Span,
				Msg:       fmt.Sprintf("unknown name %q", name),
				Available: sc.names()}
		case 1:
			return &ColumnRef{Name: name, Span: id.Span}, nil
		default:
			var cands []string
			for _, rel := range matches {
				if rel == "" {
					cands = append(cands, name)
					continue
				}
				cands = append(cands, rel+"."+name)
			}
			sort.Strings(cands)
			return nil, errAt(id.Span, "ambiguous name %q: could be %s", name, strings.Join(cands, " or "))
		}
	case 2:
		rel, name := id.Parts[0], id.Parts[1]
		if !sc.hasQualified(rel, name) {
			return nil, &Error{Span: id.Span,
				Msg:       fmt.Sprintf("unknown name %q", rel+"."+name),
				Available: sc.names()}
		}
		return &ColumnRef{Relation: rel, Name: name, Span: id.Span}, nil
	}
	return nil, errAt(id.Span, "invalid column reference %q", id.Name())
}
