// Package rel holds the relational intermediate representation: a DAG of
// operation nodes built from a resolved pipeline.
//
// Nodes live in an arena and reference each other by index, so sharing
// (a let binding consumed by several pipelines) is plain index reuse and
// reference counting is a single pass over the arena.
package rel

import (
	"github.com/paulomach/prql/internal/ast"
	"github.com/paulomach/prql/internal/resolve"
)

// NodeID indexes a node in the arena.
type NodeID int

// None marks an absent input.
const None NodeID = -1

type Kind int

const (
	KindScan Kind = iota
	KindProject
	KindFilter
	KindAggregate
	KindJoin
	KindSort
	KindTake
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindProject:
		return "project"
	case KindFilter:
		return "filter"
	case KindAggregate:
		return "aggregate"
	case KindJoin:
		return "join"
	case KindSort:
		return "sort"
	case KindTake:
		return "take"
	case KindUnion:
		return "union"
	}
	return "unknown"
}

// Node is one relational operation. Input is the primary (left) input;
// Right is set for joins and unions only.
type Node struct {
	Kind  Kind
	Input NodeID
	Right NodeID

	// Out is the node's output column list, in declaration order. Once a
	// node is materialized the list is frozen: downstream nodes refer to
	// these columns by name only.
	Out []resolve.Column

	// Materialize marks the node for emission as a named CTE. Name is
	// assigned by the partitioner (or carried over from a let binding).
	Materialize bool
	Name        string

	Table string // scan: table name
	Alias string // scan or join: optional alias for the joined relation

	Cond resolve.Expr // filter

	Keys []*resolve.ColumnRef // aggregate
	Aggs []resolve.Column

	Using []string // join
	On    resolve.Expr
	Side  string

	SortItems []resolve.SortItem // sort

	Limit  int // take
	Offset int

	Span ast.Span
}

// Tree is the IR arena. Nodes are appended in build order, which is a
// topological order of the DAG: a node's inputs always precede it.
type Tree struct {
	Nodes []Node
	Root  NodeID
}

func (t *Tree) Node(id NodeID) *Node { return &t.Nodes[id] }

func (t *Tree) add(n Node) NodeID {
	t.Nodes = append(t.Nodes, n)
	return NodeID(len(t.Nodes) - 1)
}

// Build converts a resolved query into an IR tree. Let bindings become
// shared, named, materialized subgraphs.
func Build(q *resolve.Query) *Tree {
	t := &Tree{}
	b := &builder{tree: t, bindings: map[string]NodeID{}}
	for _, binding := range q.Bindings {
		id := b.pipeline(binding.Pipeline)
		t.Node(id).Materialize = true
		t.Node(id).Name = binding.Name
		b.bindings[binding.Name] = id
	}
	t.Root = b.pipeline(q.Main)
	return t
}

type builder struct {
	tree     *Tree
	bindings map[string]NodeID
}

func (b *builder) pipeline(p *resolve.Pipeline) NodeID {
	current := b.source(p.From)
	for _, st := range p.Stages {
		current = b.stage(st, current)
	}
	return current
}

// source returns the node a pipeline starts from: the shared binding node
// for let-bound relations, a fresh scan otherwise.
func (b *builder) source(f resolve.From) NodeID {
	if f.Binding {
		return b.bindings[f.Table]
	}
	return b.tree.add(Node{
		Kind:  KindScan,
		Input: None,
		Right: None,
		Table: f.Table,
		Alias: f.Alias,
		Out:   scanColumns(f),
		Span:  f.Span,
	})
}

func scanColumns(f resolve.From) []resolve.Column {
	out := make([]resolve.Column, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = resolve.Column{
			Name: c,
			Expr: &resolve.ColumnRef{Name: c, Span: f.Span},
			Span: f.Span,
		}
	}
	return out
}

func (b *builder) stage(st resolve.Stage, input NodeID) NodeID {
	switch s := st.(type) {
	case *resolve.Project:
		return b.tree.add(Node{
			Kind: KindProject, Input: input, Right: None,
			Out: s.Cols, Span: s.Span,
		})
	case *resolve.Filter:
		return b.tree.add(Node{
			Kind: KindFilter, Input: input, Right: None,
			Cond: s.Cond, Out: s.Out, Span: s.Span,
		})
	case *resolve.Derive:
		// Derive is a projection that keeps everything and appends the
		// computed columns; one node kind serves both.
		return b.tree.add(Node{
			Kind: KindProject, Input: input, Right: None,
			Out: s.Out, Span: s.Span,
		})
	case *resolve.Aggregate:
		return b.tree.add(Node{
			Kind: KindAggregate, Input: input, Right: None,
			Keys: s.Keys, Aggs: s.Aggs, Out: s.Out, Span: s.Span,
		})
	case *resolve.Join:
		right := b.relation(s)
		return b.tree.add(Node{
			Kind: KindJoin, Input: input, Right: right,
			Alias: s.Alias, Using: s.Using, On: s.On, Side: s.Side,
			Out: s.Out, Span: s.Span,
		})
	case *resolve.Sort:
		return b.tree.add(Node{
			Kind: KindSort, Input: input, Right: None,
			SortItems: s.Items, Out: s.Out, Span: s.Span,
		})
	case *resolve.Take:
		return b.tree.add(Node{
			Kind: KindTake, Input: input, Right: None,
			Limit: s.Limit, Offset: s.Offset, Out: s.Out, Span: s.Span,
		})
	case *resolve.Union:
		right := b.pipeline(s.Pipeline)
		return b.tree.add(Node{
			Kind: KindUnion, Input: input, Right: right,
			Out: s.Out, Span: s.Span,
		})
	}
	panic("rel: unknown resolved stage")
}

func (b *builder) relation(j *resolve.Join) NodeID {
	if j.Binding {
		return b.bindings[j.Relation]
	}
	cols := make([]resolve.Column, len(j.RightCols))
	for i, c := range j.RightCols {
		cols[i] = resolve.Column{
			Name: c,
			Expr: &resolve.ColumnRef{Name: c, Span: j.Span},
			Span: j.Span,
		}
	}
	return b.tree.add(Node{
		Kind: KindScan, Input: None, Right: None,
		Table: j.Relation, Alias: j.Alias,
		Out: cols, Span: j.Span,
	})
}
