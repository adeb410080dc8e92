// Package ast defines the syntax tree for pipeline queries.
//
// The tree is immutable once parsing finishes. Later phases (resolution,
// IR building) produce their own annotated structures and keep pointers
// back into this tree only for source spans.
package ast

// Position is a location in the original source text.
type Position struct {
	Line   int // 1-based
	Column int // 1-based, in bytes
	Offset int // 0-based byte offset
}

// Span covers a contiguous region of source text.
type Span struct {
	Start Position
	End   Position
}

// Pipeline is a full query: optional let bindings followed by the main
// pipeline, which starts with a from stage.
type Pipeline struct {
	Bindings []Binding
	From     From
	Stages   []Stage
	Span     Span
}

// Binding is a named sub-pipeline: let name = ( ... ).
type Binding struct {
	Name     string
	Pipeline *Pipeline
	Span     Span
}

// From names the source relation of a pipeline. The relation is either a
// schema table or the name of an earlier let binding.
type From struct {
	Table string
	Alias string
	Span  Span
}

// Stage is a pipeline transformation step.
type Stage interface {
	isStage()
	StageSpan() Span
}

type (
	// SelectStage projects the relation to the listed items.
	SelectStage struct {
		Items []SelectItem
		Span  Span
	}

	SelectItem struct {
		Expr  Expr
		Alias string // empty unless written as alias = expr
		Span  Span
	}

	// FilterStage keeps rows where the condition holds.
	FilterStage struct {
		Cond Expr
		Span Span
	}

	// DeriveStage adds computed columns without dropping existing ones.
	DeriveStage struct {
		Assignments []Assignment
		Span        Span
	}

	Assignment struct {
		Name string
		Expr Expr
		Span Span
	}

	// GroupStage groups by the keys and applies the aggregate block.
	GroupStage struct {
		Keys      []*Ident
		Aggregate *AggregateStage
		Span      Span
	}

	// AggregateStage collapses the relation (or each group) to one row of
	// aggregate expressions.
	AggregateStage struct {
		Items []Assignment
		Span  Span
	}

	// JoinStage joins the pipeline relation with another named relation.
	// Either Using (equi-join column names) or On (explicit condition)
	// is set, never both.
	JoinStage struct {
		Relation string
		Alias    string
		Side     string // inner, left, right, full
		Using    []string
		On       Expr
		Span     Span
	}

	// SortStage orders rows by the listed items.
	SortStage struct {
		Items []SortItem
		Span  Span
	}

	SortItem struct {
		Expr Expr
		Desc bool
		Span Span
	}

	// TakeStage limits the relation to a row window.
	TakeStage struct {
		Limit  int
		Offset int
		Span   Span
	}

	// AppendStage unions the pipeline with another pipeline (UNION ALL).
	AppendStage struct {
		Pipeline *Pipeline
		Span     Span
	}
)

func (*SelectStage) isStage()    {}
func (*FilterStage) isStage()    {}
func (*DeriveStage) isStage()    {}
func (*GroupStage) isStage()     {}
func (*AggregateStage) isStage() {}
func (*JoinStage) isStage()      {}
func (*SortStage) isStage()      {}
func (*TakeStage) isStage()      {}
func (*AppendStage) isStage()    {}

func (s *SelectStage) StageSpan() Span    { return s.Span }
func (s *FilterStage) StageSpan() Span    { return s.Span }
func (s *DeriveStage) StageSpan() Span    { return s.Span }
func (s *GroupStage) StageSpan() Span     { return s.Span }
func (s *AggregateStage) StageSpan() Span { return s.Span }
func (s *JoinStage) StageSpan() Span      { return s.Span }
func (s *SortStage) StageSpan() Span      { return s.Span }
func (s *TakeStage) StageSpan() Span      { return s.Span }
func (s *AppendStage) StageSpan() Span    { return s.Span }

// Expr is an expression node.
type Expr interface {
	isExpr()
	ExprSpan() Span
}

type (
	// Ident is a possibly-qualified name: column, table.column, or a
	// function name in call position.
	Ident struct {
		Parts []string
		Span  Span
	}

	// IntLit and friends carry the literal text as written so emission
	// never reformats values.
	IntLit struct {
		Value string
		Span  Span
	}

	FloatLit struct {
		Value string
		Span  Span
	}

	StringLit struct {
		Value string
		Span  Span
	}

	BoolLit struct {
		Value bool
		Span  Span
	}

	NullLit struct {
		Span Span
	}

	Binary struct {
		Op    string
		Left  Expr
		Right Expr
		Span  Span
	}

	Unary struct {
		Op   string
		Expr Expr
		Span Span
	}

	// Call is a function application with positional and named args.
	Call struct {
		Func  *Ident
		Args  []Expr
		Named []NamedArg
		Span  Span
	}

	NamedArg struct {
		Name string
		Expr Expr
		Span Span
	}
)

func (*Ident) isExpr()     {}
func (*IntLit) isExpr()    {}
func (*FloatLit) isExpr()  {}
func (*StringLit) isExpr() {}
func (*BoolLit) isExpr()   {}
func (*NullLit) isExpr()   {}
func (*Binary) isExpr()    {}
func (*Unary) isExpr()     {}
func (*Call) isExpr()      {}

func (e *Ident) ExprSpan() Span     { return e.Span }
func (e *IntLit) ExprSpan() Span    { return e.Span }
func (e *FloatLit) ExprSpan() Span  { return e.Span }
func (e *StringLit) ExprSpan() Span { return e.Span }
func (e *BoolLit) ExprSpan() Span   { return e.Span }
func (e *NullLit) ExprSpan() Span   { return e.Span }
func (e *Binary) ExprSpan() Span    { return e.Span }
func (e *Unary) ExprSpan() Span     { return e.Span }
func (e *Call) ExprSpan() Span      { return e.Span }

// Name returns the dotted form of an identifier.
func (e *Ident) Name() string {
	switch len(e.Parts) {
	case 0:
		return ""
	case 1:
		return e.Parts[0]
	}
	n := len(e.Parts) - 1
	for _, p := range e.Parts {
		n += len(p)
	}
	b := make([]byte, 0, n)
	for i, p := range e.Parts {
		if i > 0 {
			b = append(b, '.')
		}
		b = append(b, p...)
	}
	return string(b)
}
