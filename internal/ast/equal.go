package ast

// Equal reports whether two pipelines are structurally identical,
// ignoring source spans.
func Equal(a, b *Pipeline) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	if len(a.Bindings) != len(b.Bindings) || len(a.Stages) != len(b.Stages) {
		return false
	}
	for i := range a.Bindings {
		if a.Bindings[i].Name != b.Bindings[i].Name ||
			!Equal(a.Bindings[i].Pipeline, b.Bindings[i].Pipeline) {
			return false
		}
	}
	if a.From.Table != b.From.Table || a.From.Alias != b.From.Alias {
		return false
	}
	for i := range a.Stages {
		if !stageEqual(a.Stages[i], b.Stages[i]) {
			return false
		}
	}
	return true
}

func stageEqual(a, b Stage) bool {
	switch x := a.(type) {
	case *SelectStage:
		y, ok := b.(*SelectStage)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if x.Items[i].Alias != y.Items[i].Alias ||
				!ExprEqual(x.Items[i].Expr, y.Items[i].Expr) {
				return false
			}
		}
		return true
	case *FilterStage:
		y, ok := b.(*FilterStage)
		return ok && ExprEqual(x.Cond, y.Cond)
	case *DeriveStage:
		y, ok := b.(*DeriveStage)
		return ok && assignmentsEqual(x.Assignments, y.Assignments)
	case *GroupStage:
		y, ok := b.(*GroupStage)
		if !ok || len(x.Keys) != len(y.Keys) {
			return false
		}
		for i := range x.Keys {
			if !ExprEqual(x.Keys[i], y.Keys[i]) {
				return false
			}
		}
		return stageEqual(x.Aggregate, y.Aggregate)
	case *AggregateStage:
		y, ok := b.(*AggregateStage)
		return ok && assignmentsEqual(x.Items, y.Items)
	case *JoinStage:
		y, ok := b.(*JoinStage)
		if !ok || x.Relation != y.Relation || x.Alias != y.Alias || x.Side != y.Side {
			return false
		}
		if len(x.Using) != len(y.Using) {
			return false
		}
		for i := range x.Using {
			if x.Using[i] != y.Using[i] {
				return false
			}
		}
		return ExprEqual(x.On, y.On)
	case *SortStage:
		y, ok := b.(*SortStage)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if x.Items[i].Desc != y.Items[i].Desc ||
				!ExprEqual(x.Items[i].Expr, y.Items[i].Expr) {
				return false
			}
		}
		return true
	case *TakeStage:
		y, ok := b.(*TakeStage)
		return ok && x.Limit == y.Limit && x.Offset == y.Offset
	case *AppendStage:
		y, ok := b.(*AppendStage)
		return ok && Equal(x.Pipeline, y.Pipeline)
	}
	return false
}

func assignmentsEqual(a, b []Assignment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !ExprEqual(a[i].Expr, b[i].Expr) {
			return false
		}
	}
	return true
}

// ExprEqual reports structural equality of expressions, ignoring spans.
func ExprEqual(a, b Expr) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	switch x := a.(type) {
	case *Ident:
		y, ok := b.(*Ident)
		if !ok || len(x.Parts) != len(y.Parts) {
			return false
		}
		for i := range x.Parts {
			if x.Parts[i] != y.Parts[i] {
				return false
			}
		}
		return true
	case *IntLit:
		y, ok := b.(*IntLit)
		return ok && x.Value == y.Value
	case *FloatLit:
		y, ok := b.(*FloatLit)
		return ok && x.Value == y.Value
	case *StringLit:
		y, ok := b.(*StringLit)
		return ok && x.Value == y.Value
	case *BoolLit:
		y, ok := b.(*BoolLit)
		return ok && x.Value == y.Value
	case *NullLit:
		_, ok := b.(*NullLit)
		return ok
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && ExprEqual(x.Left, y.Left) && ExprEqual(x.Right, y.Right)
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && ExprEqual(x.Expr, y.Expr)
	case *Call:
		y, ok := b.(*Call)
		if !ok || !ExprEqual(x.Func, y.Func) {
			return false
		}
		if len(x.Args) != len(y.Args) || len(x.Named) != len(y.Named) {
			return false
		}
		for i := range x.Args {
			if !ExprEqual(x.Args[i], y.Args[i]) {
				return false
			}
		}
		for i := range x.Named {
			if x.Named[i].Name != y.Named[i].Name ||
				!ExprEqual(x.Named[i].Expr, y.Named[i].Expr) {
				return false
			}
		}
		return true
	}
	return false
}
