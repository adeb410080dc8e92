package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders a pipeline back to canonical source text. Re-parsing the
// result yields a tree Equal to the original.
func Print(p *Pipeline) string {
	var sb strings.Builder
	printPipeline(&sb, p, 0)
	return sb.String()
}

func printPipeline(sb *strings.Builder, p *Pipeline, depth int) {
	ind := strings.Repeat("  ", depth)
	for _, b := range p.Bindings {
		fmt.Fprintf(sb, "%slet %s = (\n", ind, b.Name)
		printPipeline(sb, b.Pipeline, depth+1)
		fmt.Fprintf(sb, "%s)\n", ind)
	}
	sb.WriteString(ind)
	sb.WriteString("from ")
	if p.From.Alias != "" {
		sb.WriteString(p.From.Alias)
		sb.WriteString(" = ")
	}
	sb.WriteString(printIdentPart(p.From.Table))
	sb.WriteString("\n")
	for _, st := range p.Stages {
		printStage(sb, st, depth)
	}
}

func printStage(sb *strings.Builder, st Stage, depth int) {
	ind := strings.Repeat("  ", depth)
	switch s := st.(type) {
	case *SelectStage:
		items := make([]string, len(s.Items))
		for i, it := range s.Items {
			if it.Alias != "" {
				items[i] = it.Alias + " = " + printExpr(it.Expr, 0)
			} else {
				items[i] = printExpr(it.Expr, 0)
			}
		}
		fmt.Fprintf(sb, "%sselect {%s}\n", ind, strings.Join(items, ", "))
	case *FilterStage:
		fmt.Fprintf(sb, "%sfilter %s\n", ind, printExpr(s.Cond, 0))
	case *DeriveStage:
		items := make([]string, len(s.Assignments))
		for i, a := range s.Assignments {
			items[i] = a.Name + " = " + printExpr(a.Expr, 0)
		}
		fmt.Fprintf(sb, "%sderive {%s}\n", ind, strings.Join(items, ", "))
	case *GroupStage:
		keys := make([]string, len(s.Keys))
		for i, k := range s.Keys {
			keys[i] = printExpr(k, 0)
		}
		fmt.Fprintf(sb, "%sgroup {%s} (\n", ind, strings.Join(keys, ", "))
		printStage(sb, s.Aggregate, depth+1)
		fmt.Fprintf(sb, "%s)\n", ind)
	case *AggregateStage:
		items := make([]string, len(s.Items))
		for i, a := range s.Items {
			items[i] = a.Name + " = " + printExpr(a.Expr, 0)
		}
		fmt.Fprintf(sb, "%saggregate {%s}\n", ind, strings.Join(items, ", "))
	case *JoinStage:
		sb.WriteString(ind)
		sb.WriteString("join ")
		if s.Side != "" && s.Side != "inner" {
			fmt.Fprintf(sb, "side:%s ", s.Side)
		}
		if s.Alias != "" {
			fmt.Fprintf(sb, "%s = ", s.Alias)
		}
		sb.WriteString(printIdentPart(s.Relation))
		if len(s.Using) > 0 {
			cols := make([]string, len(s.Using))
			for i, u := range s.Using {
				cols[i] = "==" + printIdentPart(u)
			}
			fmt.Fprintf(sb, " (%s)", strings.Join(cols, ", "))
		} else if s.On != nil {
			fmt.Fprintf(sb, " (%s)", printExpr(s.On, 0))
		}
		sb.WriteString("\n")
	case *SortStage:
		items := make([]string, len(s.Items))
		for i, it := range s.Items {
			prefix := ""
			if it.Desc {
				prefix = "-"
			}
			items[i] = prefix + printExpr(it.Expr, 0)
		}
		fmt.Fprintf(sb, "%ssort {%s}\n", ind, strings.Join(items, ", "))
	case *TakeStage:
		if s.Offset > 0 {
			fmt.Fprintf(sb, "%stake %d..%d\n", ind, s.Offset+1, s.Offset+s.Limit)
		} else {
			fmt.Fprintf(sb, "%stake %d\n", ind, s.Limit)
		}
	case *AppendStage:
		fmt.Fprintf(sb, "%sappend (\n", ind)
		printPipeline(sb, s.Pipeline, depth+1)
		fmt.Fprintf(sb, "%s)\n", ind)
	}
}

// Binding strengths for parenthesization while printing. Mirrors the
// parser's precedence table.
var printPrec = map[string]int{
	"or": 1, "and": 2,
	"??": 3,
	"==": 4, "!=": 4, "<": 4, ">": 4, "<=": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func printExpr(e Expr, parent int) string {
	switch x := e.(type) {
	case *Ident:
		parts := make([]string, len(x.Parts))
		for i, p := range x.Parts {
			parts[i] = printIdentPart(p)
		}
		return strings.Join(parts, ".")
	case *IntLit:
		return x.Value
	case *FloatLit:
		return x.Value
	case *StringLit:
		return strconv.Quote(x.Value)
	case *BoolLit:
		if x.Value {
			return "true"
		}
		return "false"
	case *NullLit:
		return "null"
	case *Binary:
		prec := printPrec[x.Op]
		out := printExpr(x.Left, prec) + " " + x.Op + " " + printExpr(x.Right, prec+1)
		if prec < parent {
			return "(" + out + ")"
		}
		return out
	case *Unary:
		if x.Op == "-" {
			return "-" + printExpr(x.Expr, 7)
		}
		return x.Op + " " + printExpr(x.Expr, 7)
	case *Call:
		var sb strings.Builder
		sb.WriteString(printExpr(x.Func, 0))
		for _, n := range x.Named {
			sb.WriteString(" ")
			sb.WriteString(n.Name)
			sb.WriteString(":")
			sb.WriteString(printExpr(n.Expr, 8))
		}
		for _, a := range x.Args {
			sb.WriteString(" ")
			sb.WriteString(printExpr(a, 8))
		}
		out := sb.String()
		if parent > 0 {
			return "(" + out + ")"
		}
		return out
	}
	return ""
}

func printIdentPart(s string) string {
	if isPlainIdent(s) {
		return s
	}
	return "`" + s + "`"
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
