package parser

import (
	"strconv"
	"strings"

	"github.com/paulomach/prql/internal/ast"
)

// Parse converts pipeline source text into an AST.
func Parse(src string) (*ast.Pipeline, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	pipe, err := p.parsePipeline(false)
	if err != nil {
		return nil, err
	}
	p.skipSeparators()
	if !p.peekIs(EOF) {
		tok := p.peek()
		return nil, parseErr(tok.Span, "end of input", tok.describe())
	}
	return pipe, nil
}

type parser struct {
	tokens []Token
	pos    int
}

// Stage keywords. Anything else in stage position fails fast rather than
// being guessed at.
var stageKeywords = map[string]bool{
	"select": true, "filter": true, "derive": true, "group": true,
	"aggregate": true, "join": true, "sort": true, "take": true,
	"append": true,
}

func (p *parser) parsePipeline(inParens bool) (*ast.Pipeline, error) {
	p.skipSeparators()
	start := p.peek().Span.Start

	var bindings []ast.Binding
	for p.peekIs(IDENT) && p.peek().Lit == "let" {
		b, err := p.parseBinding()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
		p.skipSeparators()
	}

	if !(p.peekIs(IDENT) && p.peek().Lit == "from") {
		tok := p.peek()
		return nil, parseErr(tok.Span, "'from'", tok.describe())
	}
	fromTok := p.next()
	from, err := p.parseFrom(fromTok)
	if err != nil {
		return nil, err
	}

	var stages []ast.Stage
	for {
		p.skipSeparators()
		if p.peekIs(EOF) || (inParens && p.peekIs(RPAREN)) {
			break
		}
		tok := p.peek()
		if tok.Typ != IDENT {
			return nil, parseErr(tok.Span, "pipeline stage", tok.describe())
		}
		if !stageKeywords[tok.Lit] {
			return nil, parseErr(tok.Span, "pipeline stage", "'"+tok.Lit+"'")
		}
		stage, err := p.parseStage()
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	end := p.prev().Span.End
	return &ast.Pipeline{
		Bindings: bindings,
		From:     from,
		Stages:   stages,
		Span:     ast.Span{Start: start, End: end},
	}, nil
}

func (p *parser) parseBinding() (ast.Binding, error) {
	letTok := p.next() // let
	if !p.peekIs(IDENT) {
		return ast.Binding{}, parseErr(p.peek().Span, "binding name after 'let'", p.peek().describe())
	}
	name := p.next().Lit
	if !p.peekIs(EQUAL) {
		return ast.Binding{}, parseErr(p.peek().Span, "'=' in let binding", p.peek().describe())
	}
	p.next()
	p.skipNewlines()
	if !p.peekIs(LPAREN) {
		return ast.Binding{}, parseErr(p.peek().Span, "'(' after '=' in let binding", p.peek().describe())
	}
	p.next()
	pipe, err := p.parsePipeline(true)
	if err != nil {
		return ast.Binding{}, err
	}
	if !p.peekIs(RPAREN) {
		return ast.Binding{}, parseErr(p.peek().Span, "')' closing let binding", p.peek().describe())
	}
	rp := p.next()
	return ast.Binding{
		Name:     name,
		Pipeline: pipe,
		Span:     ast.Span{Start: letTok.Span.Start, End: rp.Span.End},
	}, nil
}

func (p *parser) parseFrom(fromTok Token) (ast.From, error) {
	if !p.peekIs(IDENT) {
		return ast.From{}, parseErr(p.peek().Span, "table name after 'from'", p.peek().describe())
	}
	tok := p.next()
	from := ast.From{Table: tok.Lit, Span: ast.Span{Start: fromTok.Span.Start, End: tok.Span.End}}
	if p.peekIs(EQUAL) {
		p.next()
		if !p.peekIs(IDENT) {
			return ast.From{}, parseErr(p.peek().Span, "table name after alias", p.peek().describe())
		}
		tbl := p.next()
		from.Alias = from.Table
		from.Table = tbl.Lit
		from.Span.End = tbl.Span.End
	}
	return from, nil
}

func (p *parser) parseStage() (ast.Stage, error) {
	tok := p.next()
	switch tok.Lit {
	case "select":
		return p.parseSelect(tok)
	case "filter":
		return p.parseFilter(tok)
	case "derive":
		return p.parseDerive(tok)
	case "group":
		return p.parseGroup(tok)
	case "aggregate":
		return p.parseAggregate(tok)
	case "join":
		return p.parseJoin(tok)
	case "sort":
		return p.parseSort(tok)
	case "take":
		return p.parseTake(tok)
	case "append":
		return p.parseAppend(tok)
	}
	return nil, parseErr(tok.Span, "pipeline stage", "'"+tok.Lit+"'")
}

func (p *parser) parseSelect(kw Token) (ast.Stage, error) {
	var items []ast.SelectItem
	parseItem := func() error {
		itemStart := p.peek().Span.Start
		alias := ""
		if p.peekIs(IDENT) && p.peekN(1).Typ == EQUAL && p.peekN(2).Typ != EQUAL {
			alias = p.next().Lit
			p.next()
		}
		expr, err := p.parseExpr(0)
		if err != nil {
			return err
		}
		items = append(items, ast.SelectItem{
			Expr:  expr,
			Alias: alias,
			Span:  ast.Span{Start: itemStart, End: p.prev().Span.End},
		})
		return nil
	}
	if p.peekIs(LBRACE) {
		if err := p.parseBraceList(parseItem); err != nil {
			return nil, err
		}
	} else if err := parseItem(); err != nil {
		return nil, err
	}
	return &ast.SelectStage{Items: items, Span: p.spanFrom(kw)}, nil
}

func (p *parser) parseFilter(kw Token) (ast.Stage, error) {
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.FilterStage{Cond: cond, Span: p.spanFrom(kw)}, nil
}

func (p *parser) parseDerive(kw Token) (ast.Stage, error) {
	assigns, err := p.parseAssignments("derive")
	if err != nil {
		return nil, err
	}
	return &ast.DeriveStage{Assignments: assigns, Span: p.spanFrom(kw)}, nil
}

func (p *parser) parseAggregate(kw Token) (ast.Stage, error) {
	assigns, err := p.parseAssignments("aggregate")
	if err != nil {
		return nil, err
	}
	return &ast.AggregateStage{Items: assigns, Span: p.spanFrom(kw)}, nil
}

// parseAssignments parses "{name = expr, ...}" or a single "name = expr".
// Both derive and aggregate require every item to be named so the stage's
// output columns are well defined.
func (p *parser) parseAssignments(stage string) ([]ast.Assignment, error) {
	var assigns []ast.Assignment
	parseOne := func() error {
		a, err := p.parseAssignment(stage)
		if err != nil {
			return err
		}
		assigns = append(assigns, a)
		return nil
	}
	if p.peekIs(LBRACE) {
		if err := p.parseBraceList(parseOne); err != nil {
			return nil, err
		}
	} else if err := parseOne(); err != nil {
		return nil, err
	}
	return assigns, nil
}

func (p *parser) parseAssignment(stage string) (ast.Assignment, error) {
	if !p.peekIs(IDENT) || p.peekN(1).Typ != EQUAL {
		return ast.Assignment{}, parseErr(p.peek().Span, "'name = expression' in "+stage, p.peek().describe())
	}
	nameTok := p.next()
	p.next() // =
	expr, err := p.parseExpr(0)
	if err != nil {
		return ast.Assignment{}, err
	}
	return ast.Assignment{
		Name: nameTok.Lit,
		Expr: expr,
		Span: ast.Span{Start: nameTok.Span.Start, End: p.prev().Span.End},
	}, nil
}

func (p *parser) parseGroup(kw Token) (ast.Stage, error) {
	var keys []*ast.Ident
	parseKey := func() error {
		id, err := p.parseIdent()
		if err != nil {
			return err
		}
		keys = append(keys, id)
		return nil
	}
	if p.peekIs(LBRACE) {
		if err := p.parseBraceList(parseKey); err != nil {
			return nil, err
		}
	} else if err := parseKey(); err != nil {
		return nil, err
	}

	p.skipNewlines()
	if !p.peekIs(LPAREN) {
		return nil, parseErr(p.peek().Span, "'(' starting group block", p.peek().describe())
	}
	p.next()
	p.skipSeparators()
	if !(p.peekIs(IDENT) && p.peek().Lit == "aggregate") {
		return nil, parseErr(p.peek().Span, "'aggregate' inside group block", p.peek().describe())
	}
	aggTok := p.next()
	agg, err := p.parseAggregate(aggTok)
	if err != nil {
		return nil, err
	}
	p.skipSeparators()
	if !p.peekIs(RPAREN) {
		return nil, parseErr(p.peek().Span, "')' closing group block", p.peek().describe())
	}
	p.next()
	return &ast.GroupStage{
		Keys:      keys,
		Aggregate: agg.(*ast.AggregateStage),
		Span:      p.spanFrom(kw),
	}, nil
}

func (p *parser) parseJoin(kw Token) (ast.Stage, error) {
	join := &ast.JoinStage{Side: "inner"}

	if side, ok := p.trySideArg(); ok {
		join.Side = side
	}
	if !p.peekIs(IDENT) {
		return nil, parseErr(p.peek().Span, "relation name after 'join'", p.peek().describe())
	}
	rel := p.next()
	join.Relation = rel.Lit
	if p.peekIs(EQUAL) && p.peekN(1).Typ == IDENT {
		p.next()
		join.Alias = join.Relation
		join.Relation = p.next().Lit
	}
	if side, ok := p.trySideArg(); ok {
		join.Side = side
	}

	switch {
	case p.peekIs(LPAREN):
		p.next()
		if p.peekIs(EQ) {
			// Equi-join shorthand: (==col, ==col).
			for {
				if !p.peekIs(EQ) {
					return nil, parseErr(p.peek().Span, "'==column' in join condition", p.peek().describe())
				}
				p.next()
				if !p.peekIs(IDENT) {
					return nil, parseErr(p.peek().Span, "column name after '=='", p.peek().describe())
				}
				join.Using = append(join.Using, p.next().Lit)
				if p.peekIs(COMMA) {
					p.next()
					continue
				}
				break
			}
		} else {
			on, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			join.On = on
		}
		if !p.peekIs(RPAREN) {
			return nil, parseErr(p.peek().Span, "')' closing join condition", p.peek().describe())
		}
		p.next()
	case p.peekIs(IDENT):
		// Bare column shorthand: join other_table country.
		join.Using = []string{p.next().Lit}
	default:
		return nil, parseErr(p.peek().Span, "join condition", p.peek().describe())
	}

	join.Span = p.spanFrom(kw)
	return join, nil
}

func (p *parser) trySideArg() (string, bool) {
	if p.peekIs(IDENT) && p.peek().Lit == "side" && p.peekN(1).Typ == COLON && p.peekN(2).Typ == IDENT {
		p.next()
		p.next()
		return p.next().Lit, true
	}
	return "", false
}

func (p *parser) parseSort(kw Token) (ast.Stage, error) {
	var items []ast.SortItem
	parseItem := func() error {
		itemStart := p.peek().Span.Start
		desc := false
		if p.peekIs(MINUS) {
			p.next()
			desc = true
		} else if p.peekIs(PLUS) {
			p.next()
		}
		expr, err := p.parseExpr(0)
		if err != nil {
			return err
		}
		items = append(items, ast.SortItem{
			Expr: expr,
			Desc: desc,
			Span: ast.Span{Start: itemStart, End: p.prev().Span.End},
		})
		return nil
	}
	if p.peekIs(LBRACE) {
		if err := p.parseBraceList(parseItem); err != nil {
			return nil, err
		}
	} else if err := parseItem(); err != nil {
		return nil, err
	}
	return &ast.SortStage{Items: items, Span: p.spanFrom(kw)}, nil
}

func (p *parser) parseTake(kw Token) (ast.Stage, error) {
	tok := p.peek()
	if tok.Typ == FLOAT {
		return nil, parseErr(tok.Span, "int or range after 'take'", tok.Lit)
	}
	if tok.Typ != INT {
		return nil, parseErr(tok.Span, "int or range after 'take'", tok.describe())
	}
	first := p.next()
	if p.peekIs(RANGE) {
		p.next()
		endTok := p.peek()
		if endTok.Typ == FLOAT {
			return nil, parseErr(endTok.Span, "int end of take range", endTok.Lit)
		}
		if endTok.Typ != INT {
			return nil, parseErr(endTok.Span, "end of take range", endTok.describe())
		}
		p.next()
		start, _ := strconv.Atoi(first.Lit)
		end, _ := strconv.Atoi(endTok.Lit)
		if start < 1 || end < start {
			return nil, parseErr(ast.Span{Start: first.Span.Start, End: endTok.Span.End}, "non-empty take range", first.Lit+".."+endTok.Lit)
		}
		return &ast.TakeStage{Limit: end - start + 1, Offset: start - 1, Span: p.spanFrom(kw)}, nil
	}
	limit, _ := strconv.Atoi(first.Lit)
	return &ast.TakeStage{Limit: limit, Span: p.spanFrom(kw)}, nil
}

func (p *parser) parseAppend(kw Token) (ast.Stage, error) {
	p.skipNewlines()
	if !p.peekIs(LPAREN) {
		return nil, parseErr(p.peek().Span, "'(' after 'append'", p.peek().describe())
	}
	p.next()
	pipe, err := p.parsePipeline(true)
	if err != nil {
		return nil, err
	}
	if !p.peekIs(RPAREN) {
		return nil, parseErr(p.peek().Span, "')' closing append block", p.peek().describe())
	}
	p.next()
	return &ast.AppendStage{Pipeline: pipe, Span: p.spanFrom(kw)}, nil
}

// parseBraceList consumes "{ item, item, ... }" where parseItem consumes
// exactly one item. Trailing commas and interior newlines are allowed.
func (p *parser) parseBraceList(parseItem func() error) error {
	p.next() // {
	for {
		p.skipNewlines()
		if p.peekIs(RBRACE) {
			p.next()
			return nil
		}
		if p.peekIs(EOF) {
			return parseErr(p.peek().Span, "'}' closing list", "end of input")
		}
		if err := parseItem(); err != nil {
			return err
		}
		p.skipNewlines()
		if p.peekIs(COMMA) {
			p.next()
		}
	}
}

// Expression parsing by precedence climbing. Word operators follow the
// original language: and/or/not rather than &&/||/!.
var precedences = map[TokenType]int{
	COALESCE: 3,
	EQ:       4, NEQ: 4, LT: 4, GT: 4, LTE: 4, GTE: 4,
	PLUS: 5, MINUS: 5,
	STAR: 6, SLASH: 6, PERCENT: 6,
}

const (
	precOr  = 1
	precAnd = 2
)

func (p *parser) parseExpr(minPrec int) (ast.Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		var prec int
		var op string
		switch {
		case tok.Typ == IDENT && tok.Lit == "or":
			prec, op = precOr, "or"
		case tok.Typ == IDENT && tok.Lit == "and":
			prec, op = precAnd, "and"
		default:
			pr, ok := precedences[tok.Typ]
			if !ok {
				return left, nil
			}
			prec, op = pr, string(tok.Typ)
		}
		if prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{
			Op:   op,
			Left: left, Right: right,
			Span: ast.Span{Start: left.ExprSpan().Start, End: right.ExprSpan().End},
		}
	}
}

// parseOperand parses an atom and, when the atom is a bare identifier
// followed by further atoms, a whitespace-application function call
// (e.g. "average salary").
func (p *parser) parseOperand() (ast.Expr, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	fn, ok := atom.(*ast.Ident)
	if !ok || !p.atomAhead() {
		return atom, nil
	}
	call := &ast.Call{Func: fn, Span: fn.Span}
	for p.atomAhead() || p.namedArgAhead() {
		if p.namedArgAhead() {
			nameTok := p.next()
			p.next() // :
			arg, err := p.parseAtom()
			if err != nil {
				return nil, err
			}
			call.Named = append(call.Named, ast.NamedArg{
				Name: nameTok.Lit,
				Expr: arg,
				Span: ast.Span{Start: nameTok.Span.Start, End: arg.ExprSpan().End},
			})
			continue
		}
		arg, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	call.Span.End = p.prev().Span.End
	return call, nil
}

func (p *parser) atomAhead() bool {
	switch p.peek().Typ {
	case IDENT, INT, FLOAT, STRING, LPAREN:
		if p.peek().Typ == IDENT {
			lit := p.peek().Lit
			if lit == "and" || lit == "or" {
				return false
			}
		}
		return true
	}
	return false
}

func (p *parser) namedArgAhead() bool {
	return p.peekIs(IDENT) && p.peekN(1).Typ == COLON
}

func (p *parser) parseAtom() (ast.Expr, error) {
	tok := p.next()
	switch tok.Typ {
	case IDENT:
		switch tok.Lit {
		case "true":
			return &ast.BoolLit{Value: true, Span: tok.Span}, nil
		case "false":
			return &ast.BoolLit{Value: false, Span: tok.Span}, nil
		case "null":
			return &ast.NullLit{Span: tok.Span}, nil
		case "not":
			expr, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			return &ast.Unary{Op: "not", Expr: expr, Span: ast.Span{Start: tok.Span.Start, End: expr.ExprSpan().End}}, nil
		}
		return p.parseDottedIdent(tok)
	case INT:
		return &ast.IntLit{Value: tok.Lit, Span: tok.Span}, nil
	case FLOAT:
		return &ast.FloatLit{Value: tok.Lit, Span: tok.Span}, nil
	case STRING:
		return &ast.StringLit{Value: tok.Lit, Span: tok.Span}, nil
	case MINUS:
		expr, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "-", Expr: expr, Span: ast.Span{Start: tok.Span.Start, End: expr.ExprSpan().End}}, nil
	case LPAREN:
		p.skipNewlines()
		expr, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		p.skipNewlines()
		if !p.peekIs(RPAREN) {
			return nil, parseErr(p.peek().Span, "')'", p.peek().describe())
		}
		p.next()
		return expr, nil
	}
	return nil, parseErr(tok.Span, "expression", tok.describe())
}

func (p *parser) parseIdent() (*ast.Ident, error) {
	if !p.peekIs(IDENT) {
		return nil, parseErr(p.peek().Span, "identifier", p.peek().describe())
	}
	return p.parseDottedIdent(p.next())
}

func (p *parser) parseDottedIdent(first Token) (*ast.Ident, error) {
	parts := []string{first.Lit}
	end := first.Span.End
	for p.peekIs(DOT) && p.peekN(1).Typ == IDENT {
		p.next()
		tok := p.next()
		parts = append(parts, tok.Lit)
		end = tok.Span.End
	}
	return &ast.Ident{Parts: parts, Span: ast.Span{Start: first.Span.Start, End: end}}, nil
}

// Helpers

func (p *parser) peek() Token { return p.tokens[p.pos] }

func (p *parser) peekN(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) peekIs(tt TokenType) bool { return p.peek().Typ == tt }

func (p *parser) next() Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) prev() Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}

func (p *parser) skipNewlines() {
	for p.peekIs(NEWLINE) {
		p.next()
	}
}

func (p *parser) skipSeparators() {
	for p.peekIs(NEWLINE) || p.peekIs(PIPE) {
		p.next()
	}
}

func (p *parser) spanFrom(kw Token) ast.Span {
	return ast.Span{Start: kw.Span.Start, End: p.prev().Span.End}
}

func (t Token) describe() string {
	switch t.Typ {
	case EOF:
		return "end of input"
	case NEWLINE:
		return "end of line"
	case IDENT:
		return "'" + t.Lit + "'"
	case INT, FLOAT, STRING:
		return strings.TrimSpace(t.Lit)
	}
	return "'" + string(t.Typ) + "'"
}
