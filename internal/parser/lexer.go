package parser

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/paulomach/prql/internal/ast"
)

type TokenType string

const (
	EOF     TokenType = "EOF"
	IDENT   TokenType = "IDENT"
	INT     TokenType = "INT"
	FLOAT   TokenType = "FLOAT"
	STRING  TokenType = "STRING"
	NEWLINE TokenType = "NEWLINE"

	LPAREN   TokenType = "("
	RPAREN   TokenType = ")"
	LBRACE   TokenType = "{"
	RBRACE   TokenType = "}"
	LBRACKET TokenType = "["
	RBRACKET TokenType = "]"
	COMMA    TokenType = ","
	EQUAL    TokenType = "="
	DOT      TokenType = "."
	PIPE     TokenType = "|"
	COLON    TokenType = ":"
	STAR     TokenType = "*"
	PLUS     TokenType = "+"
	MINUS    TokenType = "-"
	SLASH    TokenType = "/"
	PERCENT  TokenType = "%"
	RANGE    TokenType = ".."
	EQ       TokenType = "=="
	NEQ      TokenType = "!="
	LT       TokenType = "<"
	GT       TokenType = ">"
	LTE      TokenType = "<="
	GTE      TokenType = ">="
	COALESCE TokenType = "??"
)

// Token is one lexical unit with its source span.
type Token struct {
	Typ  TokenType
	Lit  string
	Span ast.Span
}

type lexer struct {
	src    string
	pos    int
	line   int
	col    int
	tokens []Token
}

// Lex tokenizes pipeline source text. Newlines are kept as tokens since
// they terminate stages; other whitespace and comments are dropped.
func Lex(src string) ([]Token, error) {
	l := &lexer{src: src, line: 1, col: 1}
	for l.pos < len(l.src) {
		ch := l.src[l.pos]

		if ch == '\n' {
			start := l.here()
			end := l.advance(1)
			l.emit(NEWLINE, "\n", start, end)
			continue
		}
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.advance(1)
			continue
		}
		// Comments run to end of line. A '#' inside a string literal is
		// handled by the string scanner, never here.
		if ch == '#' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
			continue
		}
		if ch == '\'' || ch == '"' {
			if err := l.lexString(ch); err != nil {
				return nil, err
			}
			continue
		}
		if ch == '`' {
			if err := l.lexBacktickIdent(); err != nil {
				return nil, err
			}
			continue
		}
		if ch >= '0' && ch <= '9' {
			l.lexNumber()
			continue
		}
		r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
		if isIdentStart(r) {
			l.lexIdent()
			continue
		}
		if !l.lexOperator() {
			start := l.here()
			end := l.advance(1)
			return nil, &LexError{
				Span: ast.Span{Start: start, End: end},
				Msg:  fmt.Sprintf("unexpected character %q", r),
			}
		}
	}
	l.tokens = append(l.tokens, Token{Typ: EOF, Span: ast.Span{Start: l.here(), End: l.here()}})
	return l.tokens, nil
}

func (l *lexer) here() ast.Position {
	return ast.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *lexer) advance(n int) ast.Position {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
	return l.here()
}

func (l *lexer) emit(typ TokenType, lit string, start, end ast.Position) {
	l.tokens = append(l.tokens, Token{Typ: typ, Lit: lit, Span: ast.Span{Start: start, End: end}})
}

func (l *lexer) lexString(quote byte) error {
	start := l.here()
	l.advance(1)
	var sb []byte
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch == quote {
			end := l.advance(1)
			l.emit(STRING, string(sb), start, end)
			return nil
		}
		if ch == '\n' {
			break
		}
		if ch == '\\' {
			if l.pos+1 >= len(l.src) {
				break
			}
			esc := l.src[l.pos+1]
			switch esc {
			case '\\', '\'', '"', '`':
				sb = append(sb, esc)
			case 'n':
				sb = append(sb, '\n')
			case 't':
				sb = append(sb, '\t')
			default:
				escStart := l.here()
				escEnd := l.advance(2)
				return &LexError{
					Span: ast.Span{Start: escStart, End: escEnd},
					Msg:  fmt.Sprintf("unknown escape sequence \\%c", esc),
				}
			}
			l.advance(2)
			continue
		}
		sb = append(sb, ch)
		l.advance(1)
	}
	return &LexError{
		Span: ast.Span{Start: start, End: l.here()},
		Msg:  "unterminated string literal",
	}
}

func (l *lexer) lexBacktickIdent() error {
	start := l.here()
	l.advance(1)
	litStart := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '`' && l.src[l.pos] != '\n' {
		l.advance(1)
	}
	if l.pos >= len(l.src) || l.src[l.pos] != '`' {
		return &LexError{
			Span: ast.Span{Start: start, End: l.here()},
			Msg:  "unterminated quoted identifier",
		}
	}
	lit := l.src[litStart:l.pos]
	end := l.advance(1)
	l.emit(IDENT, lit, start, end)
	return nil
}

func (l *lexer) lexNumber() {
	start := l.here()
	isFloat := false
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch >= '0' && ch <= '9' {
			l.advance(1)
			continue
		}
		// A dot starts a fraction unless it is the range operator "..".
		if ch == '.' && !isFloat && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
			isFloat = true
			l.advance(1)
			continue
		}
		break
	}
	lit := l.src[start.Offset:l.pos]
	typ := INT
	if isFloat {
		typ = FLOAT
	}
	l.emit(typ, lit, start, l.here())
}

func (l *lexer) lexIdent() {
	start := l.here()
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentPart(r) {
			break
		}
		l.advance(size)
	}
	l.emit(IDENT, l.src[start.Offset:l.pos], start, l.here())
}

var twoCharOps = map[string]TokenType{
	"==": EQ, "!=": NEQ, "<=": LTE, ">=": GTE, "..": RANGE, "??": COALESCE,
}

var oneCharOps = map[byte]TokenType{
	'(': LPAREN, ')': RPAREN, '{': LBRACE, '}': RBRACE,
	'[': LBRACKET, ']': RBRACKET,
	',': COMMA, '=': EQUAL, '.': DOT, '|': PIPE, ':': COLON,
	'*': STAR, '+': PLUS, '-': MINUS, '/': SLASH, '%': PERCENT,
	'<': LT, '>': GT,
}

func (l *lexer) lexOperator() bool {
	start := l.here()
	if l.pos+1 < len(l.src) {
		if typ, ok := twoCharOps[l.src[l.pos:l.pos+2]]; ok {
			end := l.advance(2)
			l.emit(typ, string(typ), start, end)
			return true
		}
	}
	if typ, ok := oneCharOps[l.src[l.pos]]; ok {
		end := l.advance(1)
		l.emit(typ, string(typ), start, end)
		return true
	}
	return false
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
