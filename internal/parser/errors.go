package parser

import (
	"fmt"

	"github.com/paulomach/prql/internal/ast"
)

// LexError reports a malformed token in the source text.
type LexError struct {
	Span ast.Span
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Msg)
}

// ParseError reports a grammar violation.
type ParseError struct {
	Span     ast.Span
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	if e.Found == "" {
		return fmt.Sprintf("%d:%d: expected %s", e.Span.Start.Line, e.Span.Start.Column, e.Expected)
	}
	return fmt.Sprintf("%d:%d: expected %s, found %s", e.Span.Start.Line, e.Span.Start.Column, e.Expected, e.Found)
}

func parseErr(span ast.Span, expected, found string) *ParseError {
	return &ParseError{Span: span, Expected: expected, Found: found}
}
