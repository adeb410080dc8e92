// Package prql compiles pipelined relational queries into SQL.
//
// A query is a sequence of stages (from, select, filter, derive, group,
// join, sort, take, append) threaded top to bottom, with let bindings for
// shared subqueries. Compilation runs parse, name resolution against a
// schema provider, relational planning and SQL emission for one of the
// registered dialects.
package prql

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paulomach/prql/internal/ast"
	"github.com/paulomach/prql/internal/parser"
	"github.com/paulomach/prql/internal/rel"
	"github.com/paulomach/prql/internal/resolve"
	"github.com/paulomach/prql/internal/schema"
	"github.com/paulomach/prql/internal/sqlgen"
)

// Provider supplies the column list of a table. Compilation only needs
// names, not types.
type Provider = schema.Provider

// Tables is a fixed in-memory schema, mapping table names to ordered
// column lists.
type Tables = schema.MapProvider

// Options configures a compilation.
type Options struct {
	// Dialect selects the SQL target ("postgres", "sqlite", "duckdb",
	// "mysql", "mssql", "clickhouse", "bigquery", "snowflake" or
	// "generic"). Empty means generic.
	Dialect string

	// Schema supplies table column lists for name resolution.
	Schema Provider
}

// Compile translates a query into a single SQL statement.
func Compile(source string, opts Options) (string, error) {
	if opts.Schema == nil {
		return "", errors.New("prql: a schema provider is required")
	}
	dialect := sqlgen.GetDialect(opts.Dialect)
	if dialect == nil {
		return "", fmt.Errorf("prql: unknown dialect %q (choose one of %s)", opts.Dialect, dialectNames())
	}

	pipeline, err := parser.Parse(source)
	if err != nil {
		return "", err
	}
	query, err := resolve.Resolve(pipeline, opts.Schema)
	if err != nil {
		return "", err
	}
	tree := rel.Build(query)
	rel.Partition(tree)
	return sqlgen.Emit(tree, dialect)
}

func dialectNames() string {
	names := make([]string, 0, len(sqlgen.DialectMap))
	for name := range sqlgen.DialectMap {
		names = append(names, strings.TrimPrefix(name, "sql."))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Diagnostic is a compilation failure tagged with the phase that raised
// it and, when known, the source span it points at.
type Diagnostic struct {
	Phase   string
	Message string
	Span    ast.Span
}

// Diagnose classifies a Compile error. It reports false for errors that
// did not come from the compiler itself (schema I/O, bad options).
func Diagnose(err error) (Diagnostic, bool) {
	var lexErr *parser.LexError
	if errors.As(err, &lexErr) {
		return Diagnostic{Phase: "parse", Message: lexErr.Msg, Span: lexErr.Span}, true
	}
	var parseErr *parser.ParseError
	if errors.As(err, &parseErr) {
		return Diagnostic{Phase: "parse", Message: parseErr.Error(), Span: parseErr.Span}, true
	}
	var resolveErr *resolve.Error
	if errors.As(err, &resolveErr) {
		return Diagnostic{Phase: "resolve", Message: resolveErr.Error(), Span: resolveErr.Span}, true
	}
	var emitErr *sqlgen.UnsupportedConstructError
	if errors.As(err, &emitErr) {
		return Diagnostic{Phase: "emit", Message: emitErr.Error()}, true
	}
	return Diagnostic{}, false
}
