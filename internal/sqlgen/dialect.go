package sqlgen

import (
	"strings"
)

type DialectType string

const (
	DialectGeneric    DialectType = "sql.generic"
	DialectPostgres   DialectType = "sql.postgres"
	DialectSQLite     DialectType = "sql.sqlite"
	DialectDuckDB     DialectType = "sql.duckdb"
	DialectMySQL      DialectType = "sql.mysql"
	DialectMSSQL      DialectType = "sql.mssql"
	DialectClickHouse DialectType = "sql.clickhouse"
	DialectBigQuery   DialectType = "sql.bigquery"
	DialectSnowflake  DialectType = "sql.snowflake"
)

// Dialect defines the capabilities and syntax variations for a SQL target.
type Dialect struct {
	Type DialectType

	// Identifier quoting
	IdentQuoteChar byte // 0 for no quoting/default

	// Limit/Offset handling
	UseTopClause      bool // SELECT TOP N ...
	UseLimitOffset    bool // LIMIT N OFFSET M
	UseLimitComma     bool // LIMIT M, N (MySQL style)
	OffsetFetchSyntax bool // OFFSET M ROWS FETCH NEXT N ROWS ONLY

	// Relational capabilities
	SupportsWith bool // WITH name AS (...) common table expressions
	UseUsingJoin bool // JOIN t USING (col); off rewrites to ON equalities

	// Function mapping overrides
	// key: pipeline function name (e.g. "round")
	// value: SQL pattern (e.g. "ROUND(%s, %s)")
	Functions map[string]string
}

// DefaultDialect is the generic dialect (Postgres-like).
var DefaultDialect = &Dialect{
	Type:           DialectGeneric,
	IdentQuoteChar: '"',
	UseLimitOffset: true,
	SupportsWith:   true,
	UseUsingJoin:   true,
	Functions:      map[string]string{},
}

func (d *Dialect) QuoteIdent(s string) string {
	if s == "*" {
		return "*"
	}
	// Leave safe identifiers bare for cleaner SQL.
	if isSafeIdent(s) {
		return s
	}

	q := d.IdentQuoteChar
	if q == 0 {
		return s
	}
	// Simple escaping: duplicate the quote character
	escaped := strings.ReplaceAll(s, string(q), string(q)+string(q))
	return string(q) + escaped + string(q)
}

func isSafeIdent(part string) bool {
	if part == "" {
		return false
	}
	if reservedIdent(strings.ToLower(part)) {
		return false
	}
	for i, r := range part {
		if i == 0 {
			if !(r == '_' || (r >= 'a' && r <= 'z')) {
				return false
			}
			continue
		}
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func reservedIdent(name string) bool {
	switch name {
	case "select", "from", "where", "group", "having", "order", "by",
		"limit", "offset", "join", "on", "using", "union", "all", "as",
		"and", "or", "not", "case", "when", "then", "else", "end",
		"table", "with", "replace", "default", "in", "is", "null",
		"between", "distinct", "desc", "asc":
		return true
	default:
		return false
	}
}
