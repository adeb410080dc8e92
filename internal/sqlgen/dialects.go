package sqlgen

import "strings"

// DialectMap holds the registered dialects.
var DialectMap = map[string]*Dialect{
	"sql.generic":    DefaultDialect,
	"sql.postgres":   PostgresDialect,
	"sql.sqlite":     SQLiteDialect,
	"sql.duckdb":     DuckDBDialect,
	"sql.mysql":      MySQLDialect,
	"sql.mssql":      MSSQLDialect,
	"sql.clickhouse": ClickHouseDialect,
	"sql.bigquery":   BigQueryDialect,
	"sql.snowflake":  SnowflakeDialect,
}

// GetDialect returns the dialect for the given target, or nil if not found.
// It tries to match by exact string first, then by common aliases.
func GetDialect(target string) *Dialect {
	if d, ok := DialectMap[target]; ok {
		return d
	}
	switch strings.ToLower(target) {
	case "", "generic":
		return DefaultDialect
	case "postgres", "postgresql":
		return PostgresDialect
	case "sqlite":
		return SQLiteDialect
	case "duckdb":
		return DuckDBDialect
	case "mysql":
		return MySQLDialect
	case "mssql", "sqlserver":
		return MSSQLDialect
	case "clickhouse":
		return ClickHouseDialect
	case "bigquery":
		return BigQueryDialect
	case "snowflake":
		return SnowflakeDialect
	}
	return nil
}

// PostgresDialect defines the dialect for PostgreSQL.
var PostgresDialect = &Dialect{
	Type:           DialectPostgres,
	IdentQuoteChar: '"',
	UseLimitOffset: true,
	SupportsWith:   true,
	UseUsingJoin:   true,
	Functions: map[string]string{
		"to_text": "TO_CHAR(%[1]s, %[2]s)", // value, format
	},
}

// SQLiteDialect defines the dialect for SQLite.
var SQLiteDialect = &Dialect{
	Type:           DialectSQLite,
	IdentQuoteChar: '"',
	UseLimitOffset: true,
	SupportsWith:   true,
	UseUsingJoin:   true,
	Functions:      map[string]string{},
}

// DuckDBDialect defines the dialect for DuckDB.
var DuckDBDialect = &Dialect{
	Type:           DialectDuckDB,
	IdentQuoteChar: '"',
	UseLimitOffset: true,
	SupportsWith:   true,
	UseUsingJoin:   true,
	Functions: map[string]string{
		"to_text": "strftime(%[1]s, %[2]s)",
	},
}

// MySQLDialect defines the dialect for MySQL.
var MySQLDialect = &Dialect{
	Type:           DialectMySQL,
	IdentQuoteChar: '`',
	UseLimitComma:  true, // LIMIT offset, count
	SupportsWith:   true,
	UseUsingJoin:   true,
	Functions: map[string]string{
		"to_text": "DATE_FORMAT(%[1]s, %[2]s)",
	},
}

// MSSQLDialect defines the dialect for Microsoft SQL Server.
var MSSQLDialect = &Dialect{
	Type:              DialectMSSQL,
	IdentQuoteChar:    '"',
	UseTopClause:      true, // TOP N
	OffsetFetchSyntax: true, // OFFSET M ROWS FETCH NEXT N ROWS ONLY
	SupportsWith:      true,
	UseUsingJoin:      false,
	Functions: map[string]string{
		"ceil": "CEILING(%s)",
		"ln":   "LOG(%s)",
		"pow":  "POWER(%s, %s)",
	},
}

// ClickHouseDialect defines the dialect for ClickHouse.
var ClickHouseDialect = &Dialect{
	Type:           DialectClickHouse,
	IdentQuoteChar: '"',
	UseLimitOffset: true,
	SupportsWith:   true,
	UseUsingJoin:   true,
	Functions: map[string]string{
		"to_text": "formatDateTimeInJodaSyntax(%[1]s, %[2]s)",
	},
}

// BigQueryDialect defines the dialect for BigQuery.
var BigQueryDialect = &Dialect{
	Type:           DialectBigQuery,
	IdentQuoteChar: '`',
	UseLimitOffset: true,
	SupportsWith:   true,
	UseUsingJoin:   true,
	Functions:      map[string]string{},
}

// SnowflakeDialect defines the dialect for Snowflake.
var SnowflakeDialect = &Dialect{
	Type:           DialectSnowflake,
	IdentQuoteChar: '"',
	UseLimitOffset: true,
	SupportsWith:   true,
	UseUsingJoin:   true,
	Functions:      map[string]string{},
}
