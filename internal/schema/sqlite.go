package schema

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteProvider reads table columns from a SQLite database file. It is
// handy when compiling queries against an existing database without a
// separate schema file.
type SQLiteProvider struct {
	db *sql.DB
}

// OpenSQLite opens a database file as a schema provider. The caller owns
// the provider and must Close it.
func OpenSQLite(path string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &SQLiteProvider{db: db}, nil
}

// NewSQLiteProvider wraps an already-open database handle.
func NewSQLiteProvider(db *sql.DB) *SQLiteProvider {
	return &SQLiteProvider{db: db}
}

func (p *SQLiteProvider) ColumnsOf(table string) ([]string, error) {
	rows, err := p.db.Query("SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("table info for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, &UnknownTableError{Table: table}
	}
	return cols, nil
}

func (p *SQLiteProvider) Close() error { return p.db.Close() }
