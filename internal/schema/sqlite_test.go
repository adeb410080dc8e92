package schema

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteProviderColumns(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE employees (id INTEGER, name TEXT, salary REAL)`)
	require.NoError(t, err)

	p := NewSQLiteProvider(db)
	cols, err := p.ColumnsOf("employees")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "salary"}, cols)

	_, err = p.ColumnsOf("missing")
	var unknown *UnknownTableError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Table)
}
