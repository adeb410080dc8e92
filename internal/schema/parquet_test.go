package schema

import (
	"os"
	"path/filepath"
	"testing"

	parquet "github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type employeeRow struct {
	ID     int64   `parquet:"id"`
	Name   string  `parquet:"name"`
	Salary float64 `parquet:"salary"`
}

func writeParquet(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "employees.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := parquet.NewWriter(f)
	for _, row := range []employeeRow{{1, "ada", 100}, {2, "grace", 120}} {
		require.NoError(t, w.Write(row))
	}
	require.NoError(t, w.Close())
	return path
}

func TestParquetProviderColumns(t *testing.T) {
	path := writeParquet(t)
	p := NewParquetProvider(map[string]string{"employees": path})

	cols, err := p.ColumnsOf("employees")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "salary"}, cols)
}

func TestParquetProviderUnknownTable(t *testing.T) {
	p := NewParquetProvider(map[string]string{})
	_, err := p.ColumnsOf("employees")
	var unknown *UnknownTableError
	require.ErrorAs(t, err, &unknown)
}

func TestParquetProviderMissingFile(t *testing.T) {
	p := NewParquetProvider(map[string]string{
		"employees": filepath.Join(t.TempDir(), "absent.parquet"),
	})
	_, err := p.ColumnsOf("employees")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open parquet file")
}
