package schema

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// ParquetProvider derives table columns from parquet files on disk. Each
// table name maps to one file; the file's schema supplies the columns.
type ParquetProvider struct {
	files map[string]string
}

// NewParquetProvider maps table names to parquet file paths.
func NewParquetProvider(files map[string]string) *ParquetProvider {
	return &ParquetProvider{files: files}
}

func (p *ParquetProvider) ColumnsOf(table string) ([]string, error) {
	path, ok := p.files[table]
	if !ok {
		return nil, &UnknownTableError{Table: table}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("read parquet schema for %s: %w", table, err)
	}
	fields := pf.Schema().Fields()
	cols := make([]string, len(fields))
	for i, field := range fields {
		cols[i] = field.Name()
	}
	return cols, nil
}
