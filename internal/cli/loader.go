package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulomach/prql/internal/schema"
)

// loadProvider builds a schema provider from the compile flags. The
// returned func, when non-nil, releases the provider's resources.
func loadProvider(opts *CompileOptions) (schema.Provider, func() error, error) {
	if len(opts.Tables) > 0 && opts.Schema != "" {
		return nil, nil, fmt.Errorf("--schema and --table are mutually exclusive")
	}

	if len(opts.Tables) > 0 {
		return tableProvider(opts.Tables)
	}
	if opts.Schema == "" {
		return nil, nil, fmt.Errorf("a schema is required (--schema or --table)")
	}

	switch strings.ToLower(filepath.Ext(opts.Schema)) {
	case ".yaml", ".yml":
		p, err := schema.LoadYAML(opts.Schema)
		return p, nil, err
	case ".db", ".sqlite", ".sqlite3":
		p, err := schema.OpenSQLite(opts.Schema)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported schema file %q: expected .yaml, .yml, .db or .sqlite", opts.Schema)
	}
}

// tableProvider maps name=path pairs onto a parquet or Avro provider.
// All paths must use the same format.
func tableProvider(pairs []string) (schema.Provider, func() error, error) {
	files := make(map[string]string, len(pairs))
	format := ""
	for _, pair := range pairs {
		name, path, ok := strings.Cut(pair, "=")
		if !ok || name == "" || path == "" {
			return nil, nil, fmt.Errorf("invalid --table %q: expected name=path", pair)
		}
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".parquet", ".avsc":
		default:
			return nil, nil, fmt.Errorf("unsupported table schema %q: expected .parquet or .avsc", path)
		}
		if format == "" {
			format = ext
		} else if format != ext {
			return nil, nil, fmt.Errorf("mixed table schema formats: %s and %s", format, ext)
		}
		files[name] = path
	}
	if format == ".avsc" {
		return schema.NewAvroProvider(files), nil, nil
	}
	return schema.NewParquetProvider(files), nil, nil
}
