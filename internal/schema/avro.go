package schema

import (
	"encoding/json"
	"fmt"
	"os"

	goavro "github.com/linkedin/goavro/v2"
)

// AvroProvider derives table columns from Avro record schemas (.avsc).
// Each table name maps to one schema file.
type AvroProvider struct {
	files map[string]string
}

// NewAvroProvider maps table names to Avro schema file paths.
func NewAvroProvider(files map[string]string) *AvroProvider {
	return &AvroProvider{files: files}
}

func (p *AvroProvider) ColumnsOf(table string) ([]string, error) {
	path, ok := p.files[table]
	if !ok {
		return nil, &UnknownTableError{Table: table}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read avro schema: %w", err)
	}
	return avroFields(table, string(data))
}

func avroFields(table, schemaJSON string) ([]string, error) {
	// Validate through goavro first so malformed schemas fail with the
	// codec's diagnostics rather than a bare JSON error.
	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("parse avro schema for %s: %w", table, err)
	}
	var def struct {
		Type   string `json:"type"`
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(codec.Schema()), &def); err != nil {
		return nil, fmt.Errorf("parse avro schema for %s: %w", table, err)
	}
	if def.Type != "record" || len(def.Fields) == 0 {
		return nil, fmt.Errorf("avro schema for %s: expected a record with fields", table)
	}
	cols := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		cols[i] = f.Name
	}
	return cols, nil
}
