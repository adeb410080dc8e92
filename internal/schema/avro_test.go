package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const employeeAvroSchema = `{
  "type": "record",
  "name": "Employee",
  "fields": [
    {"name": "id", "type": "long"},
    {"name": "name", "type": "string"},
    {"name": "salary", "type": "double"}
  ]
}`

func TestAvroProviderColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "employee.avsc")
	require.NoError(t, os.WriteFile(path, []byte(employeeAvroSchema), 0o644))

	p := NewAvroProvider(map[string]string{"employees": path})
	cols, err := p.ColumnsOf("employees")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "salary"}, cols)
}

func TestAvroProviderUnknownTable(t *testing.T) {
	p := NewAvroProvider(map[string]string{})
	_, err := p.ColumnsOf("employees")
	var unknown *UnknownTableError
	require.ErrorAs(t, err, &unknown)
}

func TestAvroFieldsRejectsNonRecord(t *testing.T) {
	_, err := avroFields("t", `{"type": "enum", "name": "Suit", "symbols": ["HEART", "SPADE"]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a record")
}

func TestAvroFieldsRejectsMalformed(t *testing.T) {
	_, err := avroFields("t", `{"type": "record"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse avro schema")
}
