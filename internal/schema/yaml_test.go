package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAML(t *testing.T) {
	p, err := ParseYAML([]byte(`
employees: [id, name, salary]
salaries:
  - country
  - salary
`))
	require.NoError(t, err)

	cols, err := p.ColumnsOf("employees")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "salary"}, cols)

	cols, err = p.ColumnsOf("salaries")
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "salary"}, cols)
}

func TestParseYAMLMalformed(t *testing.T) {
	_, err := ParseYAML([]byte("employees: {not: a, column: list}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse schema")
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("t: [a, b]\n"), 0o644))

	p, err := LoadYAML(path)
	require.NoError(t, err)
	cols, err := p.ColumnsOf("t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cols)

	_, err = LoadYAML(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read schema")
}
