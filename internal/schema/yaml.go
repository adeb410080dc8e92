package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a schema file mapping table names to column lists:
//
//	employees: [name, salary, country, tenure]
//	salaries:
//	  - country
//	  - salary
func LoadYAML(path string) (Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML builds a provider from YAML schema bytes.
func ParseYAML(data []byte) (Provider, error) {
	var tables map[string][]string
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return MapProvider(tables), nil
}
