// Package schema supplies table column listings to the resolver.
//
// Providers are read-only and synchronous; the compiler consults them only
// while resolving from stages. Any provider failure aborts the compilation
// that triggered it.
package schema

import (
	"errors"
	"fmt"
)

// ErrUnknownTable is wrapped by every provider when a table is missing.
var ErrUnknownTable = errors.New("unknown table")

// UnknownTableError names the table a provider could not find.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q", e.Table)
}

func (e *UnknownTableError) Unwrap() error { return ErrUnknownTable }

// Provider exposes the columns of named tables, in declaration order.
type Provider interface {
	ColumnsOf(table string) ([]string, error)
}

// MapProvider is an in-memory provider backed by a plain map.
type MapProvider map[string][]string

func (m MapProvider) ColumnsOf(table string) ([]string, error) {
	cols, ok := m[table]
	if !ok {
		return nil, &UnknownTableError{Table: table}
	}
	out := make([]string, len(cols))
	copy(out, cols)
	return out, nil
}
