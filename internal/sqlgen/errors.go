package sqlgen

import "fmt"

// UnsupportedConstructError reports a query shape the target dialect has
// no syntax for.
type UnsupportedConstructError struct {
	Construct string
	Dialect   DialectType
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("dialect %s does not support %s", e.Dialect, e.Construct)
}
