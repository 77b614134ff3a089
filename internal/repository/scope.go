package repository

import (
	"fmt"

	"github.com/lib/pq"
)

// courseScope renders an optional "<column> = ANY($n)" filter. A nil slice
// means every course; an empty non-nil slice matches nothing.
func courseScope(column string, courseIDs []string, argPos int) (string, []interface{}) {
	if courseIDs == nil {
		return "", nil
	}
	return fmt.Sprintf(" WHERE %s = ANY($%d)", column, argPos), []interface{}{pq.Array(courseIDs)}
}
