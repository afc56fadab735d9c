package postgres

import (
	"fmt"
	"strings"

	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
)

// compileFilter turns the typed filter into SQL WHERE conditions with bound
// parameters. Field names pass through Filter.Validate's closed allowlist
// before being interpolated as identifiers; values always travel as
// parameters, never as spliced literals. startIndex is the next free $n
// placeholder number.
func compileFilter(filter retrieval.Filter, startIndex int) (conditions []string, args []any, err error) {
	if err := filter.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid filter: %w", err)
	}

	n := startIndex
	for _, p := range filter {
		if len(p.Values) == 1 {
			conditions = append(conditions, fmt.Sprintf("%s = $%d", p.Field, n))
			args = append(args, p.Values[0])
		} else {
			conditions = append(conditions, fmt.Sprintf("%s = ANY($%d)", p.Field, n))
			args = append(args, p.Values)
		}
		n++
	}
	return conditions, args, nil
}

// whereClause joins compiled conditions into a WHERE clause, or returns the
// empty string when there are none.
func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}
