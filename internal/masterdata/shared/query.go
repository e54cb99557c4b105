package shared

import (
	"strconv"
	"strings"
)

// Query accumulates WHERE conditions with positional pgx arguments.
type Query struct {
	conds []string
	Args  []any
}

// Arg appends v and returns its placeholder.
func (q *Query) Arg(v any) string {
	q.Args = append(q.Args, v)
	return "$" + strconv.Itoa(len(q.Args))
}

// Where adds a condition. Every "?" in cond is bound to v.
func (q *Query) Where(cond string, v any) {
	q.conds = append(q.conds, strings.ReplaceAll(cond, "?", q.Arg(v)))
}

// Clause renders the accumulated conditions, or an empty string.
func (q *Query) Clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

// Scoped applies the standard search, active and location filters.
func (q *Query) Scoped(f ListFilters, searchCols ...string) {
	if f.Search != "" && len(searchCols) > 0 {
		ph := q.Arg("%" + f.Search + "%")
		parts := make([]string, len(searchCols))
		for i, c := range searchCols {
			parts[i] = c + " ILIKE " + ph
		}
		q.conds = append(q.conds, "("+strings.Join(parts, " OR ")+")")
	}
	if f.IsActive != nil {
		q.Where("is_active = ?", *f.IsActive)
	}
	if f.LocationID != nil {
		q.Where("location_id = ?", *f.LocationID)
	}
}
