package store

import "fmt"

// ListOptions paginates list queries by primary key.
//
// StartAfter is exclusive. A zero Limit returns every remaining row.
type ListOptions struct {
	StartAfter *uint64
	Limit      uint32
	Reverse    bool
}

// pageClause returns the keyset predicate, ORDER BY and LIMIT for col.
// The predicate is empty when StartAfter is nil.
func (o ListOptions) pageClause(col string) (predicate string, suffix string, args []any) {
	op, dir := ">", "ASC"
	if o.Reverse {
		op, dir = "<", "DESC"
	}
	if o.StartAfter != nil {
		predicate = fmt.Sprintf("%s %s ?", col, op)
		args = append(args, *o.StartAfter)
	}
	limit := int64(-1)
	if o.Limit > 0 {
		limit = int64(o.Limit)
	}
	suffix = fmt.Sprintf("ORDER BY %s %s LIMIT %d", col, dir, limit)
	return predicate, suffix, args
}

// where joins non-empty predicates with AND.
func where(predicates ...string) string {
	out := ""
	for _, p := range predicates {
		if p == "" {
			continue
		}
		if out == "" {
			out = "WHERE " + p
		} else {
			out += " AND " + p
		}
	}
	return out
}
