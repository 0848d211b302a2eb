package kv

import (
	"fmt"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

type queryKind int

const (
	queryAll queryKind = iota
	queryOnly
	queryRange
)

// Query selects keys of a store or index. The zero value selects everything.
type Query struct {
	kind      queryKind
	lower     any
	upper     any
	lowerOpen bool
	upperOpen bool
}

// All selects every key.
func All() Query { return Query{} }

// Only selects a single key.
func Only(key any) Query { return Query{kind: queryOnly, lower: key} }

// Bound selects keys between lower and upper. A nil bound is unbounded; open
// bounds exclude the bound itself.
func Bound(lower, upper any, lowerOpen, upperOpen bool) Query {
	return Query{kind: queryRange, lower: lower, upper: upper, lowerOpen: lowerOpen, upperOpen: upperOpen}
}

// LowerBound selects keys at or above (or strictly above when open) lower.
func LowerBound(lower any, open bool) Query { return Bound(lower, nil, open, false) }

// UpperBound selects keys at or below (or strictly below when open) upper.
func UpperBound(upper any, open bool) Query { return Bound(nil, upper, false, open) }

// clause renders the query as a SQL condition on col. It returns "1" for an
// unbounded query.
func (q Query) clause(col string) (string, []any, error) {
	switch q.kind {
	case queryOnly:
		k, err := encodeKey(q.lower)
		if err != nil {
			return "", nil, err
		}
		return col + " = ?", []any{k}, nil
	case queryRange:
		if q.lower != nil && q.upper != nil {
			c, err := compareKeys(q.lower, q.upper)
			if err != nil {
				return "", nil, err
			}
			if c > 0 || (c == 0 && (q.lowerOpen || q.upperOpen)) {
				return "", nil, fmt.Errorf("empty key range: %w", types.ErrInvalidKey)
			}
		}
		cond := "1"
		var args []any
		if q.lower != nil {
			k, err := encodeKey(q.lower)
			if err != nil {
				return "", nil, err
			}
			op := " >= ?"
			if q.lowerOpen {
				op = " > ?"
			}
			cond = col + op
			args = append(args, k)
		}
		if q.upper != nil {
			k, err := encodeKey(q.upper)
			if err != nil {
				return "", nil, err
			}
			op := " <= ?"
			if q.upperOpen {
				op = " < ?"
			}
			if len(args) == 0 {
				cond = col + op
			} else {
				cond += " AND " + col + op
			}
			args = append(args, k)
		}
		return cond, args, nil
	}
	return "1", nil, nil
}
