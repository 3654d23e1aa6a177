package compiler

import (
	"slices"

	"sieve/internal/condition"
)

// canonicalizeIn sorts and deduplicates every IN list byte-wise and turns
// single-value lists into equality. It runs at every level.
func canonicalizeIn(e condition.Expr) condition.Expr {
	switch n := e.(type) {
	case *condition.AndExpr:
		for i, t := range n.Terms {
			n.Terms[i] = canonicalizeIn(t)
		}
	case *condition.OrExpr:
		for i, t := range n.Terms {
			n.Terms[i] = canonicalizeIn(t)
		}
	case *condition.NotExpr:
		n.Term = canonicalizeIn(n.Term)
	case *condition.Predicate:
		if n.Op != condition.OpIn {
			return n
		}
		slices.Sort(n.Values)
		n.Values = slices.Compact(n.Values)
		if len(n.Values) == 1 {
			return condition.Eq(n.Field, n.Values[0])
		}
	}
	return e
}
