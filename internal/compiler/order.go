package compiler

import (
	"cmp"
	"slices"
	"strings"

	"sieve/internal/condition"
)

// Sibling ranks for canonical ordering. Membership lists come first, then
// equality terms, ranges, prefix and fuzzy functions, negations, and
// finally nested combinators and constants.
const (
	rankIn = iota
	rankTerm
	rankRange
	rankFunction
	rankNegated
	rankCompound
)

// orderCanonical sorts the children of every AND and OR with
// compareExpr. The sort is stable, so equal keys keep their order.
func orderCanonical(e condition.Expr) condition.Expr {
	switch n := e.(type) {
	case *condition.AndExpr:
		for i, t := range n.Terms {
			n.Terms[i] = orderCanonical(t)
		}
		slices.SortStableFunc(n.Terms, compareExpr)
	case *condition.OrExpr:
		for i, t := range n.Terms {
			n.Terms[i] = orderCanonical(t)
		}
		slices.SortStableFunc(n.Terms, compareExpr)
	case *condition.NotExpr:
		n.Term = orderCanonical(n.Term)
	}
	return e
}

// compareExpr orders siblings by rank, then field, then values, then
// operator. Nodes without a leaf key fall back to their string form.
func compareExpr(a, b condition.Expr) int {
	if c := cmp.Compare(rank(a), rank(b)); c != 0 {
		return c
	}
	pa, pb := leafOf(a), leafOf(b)
	if pa == nil || pb == nil {
		return strings.Compare(a.String(), b.String())
	}
	if c := strings.Compare(pa.Field, pb.Field); c != 0 {
		return c
	}
	if c := slices.Compare(pa.Values, pb.Values); c != 0 {
		return c
	}
	if c := cmp.Compare(pa.Op, pb.Op); c != 0 {
		return c
	}
	return strings.Compare(a.String(), b.String())
}

func rank(e condition.Expr) int {
	switch n := e.(type) {
	case *condition.Predicate:
		switch {
		case n.Op == condition.OpIn:
			return rankIn
		case n.Op == condition.OpEq:
			return rankTerm
		case n.Op.IsRange():
			return rankRange
		case n.Op == condition.OpNe:
			return rankNegated
		default:
			return rankFunction
		}
	case *condition.NotExpr:
		return rankNegated
	default:
		return rankCompound
	}
}

// leafOf returns the predicate of a leaf or negated leaf.
func leafOf(e condition.Expr) *condition.Predicate {
	switch n := e.(type) {
	case *condition.Predicate:
		return n
	case *condition.NotExpr:
		p, _ := n.Term.(*condition.Predicate)
		return p
	default:
		return nil
	}
}
