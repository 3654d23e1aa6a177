package compiler

import (
	"slices"

	"sieve/internal/condition"
)

// normalizeNegation collapses every NOT NOT x to x. When the level
// distributes negation it also pushes the remaining NOTs down:
//
//	NOT (a AND b)  -> NOT a OR NOT b
//	NOT (a OR b)   -> NOT a AND NOT b
//	NOT f < v      -> f >= v (and the other comparison inversions)
//	NOT f IN [v]   -> f != v
//	NOT f IN [..]  -> f != v1 AND f != v2 ... (LevelFull only)
//	NOT FALSE      -> TRUE, NOT TRUE -> FALSE
//
// Function predicates have no inverse and stay wrapped.
func normalizeNegation(e condition.Expr, level Level) condition.Expr {
	switch n := e.(type) {
	case *condition.AndExpr:
		return condition.NewAnd(normalizeAll(n.Terms, level)...)
	case *condition.OrExpr:
		return condition.NewOr(normalizeAll(n.Terms, level)...)
	case *condition.NotExpr:
		return negate(n.Term, level)
	default:
		return e
	}
}

func normalizeAll(terms []condition.Expr, level Level) []condition.Expr {
	out := make([]condition.Expr, len(terms))
	for i, t := range terms {
		out[i] = normalizeNegation(t, level)
	}
	return out
}

// negate returns the normal form of NOT e.
func negate(e condition.Expr, level Level) condition.Expr {
	if inner, ok := e.(*condition.NotExpr); ok {
		return normalizeNegation(inner.Term, level)
	}
	if !level.distributesNegation() {
		inner := normalizeNegation(e, level)
		if nn, ok := inner.(*condition.NotExpr); ok {
			return nn.Term
		}
		return condition.NewNot(inner)
	}

	switch n := e.(type) {
	case *condition.AndExpr:
		return condition.NewOr(negateAll(n.Terms, level)...)
	case *condition.OrExpr:
		return condition.NewAnd(negateAll(n.Terms, level)...)
	case *condition.Predicate:
		return negatePredicate(n, level)
	case *condition.EmptyExpr:
		return condition.All()
	case *condition.AllExpr:
		return condition.Empty()
	default:
		return condition.NewNot(e)
	}
}

func negateAll(terms []condition.Expr, level Level) []condition.Expr {
	out := make([]condition.Expr, len(terms))
	for i, t := range terms {
		out[i] = negate(t, level)
	}
	return out
}

func negatePredicate(p *condition.Predicate, level Level) condition.Expr {
	if p.Op == condition.OpIn {
		if values := slices.Compact(slices.Sorted(slices.Values(p.Values))); len(values) == 1 {
			return condition.Ne(p.Field, values[0])
		}
	}
	if inv, ok := p.Op.Invert(); ok {
		return condition.Compare(p.Field, inv, p.Value())
	}
	if p.Op == condition.OpIn && level == LevelFull {
		terms := make([]condition.Expr, len(p.Values))
		for i, v := range p.Values {
			terms[i] = condition.Ne(p.Field, v)
		}
		return condition.NewAnd(terms...)
	}
	return condition.NewNot(p)
}
