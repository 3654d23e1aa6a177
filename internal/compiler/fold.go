package compiler

import (
	"sieve/internal/condition"
)

// foldConstants removes TRUE/FALSE from combinators:
//
//	x AND FALSE -> FALSE     x AND TRUE -> x
//	x OR TRUE   -> TRUE      x OR FALSE -> x
//
// NOT over a constant is folded only when negation is distributed, so a
// level that keeps NOT in place keeps it here too. A NOT NOT exposed by
// folding is collapsed at every level.
func foldConstants(e condition.Expr, level Level) condition.Expr {
	switch n := e.(type) {
	case *condition.AndExpr:
		kept := make([]condition.Expr, 0, len(n.Terms))
		for _, t := range n.Terms {
			t = foldConstants(t, level)
			switch {
			case condition.IsEmpty(t):
				return t
			case condition.IsAll(t):
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			return condition.All()
		}
		return condition.NewAnd(kept...)

	case *condition.OrExpr:
		kept := make([]condition.Expr, 0, len(n.Terms))
		for _, t := range n.Terms {
			t = foldConstants(t, level)
			switch {
			case condition.IsAll(t):
				return t
			case condition.IsEmpty(t):
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			return condition.Empty()
		}
		return condition.NewOr(kept...)

	case *condition.NotExpr:
		n.Term = foldConstants(n.Term, level)
		if inner, ok := n.Term.(*condition.NotExpr); ok {
			return inner.Term
		}
		if level.distributesNegation() {
			switch {
			case condition.IsEmpty(n.Term):
				return condition.All()
			case condition.IsAll(n.Term):
				return condition.Empty()
			}
		}
	}
	return e
}
