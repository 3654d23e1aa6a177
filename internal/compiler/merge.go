package compiler

import (
	"slices"
	"strings"

	"sieve/internal/condition"
)

// mergeFields tightens every conjunction in e by merging conditions on the
// same field, and drops duplicate disjuncts. A merge is applied only when
// the result matches exactly the documents the original conditions
// matched together:
//
//	EQ(v) AND range R      -> EQ(v) when v satisfies R, else both kept
//	range AND range        -> the tighter bound per direction
//	IN(list) AND EQ(v)     -> EQ(v) when v is in list, else both kept
//	EQ(v) AND NE(v)        -> Empty
//	x AND x                -> x
//
// Constants are folded on the way so that duplicates hidden behind a TRUE
// or FALSE are found in the same pass.
// IN lists are never intersected with each other or with ranges.
// singleValued enables the merges listed on Options.SingleValued.
func mergeFields(e condition.Expr, singleValued bool) condition.Expr {
	switch n := e.(type) {
	case *condition.AndExpr:
		for i, t := range n.Terms {
			n.Terms[i] = mergeFields(t, singleValued)
		}
		return mergeConjunction(n.Terms, singleValued)
	case *condition.OrExpr:
		kept := make([]condition.Expr, 0, len(n.Terms))
		for _, t := range n.Terms {
			t = mergeFields(t, singleValued)
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
		return condition.NewOr(dedupe(kept)...)
	case *condition.NotExpr:
		n.Term = mergeFields(n.Term, singleValued)
	}
	return e
}

// dedupe drops duplicates, keeping first occurrences. Combinators compare
// equal regardless of child order, since ordering only runs later.
func dedupe(terms []condition.Expr) []condition.Expr {
	out := make([]condition.Expr, 0, len(terms))
	for _, t := range terms {
		if !slices.ContainsFunc(out, func(o condition.Expr) bool { return sameTerm(o, t) }) {
			out = append(out, t)
		}
	}
	return out
}

// sameTerm is condition.Equal with AND and OR children compared as sets.
// Children of merged combinators are already deduplicated, so equal
// lengths and mutual containment mean equal sets.
func sameTerm(a, b condition.Expr) bool {
	switch x := a.(type) {
	case *condition.AndExpr:
		y, ok := b.(*condition.AndExpr)
		return ok && sameSet(x.Terms, y.Terms)
	case *condition.OrExpr:
		y, ok := b.(*condition.OrExpr)
		return ok && sameSet(x.Terms, y.Terms)
	case *condition.NotExpr:
		y, ok := b.(*condition.NotExpr)
		return ok && sameTerm(x.Term, y.Term)
	default:
		return condition.Equal(a, b)
	}
}

func sameSet(a, b []condition.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		if !slices.ContainsFunc(b, func(y condition.Expr) bool { return sameTerm(x, y) }) {
			return false
		}
	}
	return true
}

// fieldFacts collects the mergeable conjuncts on one field.
type fieldFacts struct {
	eqs    []*condition.Predicate
	nes    []*condition.Predicate
	ins    []*condition.Predicate
	lowers []*condition.Predicate // > and >=
	uppers []*condition.Predicate // < and <=
}

func mergeConjunction(terms []condition.Expr, singleValued bool) condition.Expr {
	// Children may have collapsed into conjunctions themselves.
	flat, ok := condition.NewAnd(terms...).(*condition.AndExpr)
	if !ok {
		return condition.NewAnd(terms...)
	}
	terms = make([]condition.Expr, 0, len(flat.Terms))
	for _, t := range flat.Terms {
		switch {
		case condition.IsEmpty(t):
			return t
		case condition.IsAll(t):
			continue
		}
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return condition.All()
	}
	terms = dedupe(terms)

	facts := make(map[string]*fieldFacts)
	var fields []string
	for _, t := range terms {
		p, ok := t.(*condition.Predicate)
		if !ok {
			continue
		}
		f := facts[p.Field]
		if f == nil {
			f = &fieldFacts{}
			facts[p.Field] = f
			fields = append(fields, p.Field)
		}
		switch {
		case p.Op == condition.OpEq:
			f.eqs = append(f.eqs, p)
		case p.Op == condition.OpNe:
			f.nes = append(f.nes, p)
		case p.Op == condition.OpIn:
			f.ins = append(f.ins, p)
		case p.Op.IsLowerBound():
			f.lowers = append(f.lowers, p)
		case p.Op.IsUpperBound():
			f.uppers = append(f.uppers, p)
		}
	}

	drop := make(map[*condition.Predicate]bool)
	for _, field := range fields {
		if !facts[field].merge(drop, singleValued) {
			return condition.Empty()
		}
	}
	if len(drop) == 0 {
		return condition.NewAnd(terms...)
	}

	kept := make([]condition.Expr, 0, len(terms)-len(drop))
	for _, t := range terms {
		if p, ok := t.(*condition.Predicate); ok && drop[p] {
			continue
		}
		kept = append(kept, t)
	}
	return condition.NewAnd(kept...)
}

// merge marks redundant conjuncts in drop. It returns false when the facts
// contradict each other.
func (f *fieldFacts) merge(drop map[*condition.Predicate]bool, singleValued bool) bool {
	for _, eq := range f.eqs {
		for _, ne := range f.nes {
			if eq.Value() == ne.Value() {
				return false
			}
		}
	}

	lower := tightest(f.lowers, drop, tighterLower)
	upper := tightest(f.uppers, drop, tighterUpper)

	if singleValued && !f.mergeSingleValued(lower, upper, drop) {
		return false
	}

	// A bound or list satisfied by some EQ value is implied by that EQ.
	for _, bound := range []*condition.Predicate{lower, upper} {
		if bound != nil && f.anyEq(func(v string) bool { return condition.CompareValue(v, bound.Op, bound.Value()) }) {
			drop[bound] = true
		}
	}
	for _, in := range f.ins {
		if f.anyEq(func(v string) bool { return slices.Contains(in.Values, v) }) {
			drop[in] = true
		}
	}
	return true
}

// mergeSingleValued applies the checks that hold when the field has
// exactly one value: there is one candidate value at most, so disjoint
// facts contradict and NE of any other value is implied by EQ.
func (f *fieldFacts) mergeSingleValued(lower, upper *condition.Predicate, drop map[*condition.Predicate]bool) bool {
	if lower != nil && upper != nil && emptyInterval(lower, upper) {
		return false
	}
	if len(f.eqs) == 0 {
		return true
	}

	v := f.eqs[0].Value()
	for _, eq := range f.eqs[1:] {
		if eq.Value() != v {
			return false
		}
	}
	for _, bound := range []*condition.Predicate{lower, upper} {
		if bound != nil && !condition.CompareValue(v, bound.Op, bound.Value()) {
			return false
		}
	}
	for _, in := range f.ins {
		if !slices.Contains(in.Values, v) {
			return false
		}
	}
	for _, ne := range f.nes {
		drop[ne] = true
	}
	return true
}

func (f *fieldFacts) anyEq(fn func(string) bool) bool {
	for _, eq := range f.eqs {
		if fn(eq.Value()) {
			return true
		}
	}
	return false
}

// tightest returns the strongest bound in bounds and marks the others as
// dropped.
func tightest(bounds []*condition.Predicate, drop map[*condition.Predicate]bool, tighter func(a, b *condition.Predicate) bool) *condition.Predicate {
	var best *condition.Predicate
	for _, b := range bounds {
		switch {
		case best == nil:
			best = b
		case tighter(b, best):
			drop[best] = true
			best = b
		default:
			drop[b] = true
		}
	}
	return best
}

// tighterLower reports whether lower bound a excludes more than b. At the
// same value the exclusive bound wins.
func tighterLower(a, b *condition.Predicate) bool {
	if c := strings.Compare(a.Value(), b.Value()); c != 0 {
		return c > 0
	}
	return !a.Op.Inclusive() && b.Op.Inclusive()
}

// tighterUpper reports whether upper bound a excludes more than b. At the
// same value the exclusive bound wins.
func tighterUpper(a, b *condition.Predicate) bool {
	if c := strings.Compare(a.Value(), b.Value()); c != 0 {
		return c < 0
	}
	return !a.Op.Inclusive() && b.Op.Inclusive()
}

// emptyInterval reports whether no single value lies between lower and upper.
func emptyInterval(lower, upper *condition.Predicate) bool {
	c := strings.Compare(lower.Value(), upper.Value())
	if c != 0 {
		return c > 0
	}
	return !lower.Op.Inclusive() || !upper.Op.Inclusive()
}
