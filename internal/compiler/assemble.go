package compiler

import (
	"fmt"

	"sieve/internal/condition"
	"sieve/internal/filter"
)

// assemble translates an optimized condition tree into filter primitives,
// keeping sibling order. With joinBounds, a lower and an upper range on
// the same field inside one AND share a single bounded Range.
func assemble(e condition.Expr, joinBounds bool) filter.Node {
	switch n := e.(type) {
	case *condition.AndExpr:
		children := make([]filter.Node, 0, len(n.Terms))
		for _, t := range n.Terms {
			children = append(children, assemble(t, joinBounds))
		}
		if joinBounds {
			children = joinRanges(children)
		}
		if len(children) == 1 {
			return children[0]
		}
		return &filter.And{Children: children}
	case *condition.OrExpr:
		children := make([]filter.Node, len(n.Terms))
		for i, t := range n.Terms {
			children[i] = assemble(t, joinBounds)
		}
		return &filter.Or{Children: children, MinMatch: 1}
	case *condition.NotExpr:
		return &filter.Not{Child: assemble(n.Term, joinBounds)}
	case *condition.Predicate:
		return assemblePredicate(n)
	case *condition.EmptyExpr:
		return &filter.Empty{}
	case *condition.AllExpr:
		return &filter.All{}
	default:
		// Validate rejects every other node type before compiling.
		panic(fmt.Sprintf("compiler: unexpected condition node %T", e))
	}
}

func assemblePredicate(p *condition.Predicate) filter.Node {
	switch p.Op {
	case condition.OpEq:
		return &filter.Term{Field: p.Field, Value: p.Value()}
	case condition.OpNe:
		return &filter.Not{Child: &filter.Term{Field: p.Field, Value: p.Value()}}
	case condition.OpLt, condition.OpLe:
		return &filter.Range{Field: p.Field, Max: p.Value(), HasMax: true, MaxInclusive: p.Op.Inclusive()}
	case condition.OpGt, condition.OpGe:
		return &filter.Range{Field: p.Field, Min: p.Value(), HasMin: true, MinInclusive: p.Op.Inclusive()}
	case condition.OpIn:
		terms := make([]filter.Node, len(p.Values))
		for i, v := range p.Values {
			terms[i] = &filter.Term{Field: p.Field, Value: v}
		}
		return &filter.Or{Children: terms, MinMatch: 1}
	case condition.OpStartsWith:
		if len(p.Values) == 1 {
			return &filter.Prefix{Field: p.Field, Prefix: p.Values[0]}
		}
		prefixes := make([]filter.Node, len(p.Values))
		for i, v := range p.Values {
			prefixes[i] = &filter.Prefix{Field: p.Field, Prefix: v}
		}
		return &filter.Or{Children: prefixes, MinMatch: max(p.MinMatch, 1)}
	case condition.OpLevenshtein:
		opts := condition.FuzzyOptions{WithTranspositions: true, MaxTerms: condition.DefaultLevenshteinTermsLimit}
		if p.Fuzzy != nil {
			opts = *p.Fuzzy
		}
		return &filter.FuzzyPrefix{
			Field:              p.Field,
			Prefix:             opts.Prefix,
			Term:               p.Value(),
			MaxDistance:        opts.MaxDistance,
			MaxTerms:           opts.MaxTerms,
			WithTranspositions: opts.WithTranspositions,
		}
	default:
		panic(fmt.Sprintf("compiler: unexpected operator %s", p.Op))
	}
}

// joinRanges folds each half-open upper Range into the first half-open
// lower Range on the same field, at the lower range's position.
func joinRanges(children []filter.Node) []filter.Node {
	lowers := make(map[string]*filter.Range)
	for _, c := range children {
		if r, ok := c.(*filter.Range); ok && r.HasMin && !r.HasMax {
			if _, seen := lowers[r.Field]; !seen {
				lowers[r.Field] = r
			}
		}
	}
	if len(lowers) == 0 {
		return children
	}

	out := children[:0]
	for _, c := range children {
		if r, ok := c.(*filter.Range); ok && r.HasMax && !r.HasMin {
			if lo := lowers[r.Field]; lo != nil && !lo.HasMax {
				lo.Max, lo.HasMax, lo.MaxInclusive = r.Max, true, r.MaxInclusive
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
