package compiler

import (
	"strings"

	"sieve/internal/condition"
)

// mergeFuzzy folds a STARTS_WITH into a LEVENSHTEIN_MATCH on the same field
// when both are direct conjuncts of one AND. A field qualifies when the
// conjunction holds exactly one distinct LEVENSHTEIN_MATCH and exactly one
// distinct single-prefix STARTS_WITH on it. With p1 the fuzzy prefix and p2 the
// STARTS_WITH prefix:
//
//   - p2 is a prefix of p1: the STARTS_WITH is implied and dropped.
//   - p1 is a strict prefix of p2: the fuzzy prefix grows to p2. The bytes
//     it absorbs (ext = p2[len(p1):]) are taken off the front of the term
//     when the term starts with them. When ext runs past the end of the
//     term, the overhang costs len(overhang) edits: the term becomes empty
//     and the distance shrinks, or the conjunction is Empty when the
//     overhang exceeds the distance. Any other ext is left unmerged.
//   - neither is a prefix of the other: the conjunction is Empty.
//
// Both predicates are assumed to be satisfied by the same field value.
//
// Every combinator is folded on the way up, so a branch that collapses to
// Empty here lets the conjunction above it see the siblings it exposes.
func mergeFuzzy(e condition.Expr, level Level) condition.Expr {
	switch n := e.(type) {
	case *condition.AndExpr:
		for i, t := range n.Terms {
			n.Terms[i] = mergeFuzzy(t, level)
		}
		folded := foldConstants(n, level)
		if and, ok := folded.(*condition.AndExpr); ok {
			return mergeFuzzyConjunction(and)
		}
		return folded
	case *condition.OrExpr:
		for i, t := range n.Terms {
			n.Terms[i] = mergeFuzzy(t, level)
		}
		return foldConstants(n, level)
	case *condition.NotExpr:
		n.Term = mergeFuzzy(n.Term, level)
		return foldConstants(n, level)
	}
	return e
}

// fuzzyPair collects the fuzzy and prefix conjuncts on one field. Equal
// duplicates are grouped so that they count once.
type fuzzyPair struct {
	fuzzy      [][]*condition.Predicate
	startsWith [][]*condition.Predicate
}

func addDistinct(groups [][]*condition.Predicate, p *condition.Predicate) [][]*condition.Predicate {
	for i, g := range groups {
		if g[0].Equal(p) {
			groups[i] = append(g, p)
			return groups
		}
	}
	return append(groups, []*condition.Predicate{p})
}

func mergeFuzzyConjunction(and *condition.AndExpr) condition.Expr {
	pairs := make(map[string]*fuzzyPair)
	var order []string
	for _, t := range and.Terms {
		p, ok := t.(*condition.Predicate)
		if !ok || (p.Op != condition.OpLevenshtein && p.Op != condition.OpStartsWith) {
			continue
		}
		fp := pairs[p.Field]
		if fp == nil {
			fp = &fuzzyPair{}
			pairs[p.Field] = fp
			order = append(order, p.Field)
		}
		if p.Op == condition.OpLevenshtein {
			fp.fuzzy = addDistinct(fp.fuzzy, p)
		} else {
			fp.startsWith = addDistinct(fp.startsWith, p)
		}
	}

	drop := make(map[*condition.Predicate]bool)
	for _, field := range order {
		fp := pairs[field]
		if len(fp.fuzzy) != 1 || len(fp.startsWith) != 1 || len(fp.startsWith[0][0].Values) != 1 {
			continue
		}
		prefix := fp.startsWith[0][0].Values[0]
		fuzzies := fp.fuzzy[0]
		switch mergeFuzzyPrefix(fuzzies[0], prefix) {
		case fuzzyMerged:
			// Later copies are redundant once the first absorbed the prefix.
			for _, p := range fuzzies[1:] {
				drop[p] = true
			}
			for _, p := range fp.startsWith[0] {
				drop[p] = true
			}
		case fuzzyContradiction:
			return condition.Empty()
		}
	}
	if len(drop) == 0 {
		return and
	}

	kept := and.Terms[:0]
	for _, t := range and.Terms {
		if p, ok := t.(*condition.Predicate); ok && drop[p] {
			continue
		}
		kept = append(kept, t)
	}
	return condition.NewAnd(kept...)
}

type fuzzyOutcome int

const (
	fuzzyUnchanged fuzzyOutcome = iota
	fuzzyMerged
	fuzzyContradiction
)

// mergeFuzzyPrefix absorbs STARTS_WITH(prefix) into the fuzzy predicate f,
// updating f in place on success.
func mergeFuzzyPrefix(f *condition.Predicate, prefix string) fuzzyOutcome {
	opts := condition.FuzzyOptions{WithTranspositions: true, MaxTerms: condition.DefaultLevenshteinTermsLimit}
	if f.Fuzzy != nil {
		opts = *f.Fuzzy
	}
	p1, term := opts.Prefix, f.Value()

	switch {
	case strings.HasPrefix(p1, prefix):
		return fuzzyMerged

	case strings.HasPrefix(prefix, p1):
		ext := prefix[len(p1):]
		switch {
		case strings.HasPrefix(term, ext):
			term = term[len(ext):]
		case strings.HasPrefix(ext, term):
			overhang := len(ext) - len(term)
			if overhang > opts.MaxDistance {
				return fuzzyContradiction
			}
			term = ""
			opts.MaxDistance -= overhang
		default:
			return fuzzyUnchanged
		}
		opts.Prefix = prefix
		f.Values = []string{term}
		f.Fuzzy = &opts
		return fuzzyMerged

	default:
		return fuzzyContradiction
	}
}
