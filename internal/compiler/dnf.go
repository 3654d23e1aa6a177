package compiler

import (
	"math"
	"slices"

	"sieve/internal/condition"
)

// DNF (Disjunctive Normal Form) conversion.
//
// DNF is an OR of ANDs: (A AND B) OR (C AND D) OR ...
// Each AND clause is called a "conjunction" or "branch". Flat conjunctions
// let the per-field merger see every condition on a field side by side.
//
// Conversion runs after negation distribution, so a NOT only ever wraps a
// leaf and is treated as a literal here.

// conjunction is one branch: literals joined by AND.
type conjunction []condition.Expr

// toDNF rewrites e into an OR of ANDs. A subtree whose expansion would
// exceed maxBranches (when positive) keeps its shape and only its children
// are converted.
func toDNF(e condition.Expr, maxBranches int) condition.Expr {
	if maxBranches > 0 && branchCount(e) > maxBranches {
		switch n := e.(type) {
		case *condition.AndExpr:
			return condition.NewAnd(toDNFAll(n.Terms, maxBranches)...)
		case *condition.OrExpr:
			return condition.NewOr(toDNFAll(n.Terms, maxBranches)...)
		default:
			return e
		}
	}
	return fromBranches(toDNFBranches(e))
}

func toDNFAll(terms []condition.Expr, maxBranches int) []condition.Expr {
	out := make([]condition.Expr, len(terms))
	for i, t := range terms {
		out[i] = toDNF(t, maxBranches)
	}
	return out
}

// branchCount returns how many branches toDNFBranches would produce,
// saturating at math.MaxInt.
func branchCount(e condition.Expr) int {
	switch n := e.(type) {
	case *condition.AndExpr:
		total := 1
		for _, t := range n.Terms {
			c := branchCount(t)
			if c != 0 && total > math.MaxInt/c {
				return math.MaxInt
			}
			total *= c
		}
		return total
	case *condition.OrExpr:
		total := 0
		for _, t := range n.Terms {
			c := branchCount(t)
			if total > math.MaxInt-c {
				return math.MaxInt
			}
			total += c
		}
		return total
	default:
		return 1
	}
}

// toDNFBranches converts an expression to a list of conjunctions.
// Each conjunction represents one OR branch.
func toDNFBranches(e condition.Expr) []conjunction {
	switch n := e.(type) {
	case *condition.AndExpr:
		// AND: cross-product of all term branches
		lists := make([][]conjunction, len(n.Terms))
		for i, t := range n.Terms {
			lists[i] = toDNFBranches(t)
		}
		return crossProduct(lists)

	case *condition.OrExpr:
		// OR: concatenate all term branches
		var result []conjunction
		for _, t := range n.Terms {
			result = append(result, toDNFBranches(t)...)
		}
		return result

	default:
		// Leaf, negated leaf or constant: one branch with one literal
		return []conjunction{{e}}
	}
}

// crossProduct computes the cross-product of conjunction lists.
// Each element in the result is the concatenation of one conjunction from
// each input list.
func crossProduct(lists [][]conjunction) []conjunction {
	if len(lists) == 0 {
		return []conjunction{{}}
	}

	result := lists[0]
	for i := 1; i < len(lists); i++ {
		result = combineLists(result, lists[i])
	}
	return result
}

// combineLists combines two lists of conjunctions by concatenating each pair.
func combineLists(a, b []conjunction) []conjunction {
	result := make([]conjunction, 0, len(a)*len(b))
	for _, ca := range a {
		for _, cb := range b {
			result = append(result, slices.Concat(ca, cb))
		}
	}
	return result
}

// fromBranches rebuilds a tree from branches. Literals shared by several
// branches are cloned so no node ends up with two parents.
func fromBranches(branches []conjunction) condition.Expr {
	seen := make(map[condition.Expr]bool)
	terms := make([]condition.Expr, len(branches))
	for i, b := range branches {
		lits := make([]condition.Expr, len(b))
		for j, lit := range b {
			if seen[lit] {
				lit = condition.Clone(lit)
			}
			seen[lit] = true
			lits[j] = lit
		}
		terms[i] = condition.NewAnd(lits...)
	}
	return condition.NewOr(terms...)
}
