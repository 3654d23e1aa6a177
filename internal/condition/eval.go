package condition

import (
	"strings"
)

// Document maps field paths to the values a document holds for them.
// A field may hold any number of values; a missing field holds none.
type Document map[string][]string

// Eval reports whether doc satisfies e. It applies the tree literally with
// no rewriting, which makes it the reference the compiler is checked against.
//
// A comparison, IN, STARTS_WITH prefix or LEVENSHTEIN_MATCH holds when any
// single value of the field satisfies it. NE(v) holds when no value equals v,
// i.e. it is NOT(EQ(v)).
func Eval(e Expr, doc Document) bool {
	switch n := e.(type) {
	case *AndExpr:
		for _, t := range n.Terms {
			if !Eval(t, doc) {
				return false
			}
		}
		return true
	case *OrExpr:
		for _, t := range n.Terms {
			if Eval(t, doc) {
				return true
			}
		}
		return false
	case *NotExpr:
		return !Eval(n.Term, doc)
	case *Predicate:
		return n.Matches(doc[n.Field])
	case *AllExpr:
		return true
	default:
		return false
	}
}

// Matches reports whether a field holding values satisfies p.
func (p *Predicate) Matches(values []string) bool {
	switch p.Op {
	case OpNe:
		return !anyValue(values, func(s string) bool { return s == p.Value() })
	case OpIn:
		return anyValue(values, func(s string) bool {
			for _, v := range p.Values {
				if s == v {
					return true
				}
			}
			return false
		})
	case OpStartsWith:
		matched := 0
		for _, prefix := range p.Values {
			if anyValue(values, func(s string) bool { return strings.HasPrefix(s, prefix) }) {
				matched++
			}
		}
		return matched >= effectiveMinMatch(p)
	case OpLevenshtein:
		f := p.fuzzy()
		return anyValue(values, func(s string) bool {
			return FuzzyMatch(s, f.Prefix, p.Value(), f.MaxDistance, f.WithTranspositions)
		})
	default:
		return anyValue(values, func(s string) bool { return CompareValue(s, p.Op, p.Value()) })
	}
}

func anyValue(values []string, fn func(string) bool) bool {
	for _, s := range values {
		if fn(s) {
			return true
		}
	}
	return false
}

// CompareValue applies a comparison operator to a single value, ordering
// values byte-wise.
func CompareValue(s string, op Op, v string) bool {
	c := strings.Compare(s, v)
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	default:
		return false
	}
}

// FuzzyMatch reports whether s starts with prefix and the rest of s is
// within maxDistance edits of term.
func FuzzyMatch(s, prefix, term string, maxDistance int, transpositions bool) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	return EditDistance(s[len(prefix):], term, transpositions) <= maxDistance
}

// EditDistance returns the byte-wise Levenshtein distance between a and b.
// With transpositions, swapping two adjacent bytes counts as one edit
// (optimal string alignment distance).
func EditDistance(a, b string, transpositions bool) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Three rolling rows: prev2 is only needed for transpositions.
	prev2 := make([]int, len(b)+1)
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d := min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if transpositions && i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				d = min(d, prev2[j-2]+1)
			}
			cur[j] = d
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(b)]
}
