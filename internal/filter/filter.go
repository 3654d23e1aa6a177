// Package filter defines the filter tree produced by the compiler and
// executed by an index engine against posting lists.
//
// Filter nodes are plain values. The compiler builds a fresh tree for every
// query and never links a node under two parents.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is the interface for all filter primitives.
type Node interface {
	node()
	String() string
}

// Term matches documents whose field holds Value.
type Term struct {
	Field string
	Value string
}

// Not matches documents that Child does not match.
type Not struct {
	Child Node
}

// Range matches documents whose field holds a value inside the interval.
// A side without a bound is open (HasMin or HasMax false).
type Range struct {
	Field        string
	Min          string
	HasMin       bool
	MinInclusive bool
	Max          string
	HasMax       bool
	MaxInclusive bool
}

// And matches documents matched by every child.
type And struct {
	Children []Node
}

// Or matches documents matched by at least MinMatch children.
type Or struct {
	Children []Node
	MinMatch int
}

// Prefix matches documents whose field holds a value starting with Prefix.
type Prefix struct {
	Field  string
	Prefix string
}

// FuzzyPrefix matches documents whose field holds a value that starts with
// Prefix and whose remainder is within MaxDistance edits of Term.
// MaxTerms bounds how many candidate terms an engine may expand to.
type FuzzyPrefix struct {
	Field              string
	Prefix             string
	Term               string
	MaxDistance        int
	MaxTerms           int
	WithTranspositions bool
}

// Empty matches nothing.
type Empty struct{}

// All matches everything.
type All struct{}

func (Term) node()        {}
func (Not) node()         {}
func (Range) node()       {}
func (And) node()         {}
func (Or) node()          {}
func (Prefix) node()      {}
func (FuzzyPrefix) node() {}
func (Empty) node()       {}
func (All) node()         {}

func (t *Term) String() string {
	return fmt.Sprintf("Term(%s, %s)", t.Field, strconv.Quote(t.Value))
}

func (n *Not) String() string {
	return "Not(" + n.Child.String() + ")"
}

func (r *Range) String() string {
	var sb strings.Builder
	sb.WriteString("Range(")
	sb.WriteString(r.Field)
	sb.WriteString(", ")
	if r.HasMin {
		if r.MinInclusive {
			sb.WriteByte('[')
		} else {
			sb.WriteByte('(')
		}
		sb.WriteString(strconv.Quote(r.Min))
	} else {
		sb.WriteString("(-inf")
	}
	sb.WriteString(", ")
	if r.HasMax {
		sb.WriteString(strconv.Quote(r.Max))
		if r.MaxInclusive {
			sb.WriteByte(']')
		} else {
			sb.WriteByte(')')
		}
	} else {
		sb.WriteString("+inf)")
	}
	sb.WriteByte(')')
	return sb.String()
}

func (a *And) String() string {
	return "And(" + joinNodes(a.Children) + ")"
}

func (o *Or) String() string {
	if o.MinMatch > 1 {
		return fmt.Sprintf("Or[%d](%s)", o.MinMatch, joinNodes(o.Children))
	}
	return "Or(" + joinNodes(o.Children) + ")"
}

func (p *Prefix) String() string {
	return fmt.Sprintf("Prefix(%s, %s)", p.Field, strconv.Quote(p.Prefix))
}

func (f *FuzzyPrefix) String() string {
	return fmt.Sprintf("FuzzyPrefix(%s, prefix=%s, term=%s, distance=%d, terms=%d, transpositions=%t)",
		f.Field, strconv.Quote(f.Prefix), strconv.Quote(f.Term), f.MaxDistance, f.MaxTerms, f.WithTranspositions)
}

func (Empty) String() string { return "Empty" }

func (All) String() string { return "All" }

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

// Equal reports whether a and b are structurally identical, including
// child order.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Term:
		y, ok := b.(*Term)
		return ok && *x == *y
	case *Not:
		y, ok := b.(*Not)
		return ok && Equal(x.Child, y.Child)
	case *Range:
		y, ok := b.(*Range)
		return ok && x.normalized() == y.normalized()
	case *And:
		y, ok := b.(*And)
		return ok && equalAll(x.Children, y.Children)
	case *Or:
		y, ok := b.(*Or)
		return ok && x.MinMatch == y.MinMatch && equalAll(x.Children, y.Children)
	case *Prefix:
		y, ok := b.(*Prefix)
		return ok && *x == *y
	case *FuzzyPrefix:
		y, ok := b.(*FuzzyPrefix)
		return ok && *x == *y
	case *Empty:
		_, ok := b.(*Empty)
		return ok
	case *All:
		_, ok := b.(*All)
		return ok
	default:
		return a == nil && b == nil
	}
}

// normalized clears bound fields that have no effect on an open side.
func (r Range) normalized() Range {
	if !r.HasMin {
		r.Min, r.MinInclusive = "", false
	}
	if !r.HasMax {
		r.Max, r.MaxInclusive = "", false
	}
	return r
}

func equalAll(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Count returns the number of nodes in n.
func Count(n Node) int {
	switch x := n.(type) {
	case *Not:
		return 1 + Count(x.Child)
	case *And:
		return 1 + countAll(x.Children)
	case *Or:
		return 1 + countAll(x.Children)
	case nil:
		return 0
	default:
		return 1
	}
}

func countAll(nodes []Node) int {
	total := 0
	for _, n := range nodes {
		total += Count(n)
	}
	return total
}
