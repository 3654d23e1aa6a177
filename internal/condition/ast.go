// Package condition defines the condition tree handed to the filter compiler.
// A condition tree is a boolean combination of comparisons over indexed,
// possibly multi-valued document fields.
//
// This package is a data layer only. It MUST NOT:
//   - Optimize or rewrite trees (that is the compiler's job)
//   - Know about filter primitives or posting lists
//
// Every node exclusively owns its children. Constructors never share
// sub-slices between trees, so the compiler can rewrite a tree in place
// without affecting other queries.
package condition

import (
	"strings"
)

// Expr is the interface for all condition nodes.
// The marker method prevents external types from implementing Expr.
type Expr interface {
	expr()
	// String returns a canonical human-readable representation.
	// Two structurally equal trees always render to the same string.
	String() string
}

// AndExpr represents logical AND of multiple expressions.
// Invariant after construction via NewAnd: len(Terms) >= 2.
type AndExpr struct {
	Terms []Expr
}

func (AndExpr) expr() {}

func (a *AndExpr) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// OrExpr represents logical OR of multiple expressions.
// Invariant after construction via NewOr: len(Terms) >= 2.
type OrExpr struct {
	Terms []Expr
}

func (OrExpr) expr() {}

func (o *OrExpr) String() string {
	parts := make([]string, len(o.Terms))
	for i, t := range o.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// NotExpr represents logical negation.
type NotExpr struct {
	Term Expr
}

func (NotExpr) expr() {}

func (n *NotExpr) String() string {
	return "NOT " + n.Term.String()
}

// EmptyExpr matches no document. It is produced when a conjunction is
// statically proven unsatisfiable.
type EmptyExpr struct{}

func (EmptyExpr) expr() {}

func (EmptyExpr) String() string { return "FALSE" }

// AllExpr matches every document.
type AllExpr struct{}

func (AllExpr) expr() {}

func (AllExpr) String() string { return "TRUE" }

// Empty returns a new node matching nothing.
func Empty() Expr { return &EmptyExpr{} }

// All returns a new node matching everything.
func All() Expr { return &AllExpr{} }

// IsEmpty reports whether e is the match-nothing constant.
func IsEmpty(e Expr) bool {
	_, ok := e.(*EmptyExpr)
	return ok
}

// IsAll reports whether e is the match-everything constant.
func IsAll(e Expr) bool {
	_, ok := e.(*AllExpr)
	return ok
}

// NewAnd combines expressions into an AndExpr, flattening nested AndExprs.
// A single expression is returned unchanged; no expressions yield nil.
func NewAnd(exprs ...Expr) Expr {
	var terms []Expr
	for _, e := range exprs {
		if a, ok := e.(*AndExpr); ok {
			terms = append(terms, a.Terms...)
		} else {
			terms = append(terms, e)
		}
	}
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	}
	return &AndExpr{Terms: terms}
}

// NewOr combines expressions into an OrExpr, flattening nested OrExprs.
// A single expression is returned unchanged; no expressions yield nil.
func NewOr(exprs ...Expr) Expr {
	var terms []Expr
	for _, e := range exprs {
		if o, ok := e.(*OrExpr); ok {
			terms = append(terms, o.Terms...)
		} else {
			terms = append(terms, e)
		}
	}
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	}
	return &OrExpr{Terms: terms}
}

// NewNot wraps e in a NotExpr.
func NewNot(e Expr) Expr {
	return &NotExpr{Term: e}
}

// Clone returns a deep copy of e.
func Clone(e Expr) Expr {
	switch n := e.(type) {
	case *AndExpr:
		return &AndExpr{Terms: cloneAll(n.Terms)}
	case *OrExpr:
		return &OrExpr{Terms: cloneAll(n.Terms)}
	case *NotExpr:
		return &NotExpr{Term: Clone(n.Term)}
	case *Predicate:
		return n.Clone()
	case *EmptyExpr:
		return &EmptyExpr{}
	case *AllExpr:
		return &AllExpr{}
	default:
		return e
	}
}

func cloneAll(exprs []Expr) []Expr {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = Clone(e)
	}
	return out
}

// Equal reports whether a and b are structurally identical, including the
// order of children.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case *AndExpr:
		y, ok := b.(*AndExpr)
		return ok && equalAll(x.Terms, y.Terms)
	case *OrExpr:
		y, ok := b.(*OrExpr)
		return ok && equalAll(x.Terms, y.Terms)
	case *NotExpr:
		y, ok := b.(*NotExpr)
		return ok && Equal(x.Term, y.Term)
	case *Predicate:
		y, ok := b.(*Predicate)
		return ok && x.Equal(y)
	case *EmptyExpr:
		return IsEmpty(b)
	case *AllExpr:
		return IsAll(b)
	default:
		return a == nil && b == nil
	}
}

func equalAll(a, b []Expr) bool {
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

// Count returns the number of nodes in e.
func Count(e Expr) int {
	switch n := e.(type) {
	case *AndExpr:
		return 1 + countAll(n.Terms)
	case *OrExpr:
		return 1 + countAll(n.Terms)
	case *NotExpr:
		return 1 + Count(n.Term)
	case nil:
		return 0
	default:
		return 1
	}
}

func countAll(exprs []Expr) int {
	total := 0
	for _, e := range exprs {
		total += Count(e)
	}
	return total
}
