package condition

import (
	"errors"
	"fmt"
)

// ErrInvalidCondition is returned by Validate for trees that break the
// structural rules the compiler relies on.
var ErrInvalidCondition = errors.New("invalid condition")

// Validate checks that e is well formed:
//   - And/Or nodes have at least one child, Not has a child
//   - comparisons carry exactly one value, IN at least one
//   - STARTS_WITH has at least one prefix and 0 <= MinMatch <= len(prefixes)
//   - LEVENSHTEIN_MATCH distance is within bounds and MaxTerms is not negative
//
// The returned error wraps ErrInvalidCondition.
func Validate(e Expr) error {
	switch n := e.(type) {
	case nil:
		return fmt.Errorf("%w: nil node", ErrInvalidCondition)
	case *AndExpr:
		return validateChildren("AND", n.Terms)
	case *OrExpr:
		return validateChildren("OR", n.Terms)
	case *NotExpr:
		if n.Term == nil {
			return fmt.Errorf("%w: NOT without operand", ErrInvalidCondition)
		}
		return Validate(n.Term)
	case *Predicate:
		return validatePredicate(n)
	case *EmptyExpr, *AllExpr:
		return nil
	default:
		return fmt.Errorf("%w: unknown node type %T", ErrInvalidCondition, e)
	}
}

func validateChildren(kind string, terms []Expr) error {
	if len(terms) == 0 {
		return fmt.Errorf("%w: %s without operands", ErrInvalidCondition, kind)
	}
	for _, t := range terms {
		if err := Validate(t); err != nil {
			return err
		}
	}
	return nil
}

func validatePredicate(p *Predicate) error {
	if p.Field == "" {
		return fmt.Errorf("%w: %s with empty field", ErrInvalidCondition, p.Op)
	}
	switch {
	case p.Op.IsComparison():
		if len(p.Values) != 1 {
			return fmt.Errorf("%w: %s %s needs exactly one value, got %d", ErrInvalidCondition, p.Field, p.Op, len(p.Values))
		}
	case p.Op == OpIn:
		if len(p.Values) == 0 {
			return fmt.Errorf("%w: %s IN with empty list", ErrInvalidCondition, p.Field)
		}
	case p.Op == OpStartsWith:
		if len(p.Values) == 0 {
			return fmt.Errorf("%w: STARTS_WITH(%s) without prefixes", ErrInvalidCondition, p.Field)
		}
		if p.MinMatch < 0 || p.MinMatch > len(p.Values) {
			return fmt.Errorf("%w: STARTS_WITH(%s) min match %d out of range [0, %d]",
				ErrInvalidCondition, p.Field, p.MinMatch, len(p.Values))
		}
	case p.Op == OpLevenshtein:
		return validateLevenshtein(p)
	default:
		return fmt.Errorf("%w: unknown operator %s", ErrInvalidCondition, p.Op)
	}
	return nil
}

func validateLevenshtein(p *Predicate) error {
	if len(p.Values) != 1 {
		return fmt.Errorf("%w: LEVENSHTEIN_MATCH(%s) needs exactly one term, got %d", ErrInvalidCondition, p.Field, len(p.Values))
	}
	f := p.fuzzy()
	limit := MaxLevenshteinDistance
	if f.WithTranspositions {
		limit = MaxDamerauLevenshteinDistance
	}
	if f.MaxDistance < 0 || f.MaxDistance > limit {
		return fmt.Errorf("%w: LEVENSHTEIN_MATCH(%s) max distance must be a number in range [0, %d], got %d",
			ErrInvalidCondition, p.Field, limit, f.MaxDistance)
	}
	if f.MaxTerms < 0 {
		return fmt.Errorf("%w: LEVENSHTEIN_MATCH(%s) max terms must not be negative, got %d",
			ErrInvalidCondition, p.Field, f.MaxTerms)
	}
	return nil
}
