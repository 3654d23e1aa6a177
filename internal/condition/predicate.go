package condition

import (
	"fmt"
	"slices"
	"strings"
)

// Op identifies the comparison performed by a leaf predicate.
type Op int

const (
	OpEq Op = iota // field == value
	OpNe           // field != value
	OpLt           // field < value
	OpLe           // field <= value
	OpGt           // field > value
	OpGe           // field >= value
	OpIn           // field IN [values]

	// OpStartsWith matches values beginning with one of the prefixes in Values.
	OpStartsWith
	// OpLevenshtein matches values within an edit distance of Values[0],
	// after an exact prefix (see FuzzyOptions).
	OpLevenshtein
)

// Argument limits for LEVENSHTEIN_MATCH.
const (
	MaxLevenshteinDistance        = 4
	MaxDamerauLevenshteinDistance = 3
	DefaultLevenshteinTermsLimit  = 64
)

func (op Op) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpIn:
		return "IN"
	case OpStartsWith:
		return "STARTS_WITH"
	case OpLevenshtein:
		return "LEVENSHTEIN_MATCH"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// IsComparison reports whether op is one of ==, !=, <, <=, >, >=.
func (op Op) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsRange reports whether op is one of <, <=, >, >=.
func (op Op) IsRange() bool {
	return op >= OpLt && op <= OpGe
}

// IsLowerBound reports whether op bounds values from below (>, >=).
func (op Op) IsLowerBound() bool {
	return op == OpGt || op == OpGe
}

// IsUpperBound reports whether op bounds values from above (<, <=).
func (op Op) IsUpperBound() bool {
	return op == OpLt || op == OpLe
}

// Inclusive reports whether a range op includes its bound.
func (op Op) Inclusive() bool {
	return op == OpLe || op == OpGe
}

// Invert returns the operator matching the complement of op for a single
// value. ok is false for operators without a single-operator complement
// (IN and the function predicates).
func (op Op) Invert() (inv Op, ok bool) {
	switch op {
	case OpEq:
		return OpNe, true
	case OpNe:
		return OpEq, true
	case OpLt:
		return OpGe, true
	case OpLe:
		return OpGt, true
	case OpGt:
		return OpLe, true
	case OpGe:
		return OpLt, true
	default:
		return op, false
	}
}

// FuzzyOptions holds the arguments of a LEVENSHTEIN_MATCH predicate.
// A value matches when it starts with Prefix and the remainder is within
// MaxDistance edits of the predicate's term.
type FuzzyOptions struct {
	MaxDistance        int
	WithTranspositions bool
	MaxTerms           int
	Prefix             string
}

// Predicate is a leaf condition.
//
// For comparisons Values holds exactly one value; for IN it holds one or
// more. For STARTS_WITH Values holds the prefixes and MinMatch the number
// that must match (only meaningful with more than one prefix). For
// LEVENSHTEIN_MATCH Values[0] is the term and Fuzzy carries the options.
type Predicate struct {
	Field    string
	Op       Op
	Values   []string
	MinMatch int
	Fuzzy    *FuzzyOptions
}

func (Predicate) expr() {}

// Value returns the first value, or "" if there is none.
func (p *Predicate) Value() string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[0]
}

func (p *Predicate) String() string {
	field := formatField(p.Field)
	switch p.Op {
	case OpIn:
		return fmt.Sprintf("%s IN %s", field, formatList(p.Values))
	case OpStartsWith:
		if len(p.Values) == 1 && p.MinMatch <= 1 {
			return fmt.Sprintf("STARTS_WITH(%s, %s)", field, Quote(p.Values[0]))
		}
		return fmt.Sprintf("STARTS_WITH(%s, %s, %d)", field, formatList(p.Values), p.MinMatch)
	case OpLevenshtein:
		f := p.fuzzy()
		return fmt.Sprintf("LEVENSHTEIN_MATCH(%s, %s, %d, %t, %d, %s)",
			field, Quote(p.Value()), f.MaxDistance, f.WithTranspositions, f.MaxTerms, Quote(f.Prefix))
	default:
		return fmt.Sprintf("%s %s %s", field, p.Op, Quote(p.Value()))
	}
}

func (p *Predicate) fuzzy() FuzzyOptions {
	if p.Fuzzy == nil {
		return FuzzyOptions{WithTranspositions: true, MaxTerms: DefaultLevenshteinTermsLimit}
	}
	return *p.Fuzzy
}

// Clone returns a deep copy of p.
func (p *Predicate) Clone() *Predicate {
	c := &Predicate{
		Field:    p.Field,
		Op:       p.Op,
		Values:   slices.Clone(p.Values),
		MinMatch: p.MinMatch,
	}
	if p.Fuzzy != nil {
		f := *p.Fuzzy
		c.Fuzzy = &f
	}
	return c
}

// Equal reports whether p and o describe the same condition.
func (p *Predicate) Equal(o *Predicate) bool {
	if p.Field != o.Field || p.Op != o.Op || !slices.Equal(p.Values, o.Values) {
		return false
	}
	switch p.Op {
	case OpStartsWith:
		return effectiveMinMatch(p) == effectiveMinMatch(o)
	case OpLevenshtein:
		return p.fuzzy() == o.fuzzy()
	}
	return true
}

func effectiveMinMatch(p *Predicate) int {
	return max(p.MinMatch, 1)
}

// Compare builds a comparison predicate.
func Compare(field string, op Op, value string) *Predicate {
	return &Predicate{Field: field, Op: op, Values: []string{value}}
}

// Eq builds field == value.
func Eq(field, value string) *Predicate { return Compare(field, OpEq, value) }

// Ne builds field != value.
func Ne(field, value string) *Predicate { return Compare(field, OpNe, value) }

// Lt builds field < value.
func Lt(field, value string) *Predicate { return Compare(field, OpLt, value) }

// Le builds field <= value.
func Le(field, value string) *Predicate { return Compare(field, OpLe, value) }

// Gt builds field > value.
func Gt(field, value string) *Predicate { return Compare(field, OpGt, value) }

// Ge builds field >= value.
func Ge(field, value string) *Predicate { return Compare(field, OpGe, value) }

// In builds field IN [values...]. The values are copied.
func In(field string, values ...string) *Predicate {
	return &Predicate{Field: field, Op: OpIn, Values: slices.Clone(values)}
}

// StartsWith builds STARTS_WITH(field, prefix).
func StartsWith(field, prefix string) *Predicate {
	return &Predicate{Field: field, Op: OpStartsWith, Values: []string{prefix}}
}

// StartsWithAny builds STARTS_WITH(field, [prefixes...], minMatch).
func StartsWithAny(field string, minMatch int, prefixes ...string) *Predicate {
	return &Predicate{Field: field, Op: OpStartsWith, Values: slices.Clone(prefixes), MinMatch: minMatch}
}

// Levenshtein builds LEVENSHTEIN_MATCH(field, term, ...opts).
func Levenshtein(field, term string, opts FuzzyOptions) *Predicate {
	return &Predicate{Field: field, Op: OpLevenshtein, Values: []string{term}, Fuzzy: &opts}
}

// Quote renders s as a single-quoted literal understood by querylang.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteByte(ch)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

func formatList(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = Quote(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatField renders a field path, backquoting it when it is not a plain
// dotted identifier.
func formatField(field string) string {
	if IsPlainField(field) {
		return field
	}
	return "`" + strings.ReplaceAll(field, "`", "``") + "`"
}

// IsPlainField reports whether field can be written without backquotes:
// dot-separated identifiers that are not keywords.
func IsPlainField(field string) bool {
	if field == "" {
		return false
	}
	for _, part := range strings.Split(field, ".") {
		if part == "" || !isIdentStart(part[0]) {
			return false
		}
		for i := 1; i < len(part); i++ {
			if !isIdentChar(part[i]) {
				return false
			}
		}
	}
	return !isKeyword(field)
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

func isKeyword(word string) bool {
	switch strings.ToUpper(word) {
	case "AND", "OR", "NOT", "IN", "TRUE", "FALSE", "STARTS_WITH", "LEVENSHTEIN_MATCH":
		return true
	}
	return false
}
