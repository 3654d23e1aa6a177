package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Level selects which rewrites the compiler applies.
type Level int

const (
	// LevelFull applies every rewrite: negation distribution, DNF
	// conversion, per-field merging and canonical ordering.
	LevelFull Level = iota
	// LevelNoDnf distributes negation but skips DNF, merging and ordering.
	LevelNoDnf
	// LevelNoNegation leaves NOT in place apart from double negation.
	LevelNoNegation
	// LevelNone applies only the rewrites that run at every level: double
	// negation collapse, IN-list canonicalization and fuzzy merging.
	LevelNone
)

func (l Level) String() string {
	switch l {
	case LevelFull:
		return "auto"
	case LevelNoDnf:
		return "nodnf"
	case LevelNoNegation:
		return "noneg"
	case LevelNone:
		return "none"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// distributesNegation reports whether NOT is pushed through AND/OR and
// into comparison leaves at this level.
func (l Level) distributesNegation() bool {
	return l == LevelFull || l == LevelNoDnf
}

// FuzzyMerge controls merging of LEVENSHTEIN_MATCH with STARTS_WITH.
type FuzzyMerge int

const (
	FuzzyMergeAuto     FuzzyMerge = iota // option not set
	FuzzyMergeExplicit                   // filterOptimization = -1
	FuzzyMergeDisabled                   // filterOptimization = 0
)

func (m FuzzyMerge) String() string {
	switch m {
	case FuzzyMergeAuto:
		return "auto"
	case FuzzyMergeExplicit:
		return "explicit"
	case FuzzyMergeDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("fuzzymerge(%d)", int(m))
	}
}

// Options configures a Compiler. The zero value is the default
// configuration: full optimization with automatic fuzzy merging.
type Options struct {
	Level      Level
	FuzzyMerge FuzzyMerge

	// SingleValued declares that every field referenced by a condition
	// holds exactly one value per document. It enables merges that are
	// only exact under that assumption: opposite-direction ranges combine
	// into one bounded range, and disjoint EQ/range/IN facts on one field
	// collapse the conjunction to Empty.
	SingleValued bool

	// MaxDNFBranches bounds the number of branches DNF conversion may
	// produce for one subtree. Subtrees over the limit keep their shape.
	// Zero means unlimited.
	MaxDNFBranches int
}

// Option names as they appear in query options.
const (
	OptionConditionOptimization = "conditionOptimization"
	OptionFilterOptimization    = "filterOptimization"
)

// ErrUnknownOptionValue is wrapped by OptionError.
var ErrUnknownOptionValue = errors.New("unknown option value")

// OptionError reports an option value outside the accepted set.
type OptionError struct {
	Option string
	Value  string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("unknown value '%s' for option '%s'", e.Value, e.Option)
}

func (e *OptionError) Unwrap() error {
	return ErrUnknownOptionValue
}

// ParseLevel maps a conditionOptimization value to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "", "auto":
		return LevelFull, nil
	case "nodnf":
		return LevelNoDnf, nil
	case "noneg":
		return LevelNoNegation, nil
	case "none":
		return LevelNone, nil
	default:
		return LevelFull, &OptionError{Option: OptionConditionOptimization, Value: s}
	}
}

// ParseFuzzyMerge maps a filterOptimization value to a FuzzyMerge mode.
// set is false when the option was not given.
func ParseFuzzyMerge(v int, set bool) (FuzzyMerge, error) {
	if !set {
		return FuzzyMergeAuto, nil
	}
	switch v {
	case -1:
		return FuzzyMergeExplicit, nil
	case 0:
		return FuzzyMergeDisabled, nil
	default:
		return FuzzyMergeAuto, &OptionError{Option: OptionFilterOptimization, Value: strconv.Itoa(v)}
	}
}

// queryOptions is the JSON shape of the query options object. Unknown
// keys are ignored.
type queryOptions struct {
	ConditionOptimization *string `json:"conditionOptimization"`
	FilterOptimization    *int    `json:"filterOptimization"`
}

// ParseQueryOptions reads conditionOptimization and filterOptimization
// from a JSON object. Empty input yields the default Options.
func ParseQueryOptions(data []byte) (Options, error) {
	var opts Options
	if len(data) == 0 {
		return opts, nil
	}

	var raw queryOptions
	if err := json.Unmarshal(data, &raw); err != nil {
		return opts, fmt.Errorf("parse query options: %w", err)
	}

	if raw.ConditionOptimization != nil {
		level, err := ParseLevel(*raw.ConditionOptimization)
		if err != nil {
			return opts, err
		}
		opts.Level = level
	}

	var fo int
	if raw.FilterOptimization != nil {
		fo = *raw.FilterOptimization
	}
	mode, err := ParseFuzzyMerge(fo, raw.FilterOptimization != nil)
	if err != nil {
		return opts, err
	}
	opts.FuzzyMerge = mode

	return opts, nil
}
