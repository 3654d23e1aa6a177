// Package compiler turns condition trees into minimal, equivalent filter
// trees for an index engine.
//
// Compilation is a fixed pipeline of independent passes over the
// condition tree, each gated by Options:
//
//  1. negation   collapse NOT NOT; distribute NOT (LevelFull, LevelNoDnf)
//  2. dnf        rewrite into an OR of ANDs (LevelFull)
//  3. in-list    sort and deduplicate IN lists (always)
//  4. fuzzy      merge LEVENSHTEIN_MATCH with STARTS_WITH (unless disabled)
//  5. merge      per-field subsumption and contradictions (LevelFull)
//  6. fold       drop TRUE/FALSE from combinators (always)
//  7. order      canonical sibling order (LevelFull)
//
// The optimized tree is then translated one-to-one into filter nodes.
// A Compiler holds no per-query state and is safe for concurrent use.
package compiler

import (
	"log/slog"

	"sieve/internal/condition"
	"sieve/internal/filter"
	"sieve/internal/logging"
)

// Stage names, as reported by Explain.
const (
	StageNegation = "negation"
	StageDNF      = "dnf"
	StageInList   = "in-list"
	StageFuzzy    = "fuzzy"
	StageMerge    = "merge"
	StageFold     = "fold"
	StageOrder    = "order"
)

// Compiler compiles condition trees under a fixed set of Options.
type Compiler struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Compiler. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Compiler {
	logger = logging.Default(logger)
	return &Compiler{
		opts:   opts,
		logger: logger.With("component", "compiler"),
	}
}

// Options returns the compiler's configuration.
func (c *Compiler) Options() Options {
	return c.opts
}

// Compile validates e and returns its optimized filter tree. A nil e
// matches everything. An Empty result is a valid answer meaning no
// document can match.
func (c *Compiler) Compile(e condition.Expr) (filter.Node, error) {
	optimized, err := c.Optimize(e)
	if err != nil {
		return nil, err
	}
	return assemble(optimized, c.joinsRanges()), nil
}

// Optimize validates e and returns the optimized condition tree that
// Compile translates. e itself is not modified. Optimize is idempotent:
// optimizing its result again yields an equal tree.
func (c *Compiler) Optimize(e condition.Expr) (condition.Expr, error) {
	if e == nil {
		return condition.All(), nil
	}
	if err := condition.Validate(e); err != nil {
		return nil, err
	}

	tree := condition.Clone(e)
	for _, s := range c.stages() {
		if !s.enabled {
			continue
		}
		tree = s.run(tree)
		c.logger.Debug("stage done", "stage", s.name, "nodes", condition.Count(tree))
	}
	return tree, nil
}

// Step is the tree after one pipeline stage.
type Step struct {
	Stage   string
	Skipped bool           // stage disabled by the options
	Tree    condition.Expr // tree after the stage (unchanged when skipped)
}

// Explanation traces one compilation.
type Explanation struct {
	Input  condition.Expr
	Steps  []Step
	Filter filter.Node
}

// Explain compiles e and records the tree after every stage.
func (c *Compiler) Explain(e condition.Expr) (*Explanation, error) {
	if e == nil {
		e = condition.All()
	}
	if err := condition.Validate(e); err != nil {
		return nil, err
	}

	ex := &Explanation{Input: e}
	tree := condition.Clone(e)
	for _, s := range c.stages() {
		if s.enabled {
			tree = s.run(tree)
		}
		ex.Steps = append(ex.Steps, Step{Stage: s.name, Skipped: !s.enabled, Tree: condition.Clone(tree)})
	}
	ex.Filter = assemble(tree, c.joinsRanges())
	return ex, nil
}

// joinsRanges reports whether the assembler may fold opposite bounds on one
// field into a single Range. Like the other per-field merges it needs
// LevelFull.
func (c *Compiler) joinsRanges() bool {
	return c.opts.SingleValued && c.opts.Level == LevelFull
}

type stage struct {
	name    string
	enabled bool
	run     func(condition.Expr) condition.Expr
}

func (c *Compiler) stages() []stage {
	level := c.opts.Level
	full := level == LevelFull
	return []stage{
		{StageNegation, true, func(e condition.Expr) condition.Expr {
			return normalizeNegation(e, level)
		}},
		{StageDNF, full, func(e condition.Expr) condition.Expr {
			return toDNF(e, c.opts.MaxDNFBranches)
		}},
		{StageInList, true, canonicalizeIn},
		{StageFuzzy, c.opts.FuzzyMerge != FuzzyMergeDisabled, func(e condition.Expr) condition.Expr {
			return mergeFuzzy(e, level)
		}},
		{StageMerge, full, func(e condition.Expr) condition.Expr {
			return mergeFields(e, c.opts.SingleValued)
		}},
		{StageFold, true, func(e condition.Expr) condition.Expr {
			return foldConstants(e, level)
		}},
		{StageOrder, full, orderCanonical},
	}
}

// Compile compiles e with a throwaway Compiler.
func Compile(e condition.Expr, opts Options) (filter.Node, error) {
	return New(opts, nil).Compile(e)
}
