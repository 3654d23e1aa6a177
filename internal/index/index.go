// Package index is an in-memory inverted index that executes filter trees.
//
// Each field maps its distinct values (terms) in byte order to posting
// lists of document IDs. A document ID is the document's position in the
// slice it was built from. Search results are sorted ID sets.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"sieve/internal/condition"
	"sieve/internal/filter"
	"sieve/internal/logging"
)

var ErrUnknownNode = errors.New("unknown filter node")

// Posting holds the sorted IDs of the documents a term occurs in.
type Posting struct {
	Term string
	Docs []uint32
}

// Field holds the postings of one field, ordered by term.
type Field struct {
	Name     string
	Postings []Posting
}

// Index is an immutable inverted index over a fixed document set.
// It is safe for concurrent searches.
type Index struct {
	docCount uint32
	fields   map[string]*Field
	logger   *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) {
		idx.logger = logging.Default(logger).With("component", "index")
	}
}

func newIndex(docCount uint32, fields map[string]*Field, opts []Option) *Index {
	idx := &Index{
		docCount: docCount,
		fields:   fields,
		logger:   logging.Discard(),
	}
	for _, o := range opts {
		o(idx)
	}
	return idx
}

// DocCount returns the number of indexed documents.
func (idx *Index) DocCount() uint32 {
	return idx.docCount
}

// Fields returns the indexed field names in sorted order.
func (idx *Index) Fields() []string {
	names := make([]string, 0, len(idx.fields))
	for name := range idx.fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Field returns the postings of name, or nil if no document holds it.
func (idx *Index) Field(name string) *Field {
	return idx.fields[name]
}

// TermCount returns the number of distinct (field, term) pairs.
func (idx *Index) TermCount() int {
	n := 0
	for _, f := range idx.fields {
		n += len(f.Postings)
	}
	return n
}

// Search executes n and returns the sorted IDs of matching documents.
// FuzzyPrefix.MaxTerms is advisory and not enforced.
func (idx *Index) Search(ctx context.Context, n filter.Node) ([]uint32, error) {
	s := searcher{idx: idx, ctx: ctx}
	docs, err := s.eval(n)
	if err != nil {
		return nil, err
	}
	// Leaf results alias the postings.
	docs = slices.Clone(docs)
	idx.logger.Debug("search done", "filter_nodes", filter.Count(n), "matches", len(docs))
	return docs, nil
}

type searcher struct {
	idx *Index
	ctx context.Context
}

func (s *searcher) eval(n filter.Node) ([]uint32, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case *filter.Term:
		return s.term(n.Field, n.Value), nil
	case *filter.Not:
		docs, err := s.eval(n.Child)
		if err != nil {
			return nil, err
		}
		return complement(docs, s.idx.docCount), nil
	case *filter.Range:
		return s.scan(n.Field, rangeStart(n), func(term string) (bool, bool) {
			if n.HasMin && !n.MinInclusive && term == n.Min {
				return false, false
			}
			if n.HasMax {
				c := strings.Compare(term, n.Max)
				if c > 0 || (c == 0 && !n.MaxInclusive) {
					return false, true
				}
			}
			return true, false
		}), nil
	case *filter.Prefix:
		return s.scan(n.Field, n.Prefix, func(term string) (bool, bool) {
			return strings.HasPrefix(term, n.Prefix), !strings.HasPrefix(term, n.Prefix)
		}), nil
	case *filter.FuzzyPrefix:
		return s.scan(n.Field, n.Prefix, func(term string) (bool, bool) {
			if !strings.HasPrefix(term, n.Prefix) {
				return false, true
			}
			d := condition.EditDistance(term[len(n.Prefix):], n.Term, n.WithTranspositions)
			return d <= n.MaxDistance, false
		}), nil
	case *filter.And:
		var acc []uint32
		for i, c := range n.Children {
			docs, err := s.eval(c)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				acc = docs
			} else {
				acc = intersect(acc, docs)
			}
			if len(acc) == 0 {
				return nil, nil
			}
		}
		return acc, nil
	case *filter.Or:
		sets := make([][]uint32, 0, len(n.Children))
		for _, c := range n.Children {
			docs, err := s.eval(c)
			if err != nil {
				return nil, err
			}
			sets = append(sets, docs)
		}
		return atLeast(sets, max(n.MinMatch, 1)), nil
	case *filter.Empty:
		return nil, nil
	case *filter.All:
		return complement(nil, s.idx.docCount), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownNode, n)
	}
}

// rangeStart returns the first term a range scan must look at.
func rangeStart(r *filter.Range) string {
	if r.HasMin {
		return r.Min
	}
	return ""
}

func (s *searcher) term(field, value string) []uint32 {
	f := s.idx.fields[field]
	if f == nil {
		return nil
	}
	i, ok := slices.BinarySearchFunc(f.Postings, value, comparePosting)
	if !ok {
		return nil
	}
	return f.Postings[i].Docs
}

// scan visits the terms of field from the first term >= from, in order.
// visit reports whether the term matches and whether the scan is done.
func (s *searcher) scan(field, from string, visit func(term string) (match, done bool)) []uint32 {
	f := s.idx.fields[field]
	if f == nil {
		return nil
	}
	i, _ := slices.BinarySearchFunc(f.Postings, from, comparePosting)
	var sets [][]uint32
	for _, p := range f.Postings[i:] {
		match, done := visit(p.Term)
		if done {
			break
		}
		if match {
			sets = append(sets, p.Docs)
		}
	}
	return atLeast(sets, 1)
}

func comparePosting(p Posting, term string) int {
	return strings.Compare(p.Term, term)
}
