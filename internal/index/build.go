package index

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sieve/internal/callgroup"
	"sieve/internal/condition"
)

var ErrTooManyDocuments = errors.New("too many documents")

// Build indexes docs. Document IDs are positions in docs. Fields are
// indexed concurrently; a value repeated within one document is posted once.
func Build(ctx context.Context, docs []condition.Document, opts ...Option) (*Index, error) {
	if uint64(len(docs)) > math.MaxUint32 {
		return nil, ErrTooManyDocuments
	}

	seen := make(map[string]struct{})
	var names []string
	for _, doc := range docs {
		for name := range doc {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}

	built := make([]*Field, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			f, err := buildField(gctx, name, docs)
			built[i] = f
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fields := make(map[string]*Field, len(built))
	for _, f := range built {
		if len(f.Postings) > 0 {
			fields[f.Name] = f
		}
	}
	idx := newIndex(uint32(len(docs)), fields, opts)
	idx.logger.Debug("index built", "docs", len(docs), "fields", len(fields), "terms", idx.TermCount())
	return idx, nil
}

func buildField(ctx context.Context, name string, docs []condition.Document) (*Field, error) {
	byTerm := make(map[string][]uint32)
	for id, doc := range docs {
		if id%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, v := range doc[name] {
			posting := byTerm[v]
			if n := len(posting); n > 0 && posting[n-1] == uint32(id) {
				continue
			}
			byTerm[v] = append(posting, uint32(id))
		}
	}

	f := &Field{Name: name, Postings: make([]Posting, 0, len(byTerm))}
	for term, ids := range byTerm {
		f.Postings = append(f.Postings, Posting{Term: term, Docs: ids})
	}
	slices.SortFunc(f.Postings, func(a, b Posting) int { return strings.Compare(a.Term, b.Term) })
	return f, nil
}

// Builder deduplicates concurrent builds for the same key and remembers the
// latest index built for each key.
type Builder struct {
	opts  []Option
	group callgroup.Group[string, *Index]

	mu     sync.Mutex
	latest map[string]*Index
}

// NewBuilder creates a Builder whose indexes are built with opts.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{opts: opts, latest: make(map[string]*Index)}
}

// Build loads documents for key and indexes them. If a build for the same
// key is already in flight, this call waits for it and shares its result.
// If the caller's context is cancelled while waiting, it returns the
// context error without cancelling the in-flight build.
func (b *Builder) Build(ctx context.Context, key string, load func(context.Context) ([]condition.Document, error)) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := b.group.DoChan(key, func() (*Index, error) {
		// Detach from the initiator's context so that cancelling one caller
		// does not abort the shared build.
		bctx := context.WithoutCancel(ctx)
		docs, err := load(bctx)
		if err != nil {
			return nil, err
		}
		idx, err := Build(bctx, docs, b.opts...)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.latest[key] = idx
		b.mu.Unlock()
		return idx, nil
	})

	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Latest returns the most recent index built for key, or nil.
func (b *Builder) Latest(key string) *Index {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest[key]
}
