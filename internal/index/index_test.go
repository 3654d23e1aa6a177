package index

import (
	"context"
	"errors"
	"slices"
	"testing"

	"sieve/internal/condition"
	"sieve/internal/filter"
)

func fixtureDocs() []condition.Document {
	return []condition.Document{
		{"name": {"alice"}, "age": {"30"}, "tag": {"a", "b"}},
		{"name": {"bob"}, "age": {"25"}, "tag": {"b"}},
		{"name": {"carol"}, "age": {"40"}},
		{"name": {"alicia"}, "tag": {"c"}},
		{},
	}
}

func buildFixture(t *testing.T) *Index {
	t.Helper()
	idx, err := Build(context.Background(), fixtureDocs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

func TestBuild(t *testing.T) {
	idx := buildFixture(t)

	if idx.DocCount() != 5 {
		t.Errorf("DocCount = %d, want 5", idx.DocCount())
	}
	if got, want := idx.Fields(), []string{"age", "name", "tag"}; !slices.Equal(got, want) {
		t.Errorf("Fields = %v, want %v", got, want)
	}
	if got := idx.TermCount(); got != 10 {
		t.Errorf("TermCount = %d, want 10", got)
	}

	tag := idx.Field("tag")
	var terms []string
	for _, p := range tag.Postings {
		terms = append(terms, p.Term)
	}
	if want := []string{"a", "b", "c"}; !slices.Equal(terms, want) {
		t.Errorf("tag terms = %v, want %v", terms, want)
	}
	if got := tag.Postings[1].Docs; !slices.Equal(got, []uint32{0, 1}) {
		t.Errorf("tag=b docs = %v, want [0 1]", got)
	}
	if idx.Field("missing") != nil {
		t.Error("expected nil for unknown field")
	}
}

func TestBuildDedupesValuesWithinDocument(t *testing.T) {
	idx, err := Build(context.Background(), []condition.Document{{"k": {"x", "x", "y"}}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := idx.Field("k").Postings[0].Docs; !slices.Equal(got, []uint32{0}) {
		t.Errorf("k=x docs = %v, want [0]", got)
	}
}

func TestSearch(t *testing.T) {
	idx := buildFixture(t)

	tests := []struct {
		name string
		node filter.Node
		want []uint32
	}{
		{"term", &filter.Term{Field: "name", Value: "bob"}, []uint32{1}},
		{"term multi-valued", &filter.Term{Field: "tag", Value: "b"}, []uint32{0, 1}},
		{"term unknown field", &filter.Term{Field: "nope", Value: "bob"}, nil},
		{"term unknown value", &filter.Term{Field: "name", Value: "dave"}, nil},
		{"not", &filter.Not{Child: &filter.Term{Field: "name", Value: "bob"}}, []uint32{0, 2, 3, 4}},
		{"range exclusive min", &filter.Range{Field: "age", Min: "25", HasMin: true, Max: "40", HasMax: true, MaxInclusive: true}, []uint32{0, 2}},
		{"range inclusive min", &filter.Range{Field: "age", Min: "25", HasMin: true, MinInclusive: true}, []uint32{0, 1, 2}},
		{"range upper only", &filter.Range{Field: "age", Max: "30", HasMax: true}, []uint32{1}},
		{"range exclusive max", &filter.Range{Field: "age", Max: "40", HasMax: true}, []uint32{0, 1}},
		{"prefix", &filter.Prefix{Field: "name", Prefix: "ali"}, []uint32{0, 3}},
		{"prefix empty", &filter.Prefix{Field: "tag", Prefix: ""}, []uint32{0, 1, 3}},
		{"fuzzy distance 1", &filter.FuzzyPrefix{Field: "name", Prefix: "al", Term: "ice", MaxDistance: 1}, []uint32{0}},
		{"fuzzy distance 2", &filter.FuzzyPrefix{Field: "name", Prefix: "al", Term: "ice", MaxDistance: 2}, []uint32{0, 3}},
		{"fuzzy transposition", &filter.FuzzyPrefix{Field: "name", Term: "bbo", MaxDistance: 1, WithTranspositions: true}, []uint32{1}},
		{"fuzzy no transposition", &filter.FuzzyPrefix{Field: "name", Term: "bbo", MaxDistance: 1}, nil},
		{"and", &filter.And{Children: []filter.Node{
			&filter.Prefix{Field: "name", Prefix: "a"},
			&filter.Term{Field: "tag", Value: "c"},
		}}, []uint32{3}},
		{"and disjoint", &filter.And{Children: []filter.Node{
			&filter.Term{Field: "name", Value: "bob"},
			&filter.Term{Field: "name", Value: "carol"},
		}}, nil},
		{"or", &filter.Or{MinMatch: 1, Children: []filter.Node{
			&filter.Term{Field: "name", Value: "bob"},
			&filter.Term{Field: "name", Value: "carol"},
		}}, []uint32{1, 2}},
		{"or min match", &filter.Or{MinMatch: 2, Children: []filter.Node{
			&filter.Term{Field: "tag", Value: "a"},
			&filter.Term{Field: "tag", Value: "b"},
			&filter.Term{Field: "name", Value: "alice"},
		}}, []uint32{0}},
		{"or min match above children", &filter.Or{MinMatch: 3, Children: []filter.Node{
			&filter.Term{Field: "tag", Value: "a"},
			&filter.Term{Field: "tag", Value: "b"},
		}}, nil},
		{"empty", &filter.Empty{}, nil},
		{"all", &filter.All{}, []uint32{0, 1, 2, 3, 4}},
		{"not empty", &filter.Not{Child: &filter.Empty{}}, []uint32{0, 1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Search(context.Background(), tt.node)
			if err != nil {
				t.Fatalf("Search(%s): %v", tt.node, err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Search(%s) = %v, want %v", tt.node, got, tt.want)
			}
		})
	}
}

func TestSearchResultIsACopy(t *testing.T) {
	idx := buildFixture(t)
	got, err := idx.Search(context.Background(), &filter.Term{Field: "name", Value: "bob"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got[0] = 99
	again, _ := idx.Search(context.Background(), &filter.Term{Field: "name", Value: "bob"})
	if !slices.Equal(again, []uint32{1}) {
		t.Errorf("postings were modified through a search result: %v", again)
	}
}

func TestSearchCancelled(t *testing.T) {
	idx := buildFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := idx.Search(ctx, &filter.All{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type unknownNode struct{ filter.Empty }

func TestSearchUnknownNode(t *testing.T) {
	idx := buildFixture(t)
	if _, err := idx.Search(context.Background(), unknownNode{}); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
}

func TestAtLeast(t *testing.T) {
	sets := [][]uint32{{1, 2, 3}, {2, 3, 4}, {3, 5}}
	tests := []struct {
		k    int
		want []uint32
	}{
		{1, []uint32{1, 2, 3, 4, 5}},
		{2, []uint32{2, 3}},
		{3, []uint32{3}},
		{4, nil},
	}
	for _, tt := range tests {
		if got := atLeast(sets, tt.k); !slices.Equal(got, tt.want) {
			t.Errorf("atLeast(k=%d) = %v, want %v", tt.k, got, tt.want)
		}
	}
}

func TestComplement(t *testing.T) {
	if got := complement([]uint32{0, 2}, 4); !slices.Equal(got, []uint32{1, 3}) {
		t.Errorf("complement = %v, want [1 3]", got)
	}
	if got := complement(nil, 0); len(got) != 0 {
		t.Errorf("complement of empty universe = %v", got)
	}
}
