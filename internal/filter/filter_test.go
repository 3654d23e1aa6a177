package filter

import (
	"errors"
	"strings"
	"testing"

	"sieve/internal/format"
)

func sampleTree() Node {
	return &And{Children: []Node{
		&Or{MinMatch: 1, Children: []Node{
			&Term{Field: "d.values", Value: "@"},
			&Term{Field: "d.values", Value: "A"},
		}},
		&Range{Field: "d.values", Max: "B", HasMax: true},
		&Range{Field: "n", Min: "1", HasMin: true, MinInclusive: true, Max: "9", HasMax: true, MaxInclusive: true},
		&Not{Child: &Term{Field: "d.values", Value: ""}},
		&Or{MinMatch: 2, Children: []Node{
			&Prefix{Field: "name", Prefix: "a"},
			&Prefix{Field: "name", Prefix: "b"},
		}},
		&FuzzyPrefix{Field: "name", Prefix: "foo", Term: "bar", MaxDistance: 2, MaxTerms: 63},
		&All{},
		&Empty{},
	}}
}

func TestString(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{&Term{Field: "d.values", Value: "C"}, `Term(d.values, "C")`},
		{&Not{Child: &Term{Field: "f", Value: "x"}}, `Not(Term(f, "x"))`},
		{&Range{Field: "f", Max: "B", HasMax: true}, `Range(f, (-inf, "B"))`},
		{&Range{Field: "f", Min: "A", HasMin: true, MinInclusive: true}, `Range(f, ["A", +inf))`},
		{&Range{Field: "f", Min: "A", HasMin: true, Max: "C", HasMax: true, MaxInclusive: true}, `Range(f, ("A", "C"])`},
		{&Or{MinMatch: 1, Children: []Node{&Term{Field: "f", Value: "a"}, &Term{Field: "f", Value: "b"}}}, `Or(Term(f, "a"), Term(f, "b"))`},
		{&Or{MinMatch: 2, Children: []Node{&Prefix{Field: "f", Prefix: "a"}, &Prefix{Field: "f", Prefix: "b"}}}, `Or[2](Prefix(f, "a"), Prefix(f, "b"))`},
		{
			&FuzzyPrefix{Field: "name", Prefix: "foo", Term: "bar", MaxDistance: 2, MaxTerms: 63},
			`FuzzyPrefix(name, prefix="foo", term="bar", distance=2, terms=63, transpositions=false)`,
		},
		{&Empty{}, "Empty"},
		{&All{}, "All"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.node.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a := sampleTree()
	b := sampleTree()
	if !Equal(a, b) {
		t.Fatal("identical trees compare unequal")
	}

	// Bound details on an open side are ignored.
	r1 := &Range{Field: "f", Max: "B", HasMax: true, Min: "junk", MinInclusive: true}
	r2 := &Range{Field: "f", Max: "B", HasMax: true}
	if !Equal(r1, r2) {
		t.Error("ranges differing only on an open side compare unequal")
	}

	b.(*And).Children[0], b.(*And).Children[1] = b.(*And).Children[1], b.(*And).Children[0]
	if Equal(a, b) {
		t.Error("reordered children compare equal")
	}
	if Equal(&Or{MinMatch: 1}, &Or{MinMatch: 2}) {
		t.Error("min match ignored")
	}
	if Equal(&Empty{}, &All{}) {
		t.Error("Empty equals All")
	}
}

func TestCount(t *testing.T) {
	if got := Count(sampleTree()); got != 14 {
		t.Errorf("Count = %d, want 14", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, compress := range []bool{false, true} {
		data, err := Encode(sampleTree(), compress)
		if err != nil {
			t.Fatalf("Encode(compress=%v) error: %v", compress, err)
		}
		h, err := format.Decode(data)
		if err != nil {
			t.Fatalf("header: %v", err)
		}
		if h.Compressed() != compress {
			t.Errorf("header compressed = %v, want %v", h.Compressed(), compress)
		}

		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(compress=%v) error: %v", compress, err)
		}
		if !Equal(got, sampleTree()) {
			t.Errorf("Decode = %v, want %v", got, sampleTree())
		}
	}
}

func TestJSON(t *testing.T) {
	data, err := MarshalJSON(&Range{Field: "f", Max: "B", HasMax: true})
	if err != nil {
		t.Fatalf("MarshalJSON error: %v", err)
	}
	want := `{"kind":"range","field":"f","max":{"value":"B","inclusive":false}}`
	if string(data) != want {
		t.Errorf("MarshalJSON = %s, want %s", data, want)
	}

	data, err = MarshalJSON(sampleTree())
	if err != nil {
		t.Fatalf("MarshalJSON error: %v", err)
	}
	got, err := UnmarshalJSON(data)
	if err != nil {
		t.Fatalf("UnmarshalJSON error: %v", err)
	}
	if !Equal(got, sampleTree()) {
		t.Errorf("UnmarshalJSON = %v, want %v", got, sampleTree())
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"unknown kind", `{"kind":"regex"}`},
		{"not without child", `{"kind":"not"}`},
		{"and without children", `{"kind":"and"}`},
		{"or without min match", `{"kind":"or","children":[{"kind":"all"}]}`},
		{"nested", `{"kind":"and","children":[{"kind":"bogus"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalJSON([]byte(tt.json))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("UnmarshalJSON error = %v, want ErrMalformed", err)
			}
		})
	}

	if _, err := Decode([]byte("junk")); err == nil || !strings.Contains(err.Error(), "decode filter") {
		t.Errorf("Decode(junk) error = %v", err)
	}
}
