package filter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"sieve/internal/format"
)

// codecVersion is the wire version written into the format header.
const codecVersion = 1

// ErrMalformed is returned when decoded data does not describe a valid
// filter tree.
var ErrMalformed = errors.New("malformed filter")

// Node kinds on the wire.
const (
	kindTerm        = "term"
	kindNot         = "not"
	kindRange       = "range"
	kindAnd         = "and"
	kindOr          = "or"
	kindPrefix      = "prefix"
	kindFuzzyPrefix = "fuzzy_prefix"
	kindEmpty       = "empty"
	kindAll         = "all"
)

// wireNode is the serialized form of every node kind. Prefix and
// FuzzyPrefix carry their prefix in Value.
type wireNode struct {
	Kind           string      `msgpack:"k" json:"kind"`
	Field          string      `msgpack:"f,omitempty" json:"field,omitempty"`
	Value          string      `msgpack:"v,omitempty" json:"value,omitempty"`
	Term           string      `msgpack:"t,omitempty" json:"term,omitempty"`
	Min            *wireBound  `msgpack:"lo,omitempty" json:"min,omitempty"`
	Max            *wireBound  `msgpack:"hi,omitempty" json:"max,omitempty"`
	MaxDistance    int         `msgpack:"d,omitempty" json:"max_distance,omitempty"`
	MaxTerms       int         `msgpack:"n,omitempty" json:"max_terms,omitempty"`
	Transpositions bool        `msgpack:"tr,omitempty" json:"with_transpositions,omitempty"`
	MinMatch       int         `msgpack:"m,omitempty" json:"min_match,omitempty"`
	Children       []*wireNode `msgpack:"c,omitempty" json:"children,omitempty"`
}

type wireBound struct {
	Value     string `msgpack:"v" json:"value"`
	Inclusive bool   `msgpack:"i" json:"inclusive"`
}

// Encode serializes n as a msgpack payload behind a format header,
// optionally zstd-compressed.
func Encode(n Node, compress bool) ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	payload, err := msgpack.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return format.Seal(format.TypeFilter, codecVersion, payload, compress), nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (Node, error) {
	payload, err := format.Open(data, format.TypeFilter, codecVersion)
	if err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	var w wireNode
	if err := msgpack.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	return fromWire(&w)
}

// MarshalJSON renders n as JSON.
func MarshalJSON(n Node) ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses JSON produced by MarshalJSON.
func UnmarshalJSON(data []byte) (Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode filter json: %w", err)
	}
	return fromWire(&w)
}

func toWire(n Node) (*wireNode, error) {
	switch x := n.(type) {
	case *Term:
		return &wireNode{Kind: kindTerm, Field: x.Field, Value: x.Value}, nil
	case *Not:
		child, err := toWire(x.Child)
		if err != nil {
			return nil, err
		}
		return &wireNode{Kind: kindNot, Children: []*wireNode{child}}, nil
	case *Range:
		w := &wireNode{Kind: kindRange, Field: x.Field}
		if x.HasMin {
			w.Min = &wireBound{Value: x.Min, Inclusive: x.MinInclusive}
		}
		if x.HasMax {
			w.Max = &wireBound{Value: x.Max, Inclusive: x.MaxInclusive}
		}
		return w, nil
	case *And:
		children, err := toWireAll(x.Children)
		if err != nil {
			return nil, err
		}
		return &wireNode{Kind: kindAnd, Children: children}, nil
	case *Or:
		children, err := toWireAll(x.Children)
		if err != nil {
			return nil, err
		}
		return &wireNode{Kind: kindOr, MinMatch: x.MinMatch, Children: children}, nil
	case *Prefix:
		return &wireNode{Kind: kindPrefix, Field: x.Field, Value: x.Prefix}, nil
	case *FuzzyPrefix:
		return &wireNode{
			Kind:           kindFuzzyPrefix,
			Field:          x.Field,
			Value:          x.Prefix,
			Term:           x.Term,
			MaxDistance:    x.MaxDistance,
			MaxTerms:       x.MaxTerms,
			Transpositions: x.WithTranspositions,
		}, nil
	case *Empty:
		return &wireNode{Kind: kindEmpty}, nil
	case *All:
		return &wireNode{Kind: kindAll}, nil
	default:
		return nil, fmt.Errorf("%w: unknown node type %T", ErrMalformed, n)
	}
}

func toWireAll(nodes []Node) ([]*wireNode, error) {
	out := make([]*wireNode, len(nodes))
	for i, n := range nodes {
		w, err := toWire(n)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func fromWire(w *wireNode) (Node, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: nil node", ErrMalformed)
	}
	switch w.Kind {
	case kindTerm:
		return &Term{Field: w.Field, Value: w.Value}, nil
	case kindNot:
		if len(w.Children) != 1 {
			return nil, fmt.Errorf("%w: not needs one child, got %d", ErrMalformed, len(w.Children))
		}
		child, err := fromWire(w.Children[0])
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	case kindRange:
		r := &Range{Field: w.Field}
		if w.Min != nil {
			r.Min, r.HasMin, r.MinInclusive = w.Min.Value, true, w.Min.Inclusive
		}
		if w.Max != nil {
			r.Max, r.HasMax, r.MaxInclusive = w.Max.Value, true, w.Max.Inclusive
		}
		return r, nil
	case kindAnd:
		children, err := fromWireAll(w.Children)
		if err != nil {
			return nil, err
		}
		return &And{Children: children}, nil
	case kindOr:
		children, err := fromWireAll(w.Children)
		if err != nil {
			return nil, err
		}
		if w.MinMatch < 1 {
			return nil, fmt.Errorf("%w: or min match %d", ErrMalformed, w.MinMatch)
		}
		return &Or{Children: children, MinMatch: w.MinMatch}, nil
	case kindPrefix:
		return &Prefix{Field: w.Field, Prefix: w.Value}, nil
	case kindFuzzyPrefix:
		return &FuzzyPrefix{
			Field:              w.Field,
			Prefix:             w.Value,
			Term:               w.Term,
			MaxDistance:        w.MaxDistance,
			MaxTerms:           w.MaxTerms,
			WithTranspositions: w.Transpositions,
		}, nil
	case kindEmpty:
		return &Empty{}, nil
	case kindAll:
		return &All{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, w.Kind)
	}
}

func fromWireAll(ws []*wireNode) ([]Node, error) {
	if len(ws) == 0 {
		return nil, fmt.Errorf("%w: combinator without children", ErrMalformed)
	}
	out := make([]Node, len(ws))
	for i, w := range ws {
		n, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
