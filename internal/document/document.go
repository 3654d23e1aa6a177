// Package document loads JSON documents into the multi-valued field model
// the index and the reference evaluator work on.
//
// Every scalar reachable from the document root becomes a value of the
// dotted path that leads to it. Arrays do not add a path segment, so
// {"tags": ["a", ["b"]]} holds the values "a" and "b" under "tags".
// Extra fields can be bound to JSONPath expressions with WithField.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/theory/jsonpath"

	"sieve/internal/condition"
	"sieve/internal/logging"
)

var (
	ErrNotObject    = errors.New("document is not a JSON object")
	ErrInvalidField = errors.New("invalid field binding")
)

// Loader decodes JSON documents. The zero value is not usable; use
// NewLoader.
type Loader struct {
	bindings []binding
	flatten  bool
	logger   *slog.Logger
}

type binding struct {
	name string
	path *jsonpath.Path
}

// Option configures a Loader.
type Option func(*Loader) error

// WithField binds name to the values selected by a JSONPath expression.
// A bound field replaces whatever flattening put under the same name.
func WithField(name, path string) Option {
	return func(l *Loader) error {
		if name == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidField)
		}
		p, err := jsonpath.Parse(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidField, name, err)
		}
		l.bindings = append(l.bindings, binding{name: name, path: p})
		return nil
	}
}

// WithBinding parses a "name=$.path" binding.
func WithBinding(spec string) Option {
	name, path, ok := strings.Cut(spec, "=")
	if !ok {
		return func(*Loader) error {
			return fmt.Errorf("%w: %q is not name=path", ErrInvalidField, spec)
		}
	}
	return WithField(strings.TrimSpace(name), strings.TrimSpace(path))
}

// WithoutFlatten limits documents to the fields bound with WithField.
func WithoutFlatten() Option {
	return func(l *Loader) error {
		l.flatten = false
		return nil
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		l.logger = logging.Default(logger).With("component", "document")
		return nil
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{flatten: true, logger: logging.Discard()}
	for _, o := range opts {
		if err := o(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Load reads documents from r. The input is a sequence of JSON values,
// one per line or simply concatenated; a top-level array contributes each
// of its elements as a document.
func (l *Loader) Load(r io.Reader) ([]condition.Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var docs []condition.Document
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", len(docs), err)
		}
		items, isList := v.([]any)
		if !isList {
			items = []any{v}
		}
		for _, item := range items {
			doc, err := l.Document(item)
			if err != nil {
				return nil, fmt.Errorf("document %d: %w", len(docs), err)
			}
			docs = append(docs, doc)
		}
	}
	l.logger.Debug("documents loaded", "count", len(docs))
	return docs, nil
}

// LoadBytes is Load over an in-memory buffer.
func (l *Loader) LoadBytes(data []byte) ([]condition.Document, error) {
	return l.Load(bytes.NewReader(data))
}

// Document converts one decoded JSON value into a Document.
func (l *Loader) Document(v any) (condition.Document, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, kind(v))
	}
	doc := condition.Document{}
	if l.flatten {
		for k, child := range obj {
			collect(doc, k, child)
		}
	}
	for _, b := range l.bindings {
		var values []string
		for _, node := range b.path.Select(obj) {
			values = appendValues(values, node)
		}
		if len(values) == 0 {
			delete(doc, b.name)
			continue
		}
		doc[b.name] = values
	}
	return doc, nil
}

// collect walks v and records its scalars under path.
func collect(doc condition.Document, path string, v any) {
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			collect(doc, path+"."+k, child)
		}
	case []any:
		for _, child := range x {
			collect(doc, path, child)
		}
	default:
		if s, ok := scalar(v); ok {
			doc[path] = append(doc[path], s)
		}
	}
}

// appendValues adds the scalars of a selected node, expanding arrays.
func appendValues(values []string, v any) []string {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			values = appendValues(values, item)
		}
		return values
	}
	if s, ok := scalar(v); ok {
		values = append(values, s)
	}
	return values
}

// scalar renders a JSON scalar as a field value. Null and objects have no
// value.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
