// Package logging provides utilities for structured logging across sieve.
//
// Design principles:
//   - Logging is dependency-injected, never global
//   - Each component owns its own scoped logger ("component" attribute)
//   - If no logger is provided, a discard logger is used
//
// Global configuration (output format, level, destination) belongs only in main().
// Components must never call slog.SetDefault or access global loggers.
//
// Logging is intentionally sparse: the compiler logs once per stage, never
// per node, and the index never logs inside posting-list loops.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// discardHandler is a handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns the provided logger if non-nil, otherwise returns a discard logger.
//
//	func New(opts Options, logger *slog.Logger) *Compiler {
//	    logger = logging.Default(logger)
//	    return &Compiler{logger: logger.With("component", "compiler")}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// ComponentKey is the attribute that names the emitting component.
const ComponentKey = "component"

// levelTable is shared by a ComponentFilterHandler and all handlers derived
// from it through WithAttrs/WithGroup.
type levelTable struct {
	mu       sync.RWMutex
	fallback slog.Level
	levels   map[string]slog.Level
}

func (t *levelTable) level(component string) slog.Level {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if lvl, ok := t.levels[component]; ok && component != "" {
		return lvl
	}
	return t.fallback
}

// lowest returns the most verbose level any component may log at.
func (t *levelTable) lowest() slog.Level {
	t.mu.RLock()
	defer t.mu.RUnlock()
	low := t.fallback
	for _, lvl := range t.levels {
		low = min(low, lvl)
	}
	return low
}

// ComponentFilterHandler filters records by a per-component minimum level.
// The component is read from the "component" attribute, either attached
// with Logger.With or passed on the record itself. Records without a
// component use the default level.
type ComponentFilterHandler struct {
	next      slog.Handler
	table     *levelTable
	component string
}

// NewComponentFilterHandler wraps next, passing records at or above
// defaultLevel unless a component override says otherwise.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	return &ComponentFilterHandler{
		next:  next,
		table: &levelTable{fallback: defaultLevel, levels: make(map[string]slog.Level)},
	}
}

// SetLevel overrides the minimum level for one component.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	h.table.mu.Lock()
	defer h.table.mu.Unlock()
	h.table.levels[component] = level
}

// ClearLevel removes a component override.
func (h *ComponentFilterHandler) ClearLevel(component string) {
	h.table.mu.Lock()
	defer h.table.mu.Unlock()
	delete(h.table.levels, component)
}

// Level returns the effective minimum level for a component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	return h.table.level(component)
}

// DefaultLevel returns the level used for components without an override.
func (h *ComponentFilterHandler) DefaultLevel() slog.Level {
	return h.table.level("")
}

func (h *ComponentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	threshold := h.table.lowest()
	if h.component != "" {
		threshold = h.table.level(h.component)
	}
	if level < threshold {
		return false
	}
	return h.next.Enabled(ctx, level)
}

func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	if component == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == ComponentKey {
				component = a.Value.String()
				return false
			}
			return true
		})
	}
	if r.Level < h.table.level(component) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == ComponentKey {
			component = a.Value.String()
		}
	}
	return &ComponentFilterHandler{next: h.next.WithAttrs(attrs), table: h.table, component: component}
}

func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	return &ComponentFilterHandler{next: h.next.WithGroup(name), table: h.table, component: h.component}
}

// ParseLevel parses a level name: debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Configure applies a level spec to h. The spec is a comma-separated list of
// "level" (the default) or "component=level" entries, for example
// "warn,compiler=debug".
func (h *ComponentFilterHandler) Configure(spec string) error {
	for entry := range strings.SplitSeq(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		component, name, found := strings.Cut(entry, "=")
		if !found {
			lvl, err := ParseLevel(entry)
			if err != nil {
				return err
			}
			h.table.mu.Lock()
			h.table.fallback = lvl
			h.table.mu.Unlock()
			continue
		}
		lvl, err := ParseLevel(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		h.SetLevel(strings.TrimSpace(component), lvl)
	}
	return nil
}
