package index

import (
	"encoding/binary"
	"errors"
	"fmt"

	"sieve/internal/format"
	"sieve/internal/index/inverted"
)

const (
	snapshotVersion = 0x01

	// Payload prefix: [doc_count:u32][entry_count:u32].
	docCountSize   = 4
	snapshotPrefix = docCountSize + inverted.EntryCountSize
)

var ErrCorruptSnapshot = errors.New("corrupt index snapshot")

type snapshotEntry struct {
	field string
	term  string
	docs  []uint32
}

func (e snapshotEntry) GetField() string  { return e.field }
func (e snapshotEntry) GetTerm() string   { return e.term }
func (e snapshotEntry) GetDocs() []uint32 { return e.docs }

// Snapshot serializes the index behind a format header, zstd-compressing
// the payload when compress is set.
func (idx *Index) Snapshot(compress bool) ([]byte, error) {
	entries := make([]snapshotEntry, 0, idx.TermCount())
	for _, name := range idx.Fields() {
		for _, p := range idx.fields[name].Postings {
			entries = append(entries, snapshotEntry{field: name, term: p.Term, docs: p.Docs})
		}
	}

	prefix := make([]byte, snapshotPrefix)
	binary.LittleEndian.PutUint32(prefix, idx.docCount)
	payload, err := inverted.Encode(entries, prefix, docCountSize)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return format.Seal(format.TypeIndexSnapshot, snapshotVersion, payload, compress), nil
}

// Load restores an index from a Snapshot.
func Load(data []byte, opts ...Option) (*Index, error) {
	payload, err := format.Open(data, format.TypeIndexSnapshot, snapshotVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if len(payload) < snapshotPrefix {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, inverted.ErrIndexTooSmall)
	}
	docCount := binary.LittleEndian.Uint32(payload)

	entries, err := inverted.Decode(payload, snapshotPrefix, func(field, term string, docs []uint32) snapshotEntry {
		return snapshotEntry{field: field, term: term, docs: docs}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	fields := make(map[string]*Field)
	var last *snapshotEntry
	for i := range entries {
		e := &entries[i]
		if err := checkEntry(last, e, docCount); err != nil {
			return nil, fmt.Errorf("%w: field %q term %q: %w", ErrCorruptSnapshot, e.field, e.term, err)
		}
		f := fields[e.field]
		if f == nil {
			f = &Field{Name: e.field}
			fields[e.field] = f
		}
		f.Postings = append(f.Postings, Posting{Term: e.term, Docs: e.docs})
		last = e
	}

	idx := newIndex(docCount, fields, opts)
	idx.logger.Debug("snapshot loaded", "docs", docCount, "fields", len(fields), "terms", len(entries))
	return idx, nil
}

var (
	errEntryOrder   = errors.New("entries out of order")
	errEmptyPosting = errors.New("empty posting list")
	errDocOrder     = errors.New("document IDs out of order")
	errDocRange     = errors.New("document ID out of range")
)

// checkEntry verifies e follows last in (field, term) order and holds a
// strictly increasing, in-range posting list.
func checkEntry(last, e *snapshotEntry, docCount uint32) error {
	if last != nil && (e.field < last.field || (e.field == last.field && e.term <= last.term)) {
		return errEntryOrder
	}
	if len(e.docs) == 0 {
		return errEmptyPosting
	}
	for i, id := range e.docs {
		if id >= docCount {
			return errDocRange
		}
		if i > 0 && id <= e.docs[i-1] {
			return errDocOrder
		}
	}
	return nil
}
