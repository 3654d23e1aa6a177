package index

import (
	"context"
	"encoding/binary"
	"errors"
	"slices"
	"testing"

	"sieve/internal/filter"
	"sieve/internal/format"
)

func TestSnapshotRoundTrip(t *testing.T) {
	idx := buildFixture(t)

	for _, compress := range []bool{false, true} {
		data, err := idx.Snapshot(compress)
		if err != nil {
			t.Fatalf("Snapshot(compress=%v): %v", compress, err)
		}
		h, err := format.Decode(data)
		if err != nil {
			t.Fatalf("header: %v", err)
		}
		if h.Type != format.TypeIndexSnapshot || h.Compressed() != compress {
			t.Fatalf("header = %+v", h)
		}

		loaded, err := Load(data)
		if err != nil {
			t.Fatalf("Load(compress=%v): %v", compress, err)
		}
		if loaded.DocCount() != idx.DocCount() {
			t.Errorf("DocCount = %d, want %d", loaded.DocCount(), idx.DocCount())
		}
		if !slices.Equal(loaded.Fields(), idx.Fields()) {
			t.Errorf("Fields = %v, want %v", loaded.Fields(), idx.Fields())
		}
		for _, name := range idx.Fields() {
			want, got := idx.Field(name).Postings, loaded.Field(name).Postings
			if !slices.EqualFunc(want, got, func(a, b Posting) bool {
				return a.Term == b.Term && slices.Equal(a.Docs, b.Docs)
			}) {
				t.Errorf("field %s postings = %v, want %v", name, got, want)
			}
		}

		docs, err := loaded.Search(context.Background(), &filter.Not{Child: &filter.Term{Field: "name", Value: "bob"}})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if !slices.Equal(docs, []uint32{0, 2, 3, 4}) {
			t.Errorf("Search after load = %v", docs)
		}
	}
}

func TestSnapshotEmptyIndex(t *testing.T) {
	idx, err := Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := idx.Snapshot(false)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.DocCount() != 0 || len(loaded.Fields()) != 0 {
		t.Errorf("expected empty index, got %d docs, fields %v", loaded.DocCount(), loaded.Fields())
	}
}

func TestLoadCorrupt(t *testing.T) {
	idx := buildFixture(t)
	good, err := idx.Snapshot(false)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	payloadStart := format.HeaderSize

	shrinkDocCount := slices.Clone(good)
	binary.LittleEndian.PutUint32(shrinkDocCount[payloadStart:], 2)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong type", format.Seal(format.TypeFilter, snapshotVersion, good[payloadStart:], false)},
		{"wrong version", format.Seal(format.TypeIndexSnapshot, snapshotVersion+1, good[payloadStart:], false)},
		{"short payload", good[:payloadStart+3]},
		{"truncated table", good[:payloadStart+12]},
		{"truncated postings", good[:len(good)-4]},
		{"doc ID out of range", shrinkDocCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.data); !errors.Is(err, ErrCorruptSnapshot) {
				t.Errorf("expected ErrCorruptSnapshot, got %v", err)
			}
		})
	}
}
