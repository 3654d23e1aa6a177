package format

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpen(t *testing.T) {
	payload := bytes.Repeat([]byte("posting list "), 200)

	for _, compress := range []bool{false, true} {
		data := Seal(TypeFilter, 3, payload, compress)

		h, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if h.Compressed() != compress {
			t.Errorf("compress=%v: header compressed flag = %v", compress, h.Compressed())
		}
		if compress && len(data) >= len(payload) {
			t.Errorf("compressed size %d not smaller than payload %d", len(data), len(payload))
		}

		got, err := Open(data, TypeFilter, 3)
		if err != nil {
			t.Fatalf("Open (compress=%v): %v", compress, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("compress=%v: payload mismatch", compress)
		}
	}
}

func TestSealEmptyPayload(t *testing.T) {
	data := Seal(TypeIndexSnapshot, 1, nil, false)
	if len(data) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(data))
	}
	got, err := Open(data, TypeIndexSnapshot, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(got))
	}
}

func TestOpenErrors(t *testing.T) {
	sealed := Seal(TypeFilter, 1, []byte("x"), false)

	if _, err := Open(sealed, TypeIndexSnapshot, 1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if _, err := Open(sealed, TypeFilter, 2); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("expected ErrVersionMismatch, got %v", err)
	}
	if _, err := Open(sealed[:2], TypeFilter, 1); !errors.Is(err, ErrHeaderTooSmall) {
		t.Errorf("expected ErrHeaderTooSmall, got %v", err)
	}

	corrupt := Header{Type: TypeFilter, Version: 1, Flags: FlagCompressed}.Append(nil)
	corrupt = append(corrupt, "not zstd"...)
	if _, err := Open(corrupt, TypeFilter, 1); err == nil {
		t.Error("expected error for corrupt compressed payload")
	}
}
