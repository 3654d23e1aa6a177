// Package format frames sieve's binary artifacts (encoded filters and
// index snapshots) behind a small versioned header.
//
// Every artifact starts with four bytes:
//
//	's' | type | version | flags
//
// followed by the payload, zstd-compressed when FlagCompressed is set.
package format

import (
	"errors"
	"fmt"
)

const (
	Signature  = 's'
	HeaderSize = 4

	TypeFilter        = 'f'
	TypeIndexSnapshot = 'x'

	FlagCompressed = 0x01
)

var (
	ErrHeaderTooSmall    = errors.New("header too small")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrVersionMismatch   = errors.New("version mismatch")
)

type Header struct {
	Type    byte
	Version byte
	Flags   byte
}

func (h Header) Compressed() bool {
	return h.Flags&FlagCompressed != 0
}

// Append appends the encoded header to buf.
func (h Header) Append(buf []byte) []byte {
	return append(buf, Signature, h.Type, h.Version, h.Flags)
}

// Expect returns an error unless h carries the given type and version.
func (h Header) Expect(typ, version byte) error {
	if h.Type != typ {
		return fmt.Errorf("%w: got %q, want %q", ErrTypeMismatch, h.Type, typ)
	}
	if h.Version != version {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, version)
	}
	return nil
}

// Decode reads the header at the start of buf.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrHeaderTooSmall, len(buf))
	}
	if buf[0] != Signature {
		return Header{}, fmt.Errorf("%w: 0x%02x", ErrSignatureMismatch, buf[0])
	}
	return Header{Type: buf[1], Version: buf[2], Flags: buf[3]}, nil
}
