// Package inverted encodes (field, term) posting tables.
//
// The binary format is:
//
//	[header][entry_count:u32][string_table][posting_blob]
//
// String table entry:
//
//	[field_len:u16][field_bytes][term_len:u16][term_bytes][posting_offset:u32][posting_count:u32]
//
// Posting blob: concatenated document ID arrays, each ID is u32. All
// integers are little-endian. posting_offset is relative to the blob.
package inverted

import (
	"encoding/binary"
	"errors"
	"math"
)

// Size constants for binary format.
const (
	StringLenSize     = 2
	PostingOffsetSize = 4
	PostingCountSize  = 4
	DocIDSize         = 4
	EntryCountSize    = 4
)

var (
	ErrIndexTooSmall       = errors.New("index too small")
	ErrStringTooLong       = errors.New("string longer than 65535 bytes")
	ErrStringSizeMismatch  = errors.New("string table size mismatch")
	ErrPostingSizeMismatch = errors.New("posting list size mismatch")
)

// Entry is one posting list, keyed by field and term.
type Entry interface {
	GetField() string
	GetTerm() string
	GetDocs() []uint32
}

// Encode appends entries to header and writes the entry count at
// entryCountOffset, which must lie inside header.
func Encode[T Entry](entries []T, header []byte, entryCountOffset int) ([]byte, error) {
	totalDocs := 0
	totalStringBytes := 0
	for _, e := range entries {
		if len(e.GetField()) > math.MaxUint16 || len(e.GetTerm()) > math.MaxUint16 {
			return nil, ErrStringTooLong
		}
		totalDocs += len(e.GetDocs())
		totalStringBytes += len(e.GetField()) + len(e.GetTerm())
	}

	// Each entry: fieldLen(2) + field + termLen(2) + term + offset(4) + count(4)
	stringTableSize := len(entries)*(StringLenSize+StringLenSize+PostingOffsetSize+PostingCountSize) + totalStringBytes
	buf := make([]byte, len(header)+stringTableSize+totalDocs*DocIDSize)

	copy(buf, header)
	binary.LittleEndian.PutUint32(buf[entryCountOffset:], uint32(len(entries)))

	stringCursor := len(header)
	postingCursor := len(header) + stringTableSize
	postingOffset := 0

	for _, e := range entries {
		stringCursor = putString(buf, stringCursor, e.GetField())
		stringCursor = putString(buf, stringCursor, e.GetTerm())

		docs := e.GetDocs()
		binary.LittleEndian.PutUint32(buf[stringCursor:], uint32(postingOffset))
		stringCursor += PostingOffsetSize
		binary.LittleEndian.PutUint32(buf[stringCursor:], uint32(len(docs)))
		stringCursor += PostingCountSize

		for _, id := range docs {
			binary.LittleEndian.PutUint32(buf[postingCursor:], id)
			postingCursor += DocIDSize
		}
		postingOffset += len(docs) * DocIDSize
	}

	return buf, nil
}

func putString(buf []byte, cursor int, s string) int {
	binary.LittleEndian.PutUint16(buf[cursor:], uint16(len(s)))
	cursor += StringLenSize
	return cursor + copy(buf[cursor:], s)
}

// Decode decodes entries from data. dataStart is the offset where the
// string table begins; the entry count is expected right before it.
func Decode[T any](data []byte, dataStart int, newEntry func(field, term string, docs []uint32) T) ([]T, error) {
	if dataStart < EntryCountSize || len(data) < dataStart {
		return nil, ErrIndexTooSmall
	}

	entryCount := binary.LittleEndian.Uint32(data[dataStart-EntryCountSize : dataStart])

	// Scan to find the posting blob start.
	scanCursor := dataStart
	for range entryCount {
		for range 2 {
			if scanCursor+StringLenSize > len(data) {
				return nil, ErrStringSizeMismatch
			}
			n := int(binary.LittleEndian.Uint16(data[scanCursor:]))
			scanCursor += StringLenSize + n
		}
		scanCursor += PostingOffsetSize + PostingCountSize
		if scanCursor > len(data) {
			return nil, ErrStringSizeMismatch
		}
	}

	postingBlobStart := scanCursor
	postingBlobSize := len(data) - postingBlobStart

	entries := make([]T, entryCount)
	cursor := dataStart
	for i := range entries {
		var field, term string
		field, cursor = readString(data, cursor)
		term, cursor = readString(data, cursor)

		pOffset := int(binary.LittleEndian.Uint32(data[cursor:]))
		cursor += PostingOffsetSize
		pCount := int(binary.LittleEndian.Uint32(data[cursor:]))
		cursor += PostingCountSize

		if pOffset > postingBlobSize || pCount > (postingBlobSize-pOffset)/DocIDSize {
			return nil, ErrPostingSizeMismatch
		}

		docs := make([]uint32, pCount)
		pCursor := postingBlobStart + pOffset
		for j := range docs {
			docs[j] = binary.LittleEndian.Uint32(data[pCursor:])
			pCursor += DocIDSize
		}

		entries[i] = newEntry(field, term, docs)
	}

	return entries, nil
}

func readString(data []byte, cursor int) (string, int) {
	n := int(binary.LittleEndian.Uint16(data[cursor:]))
	cursor += StringLenSize
	return string(data[cursor : cursor+n]), cursor + n
}
