package format

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize caps decompressed payloads.
const maxDecodedSize = 256 << 20 // 256 MB

// zstdEnc and zstdDec are concurrent-safe when used through EncodeAll/DecodeAll.
var (
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
)

func init() {
	var err error
	zstdEnc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("format: init zstd encoder: " + err.Error())
	}
	zstdDec, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(maxDecodedSize),
	)
	if err != nil {
		panic("format: init zstd decoder: " + err.Error())
	}
}

// Seal prefixes payload with a header of the given type and version,
// compressing the payload when compress is set.
func Seal(typ, version byte, payload []byte, compress bool) []byte {
	h := Header{Type: typ, Version: version}
	if compress {
		h.Flags |= FlagCompressed
		return zstdEnc.EncodeAll(payload, h.Append(make([]byte, 0, HeaderSize+len(payload)/2)))
	}
	return append(h.Append(make([]byte, 0, HeaderSize+len(payload))), payload...)
}

// Open validates the header of data and returns the payload after it,
// decompressing it if the header says so.
func Open(data []byte, typ, version byte) ([]byte, error) {
	h, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := h.Expect(typ, version); err != nil {
		return nil, err
	}
	payload := data[HeaderSize:]
	if !h.Compressed() {
		return payload, nil
	}
	out, err := zstdDec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress zstd payload: %w", err)
	}
	return out, nil
}
