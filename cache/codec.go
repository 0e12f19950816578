package cache

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

const flagCompressed byte = 1 << 0

var (
	encoderOnce sync.Once
	sharedEnc   *zstd.Encoder
	decoderOnce sync.Once
	sharedDec   *zstd.Decoder
)

func encoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		sharedEnc, _ = zstd.NewWriter(nil)
	})
	return sharedEnc
}

func decoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		sharedDec, _ = zstd.NewReader(nil)
	})
	return sharedDec
}

// encode wraps value in the on-the-wire entry format every level shares:
// a single flags byte followed by the (possibly compressed) payload.
// Values at or above threshold are zstd-compressed; threshold <= 0
// disables compression entirely.
func encode(value []byte, threshold int) []byte {
	if threshold > 0 && len(value) >= threshold {
		compressed := encoder().EncodeAll(value, nil)
		return append([]byte{flagCompressed}, compressed...)
	}
	return append([]byte{0}, value...)
}

// decode reverses encode, decompressing when the entry's flags byte
// says to.
func decode(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, ErrNotFound
	}

	flags, payload := blob[0], blob[1:]
	if flags&flagCompressed == 0 {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}

	return decoder().DecodeAll(payload, nil)
}
