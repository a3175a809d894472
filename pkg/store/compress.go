package store

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// shared encoder/decoder; both are safe for concurrent EncodeAll/DecodeAll
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdOnce    sync.Once
	errZstd     error
)

func initZstd() error {
	zstdOnce.Do(func() {
		zstdEncoder, errZstd = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if errZstd != nil {
			errZstd = fmt.Errorf("creating zstd encoder: %w", errZstd)
			return
		}
		zstdDecoder, errZstd = zstd.NewReader(nil)
		if errZstd != nil {
			errZstd = fmt.Errorf("creating zstd decoder: %w", errZstd)
		}
	})
	return errZstd
}

func compress(src []byte) ([]byte, error) {
	if err := initZstd(); err != nil {
		return nil, err
	}
	return zstdEncoder.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

// decompress inflates zstd frames and passes raw database images through unchanged.
func decompress(src []byte) ([]byte, error) {
	if !bytes.HasPrefix(src, zstdMagic) {
		return src, nil
	}
	if err := initZstd(); err != nil {
		return nil, err
	}
	out, err := zstdDecoder.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
