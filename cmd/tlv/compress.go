package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Decompression algorithms accepted by --decompress.
const (
	compressionNone = ""
	compressionZstd = "zstd"
	compressionLZ4  = "lz4"
)

// decompressInput undoes the compression of a captured stream. Both
// algorithms use their framed formats, as written by the zstd and lz4
// command line tools.
func decompressInput(data []byte, algorithm string) ([]byte, error) {
	switch algorithm {
	case compressionNone:
		return data, nil

	case compressionZstd:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		out, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil

	case compressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown compression %q (want zstd or lz4)", algorithm)
}
