package shardio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the payload compression of a blob.
type Codec uint8

const (
	// CodecNone stores payloads uncompressed.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression. Fast decompression; the usual
	// choice for code blobs read on every scan.
	CodecLZ4 Codec = 1
	// CodecZSTD uses zstd. Better ratio; suited to cold shards.
	CodecZSTD Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec converts a manifest codec name to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZSTD, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compress returns the stored payload and the codec actually used. When
// compression does not pay off the payload is stored raw under CodecNone.
func compress(data []byte, codec Codec) ([]byte, Codec, error) {
	if codec == CodecNone || len(data) == 0 {
		return data, CodecNone, nil
	}

	var compressed []byte
	switch codec {
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			// Incompressible input.
			return data, CodecNone, nil
		}
		compressed = buf[:n]
	case CodecZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("unknown codec %d", codec)
	}

	if len(compressed) >= len(data) {
		return data, CodecNone, nil
	}
	return compressed, codec, nil
}

// decompress expands a stored payload to rawSize bytes.
func decompress(payload []byte, codec Codec, rawSize int) ([]byte, error) {
	switch codec {
	case CodecNone:
		if len(payload) != rawSize {
			return nil, errors.New("raw payload size mismatch")
		}
		return payload, nil
	case CodecLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if n != rawSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return out, nil
	case CodecZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, rawSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if len(out) != rawSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown codec %d", codec)
	}
}
