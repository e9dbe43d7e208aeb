package resultstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/exemplar/internal/conv"
)

// Compression selects how blobs are compressed.
type Compression string

const (
	// CompressionNone stores blobs as encoded.
	CompressionNone Compression = "none"
	// CompressionZSTD favors ratio.
	CompressionZSTD Compression = "zstd"
	// CompressionLZ4 favors speed.
	CompressionLZ4 Compression = "lz4"
)

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZSTD, CompressionLZ4:
		return Compression(s), nil
	default:
		return "", fmt.Errorf("resultstore: unknown compression %q (want none, zstd or lz4)", s)
	}
}

// Ext returns the file extension used for blobs of this compression.
func (c Compression) Ext() string {
	switch c {
	case CompressionZSTD:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// Frame layout: [kind uint8][uncompressed size uint64 LE][payload].
const frameHeaderSize = 9

const (
	frameStored byte = iota
	frameLZ4
	frameZSTD
)

var errCorruptFrame = errors.New("resultstore: corrupt frame")

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

// compress frames data. Data that does not shrink below 90% is stored as is.
func compress(data []byte, c Compression) ([]byte, error) {
	var (
		kind    = frameStored
		payload = data
	)

	if len(data) > 0 {
		switch c {
		case CompressionLZ4:
			buf := make([]byte, lz4.CompressBlockBound(len(data)))
			n, err := lz4.CompressBlock(data, buf, nil)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				kind, payload = frameLZ4, buf[:n]
			}
		case CompressionZSTD:
			enc := getZstdEncoder()
			payload = enc.EncodeAll(data, nil)
			zstdEncoderPool.Put(enc)
			kind = frameZSTD
		}
		if kind != frameStored && float64(len(payload)) > float64(len(data))*0.9 {
			kind, payload = frameStored, data
		}
	}

	out := make([]byte, frameHeaderSize+len(payload))
	out[0] = kind
	binary.LittleEndian.PutUint64(out[1:], uint64(len(data)))
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

// decompress reverses compress. The frame kind is read from the header.
func decompress(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", errCorruptFrame, len(frame))
	}
	kind, size, err := parseFrameHeader(frame[:frameHeaderSize])
	if err != nil {
		return nil, err
	}
	return decodeFrame(kind, size, frame[frameHeaderSize:])
}

// parseFrameHeader returns the kind and uncompressed size recorded in hdr.
func parseFrameHeader(hdr []byte) (byte, int, error) {
	size, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(hdr[1:frameHeaderSize]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", errCorruptFrame, err)
	}
	if hdr[0] > frameZSTD {
		return 0, 0, fmt.Errorf("%w: unknown kind %d", errCorruptFrame, hdr[0])
	}
	return hdr[0], size, nil
}

func decodeFrame(kind byte, size int, payload []byte) ([]byte, error) {
	switch kind {
	case frameStored:
		if len(payload) != size {
			return nil, fmt.Errorf("%w: stored size %d, header %d", errCorruptFrame, len(payload), size)
		}
		return payload, nil
	case frameLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, fmt.Errorf("%w: lz4 size %d, header %d", errCorruptFrame, n, size)
		}
		return out, nil
	case frameZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, err
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: zstd size %d, header %d", errCorruptFrame, len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", errCorruptFrame, kind)
	}
}
