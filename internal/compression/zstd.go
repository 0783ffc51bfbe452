// Package compression wraps zstd framing for stored shader blobs.
//
// Stored bytes carry a header only xeno writes:
//
//	"XNZ" 0x01 <zstd frame>   compressed blob
//	"XNR" 0x01 <blob>         raw blob that itself starts with "XN"
//
// Anything else is a raw blob and reads back unchanged, so blobs are opaque: a blob
// that happens to be a zstd frame is never decoded.
package compression

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize caps the memory a single frame may expand to.
const maxDecodedSize = 256 << 20

const formatVersion = 0x01

var (
	headerPrefix     = []byte("XN")
	compressedHeader = []byte{'X', 'N', 'Z', formatVersion}
	rawHeader        = []byte{'X', 'N', 'R', formatVersion}
)

// ErrCorrupt reports a compressed blob whose frame does not decode.
var ErrCorrupt = errors.New("compression: corrupt frame")

type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	enabled bool
}

// NewCompressor builds a compressor. level 1..3 maps to fastest, default and better
// compression.
func NewCompressor(level int, enabled bool) (*Compressor, error) {
	decoder, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxDecodedSize),
	)
	if err != nil {
		return nil, err
	}

	if !enabled {
		return &Compressor{decoder: decoder}, nil
	}

	var encoderLevel zstd.EncoderLevel
	switch level {
	case 1:
		encoderLevel = zstd.SpeedFastest
	case 2:
		encoderLevel = zstd.SpeedDefault
	case 3:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedDefault
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encoderLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		decoder.Close()
		return nil, err
	}

	return &Compressor{
		encoder: encoder,
		decoder: decoder,
		enabled: true,
	}, nil
}

// Enabled reports whether Compress produces frames.
func (c *Compressor) Enabled() bool { return c.enabled }

// Compress returns the bytes to store for data: a compressed frame when compression
// is on and it pays off, otherwise data itself, escaped if it could be mistaken for
// a header.
func (c *Compressor) Compress(data []byte) []byte {
	if c.enabled && len(data) >= 128 {
		frame := c.encoder.EncodeAll(data, bytes.Clone(compressedHeader))
		if len(frame) < len(data) {
			return frame
		}
	}
	if bytes.HasPrefix(data, headerPrefix) {
		return append(bytes.Clone(rawHeader), data...)
	}
	return data
}

// Decompress reverses Compress. A disabled compressor still decodes frames written
// earlier.
func (c *Compressor) Decompress(stored []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(stored, compressedHeader):
		data, err := c.decoder.DecodeAll(stored[len(compressedHeader):], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return data, nil
	case bytes.HasPrefix(stored, rawHeader):
		return stored[len(rawHeader):], nil
	default:
		return stored, nil
	}
}

func (c *Compressor) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}
