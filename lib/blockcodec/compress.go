// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package blockcodec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the algorithm a block was compressed with. Tags are
// stored in frame headers (1 byte each); the values are format
// constants.
type Tag uint8

const (
	// None stores the block uncompressed. Used for incompressible
	// blocks whatever algorithm was requested.
	None Tag = 0

	// LZ4 is LZ4 block compression. Fast, moderate ratio.
	LZ4 Tag = 1

	// Zstd is zstd compression. Better ratios on text-like data.
	Zstd Tag = 2

	// BG4LZ4 transposes 4-byte groups so that bytes at the same
	// position are adjacent, then applies LZ4. Effective on arrays of
	// similar-magnitude 32-bit values.
	BG4LZ4 Tag = 3

	// Auto is not a wire tag. An encoder configured with Auto probes
	// each block and selects None, LZ4 or Zstd.
	Auto Tag = 255
)

// String returns the name of a tag.
func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case BG4LZ4:
		return "bg4_lz4"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseTag parses a tag from its name.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "bg4_lz4":
		return BG4LZ4, nil
	case "auto":
		return Auto, nil
	default:
		return 0, fmt.Errorf("unknown block compression %q", name)
	}
}

// onWire reports whether tag may appear in a frame header.
func (tag Tag) onWire() bool {
	return tag <= BG4LZ4
}

// errIncompressible is returned by compressors when the output is not
// smaller than the input. The caller falls back to None.
var errIncompressible = errors.New("block is incompressible")

// IsIncompressible reports whether err means data could not be
// compressed smaller than its original size.
func IsIncompressible(err error) bool {
	return errors.Is(err, errIncompressible)
}

// compressor compresses blocks with one algorithm at one level.
type compressor struct {
	tag      Tag
	lz4Level lz4.CompressionLevel
	zstd     *zstd.Encoder
}

// newCompressor returns a compressor for tag. level 0 selects the
// algorithm's default; LZ4 accepts 1-9 (high-compression mode), zstd
// accepts 1-22.
func newCompressor(tag Tag, level int) (*compressor, error) {
	c := &compressor{tag: tag}
	switch tag {
	case None, Auto:
		if level != 0 {
			return nil, fmt.Errorf("blockcodec: %s takes no level", tag)
		}
	case LZ4, BG4LZ4:
		lz4Level, err := lz4LevelFor(level)
		if err != nil {
			return nil, err
		}
		c.lz4Level = lz4Level
	case Zstd:
		if level == 0 {
			c.zstd = defaultZstdEncoder
			break
		}
		if level < 1 || level > 22 {
			return nil, fmt.Errorf("blockcodec: zstd level %d outside [1, 22]", level)
		}
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("blockcodec: zstd encoder: %w", err)
		}
		c.zstd = encoder
	default:
		return nil, fmt.Errorf("blockcodec: unsupported tag %s", tag)
	}
	return c, nil
}

func lz4LevelFor(level int) (lz4.CompressionLevel, error) {
	levels := []lz4.CompressionLevel{
		lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
		lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
	}
	if level < 0 || level >= len(levels) {
		return 0, fmt.Errorf("blockcodec: lz4 level %d outside [0, 9]", level)
	}
	return levels[level], nil
}

// compress returns the compressed form of data and the tag it was
// stored under.
func (c *compressor) compress(data []byte) ([]byte, Tag, error) {
	tag := c.tag
	if tag == Auto {
		tag = SelectTag(data)
	}
	var (
		compressed []byte
		err        error
	)
	switch tag {
	case None:
		return data, None, nil
	case LZ4:
		compressed, err = c.compressLZ4(data)
	case Zstd:
		compressed, err = c.compressZstd(data)
	case BG4LZ4:
		compressed, err = c.compressLZ4(bg4Transpose(data))
	default:
		return nil, 0, fmt.Errorf("blockcodec: unsupported tag %s", tag)
	}
	if IsIncompressible(err) {
		return data, None, nil
	}
	return compressed, tag, err
}

func (c *compressor) compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))

	var (
		written int
		err     error
	)
	if c.lz4Level == lz4.Fast {
		written, err = lz4.CompressBlock(data, destination, nil)
	} else {
		written, err = lz4.CompressBlockHC(data, destination, c.lz4Level, nil, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// CompressBlock returns 0 when it determines the data is
	// incompressible.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func (c *compressor) compressZstd(data []byte) ([]byte, error) {
	compressed := c.zstd.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

// defaultZstdEncoder and zstdDecoder are shared by every stage. Both are
// safe for concurrent use.
var (
	defaultZstdEncoder *zstd.Encoder
	zstdDecoder        *zstd.Decoder
)

func init() {
	var err error
	defaultZstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("blockcodec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("blockcodec: zstd decoder initialization failed: " + err.Error())
	}
}

// appendDecompressed decompresses a block stored under tag and appends
// exactly rawSize bytes to dst.
func appendDecompressed(dst, stored []byte, tag Tag, rawSize int) ([]byte, error) {
	switch tag {
	case None:
		if len(stored) != rawSize {
			return dst, fmt.Errorf("stored block: size %d does not match expected %d", len(stored), rawSize)
		}
		return append(dst, stored...), nil

	case LZ4:
		return appendLZ4(dst, stored, rawSize)

	case Zstd:
		start := len(dst)
		dst = slices.Grow(dst, rawSize)
		result, err := zstdDecoder.DecodeAll(stored, dst)
		if err != nil {
			return dst, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result)-start != rawSize {
			return dst, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result)-start, rawSize)
		}
		return result, nil

	case BG4LZ4:
		transposed, err := appendLZ4(nil, stored, rawSize)
		if err != nil {
			return dst, err
		}
		return append(dst, bg4Untranspose(transposed)...), nil

	default:
		return dst, fmt.Errorf("unsupported tag %s", tag)
	}
}

func appendLZ4(dst, stored []byte, rawSize int) ([]byte, error) {
	start := len(dst)
	dst = slices.Grow(dst, rawSize)[:start+rawSize]
	read, err := lz4.UncompressBlock(stored, dst[start:])
	if err != nil {
		return dst[:start], fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != rawSize {
		return dst[:start], fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, rawSize)
	}
	return dst, nil
}

// SelectTag probes data to choose an algorithm: zstd if it shrinks the
// data by at least 1.5x, LZ4 between 1.1x and 1.5x, otherwise None.
func SelectTag(data []byte) Tag {
	if len(data) == 0 {
		return None
	}
	compressed := defaultZstdEncoder.EncodeAll(data, nil)
	ratio := float64(len(data)) / float64(len(compressed))
	switch {
	case ratio >= 1.5:
		return Zstd
	case ratio >= 1.1:
		return LZ4
	default:
		return None
	}
}

// bg4Transpose rearranges data so that all byte-position-0 values
// come first, then all byte-position-1 values, and so on, in groups of
// 4. Trailing bytes beyond the last whole group are kept in place.
func bg4Transpose(data []byte) []byte {
	groupCount := len(data) / 4
	output := make([]byte, len(data))
	for i := range groupCount {
		output[i] = data[i*4]
		output[groupCount+i] = data[i*4+1]
		output[groupCount*2+i] = data[i*4+2]
		output[groupCount*3+i] = data[i*4+3]
	}
	copy(output[groupCount*4:], data[groupCount*4:])
	return output
}

// bg4Untranspose reverses bg4Transpose.
func bg4Untranspose(data []byte) []byte {
	groupCount := len(data) / 4
	output := make([]byte, len(data))
	for i := range groupCount {
		output[i*4] = data[i]
		output[i*4+1] = data[groupCount+i]
		output[i*4+2] = data[groupCount*2+i]
		output[i*4+3] = data[groupCount*3+i]
	}
	copy(output[groupCount*4:], data[groupCount*4:])
	return output
}
