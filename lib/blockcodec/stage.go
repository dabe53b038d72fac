// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package blockcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// Format is the element type of framed block streams.
const Format dataflow.ElementType = "blocks"

const (
	// HeaderSize is the size of a frame header.
	HeaderSize = 9

	// DefaultBlockSize is the encoder's block size when none is given.
	DefaultBlockSize = 256 * 1024

	// MaxBlockSize is the largest block the stages accept.
	MaxBlockSize = 64 * 1024 * 1024
)

// Options configures an Encoder.
type Options struct {
	// BlockSize is the number of input bytes per block. Zero selects
	// DefaultBlockSize.
	BlockSize int

	// Level is the algorithm-specific compression level. Zero selects
	// the default.
	Level int
}

// Encoder is the block compression stage.
type Encoder struct {
	compressor *compressor
	blocks     *dataflow.BlockBuffer
}

// NewEncoder returns a stage compressing blocks with tag. Auto probes
// each block.
func NewEncoder(tag Tag, options Options) (*Encoder, error) {
	if options.BlockSize == 0 {
		options.BlockSize = DefaultBlockSize
	}
	if options.BlockSize < 1 || options.BlockSize > MaxBlockSize {
		return nil, fmt.Errorf("blockcodec: block size %d outside [1, %d]", options.BlockSize, MaxBlockSize)
	}
	compressor, err := newCompressor(tag, options.Level)
	if err != nil {
		return nil, err
	}
	return &Encoder{
		compressor: compressor,
		blocks:     dataflow.NewBlockBuffer(options.BlockSize),
	}, nil
}

func (e *Encoder) Name() string {
	return e.compressor.tag.String() + "-encode"
}

func (e *Encoder) InputType() dataflow.ElementType {
	return dataflow.Bytes
}

func (e *Encoder) OutputType() dataflow.ElementType {
	return Format
}

func (e *Encoder) Setup() error {
	e.blocks.Reset()
	return nil
}

func (e *Encoder) ProcessChunk(chunk *dataflow.ChunkContext) error {
	return e.blocks.Feed(chunk.Input, chunk.IsLastChunk, func(block []byte, _ bool) error {
		if len(block) == 0 {
			return nil
		}
		stored, tag, err := e.compressor.compress(block)
		if err != nil {
			return fmt.Errorf("blockcodec: %w", err)
		}
		chunk.Output = appendFrame(chunk.Output, tag, stored, len(block))
		return nil
	})
}

// Teardown fails with [dataflow.ErrUnflushed] if a partial block was
// never compressed.
func (e *Encoder) Teardown() error {
	pending := e.blocks.Pending()
	e.blocks.Reset()
	if pending > 0 {
		return fmt.Errorf("blockcodec: %d bytes never compressed: %w", pending, dataflow.ErrUnflushed)
	}
	return nil
}

func appendFrame(dst []byte, tag Tag, stored []byte, rawSize int) []byte {
	dst = append(dst, byte(tag))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(stored)))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(rawSize))
	return append(dst, stored...)
}

// frameHeader is a parsed frame header.
type frameHeader struct {
	tag       Tag
	storedLen uint32
	rawLen    uint32
}

func parseFrameHeader(data []byte) frameHeader {
	return frameHeader{
		tag:       Tag(data[0]),
		storedLen: binary.LittleEndian.Uint32(data[1:5]),
		rawLen:    binary.LittleEndian.Uint32(data[5:9]),
	}
}

func (h frameHeader) validate(maxBlockSize int) error {
	switch {
	case !h.tag.onWire():
		return fmt.Errorf("blockcodec: unknown tag %d: %w", uint8(h.tag), dataflow.ErrCorrupt)
	case h.rawLen == 0:
		return fmt.Errorf("blockcodec: empty block: %w", dataflow.ErrCorrupt)
	case int64(h.rawLen) > int64(maxBlockSize):
		return fmt.Errorf("blockcodec: block of %d bytes exceeds limit %d: %w",
			h.rawLen, maxBlockSize, dataflow.ErrCorrupt)
	case h.storedLen > h.rawLen:
		return fmt.Errorf("blockcodec: %s block stores %d bytes for %d: %w",
			h.tag, h.storedLen, h.rawLen, dataflow.ErrCorrupt)
	case h.tag == None && h.storedLen != h.rawLen:
		return fmt.Errorf("blockcodec: uncompressed block stores %d bytes for %d: %w",
			h.storedLen, h.rawLen, dataflow.ErrCorrupt)
	}
	return nil
}

// Decoder is the block decompression stage. It accepts frames of every
// tag.
type Decoder struct {
	maxBlockSize int
	frames       *dataflow.FrameBuffer
}

// NewDecoder returns a stage that rejects blocks larger than
// maxBlockSize. Zero selects MaxBlockSize.
func NewDecoder(maxBlockSize int) (*Decoder, error) {
	if maxBlockSize == 0 {
		maxBlockSize = MaxBlockSize
	}
	if maxBlockSize < 1 || maxBlockSize > MaxBlockSize {
		return nil, fmt.Errorf("blockcodec: max block size %d outside [1, %d]", maxBlockSize, MaxBlockSize)
	}
	d := &Decoder{maxBlockSize: maxBlockSize}
	d.frames = dataflow.NewFrameBuffer(HeaderSize, func(header []byte) (int, error) {
		parsed := parseFrameHeader(header)
		if err := parsed.validate(d.maxBlockSize); err != nil {
			return 0, err
		}
		return HeaderSize + int(parsed.storedLen), nil
	})
	return d, nil
}

func (d *Decoder) Name() string {
	return "block-decode"
}

func (d *Decoder) InputType() dataflow.ElementType {
	return Format
}

func (d *Decoder) OutputType() dataflow.ElementType {
	return dataflow.Bytes
}

func (d *Decoder) Setup() error {
	d.frames.Reset()
	return nil
}

func (d *Decoder) ProcessChunk(chunk *dataflow.ChunkContext) error {
	err := d.frames.Feed(chunk.Input, func(frame []byte) error {
		header := parseFrameHeader(frame)
		var err error
		chunk.Output, err = appendDecompressed(chunk.Output, frame[HeaderSize:], header.tag, int(header.rawLen))
		if err != nil {
			return fmt.Errorf("blockcodec: %w: %w", dataflow.ErrCorrupt, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if chunk.IsLastChunk && d.frames.Pending() > 0 {
		return fmt.Errorf("blockcodec: stream ends inside a frame (%d bytes buffered): %w",
			d.frames.Pending(), dataflow.ErrTruncated)
	}
	return nil
}

// Teardown fails with [dataflow.ErrTruncated] if part of a frame is
// still buffered.
func (d *Decoder) Teardown() error {
	pending := d.frames.Pending()
	d.frames.Reset()
	if pending > 0 {
		return fmt.Errorf("blockcodec: %d bytes of an incomplete frame: %w", pending, dataflow.ErrTruncated)
	}
	return nil
}

// Compress runs data through an Encoder in one call.
func Compress(data []byte, tag Tag, options Options) ([]byte, error) {
	encoder, err := NewEncoder(tag, options)
	if err != nil {
		return nil, err
	}
	return dataflow.Apply([]dataflow.Stage{encoder}, data)
}

// Decompress reverses [Compress].
func Decompress(encoded []byte) ([]byte, error) {
	decoder, err := NewDecoder(0)
	if err != nil {
		return nil, err
	}
	return dataflow.Apply([]dataflow.Stage{decoder}, encoded)
}
