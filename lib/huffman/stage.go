// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package huffman

import (
	"fmt"

	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// Format is the element type of Huffman block streams.
const Format dataflow.ElementType = "huffman"

const (
	// DefaultBlockSize is the encoder's block size when none is given.
	DefaultBlockSize = 64 * 1024

	// MaxBlockSize is the largest block the stages accept. It keeps the
	// code bits of a worst-case block within the 32-bit header field.
	MaxBlockSize = 64 * 1024 * 1024
)

func checkBlockSize(size int) (int, error) {
	if size == 0 {
		return DefaultBlockSize, nil
	}
	if size < 1 || size > MaxBlockSize {
		return 0, fmt.Errorf("huffman: block size %d outside [1, %d]", size, MaxBlockSize)
	}
	return size, nil
}

// Encoder is the Huffman encoding stage. It builds a fresh tree for
// every block.
type Encoder struct {
	blocks *dataflow.BlockBuffer
}

// NewEncoder returns an encoding stage cutting the stream into blocks of
// blockSize bytes. Zero selects DefaultBlockSize.
func NewEncoder(blockSize int) (*Encoder, error) {
	size, err := checkBlockSize(blockSize)
	if err != nil {
		return nil, err
	}
	return &Encoder{blocks: dataflow.NewBlockBuffer(size)}, nil
}

// BlockSize returns the encoder's block size.
func (e *Encoder) BlockSize() int {
	return e.blocks.Size()
}

func (e *Encoder) Name() string {
	return "huffman-encode"
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
		return writeBlock(chunk.Writer(), block)
	})
}

// Teardown fails with [dataflow.ErrUnflushed] if a partial block was
// never coded.
func (e *Encoder) Teardown() error {
	pending := e.blocks.Pending()
	e.blocks.Reset()
	if pending > 0 {
		return fmt.Errorf("huffman: %d bytes never coded: %w", pending, dataflow.ErrUnflushed)
	}
	return nil
}

// Decoder is the Huffman decoding stage.
type Decoder struct {
	maxBlockSize int
	frames       *dataflow.FrameBuffer
}

// NewDecoder returns a decoding stage that rejects blocks decoding to
// more than maxBlockSize bytes. Zero selects MaxBlockSize.
func NewDecoder(maxBlockSize int) (*Decoder, error) {
	if maxBlockSize == 0 {
		maxBlockSize = MaxBlockSize
	}
	if maxBlockSize < 1 || maxBlockSize > MaxBlockSize {
		return nil, fmt.Errorf("huffman: max block size %d outside [1, %d]", maxBlockSize, MaxBlockSize)
	}
	d := &Decoder{maxBlockSize: maxBlockSize}
	d.frames = dataflow.NewFrameBuffer(HeaderSize, d.frameSize)
	return d, nil
}

func (d *Decoder) frameSize(header []byte) (int, error) {
	parsed := parseHeader(header)
	if err := parsed.validate(int64(d.maxBlockSize)); err != nil {
		return 0, err
	}
	return HeaderSize + int(parsed.PayloadSize()), nil
}

func (d *Decoder) Name() string {
	return "huffman-decode"
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
		var err error
		chunk.Output, err = decodeBlock(chunk.Output, frame, int64(d.maxBlockSize))
		return err
	})
	if err != nil {
		return err
	}
	if chunk.IsLastChunk && d.frames.Pending() > 0 {
		return fmt.Errorf("huffman: stream ends inside a block (%d bytes buffered): %w",
			d.frames.Pending(), dataflow.ErrTruncated)
	}
	return nil
}

// Teardown fails with [dataflow.ErrTruncated] if part of a block is
// still buffered.
func (d *Decoder) Teardown() error {
	pending := d.frames.Pending()
	d.frames.Reset()
	if pending > 0 {
		return fmt.Errorf("huffman: %d bytes of an incomplete block: %w", pending, dataflow.ErrTruncated)
	}
	return nil
}
