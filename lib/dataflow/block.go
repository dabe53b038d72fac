// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import "fmt"

// BlockBuffer splits a chunked byte stream into blocks of a fixed size.
// Block boundaries depend only on stream position, never on how the
// stream was chunked.
//
// One full block is always held back until more input arrives or the
// stream ends, so the final block is known when it is emitted. Every
// block except the final one is exactly Size bytes; the final block
// holds 0 to Size bytes and is empty only when the whole stream was.
type BlockBuffer struct {
	size    int
	pending []byte
}

// NewBlockBuffer returns a BlockBuffer producing blocks of size bytes.
// It panics if size is not positive.
func NewBlockBuffer(size int) *BlockBuffer {
	if size <= 0 {
		panic(fmt.Sprintf("dataflow.NewBlockBuffer: block size must be positive, got %d", size))
	}
	return &BlockBuffer{size: size}
}

// Size returns the block size.
func (b *BlockBuffer) Size() int {
	return b.size
}

// Feed appends input and calls emit for every block that is complete.
// When last is true the remaining bytes are emitted as the final block
// and the buffer is reset. The block slice passed to emit is only valid
// during the call.
func (b *BlockBuffer) Feed(input []byte, last bool, emit func(block []byte, final bool) error) error {
	b.pending = append(b.pending, input...)

	start := 0
	for len(b.pending)-start > b.size {
		if err := emit(b.pending[start:start+b.size], false); err != nil {
			return err
		}
		start += b.size
	}

	if last {
		err := emit(b.pending[start:], true)
		b.pending = b.pending[:0]
		return err
	}

	b.pending = append(b.pending[:0], b.pending[start:]...)
	return nil
}

// Pending returns the number of buffered bytes not yet emitted.
func (b *BlockBuffer) Pending() int {
	return len(b.pending)
}

// Reset discards buffered bytes.
func (b *BlockBuffer) Reset() {
	b.pending = b.pending[:0]
}

// FrameBuffer reassembles length-prefixed frames from a chunked stream.
// Each frame starts with a fixed-size header from which the total frame
// length (header included) can be computed.
type FrameBuffer struct {
	headerSize int
	frameSize  func(header []byte) (int, error)
	pending    []byte
}

// NewFrameBuffer returns a FrameBuffer for frames whose first
// headerSize bytes determine the frame's total length via frameSize.
// frameSize should reject impossible lengths with an error wrapping
// [ErrCorrupt]; it is called once per frame.
func NewFrameBuffer(headerSize int, frameSize func(header []byte) (int, error)) *FrameBuffer {
	if headerSize <= 0 {
		panic(fmt.Sprintf("dataflow.NewFrameBuffer: header size must be positive, got %d", headerSize))
	}
	return &FrameBuffer{headerSize: headerSize, frameSize: frameSize}
}

// Feed consumes input and calls emit once for each complete frame, in
// stream order. Bytes of an incomplete trailing frame are kept for the
// next call. The frame slice passed to emit is only valid during the
// call.
func (f *FrameBuffer) Feed(input []byte, emit func(frame []byte) error) error {
	data := input
	if len(f.pending) > 0 {
		f.pending = append(f.pending, input...)
		data = f.pending
	}

	offset := 0
	for len(data)-offset >= f.headerSize {
		size, err := f.frameSize(data[offset : offset+f.headerSize])
		if err != nil {
			return err
		}
		if size < f.headerSize {
			return fmt.Errorf("%w: frame length %d is shorter than its %d-byte header",
				ErrCorrupt, size, f.headerSize)
		}
		if len(data)-offset < size {
			break
		}
		if err := emit(data[offset : offset+size]); err != nil {
			return err
		}
		offset += size
	}

	f.pending = append(f.pending[:0], data[offset:]...)
	return nil
}

// Pending returns the number of bytes held from an incomplete frame.
func (f *FrameBuffer) Pending() int {
	return len(f.pending)
}

// Reset discards any partial frame.
func (f *FrameBuffer) Reset() {
	f.pending = f.pending[:0]
}
