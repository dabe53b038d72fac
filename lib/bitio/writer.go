// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package bitio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// bufferSize is the number of completed bytes a Writer holds before
// writing them to the underlying io.Writer.
const bufferSize = 4096

// Writer packs bits into bytes and writes them to an io.Writer.
//
// Write errors are sticky: after the first failure every method returns
// the same error without writing.
type Writer struct {
	w     io.Writer
	order binary.ByteOrder

	// current holds the partial byte; pending is the number of bits
	// already placed in it (0-7), filled from bit 7 downward.
	current byte
	pending uint

	buffer   [bufferSize]byte
	buffered int

	bitsWritten uint64
	err         error
}

// NewWriter returns a Writer that emits bytes to w. order governs the
// multi-byte numeric helpers only.
func NewWriter(w io.Writer, order binary.ByteOrder) *Writer {
	return &Writer{w: w, order: order}
}

// WriteBit appends a single bit. Any non-zero value writes a 1.
func (w *Writer) WriteBit(bit uint8) error {
	if w.err != nil {
		return w.err
	}
	if bit != 0 {
		w.current |= 1 << (7 - w.pending)
	}
	w.pending++
	w.bitsWritten++
	if w.pending == 8 {
		w.pushByte(w.current)
		w.current = 0
		w.pending = 0
	}
	return w.err
}

// WriteBits appends the low n bits of value, most significant first.
// n must be between 0 and 64.
func (w *Writer) WriteBits(value uint64, n int) error {
	if n < 0 || n > 64 {
		return fmt.Errorf("bitio: cannot write %d bits", n)
	}
	if w.err != nil {
		return w.err
	}

	// Byte-aligned whole bytes skip the per-bit loop.
	if w.pending == 0 && n%8 == 0 {
		for shift := n - 8; shift >= 0; shift -= 8 {
			w.pushByte(byte(value >> uint(shift)))
		}
		w.bitsWritten += uint64(n)
		return w.err
	}

	for i := n - 1; i >= 0; i-- {
		if err := w.WriteBit(uint8(value>>uint(i)) & 1); err != nil {
			return err
		}
	}
	return nil
}

// WriteUint16 writes v as two bytes in the Writer's byte order.
func (w *Writer) WriteUint16(v uint16) error {
	var scratch [2]byte
	w.order.PutUint16(scratch[:], v)
	return w.writeBytes(scratch[:])
}

// WriteUint32 writes v as four bytes in the Writer's byte order.
func (w *Writer) WriteUint32(v uint32) error {
	var scratch [4]byte
	w.order.PutUint32(scratch[:], v)
	return w.writeBytes(scratch[:])
}

// WriteUint64 writes v as eight bytes in the Writer's byte order.
func (w *Writer) WriteUint64(v uint64) error {
	var scratch [8]byte
	w.order.PutUint64(scratch[:], v)
	return w.writeBytes(scratch[:])
}

func (w *Writer) writeBytes(data []byte) error {
	for _, b := range data {
		if err := w.WriteBits(uint64(b), 8); err != nil {
			return err
		}
	}
	return nil
}

// Flush zero-pads the partial byte, if any, and writes every buffered
// byte to the underlying writer. Writing may continue afterwards; the
// next bit starts a fresh byte.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.pending > 0 {
		w.bitsWritten += uint64(8 - w.pending)
		w.pushByte(w.current)
		w.current = 0
		w.pending = 0
	}
	w.drain()
	return w.err
}

// BitsWritten returns the number of bits written so far, including any
// padding inserted by Flush.
func (w *Writer) BitsWritten() uint64 {
	return w.bitsWritten
}

// Pending returns the number of bits (0-7) waiting in the partial byte.
func (w *Writer) Pending() int {
	return int(w.pending)
}

func (w *Writer) pushByte(b byte) {
	w.buffer[w.buffered] = b
	w.buffered++
	if w.buffered == bufferSize {
		w.drain()
	}
}

func (w *Writer) drain() {
	if w.err != nil || w.buffered == 0 {
		return
	}
	_, err := w.w.Write(w.buffer[:w.buffered])
	w.buffered = 0
	if err != nil {
		w.err = fmt.Errorf("bitio: write: %w", err)
	}
}
