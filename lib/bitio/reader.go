// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package bitio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Reader consumes bits from an io.Reader in the order a [Writer]
// produced them.
type Reader struct {
	r     io.ByteReader
	order binary.ByteOrder

	// current is the byte being consumed; remaining counts its unread
	// low-order bits.
	current   byte
	remaining uint

	bitsRead uint64
}

// NewReader returns a Reader over r. If r does not implement
// io.ByteReader it is wrapped in a bufio.Reader, which may read ahead
// of the bits actually consumed.
func NewReader(r io.Reader, order binary.ByteOrder) *Reader {
	byteReader, ok := r.(io.ByteReader)
	if !ok {
		byteReader = bufio.NewReader(r)
	}
	return &Reader{r: byteReader, order: order}
}

// ReadBit returns the next bit as 0 or 1. At the end of the input it
// returns io.EOF.
func (r *Reader) ReadBit() (uint8, error) {
	if r.remaining == 0 {
		next, err := r.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("bitio: read: %w", err)
		}
		r.current = next
		r.remaining = 8
	}
	r.remaining--
	r.bitsRead++
	return (r.current >> r.remaining) & 1, nil
}

// ReadBits reads n bits (0-64) and returns them as the low bits of a
// uint64, first bit most significant. Running out of input part way
// through returns io.ErrUnexpectedEOF; running out before the first bit
// returns io.EOF.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("bitio: cannot read %d bits", n)
	}
	var value uint64
	for i := 0; i < n; i++ {
		bit, err := r.ReadBit()
		if err != nil {
			if i > 0 && err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		value = value<<1 | uint64(bit)
	}
	return value, nil
}

// ReadUint16 reads two bytes and decodes them in the Reader's byte order.
func (r *Reader) ReadUint16() (uint16, error) {
	var scratch [2]byte
	if err := r.readBytes(scratch[:]); err != nil {
		return 0, err
	}
	return r.order.Uint16(scratch[:]), nil
}

// ReadUint32 reads four bytes and decodes them in the Reader's byte order.
func (r *Reader) ReadUint32() (uint32, error) {
	var scratch [4]byte
	if err := r.readBytes(scratch[:]); err != nil {
		return 0, err
	}
	return r.order.Uint32(scratch[:]), nil
}

// ReadUint64 reads eight bytes and decodes them in the Reader's byte order.
func (r *Reader) ReadUint64() (uint64, error) {
	var scratch [8]byte
	if err := r.readBytes(scratch[:]); err != nil {
		return 0, err
	}
	return r.order.Uint64(scratch[:]), nil
}

func (r *Reader) readBytes(data []byte) error {
	for i := range data {
		value, err := r.ReadBits(8)
		if err != nil {
			if i > 0 && err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		data[i] = byte(value)
	}
	return nil
}

// Align discards the unread bits of the current byte so the next read
// starts on a byte boundary. It returns the number of bits skipped.
func (r *Reader) Align() int {
	skipped := r.remaining
	r.bitsRead += uint64(skipped)
	r.remaining = 0
	return int(skipped)
}

// BitsRead returns the number of bits consumed so far, including bits
// skipped by Align.
func (r *Reader) BitsRead() uint64 {
	return r.bitsRead
}
