// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package bitio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"testing"
)

func TestWriterReaderSequence(t *testing.T) {
	var buffer bytes.Buffer
	writer := NewWriter(&buffer, binary.LittleEndian)

	sequence := []uint8{1, 0, 1, 1, 0, 0, 0, 0}
	for _, bit := range sequence {
		if err := writer.WriteBit(bit); err != nil {
			t.Fatalf("WriteBit: %v", err)
		}
	}
	if err := writer.WriteBits(0b101, 3); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if writer.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", writer.Pending())
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := []byte{0xB0, 0xA0}
	if !bytes.Equal(buffer.Bytes(), want) {
		t.Fatalf("encoded bytes = %x, want %x", buffer.Bytes(), want)
	}
	if writer.BitsWritten() != 16 {
		t.Errorf("BitsWritten() = %d, want 16 (11 data bits + 5 padding)", writer.BitsWritten())
	}

	reader := NewReader(bytes.NewReader(buffer.Bytes()), binary.LittleEndian)
	for index, wantBit := range sequence {
		bit, err := reader.ReadBit()
		if err != nil {
			t.Fatalf("ReadBit %d: %v", index, err)
		}
		if bit != wantBit {
			t.Errorf("bit %d = %d, want %d", index, bit, wantBit)
		}
	}
	value, err := reader.ReadBits(3)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if value != 0b101 {
		t.Errorf("ReadBits(3) = %b, want 101", value)
	}

	padding, err := reader.ReadBits(5)
	if err != nil {
		t.Fatalf("reading padding: %v", err)
	}
	if padding != 0 {
		t.Errorf("padding bits = %b, want 00000", padding)
	}
	if _, err := reader.ReadBit(); err != io.EOF {
		t.Errorf("ReadBit past end = %v, want io.EOF", err)
	}
}

func TestWriteBitsStraddlingBytes(t *testing.T) {
	values := []struct {
		value uint64
		width int
	}{
		{0x1, 1},
		{0x1FF, 9},
		{0x0, 4},
		{0xABCDEF, 24},
		{0x3, 2},
		{0xFFFFFFFFFFFFFFFF, 64},
		{0x5, 3},
	}

	var buffer bytes.Buffer
	writer := NewWriter(&buffer, binary.BigEndian)
	for _, v := range values {
		if err := writer.WriteBits(v.value, v.width); err != nil {
			t.Fatalf("WriteBits(%x, %d): %v", v.value, v.width, err)
		}
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reader := NewReader(&buffer, binary.BigEndian)
	for _, v := range values {
		got, err := reader.ReadBits(v.width)
		if err != nil {
			t.Fatalf("ReadBits(%d): %v", v.width, err)
		}
		if got != v.value {
			t.Errorf("ReadBits(%d) = %x, want %x", v.width, got, v.value)
		}
	}
}

func TestNumericByteOrder(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
		want  []byte
	}{
		{"little", binary.LittleEndian, []byte{0x04, 0x03, 0x02, 0x01}},
		{"big", binary.BigEndian, []byte{0x01, 0x02, 0x03, 0x04}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buffer bytes.Buffer
			writer := NewWriter(&buffer, tt.order)
			if err := writer.WriteUint32(0x01020304); err != nil {
				t.Fatalf("WriteUint32: %v", err)
			}
			if err := writer.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
			if !bytes.Equal(buffer.Bytes(), tt.want) {
				t.Fatalf("bytes = %x, want %x", buffer.Bytes(), tt.want)
			}

			reader := NewReader(&buffer, tt.order)
			got, err := reader.ReadUint32()
			if err != nil {
				t.Fatalf("ReadUint32: %v", err)
			}
			if got != 0x01020304 {
				t.Errorf("ReadUint32() = %#x, want 0x01020304", got)
			}
		})
	}
}

func TestByteOrderDoesNotAffectBitOrder(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		var buffer bytes.Buffer
		writer := NewWriter(&buffer, order)
		writer.WriteBits(0b1100, 4)
		writer.WriteBits(0b0011, 4)
		writer.Flush()
		if got := buffer.Bytes(); len(got) != 1 || got[0] != 0xC3 {
			t.Errorf("%v: bytes = %x, want c3", order, got)
		}
	}
}

func TestUnalignedNumeric(t *testing.T) {
	var buffer bytes.Buffer
	writer := NewWriter(&buffer, binary.LittleEndian)
	writer.WriteBit(1)
	writer.WriteUint16(0xBEEF)
	writer.WriteUint64(0x0123456789ABCDEF)
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reader := NewReader(&buffer, binary.LittleEndian)
	if bit, _ := reader.ReadBit(); bit != 1 {
		t.Fatalf("leading bit = %d, want 1", bit)
	}
	short, err := reader.ReadUint16()
	if err != nil || short != 0xBEEF {
		t.Fatalf("ReadUint16() = %#x, %v; want 0xbeef", short, err)
	}
	long, err := reader.ReadUint64()
	if err != nil || long != 0x0123456789ABCDEF {
		t.Fatalf("ReadUint64() = %#x, %v", long, err)
	}
}

func TestReaderAlign(t *testing.T) {
	reader := NewReader(bytes.NewReader([]byte{0xFF, 0x42}), binary.LittleEndian)
	if _, err := reader.ReadBits(3); err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if skipped := reader.Align(); skipped != 5 {
		t.Errorf("Align() skipped %d bits, want 5", skipped)
	}
	value, err := reader.ReadBits(8)
	if err != nil {
		t.Fatalf("ReadBits after Align: %v", err)
	}
	if value != 0x42 {
		t.Errorf("byte after Align = %#x, want 0x42", value)
	}
	if reader.BitsRead() != 16 {
		t.Errorf("BitsRead() = %d, want 16", reader.BitsRead())
	}
}

func TestReaderUnexpectedEOF(t *testing.T) {
	reader := NewReader(bytes.NewReader([]byte{0xAA}), binary.LittleEndian)
	_, err := reader.ReadBits(12)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadBits(12) over one byte = %v, want io.ErrUnexpectedEOF", err)
	}

	empty := NewReader(bytes.NewReader(nil), binary.LittleEndian)
	if _, err := empty.ReadBits(4); err != io.EOF {
		t.Fatalf("ReadBits on empty input = %v, want io.EOF", err)
	}
}

func TestInvalidWidths(t *testing.T) {
	writer := NewWriter(io.Discard, binary.LittleEndian)
	if err := writer.WriteBits(0, 65); err == nil {
		t.Error("WriteBits(65) should fail")
	}
	reader := NewReader(bytes.NewReader(nil), binary.LittleEndian)
	if _, err := reader.ReadBits(-1); err == nil {
		t.Error("ReadBits(-1) should fail")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterStickyError(t *testing.T) {
	writer := NewWriter(failingWriter{}, binary.LittleEndian)
	writer.WriteBits(0xFF, 8)
	if err := writer.Flush(); err == nil {
		t.Fatal("Flush should report the underlying write error")
	}
	if err := writer.WriteBit(1); err == nil {
		t.Error("WriteBit after a failed flush should keep failing")
	}
}

func TestLargeRandomRoundTrip(t *testing.T) {
	random := rand.New(rand.NewSource(7))
	type entry struct {
		value uint64
		width int
	}
	entries := make([]entry, 5000)
	var buffer bytes.Buffer
	writer := NewWriter(&buffer, binary.LittleEndian)
	for i := range entries {
		width := random.Intn(64) + 1
		value := random.Uint64()
		if width < 64 {
			value &= (1 << uint(width)) - 1
		}
		entries[i] = entry{value, width}
		if err := writer.WriteBits(value, width); err != nil {
			t.Fatalf("WriteBits: %v", err)
		}
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reader := NewReader(&buffer, binary.LittleEndian)
	for i, e := range entries {
		got, err := reader.ReadBits(e.width)
		if err != nil {
			t.Fatalf("entry %d: ReadBits(%d): %v", i, e.width, err)
		}
		if got != e.value {
			t.Fatalf("entry %d: got %x, want %x", i, got, e.value)
		}
	}
}
