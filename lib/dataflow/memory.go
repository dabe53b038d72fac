// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"bytes"
	"encoding/binary"
)

// MemorySource reads from an in-memory byte slice. The slice is not
// copied; the caller must not modify it while the source is open.
type MemorySource struct {
	data     []byte
	order    binary.ByteOrder
	position int
	open     bool
}

// NewMemorySource returns a source over data. A nil order selects
// little-endian.
func NewMemorySource(data []byte, order binary.ByteOrder) *MemorySource {
	if order == nil {
		order = binary.LittleEndian
	}
	return &MemorySource{data: data, order: order}
}

// Open rewinds the source to the beginning.
func (s *MemorySource) Open() error {
	s.position = 0
	s.open = true
	return nil
}

func (s *MemorySource) Close() error {
	s.open = false
	return nil
}

func (s *MemorySource) EOS() bool {
	return s.position >= len(s.data)
}

func (s *MemorySource) Size() int64 {
	return int64(len(s.data))
}

func (s *MemorySource) ByteOrder() binary.ByteOrder {
	return s.order
}

// ReadBytes returns a sub-slice of the underlying data.
func (s *MemorySource) ReadBytes(n int) ([]byte, error) {
	if !s.open {
		return nil, ErrClosed
	}
	end := min(s.position+n, len(s.data))
	data := s.data[s.position:end]
	s.position = end
	return data, nil
}

// MemorySink collects written bytes in memory.
type MemorySink struct {
	buffer bytes.Buffer
	order  binary.ByteOrder
	open   bool
}

// NewMemorySink returns an empty sink. A nil order selects
// little-endian.
func NewMemorySink(order binary.ByteOrder) *MemorySink {
	if order == nil {
		order = binary.LittleEndian
	}
	return &MemorySink{order: order}
}

// Open discards anything written by a previous run.
func (s *MemorySink) Open() error {
	s.buffer.Reset()
	s.open = true
	return nil
}

func (s *MemorySink) Close() error {
	s.open = false
	return nil
}

func (s *MemorySink) ByteOrder() binary.ByteOrder {
	return s.order
}

func (s *MemorySink) WriteBytes(data []byte) error {
	if !s.open {
		return ErrClosed
	}
	s.buffer.Write(data)
	return nil
}

// Bytes returns everything written since the last Open.
func (s *MemorySink) Bytes() []byte {
	return s.buffer.Bytes()
}

// Len returns the number of bytes written since the last Open.
func (s *MemorySink) Len() int {
	return s.buffer.Len()
}
