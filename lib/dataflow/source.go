// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Source supplies the bytes a pipeline transforms.
//
// Size must be known once Open returns: the pipeline fixes the total
// before reading the first chunk and uses it to mark the last one.
type Source interface {
	Open() error
	Close() error

	// EOS reports whether every byte has been read.
	EOS() bool

	// Size returns the total number of bytes the source will produce.
	Size() int64

	// ReadBytes returns up to n bytes. At end of stream it returns an
	// empty slice and a nil error. The returned slice is only valid
	// until the next call.
	ReadBytes(n int) ([]byte, error)

	// ByteOrder governs typed reads through [Read] and [ReadSlice].
	ByteOrder() binary.ByteOrder
}

// Sink receives the bytes a pipeline produces.
type Sink interface {
	Open() error
	Close() error

	// WriteBytes writes data. The sink must not retain data after
	// returning.
	WriteBytes(data []byte) error

	// ByteOrder governs typed writes through [Write] and [WriteSlice].
	ByteOrder() binary.ByteOrder
}

// ReadFull reads exactly n bytes from source into a new slice. A source
// that ends first yields io.ErrUnexpectedEOF, or io.EOF if it produced
// nothing at all.
func ReadFull(source Source, n int) ([]byte, error) {
	data := make([]byte, 0, n)
	for len(data) < n {
		part, err := source.ReadBytes(n - len(data))
		if err != nil {
			return nil, err
		}
		if len(part) == 0 {
			if len(data) == 0 {
				return nil, io.EOF
			}
			return nil, io.ErrUnexpectedEOF
		}
		data = append(data, part...)
	}
	return data, nil
}

// Read decodes one fixed-size value of type T from source in the
// source's byte order.
func Read[T any](source Source) (T, error) {
	var value T
	size := binary.Size(value)
	if size < 0 {
		return value, fmt.Errorf("dataflow: %T has no fixed encoded size", value)
	}
	data, err := ReadFull(source, size)
	if err != nil {
		return value, err
	}
	if _, err := binary.Decode(data, source.ByteOrder(), &value); err != nil {
		return value, fmt.Errorf("dataflow: decoding %T: %w", value, err)
	}
	return value, nil
}

// ReadSlice decodes count fixed-size values of type T from source.
func ReadSlice[T any](source Source, count int) ([]T, error) {
	values := make([]T, count)
	if count == 0 {
		return values, nil
	}
	size := binary.Size(values)
	if size < 0 {
		return nil, fmt.Errorf("dataflow: %T has no fixed encoded size", values)
	}
	data, err := ReadFull(source, size)
	if err != nil {
		return nil, err
	}
	if _, err := binary.Decode(data, source.ByteOrder(), values); err != nil {
		return nil, fmt.Errorf("dataflow: decoding %T: %w", values, err)
	}
	return values, nil
}

// Write encodes one fixed-size value to sink in the sink's byte order.
func Write[T any](sink Sink, value T) error {
	data, err := binary.Append(nil, sink.ByteOrder(), value)
	if err != nil {
		return fmt.Errorf("dataflow: encoding %T: %w", value, err)
	}
	return sink.WriteBytes(data)
}

// WriteSlice encodes every value in values to sink.
func WriteSlice[T any](sink Sink, values []T) error {
	if len(values) == 0 {
		return nil
	}
	data, err := binary.Append(nil, sink.ByteOrder(), values)
	if err != nil {
		return fmt.Errorf("dataflow: encoding %T: %w", values, err)
	}
	return sink.WriteBytes(data)
}
