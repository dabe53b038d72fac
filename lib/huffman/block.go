// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package huffman

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/dylanclarke890/krystal/lib/bitio"
	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// HeaderSize is the size of the three length fields that open a block.
const HeaderSize = 12

// BlockHeader holds a block's length fields.
type BlockHeader struct {
	EncodedBits   uint32
	TreeBits      uint32
	OriginalCount uint32
}

func parseHeader(data []byte) BlockHeader {
	return BlockHeader{
		EncodedBits:   binary.LittleEndian.Uint32(data[0:4]),
		TreeBits:      binary.LittleEndian.Uint32(data[4:8]),
		OriginalCount: binary.LittleEndian.Uint32(data[8:12]),
	}
}

// PayloadSize returns the number of bytes following the header.
func (h BlockHeader) PayloadSize() int64 {
	return (int64(h.TreeBits) + int64(h.EncodedBits) + 7) / 8
}

// validate checks the header against the decoder's block size limit.
func (h BlockHeader) validate(maxCount int64) error {
	switch {
	case h.OriginalCount == 0:
		return fmt.Errorf("huffman: block header declares zero bytes: %w", dataflow.ErrCorrupt)
	case int64(h.OriginalCount) > maxCount:
		return fmt.Errorf("huffman: block of %d bytes exceeds limit %d: %w",
			h.OriginalCount, maxCount, dataflow.ErrCorrupt)
	case h.TreeBits < 10 || h.TreeBits > maxTreeBits:
		return fmt.Errorf("huffman: tree length %d bits outside [10, %d]: %w",
			h.TreeBits, maxTreeBits, dataflow.ErrCorrupt)
	case uint64(h.EncodedBits) > uint64(h.OriginalCount)*maxCodeLength:
		return fmt.Errorf("huffman: %d code bits cannot describe %d bytes: %w",
			h.EncodedBits, h.OriginalCount, dataflow.ErrCorrupt)
	case h.EncodedBits > 0 && h.TreeBits == 10:
		return fmt.Errorf("huffman: single-symbol block carries %d code bits: %w",
			h.EncodedBits, dataflow.ErrCorrupt)
	case h.EncodedBits == 0 && h.TreeBits != 10:
		return fmt.Errorf("huffman: multi-symbol block has no code bits: %w", dataflow.ErrCorrupt)
	}
	return nil
}

// writeBlock codes data as one block. data must not be empty.
func writeBlock(w io.Writer, data []byte) error {
	frequencies := Count(data)
	tree := Build(frequencies)
	codes, err := tree.Codes()
	if err != nil {
		return err
	}

	var encodedBits uint64
	for symbol, frequency := range frequencies {
		encodedBits += frequency * uint64(codes[symbol].Length)
	}
	if encodedBits > math.MaxUint32 {
		return fmt.Errorf("huffman: %d-byte block needs %d code bits, more than a block header can record",
			len(data), encodedBits)
	}

	bits := bitio.NewWriter(w, binary.LittleEndian)
	for _, field := range []uint32{uint32(encodedBits), uint32(tree.SerializedBits()), uint32(len(data))} {
		if err := bits.WriteUint32(field); err != nil {
			return err
		}
	}
	if err := tree.WriteTo(bits); err != nil {
		return err
	}
	if encodedBits > 0 {
		for _, b := range data {
			code := codes[b]
			if err := bits.WriteBits(code.Bits, int(code.Length)); err != nil {
				return err
			}
		}
	}
	return bits.Flush()
}

// decodeBlock decodes one complete block frame, appending the result to
// dst.
func decodeBlock(dst, frame []byte, maxCount int64) ([]byte, error) {
	if len(frame) < HeaderSize {
		return dst, fmt.Errorf("huffman: %d-byte block is shorter than its header: %w",
			len(frame), dataflow.ErrTruncated)
	}
	header := parseHeader(frame)
	if err := header.validate(maxCount); err != nil {
		return dst, err
	}
	if payload := int64(len(frame) - HeaderSize); payload != header.PayloadSize() {
		return dst, fmt.Errorf("huffman: block payload is %d bytes, header implies %d: %w",
			payload, header.PayloadSize(), dataflow.ErrTruncated)
	}

	bits := bitio.NewReader(bytes.NewReader(frame[HeaderSize:]), binary.LittleEndian)
	tree, err := ReadTree(bits, int(header.TreeBits))
	if err != nil {
		return dst, err
	}
	return tree.decodeSymbols(dst, bits, header)
}

// decodeSymbols walks the tree once per code, consuming exactly
// header.EncodedBits bits.
func (t *Tree) decodeSymbols(dst []byte, bits *bitio.Reader, header BlockHeader) ([]byte, error) {
	if t.Empty() {
		return dst, ErrNoTree
	}
	root := &t.nodes[t.root]
	if root.isLeaf() {
		for range header.OriginalCount {
			dst = append(dst, root.symbol)
		}
		return dst, nil
	}

	emitted := uint32(0)
	current := t.root
	for consumed := uint32(0); consumed < header.EncodedBits; consumed++ {
		bit, err := bits.ReadBit()
		if err != nil {
			return dst, fmt.Errorf("huffman: reading code bit %d: %w: %w", consumed, dataflow.ErrTruncated, err)
		}
		if bit == 0 {
			current = t.nodes[current].left
		} else {
			current = t.nodes[current].right
		}
		if n := &t.nodes[current]; n.isLeaf() {
			if emitted == header.OriginalCount {
				return dst, fmt.Errorf("huffman: codes describe more than %d bytes: %w",
					header.OriginalCount, dataflow.ErrCorrupt)
			}
			dst = append(dst, n.symbol)
			emitted++
			current = t.root
		}
	}
	if current != t.root {
		return dst, fmt.Errorf("huffman: code bits end inside a code: %w", dataflow.ErrCorrupt)
	}
	if emitted != header.OriginalCount {
		return dst, fmt.Errorf("huffman: codes describe %d bytes, header says %d: %w",
			emitted, header.OriginalCount, dataflow.ErrCorrupt)
	}
	return dst, nil
}

// Encode codes data as a single block. Empty input encodes to nothing.
func Encode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if int64(len(data)) > math.MaxUint32 {
		return nil, fmt.Errorf("huffman: %d bytes exceed the %d-byte block limit", len(data), uint32(math.MaxUint32))
	}
	var buffer bytes.Buffer
	if err := writeBlock(&buffer, data); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Decode decodes a sequence of blocks, as produced by [Encode] or the
// [Encoder] stage.
func Decode(encoded []byte) ([]byte, error) {
	var output []byte
	for len(encoded) > 0 {
		if len(encoded) < HeaderSize {
			return nil, fmt.Errorf("huffman: %d trailing bytes after last block: %w",
				len(encoded), dataflow.ErrTruncated)
		}
		header := parseHeader(encoded)
		if err := header.validate(math.MaxUint32); err != nil {
			return nil, err
		}
		size := HeaderSize + header.PayloadSize()
		if int64(len(encoded)) < size {
			return nil, fmt.Errorf("huffman: block needs %d bytes, %d remain: %w",
				size, len(encoded), dataflow.ErrTruncated)
		}
		var err error
		output, err = decodeBlock(output, encoded[:size], math.MaxUint32)
		if err != nil {
			return nil, err
		}
		encoded = encoded[size:]
	}
	return output, nil
}
