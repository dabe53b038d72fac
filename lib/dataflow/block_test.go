// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/dylanclarke890/krystal/lib/testutil"
)

type emittedBlock struct {
	data  []byte
	final bool
}

func feedBlocks(t *testing.T, size int, chunks [][]byte) []emittedBlock {
	t.Helper()
	buffer := NewBlockBuffer(size)
	var blocks []emittedBlock
	emit := func(block []byte, final bool) error {
		blocks = append(blocks, emittedBlock{data: bytes.Clone(block), final: final})
		return nil
	}
	if len(chunks) == 0 {
		if err := buffer.Feed(nil, true, emit); err != nil {
			t.Fatalf("Feed: %v", err)
		}
		return blocks
	}
	for i, chunk := range chunks {
		if err := buffer.Feed(chunk, i == len(chunks)-1, emit); err != nil {
			t.Fatalf("Feed chunk %d: %v", i, err)
		}
	}
	if buffer.Pending() != 0 {
		t.Fatalf("Pending after final chunk = %d, want 0", buffer.Pending())
	}
	return blocks
}

func TestBlockBufferIndependentOfChunking(t *testing.T) {
	data := testutil.RandomBytes(11, 1000)
	reference := feedBlocks(t, 64, [][]byte{data})

	if len(reference) != 16 {
		t.Fatalf("got %d blocks, want 16", len(reference))
	}
	for i, block := range reference {
		last := i == len(reference)-1
		if block.final != last {
			t.Errorf("block %d final = %v, want %v", i, block.final, last)
		}
		if !last && len(block.data) != 64 {
			t.Errorf("block %d has %d bytes, want 64", i, len(block.data))
		}
	}
	if got := len(reference[15].data); got != 1000-15*64 {
		t.Errorf("final block has %d bytes, want %d", got, 1000-15*64)
	}

	for _, size := range []int{1, 3, 63, 64, 65, 200} {
		t.Run(fmt.Sprintf("chunk_%d", size), func(t *testing.T) {
			blocks := feedBlocks(t, 64, testutil.Split(data, size))
			if len(blocks) != len(reference) {
				t.Fatalf("got %d blocks, want %d", len(blocks), len(reference))
			}
			for i := range blocks {
				if !bytes.Equal(blocks[i].data, reference[i].data) || blocks[i].final != reference[i].final {
					t.Fatalf("block %d differs from single-chunk reference", i)
				}
			}
		})
	}
}

func TestBlockBufferExactMultiple(t *testing.T) {
	// A stream that is an exact multiple of the block size ends with a
	// full final block, not an empty one.
	blocks := feedBlocks(t, 4, testutil.Split([]byte("abcdefgh"), 3))
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if string(blocks[1].data) != "efgh" || !blocks[1].final {
		t.Errorf("final block = %q (final=%v), want \"efgh\" (final=true)", blocks[1].data, blocks[1].final)
	}
}

func TestBlockBufferEmptyStream(t *testing.T) {
	blocks := feedBlocks(t, 8, nil)
	if len(blocks) != 1 || len(blocks[0].data) != 0 || !blocks[0].final {
		t.Fatalf("empty stream gave %+v, want one empty final block", blocks)
	}
}

func TestBlockBufferEmitError(t *testing.T) {
	buffer := NewBlockBuffer(2)
	failure := errors.New("sink full")
	err := buffer.Feed([]byte("abcdef"), false, func([]byte, bool) error { return failure })
	if !errors.Is(err, failure) {
		t.Fatalf("Feed error = %v, want %v", err, failure)
	}
	buffer.Reset()
	if buffer.Pending() != 0 {
		t.Errorf("Pending after Reset = %d", buffer.Pending())
	}
}

// testFrameSize reads a u16 little-endian total length.
func testFrameSize(header []byte) (int, error) {
	size := int(binary.LittleEndian.Uint16(header))
	if size > 1000 {
		return 0, fmt.Errorf("%w: frame of %d bytes", ErrCorrupt, size)
	}
	return size, nil
}

func makeFrame(payload string) []byte {
	frame := binary.LittleEndian.AppendUint16(nil, uint16(2+len(payload)))
	return append(frame, payload...)
}

func TestFrameBufferReassembles(t *testing.T) {
	var stream []byte
	payloads := []string{"", "a", "hello", "chunk boundaries", "x"}
	for _, payload := range payloads {
		stream = append(stream, makeFrame(payload)...)
	}

	for _, size := range []int{1, 2, 3, 5, len(stream)} {
		t.Run(fmt.Sprintf("chunk_%d", size), func(t *testing.T) {
			buffer := NewFrameBuffer(2, testFrameSize)
			var got []string
			for _, chunk := range testutil.Split(stream, size) {
				err := buffer.Feed(chunk, func(frame []byte) error {
					got = append(got, string(frame[2:]))
					return nil
				})
				if err != nil {
					t.Fatalf("Feed: %v", err)
				}
			}
			if buffer.Pending() != 0 {
				t.Fatalf("Pending = %d, want 0", buffer.Pending())
			}
			if fmt.Sprint(got) != fmt.Sprint(payloads) {
				t.Errorf("frames = %q, want %q", got, payloads)
			}
		})
	}
}

func TestFrameBufferPartialAndCorrupt(t *testing.T) {
	buffer := NewFrameBuffer(2, testFrameSize)
	frame := makeFrame("partial")
	noop := func([]byte) error { return nil }
	if err := buffer.Feed(frame[:4], noop); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if buffer.Pending() != 4 {
		t.Errorf("Pending = %d, want 4", buffer.Pending())
	}

	buffer.Reset()
	err := buffer.Feed([]byte{0xff, 0xff}, noop)
	testutil.RequireErrorIs(t, err, ErrCorrupt, "oversized frame")

	buffer.Reset()
	err = buffer.Feed([]byte{1, 0}, noop)
	testutil.RequireErrorIs(t, err, ErrCorrupt, "frame shorter than header")
}
