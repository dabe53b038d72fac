// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package rle

import (
	"fmt"

	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// Format is the element type of run-length encoded streams.
const Format dataflow.ElementType = "rle"

// MaxRun is the longest run a single pair can describe.
const MaxRun = 255

// runState is the encoder's cross-chunk state: the run still open at
// the end of the previous chunk.
type runState struct {
	value  byte
	length int
}

// Encoder is the run-length encoding stage.
type Encoder struct {
	state runState
}

// NewEncoder returns a run-length encoding stage.
func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Name() string {
	return "rle-encode"
}

func (e *Encoder) InputType() dataflow.ElementType {
	return dataflow.Bytes
}

func (e *Encoder) OutputType() dataflow.ElementType {
	return Format
}

func (e *Encoder) Setup() error {
	e.state = runState{}
	return nil
}

func (e *Encoder) ProcessChunk(chunk *dataflow.ChunkContext) error {
	state := &e.state
	for _, b := range chunk.Input {
		if state.length > 0 && b == state.value {
			state.length++
			// Emit full pairs eagerly so the open run never exceeds
			// MaxRun.
			if state.length == MaxRun {
				chunk.Emit(MaxRun, state.value)
				state.length = 0
			}
			continue
		}
		if state.length > 0 {
			chunk.Emit(byte(state.length), state.value)
		}
		state.value = b
		state.length = 1
	}
	if chunk.IsLastChunk && state.length > 0 {
		chunk.Emit(byte(state.length), state.value)
		state.length = 0
	}
	return nil
}

// Teardown fails with [dataflow.ErrUnflushed] if a run is still open,
// which happens only when the last chunk was never processed.
func (e *Encoder) Teardown() error {
	pending := e.state.length
	e.state = runState{}
	if pending > 0 {
		return fmt.Errorf("rle: %d-byte run never flushed: %w", pending, dataflow.ErrUnflushed)
	}
	return nil
}

// pairState is the decoder's cross-chunk state: a count byte whose
// value byte is in the next chunk.
type pairState struct {
	count    byte
	hasCount bool
}

// Decoder is the run-length decoding stage.
type Decoder struct {
	state pairState

	// offset counts encoded bytes consumed, for error messages.
	offset int64
}

// NewDecoder returns a run-length decoding stage.
func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Name() string {
	return "rle-decode"
}

func (d *Decoder) InputType() dataflow.ElementType {
	return Format
}

func (d *Decoder) OutputType() dataflow.ElementType {
	return dataflow.Bytes
}

func (d *Decoder) Setup() error {
	d.state = pairState{}
	d.offset = 0
	return nil
}

func (d *Decoder) ProcessChunk(chunk *dataflow.ChunkContext) error {
	input := chunk.Input
	if d.state.hasCount && len(input) > 0 {
		if err := d.emitRun(chunk, d.state.count, input[0]); err != nil {
			return err
		}
		d.state = pairState{}
		input = input[1:]
		d.offset++
	}
	for len(input) >= 2 {
		if err := d.emitRun(chunk, input[0], input[1]); err != nil {
			return err
		}
		input = input[2:]
		d.offset += 2
	}
	if len(input) == 1 {
		d.state = pairState{count: input[0], hasCount: true}
		d.offset++
	}
	if chunk.IsLastChunk && d.state.hasCount {
		return fmt.Errorf("rle: stream ends with unpaired count byte at offset %d: %w",
			d.offset-1, dataflow.ErrTruncated)
	}
	return nil
}

func (d *Decoder) emitRun(chunk *dataflow.ChunkContext, count, value byte) error {
	if count == 0 {
		return fmt.Errorf("rle: zero-length run at offset %d: %w", d.offset, dataflow.ErrCorrupt)
	}
	for range count {
		chunk.Output = append(chunk.Output, value)
	}
	return nil
}

// Teardown fails with [dataflow.ErrTruncated] if a count byte is still
// waiting for its value.
func (d *Decoder) Teardown() error {
	pending := d.state.hasCount
	d.state = pairState{}
	if pending {
		return fmt.Errorf("rle: unpaired count byte: %w", dataflow.ErrTruncated)
	}
	return nil
}

// Encode run-length encodes data in one call.
func Encode(data []byte) []byte {
	// The encoder cannot fail on a complete stream.
	encoded, _ := dataflow.Apply([]dataflow.Stage{NewEncoder()}, data)
	return encoded
}

// Decode reverses [Encode].
func Decode(encoded []byte) ([]byte, error) {
	return dataflow.Apply([]dataflow.Stage{NewDecoder()}, encoded)
}
