// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package lz77

import (
	"fmt"

	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// expand applies token to history, which must end at the current output
// position, and returns the extended history.
func expand(history []byte, token Token, window int) ([]byte, error) {
	if token.Length == 0 {
		if token.Offset != 0 {
			return history, fmt.Errorf("lz77: literal token carries offset %d: %w", token.Offset, dataflow.ErrCorrupt)
		}
		return append(history, token.Literal), nil
	}
	if token.Offset == 0 {
		return history, fmt.Errorf("lz77: %d-byte match with zero offset: %w", token.Length, dataflow.ErrCorrupt)
	}
	if token.Offset > len(history) || token.Offset > window {
		return history, fmt.Errorf("lz77: offset %d reaches before the %d bytes of available history: %w",
			token.Offset, min(len(history), window), dataflow.ErrCorrupt)
	}
	start := len(history) - token.Offset
	for i := range token.Length {
		history = append(history, history[start+i])
	}
	return append(history, token.Literal), nil
}

// Expand reconstructs the bytes described by tokens. An offset may reach
// any earlier output byte that a 16-bit token field can address.
func Expand(tokens []Token) ([]byte, error) {
	var output []byte
	for index, token := range tokens {
		var err error
		output, err = expand(output, token, maxField)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", index, err)
		}
	}
	return output, nil
}

// historyState is the decoder's cross-chunk state.
type historyState struct {
	// history holds the most recent decoded bytes. It is trimmed to
	// WindowSize after each chunk and whenever it outgrows the window by
	// flushThreshold.
	history []byte

	// partial holds the leading bytes of a token cut by a chunk boundary.
	partial [TokenSize]byte
	filled  int
}

// Decoder is the LZ77 decoding stage.
type Decoder struct {
	options Options
	state   historyState
}

// NewDecoder returns an LZ77 decoding stage. options.WindowSize and
// options.MaxMatch must be at least the encoder's. A token longer than
// MaxMatch is corrupt, so one chunk of n bytes decodes to at most
// n/TokenSize*(MaxMatch+1) bytes.
func NewDecoder(options Options) (*Decoder, error) {
	options, err := options.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Decoder{options: options}, nil
}

func (d *Decoder) Name() string {
	return "lz77-decode"
}

func (d *Decoder) InputType() dataflow.ElementType {
	return Format
}

func (d *Decoder) OutputType() dataflow.ElementType {
	return dataflow.Bytes
}

func (d *Decoder) Setup() error {
	d.state.history = d.state.history[:0]
	d.state.filled = 0
	return nil
}

// flushThreshold is how far history may grow past the window within one
// chunk before the decoded bytes are emitted and the window trimmed.
const flushThreshold = 64 << 10

func (d *Decoder) ProcessChunk(chunk *dataflow.ChunkContext) error {
	state := &d.state
	mark := len(state.history)
	input := chunk.Input

	apply := func(token Token) error {
		if token.Length > d.options.MaxMatch {
			return fmt.Errorf("lz77: %d-byte match exceeds max match %d: %w",
				token.Length, d.options.MaxMatch, dataflow.ErrCorrupt)
		}
		var err error
		state.history, err = expand(state.history, token, d.options.WindowSize)
		if err != nil {
			return err
		}
		if len(state.history) >= d.options.WindowSize+flushThreshold {
			chunk.Emit(state.history[mark:]...)
			d.trim()
			mark = len(state.history)
		}
		return nil
	}

	if state.filled > 0 {
		n := copy(state.partial[state.filled:], input)
		state.filled += n
		input = input[n:]
		if state.filled == TokenSize {
			state.filled = 0
			if err := apply(parseToken(state.partial[:])); err != nil {
				return err
			}
		}
	}
	for len(input) >= TokenSize {
		if err := apply(parseToken(input)); err != nil {
			return err
		}
		input = input[TokenSize:]
	}
	if len(input) > 0 {
		state.filled = copy(state.partial[:], input)
	}

	chunk.Emit(state.history[mark:]...)
	d.trim()

	if chunk.IsLastChunk && state.filled > 0 {
		return fmt.Errorf("lz77: stream ends inside a token (%d of %d bytes): %w",
			state.filled, TokenSize, dataflow.ErrTruncated)
	}
	return nil
}

// trim keeps the last WindowSize bytes of history.
func (d *Decoder) trim() {
	history := d.state.history
	if drop := len(history) - d.options.WindowSize; drop > 0 {
		d.state.history = append(history[:0], history[drop:]...)
	}
}

// Teardown fails with [dataflow.ErrTruncated] if a partial token is
// still buffered.
func (d *Decoder) Teardown() error {
	filled := d.state.filled
	d.state.history = d.state.history[:0]
	d.state.filled = 0
	if filled > 0 {
		return fmt.Errorf("lz77: %d bytes of an incomplete token: %w", filled, dataflow.ErrTruncated)
	}
	return nil
}

// Decode reverses [Encode]. options.WindowSize must match the encoder's.
func Decode(encoded []byte, options Options) ([]byte, error) {
	decoder, err := NewDecoder(options)
	if err != nil {
		return nil, err
	}
	return dataflow.Apply([]dataflow.Stage{decoder}, encoded)
}
