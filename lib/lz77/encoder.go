// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package lz77

import (
	"fmt"

	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// Format is the element type of LZ77 token streams.
const Format dataflow.ElementType = "lz77"

// longestMatch finds the longest match for data[pos:] among start
// positions in the window behind pos, nearest first, using at most limit
// bytes. On ties the nearest match wins.
func longestMatch(data []byte, pos, window, limit int) (offset, length int) {
	if limit <= 0 {
		return 0, 0
	}
	first := data[pos]
	earliest := max(0, pos-window)
	for start := pos - 1; start >= earliest; start-- {
		if data[start] != first {
			continue
		}
		n := 1
		for n < limit && data[start+n] == data[pos+n] {
			n++
		}
		if n > length {
			offset, length = pos-start, n
			if n == limit {
				break
			}
		}
	}
	return offset, length
}

// tokenize emits tokens for data[pos:] and returns the position after
// the last byte consumed. Unless last is set, it stops while fewer than
// MaxMatch+1 bytes remain, leaving them for a later call with more
// lookahead.
func tokenize(data []byte, pos int, last bool, options Options, emit func(Token)) int {
	for pos < len(data) {
		remaining := len(data) - pos
		if !last && remaining <= options.MaxMatch {
			break
		}
		// One byte after the match is always reserved for the literal.
		limit := min(options.MaxMatch, remaining-1)
		offset, length := longestMatch(data, pos, options.WindowSize, limit)
		emit(Token{Offset: offset, Length: length, Literal: data[pos+length]})
		pos += length + 1
	}
	return pos
}

// Tokenize returns the token sequence for data.
func Tokenize(data []byte, options Options) ([]Token, error) {
	options, err := options.withDefaults()
	if err != nil {
		return nil, err
	}
	var tokens []Token
	tokenize(data, 0, true, options, func(token Token) {
		tokens = append(tokens, token)
	})
	return tokens, nil
}

// windowState is the encoder's cross-chunk state. buffer[:position] is
// history available to matches (at most WindowSize bytes after
// trimming); buffer[position:] is lookahead not yet encoded.
type windowState struct {
	buffer   []byte
	position int
}

// Encoder is the LZ77 encoding stage.
type Encoder struct {
	options Options
	state   windowState
}

// NewEncoder returns an LZ77 encoding stage.
func NewEncoder(options Options) (*Encoder, error) {
	options, err := options.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Encoder{options: options}, nil
}

// Options returns the effective options.
func (e *Encoder) Options() Options {
	return e.options
}

func (e *Encoder) Name() string {
	return "lz77-encode"
}

func (e *Encoder) InputType() dataflow.ElementType {
	return dataflow.Bytes
}

func (e *Encoder) OutputType() dataflow.ElementType {
	return Format
}

func (e *Encoder) Setup() error {
	e.state.buffer = e.state.buffer[:0]
	e.state.position = 0
	return nil
}

func (e *Encoder) ProcessChunk(chunk *dataflow.ChunkContext) error {
	state := &e.state
	state.buffer = append(state.buffer, chunk.Input...)
	state.position = tokenize(state.buffer, state.position, chunk.IsLastChunk, e.options, func(token Token) {
		chunk.Output = appendToken(chunk.Output, token)
	})

	if chunk.IsLastChunk {
		state.buffer = state.buffer[:0]
		state.position = 0
		return nil
	}
	if drop := state.position - e.options.WindowSize; drop > 0 {
		state.buffer = append(state.buffer[:0], state.buffer[drop:]...)
		state.position -= drop
	}
	return nil
}

// Teardown fails with [dataflow.ErrUnflushed] if lookahead bytes were
// never encoded.
func (e *Encoder) Teardown() error {
	pending := len(e.state.buffer) - e.state.position
	e.state.buffer = e.state.buffer[:0]
	e.state.position = 0
	if pending > 0 {
		return fmt.Errorf("lz77: %d lookahead bytes never encoded: %w", pending, dataflow.ErrUnflushed)
	}
	return nil
}

// Encode returns the wire-form token stream for data.
func Encode(data []byte, options Options) ([]byte, error) {
	encoder, err := NewEncoder(options)
	if err != nil {
		return nil, err
	}
	return dataflow.Apply([]dataflow.Stage{encoder}, data)
}
