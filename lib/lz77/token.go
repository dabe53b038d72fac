// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package lz77

import (
	"encoding/binary"
	"fmt"

	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// TokenSize is the encoded size of one token.
const TokenSize = 5

// Token is one LZ77 instruction: copy Length bytes from Offset bytes
// back, then append Literal.
type Token struct {
	Offset  int
	Length  int
	Literal byte
}

func (t Token) String() string {
	if t.Length == 0 {
		return fmt.Sprintf("(0,0,%q)", t.Literal)
	}
	return fmt.Sprintf("(%d,%d,%q)", t.Offset, t.Length, t.Literal)
}

// appendToken appends the wire form of token to dst.
func appendToken(dst []byte, token Token) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(token.Offset))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(token.Length))
	return append(dst, token.Literal)
}

// parseToken decodes one token from the first TokenSize bytes of data.
func parseToken(data []byte) Token {
	return Token{
		Offset:  int(binary.LittleEndian.Uint16(data[0:2])),
		Length:  int(binary.LittleEndian.Uint16(data[2:4])),
		Literal: data[4],
	}
}

// MarshalTokens returns the wire form of tokens.
func MarshalTokens(tokens []Token) []byte {
	data := make([]byte, 0, len(tokens)*TokenSize)
	for _, token := range tokens {
		data = appendToken(data, token)
	}
	return data
}

// UnmarshalTokens parses a wire-form token stream. A length that is not
// a multiple of TokenSize wraps [dataflow.ErrTruncated].
func UnmarshalTokens(data []byte) ([]Token, error) {
	if len(data)%TokenSize != 0 {
		return nil, fmt.Errorf("lz77: %d trailing bytes after last whole token: %w",
			len(data)%TokenSize, dataflow.ErrTruncated)
	}
	tokens := make([]Token, 0, len(data)/TokenSize)
	for len(data) > 0 {
		tokens = append(tokens, parseToken(data))
		data = data[TokenSize:]
	}
	return tokens, nil
}
