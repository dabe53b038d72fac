// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// KeySize is the size of a master key in bytes.
const KeySize = 32

// GenerateKey returns a fresh random key of KeySize bytes.
func GenerateKey() (*Buffer, error) {
	key, err := New(KeySize)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand.Reader, key.Bytes()); err != nil {
		key.Close()
		return nil, fmt.Errorf("secret: generating key: %w", err)
	}
	return key, nil
}

// FormatKey returns the key file form of key: lowercase hex and a
// trailing newline. The result is heap memory; callers should Zero it
// once written.
func FormatKey(key *Buffer) []byte {
	raw := key.Bytes()
	text := make([]byte, hex.EncodedLen(len(raw))+1)
	hex.Encode(text, raw)
	text[len(text)-1] = '\n'
	return text
}

// ReadKeyFile loads a key from path, or from stdin if path is "-".
// The file holds either KeySize raw bytes or their hex encoding,
// optionally surrounded by whitespace.
func ReadKeyFile(path string) (*Buffer, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(os.Stdin, 4*KeySize))
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}
	defer Zero(data)
	return ParseKey(data)
}

// ParseKey interprets key file contents as described for [ReadKeyFile].
// data is not modified.
func ParseKey(data []byte) (*Buffer, error) {
	if len(data) == KeySize && bytes.IndexFunc(data, isNotHex) >= 0 {
		return NewFromBytes(bytes.Clone(data))
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) != hex.EncodedLen(KeySize) {
		return nil, fmt.Errorf("secret: key must be %d raw bytes or %d hex characters, got %d bytes",
			KeySize, hex.EncodedLen(KeySize), len(trimmed))
	}
	raw := make([]byte, KeySize)
	if _, err := hex.Decode(raw, trimmed); err != nil {
		Zero(raw)
		return nil, fmt.Errorf("secret: key is not valid hex: %w", err)
	}
	return NewFromBytes(raw)
}

func isNotHex(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		return false
	}
	return true
}
