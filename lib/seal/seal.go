// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/dylanclarke890/krystal/lib/secret"
)

// Version is the format version written in the preamble and bound into
// every frame's authenticated data.
const Version byte = 0x01

const (
	// SaltSize is the size of the per-stream HKDF salt.
	SaltSize = 16

	// PreambleSize is the size of the stream preamble.
	PreambleSize = 1 + SaltSize

	// lengthSize is the size of a frame's length prefix.
	lengthSize = 4

	// frameOverhead is the per-frame cost beyond the length prefix:
	// flags, nonce and authentication tag.
	frameOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

	flagFinal byte = 0x01
)

// hkdfInfo separates stream keys from any other use of the master key.
var hkdfInfo = []byte("krystal.seal.stream.v1")

// ErrAuthentication is wrapped by every error caused by a frame that
// fails to open: wrong key, tampering, reordering.
var ErrAuthentication = errors.New("seal: authentication failed")

// deriveStreamKey derives the stream key for salt into protected
// memory. The master key is borrowed, not closed.
func deriveStreamKey(masterKey *secret.Buffer, salt []byte) (*secret.Buffer, error) {
	derived, err := secret.New(chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	reader := hkdf.New(sha256.New, masterKey.Bytes(), salt, hkdfInfo)
	if _, err := io.ReadFull(reader, derived.Bytes()); err != nil {
		derived.Close()
		return nil, fmt.Errorf("seal: deriving stream key: %w", err)
	}
	return derived, nil
}

// streamCipher holds the AEAD for one stream.
type streamCipher struct {
	key  *secret.Buffer
	aead cipher.AEAD
}

func newStreamCipher(masterKey *secret.Buffer, salt []byte) (*streamCipher, error) {
	key, err := deriveStreamKey(masterKey, salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		key.Close()
		return nil, fmt.Errorf("seal: creating XChaCha20-Poly1305 cipher: %w", err)
	}
	return &streamCipher{key: key, aead: aead}, nil
}

func (c *streamCipher) close() error {
	if c == nil {
		return nil
	}
	return c.key.Close()
}

func buildAAD(index uint64, flags byte) []byte {
	aad := make([]byte, 0, 10)
	aad = append(aad, Version)
	aad = binary.LittleEndian.AppendUint64(aad, index)
	return append(aad, flags)
}

// appendFrame seals plaintext as frame number index and appends it to
// dst.
func (c *streamCipher) appendFrame(dst, plaintext []byte, index uint64, final bool, random io.Reader) ([]byte, error) {
	var flags byte
	if final {
		flags |= flagFinal
	}
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(random, nonce[:]); err != nil {
		return dst, fmt.Errorf("seal: generating nonce: %w", err)
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(frameOverhead+len(plaintext)))
	dst = append(dst, flags)
	dst = append(dst, nonce[:]...)
	return c.aead.Seal(dst, nonce[:], plaintext, buildAAD(index, flags)), nil
}

// openFrame authenticates and decrypts a whole frame, length prefix
// included, appending the plaintext to dst.
func (c *streamCipher) openFrame(dst, frame []byte, index uint64) ([]byte, bool, error) {
	body := frame[lengthSize:]
	flags := body[0]
	nonce := body[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := body[1+chacha20poly1305.NonceSizeX:]
	opened, err := c.aead.Open(dst, nonce, ciphertext, buildAAD(index, flags))
	if err != nil {
		return dst, false, fmt.Errorf("%w: frame %d: %w", ErrAuthentication, index, err)
	}
	return opened, flags&flagFinal != 0, nil
}
