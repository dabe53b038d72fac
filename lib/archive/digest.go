// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 keyed digest of an archive's original
// content.
type Digest [32]byte

// contentDomainKey separates archive content digests from any other
// BLAKE3 use. It is the ASCII domain name, zero-padded to 32 bytes.
var contentDomainKey = [32]byte{
	'k', 'r', 'y', 's', 't', 'a', 'l', '.', 'a', 'r', 'c', 'h', 'i', 'v', 'e', '.',
	'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// String returns the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText encodes the digest as hex for JSON and CBOR.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a hex digest.
func (d *Digest) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != len(d) {
		return fmt.Errorf("digest must be %d hex characters, got %d", 2*len(d), len(text))
	}
	if _, err := hex.Decode(d[:], text); err != nil {
		return fmt.Errorf("parsing digest: %w", err)
	}
	return nil
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Digester computes a content digest incrementally.
type Digester struct {
	hasher *blake3.Hasher
	size   int64
}

// NewDigester returns a digester in its initial state.
func NewDigester() *Digester {
	hasher, err := blake3.NewKeyed(contentDomainKey[:])
	if err != nil {
		panic("archive: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return &Digester{hasher: hasher}
}

// Write adds data to the digest. It never fails.
func (d *Digester) Write(data []byte) (int, error) {
	d.hasher.Write(data)
	d.size += int64(len(data))
	return len(data), nil
}

// Size returns the number of bytes written.
func (d *Digester) Size() int64 {
	return d.size
}

// Sum returns the digest of everything written so far.
func (d *Digester) Sum() Digest {
	var digest Digest
	copy(digest[:], d.hasher.Sum(nil))
	return digest
}

// Reset returns the digester to its initial state.
func (d *Digester) Reset() {
	d.hasher.Reset()
	d.size = 0
}

// DigestBytes returns the content digest of data.
func DigestBytes(data []byte) Digest {
	digester := NewDigester()
	digester.Write(data)
	return digester.Sum()
}

// DigestReader streams r into a digest and returns it with the number
// of bytes read.
func DigestReader(r io.Reader) (Digest, int64, error) {
	digester := NewDigester()
	if _, err := io.Copy(digester, r); err != nil {
		return Digest{}, digester.Size(), err
	}
	return digester.Sum(), digester.Size(), nil
}

// DigestFile returns the content digest and size of the file at path.
func DigestFile(path string) (Digest, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, 0, err
	}
	defer file.Close()
	digest, size, err := DigestReader(file)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, size, nil
}
