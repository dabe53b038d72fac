// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dylanclarke890/krystal/lib/codec"
	"github.com/dylanclarke890/krystal/lib/codecs"
)

const (
	// Magic opens every archive.
	Magic = "KRYS"

	// FormatVersion is the container layout version.
	FormatVersion byte = 1

	// prefixSize covers the magic, the version and the header length.
	prefixSize = len(Magic) + 1 + 4

	// MaxHeaderSize bounds the encoded header.
	MaxHeaderSize = 1 << 20
)

var (
	// ErrNotArchive means the input does not start with Magic.
	ErrNotArchive = errors.New("archive: not a krystal archive")

	// ErrUnsupportedVersion means the container version is unknown.
	ErrUnsupportedVersion = errors.New("archive: unsupported format version")

	// ErrBadHeader wraps header decoding and validation failures.
	ErrBadHeader = errors.New("archive: invalid header")

	// ErrDigestMismatch means restored content does not hash to the
	// header's digest.
	ErrDigestMismatch = errors.New("archive: content digest mismatch")

	// ErrSizeMismatch means restored content is not the header's
	// original size.
	ErrSizeMismatch = errors.New("archive: content size mismatch")
)

// Header describes an archive's payload.
type Header struct {
	// Name is the pipeline or profile the archive was made with.
	Name string `json:"name,omitempty"`

	// ChunkSize is the chunk size used when compressing. Decompression
	// reuses it.
	ChunkSize int `json:"chunk_size"`

	// OriginalSize is the size of the original content in bytes.
	OriginalSize int64 `json:"original_size"`

	// Digest is the content digest of the original bytes.
	Digest Digest `json:"digest"`

	// Stages is the encoding chain with every option resolved.
	Stages []codecs.Spec `json:"stages"`

	// WrappedKey is the master key age-encrypted to the archive's
	// recipients. Empty when the key is supplied out of band.
	WrappedKey []byte `json:"wrapped_key,omitempty"`
}

// Sealed reports whether the payload needs a key to decode.
func (h *Header) Sealed() bool {
	return codecs.Keyed(h.Stages)
}

// Validate checks the header for internal consistency.
func (h *Header) Validate() error {
	var errs []error
	if h.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("chunk size %d is not positive", h.ChunkSize))
	}
	if h.OriginalSize < 0 {
		errs = append(errs, fmt.Errorf("original size %d is negative", h.OriginalSize))
	}
	if _, err := codecs.ResolveAll(h.Stages); err != nil {
		errs = append(errs, err)
	}
	if len(h.WrappedKey) > 0 && !h.Sealed() {
		errs = append(errs, errors.New("wrapped key present without a keyed stage"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	return nil
}

// Encode validates h and returns its on-disk form, prefix included.
func Encode(h *Header) ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	body, err := codec.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("archive: encoding header: %w", err)
	}
	if len(body) > MaxHeaderSize {
		return nil, fmt.Errorf("%w: encoded header is %d bytes, limit %d", ErrBadHeader, len(body), MaxHeaderSize)
	}
	encoded := make([]byte, 0, prefixSize+len(body))
	encoded = append(encoded, Magic...)
	encoded = append(encoded, FormatVersion)
	encoded = binary.LittleEndian.AppendUint32(encoded, uint32(len(body)))
	return append(encoded, body...), nil
}

// parsePrefix checks the magic and version and returns the header body
// length.
func parsePrefix(prefix []byte) (int, error) {
	if string(prefix[:len(Magic)]) != Magic {
		return 0, ErrNotArchive
	}
	if version := prefix[len(Magic)]; version != FormatVersion {
		return 0, fmt.Errorf("%w %d", ErrUnsupportedVersion, version)
	}
	length := binary.LittleEndian.Uint32(prefix[len(Magic)+1:])
	if length == 0 || length > MaxHeaderSize {
		return 0, fmt.Errorf("%w: header length %d outside [1, %d]", ErrBadHeader, length, MaxHeaderSize)
	}
	return int(length), nil
}

func decodeBody(body []byte) (*Header, error) {
	var header Header
	if err := codec.Unmarshal(body, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if err := header.Validate(); err != nil {
		return nil, err
	}
	return &header, nil
}

// ReadHeader reads and validates the header at the start of r. It
// returns the header and the number of bytes it occupied.
func ReadHeader(r io.Reader) (*Header, int, error) {
	prefix := make([]byte, prefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrNotArchive
		}
		return nil, 0, err
	}
	length, err := parsePrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, 0, fmt.Errorf("%w: reading %d-byte header: %w", ErrBadHeader, length, err)
	}
	header, err := decodeBody(body)
	if err != nil {
		return nil, 0, err
	}
	return header, prefixSize + length, nil
}

// RawHeader returns the undecoded CBOR header at the start of r, for
// diagnostics.
func RawHeader(r io.Reader) ([]byte, error) {
	prefix := make([]byte, prefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, ErrNotArchive
	}
	length, err := parsePrefix(prefix)
	if err != nil {
		return nil, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: reading %d-byte header: %w", ErrBadHeader, length, err)
	}
	return body, nil
}
