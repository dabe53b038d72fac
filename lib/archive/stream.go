// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// Sink writes an archive header to an inner sink when opened, then
// passes the payload through.
type Sink struct {
	inner   dataflow.Sink
	encoded []byte
}

// NewSink returns a sink that prefixes inner's content with header.
// The header is encoded immediately so errors surface before any
// output is created.
func NewSink(inner dataflow.Sink, header *Header) (*Sink, error) {
	encoded, err := Encode(header)
	if err != nil {
		return nil, err
	}
	return &Sink{inner: inner, encoded: encoded}, nil
}

func (s *Sink) Open() error {
	if err := s.inner.Open(); err != nil {
		return err
	}
	if err := s.inner.WriteBytes(s.encoded); err != nil {
		s.inner.Close()
		return fmt.Errorf("archive: writing header: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.inner.Close()
}

func (s *Sink) WriteBytes(data []byte) error {
	return s.inner.WriteBytes(data)
}

func (s *Sink) ByteOrder() binary.ByteOrder {
	return s.inner.ByteOrder()
}

// Source consumes the archive header from an inner source when opened
// and exposes only the payload.
type Source struct {
	inner      dataflow.Source
	header     *Header
	headerSize int
}

// NewSource returns a source reading the archive in inner.
func NewSource(inner dataflow.Source) *Source {
	return &Source{inner: inner}
}

// Open opens the inner source and reads the header. On failure the
// inner source is closed again.
func (s *Source) Open() error {
	if err := s.inner.Open(); err != nil {
		return err
	}
	if err := s.readHeader(); err != nil {
		s.inner.Close()
		return err
	}
	return nil
}

func (s *Source) readHeader() error {
	prefix, err := dataflow.ReadFull(s.inner, prefixSize)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrNotArchive
		}
		return err
	}
	length, err := parsePrefix(prefix)
	if err != nil {
		return err
	}
	body, err := dataflow.ReadFull(s.inner, length)
	if err != nil {
		return fmt.Errorf("%w: reading %d-byte header: %w", ErrBadHeader, length, err)
	}
	header, err := decodeBody(body)
	if err != nil {
		return err
	}
	s.header = header
	s.headerSize = prefixSize + length
	return nil
}

// Header returns the header read by the last Open, or nil.
func (s *Source) Header() *Header {
	return s.header
}

func (s *Source) Close() error {
	return s.inner.Close()
}

func (s *Source) EOS() bool {
	return s.inner.EOS()
}

// Size returns the payload size.
func (s *Source) Size() int64 {
	return s.inner.Size() - int64(s.headerSize)
}

func (s *Source) ReadBytes(n int) ([]byte, error) {
	return s.inner.ReadBytes(n)
}

func (s *Source) ByteOrder() binary.ByteOrder {
	return s.inner.ByteOrder()
}

// VerifyingSink passes restored content to an inner sink while hashing
// it, and checks the result against the expected digest and size when
// closed.
type VerifyingSink struct {
	inner    dataflow.Sink
	digest   Digest
	size     int64
	digester *Digester
	opened   bool
}

// NewVerifyingSink returns a sink that expects content of size bytes
// hashing to digest.
func NewVerifyingSink(inner dataflow.Sink, digest Digest, size int64) *VerifyingSink {
	return &VerifyingSink{inner: inner, digest: digest, size: size, digester: NewDigester()}
}

func (s *VerifyingSink) Open() error {
	s.digester.Reset()
	if err := s.inner.Open(); err != nil {
		return err
	}
	s.opened = true
	return nil
}

func (s *VerifyingSink) WriteBytes(data []byte) error {
	s.digester.Write(data)
	return s.inner.WriteBytes(data)
}

func (s *VerifyingSink) ByteOrder() binary.ByteOrder {
	return s.inner.ByteOrder()
}

// Close closes the inner sink, then fails with [ErrSizeMismatch] or
// [ErrDigestMismatch] if the content written is not what was expected.
func (s *VerifyingSink) Close() error {
	if !s.opened {
		return s.inner.Close()
	}
	s.opened = false

	var errs []error
	if err := s.inner.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.digester.Size() != s.size {
		errs = append(errs, fmt.Errorf("%w: restored %d bytes, expected %d",
			ErrSizeMismatch, s.digester.Size(), s.size))
	} else if got := s.digester.Sum(); got != s.digest {
		errs = append(errs, fmt.Errorf("%w: restored %s, expected %s", ErrDigestMismatch, got, s.digest))
	}
	return errors.Join(errs...)
}
