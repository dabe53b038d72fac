// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// fileBufferSize is the bufio size used by FileSource and FileSink.
const fileBufferSize = 256 * 1024

// FileSource reads a regular file. Its size is taken from the file's
// metadata when it is opened.
type FileSource struct {
	path  string
	order binary.ByteOrder

	file     *os.File
	reader   *bufio.Reader
	size     int64
	consumed int64
	scratch  []byte
}

// NewFileSource returns a source reading path. A nil order selects
// little-endian.
func NewFileSource(path string, order binary.ByteOrder) *FileSource {
	if order == nil {
		order = binary.LittleEndian
	}
	return &FileSource{path: path, order: order}
}

func (s *FileSource) Open() error {
	file, err := os.Open(s.path)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return fmt.Errorf("%s is not a regular file", s.path)
	}

	adviseSequential(file)

	s.file = file
	s.reader = bufio.NewReaderSize(file, fileBufferSize)
	s.size = info.Size()
	s.consumed = 0
	return nil
}

func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.reader = nil
	return err
}

func (s *FileSource) EOS() bool {
	return s.consumed >= s.size
}

func (s *FileSource) Size() int64 {
	return s.size
}

func (s *FileSource) ByteOrder() binary.ByteOrder {
	return s.order
}

func (s *FileSource) ReadBytes(n int) ([]byte, error) {
	if s.reader == nil {
		return nil, ErrClosed
	}
	n = int(min(int64(n), s.size-s.consumed))
	if n <= 0 {
		return nil, nil
	}
	if cap(s.scratch) < n {
		s.scratch = make([]byte, n)
	}
	count, err := io.ReadFull(s.reader, s.scratch[:n])
	s.consumed += int64(count)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if count < n {
		// The file may have shrunk since Open; EOS must hold from here.
		s.size = s.consumed
	}
	return s.scratch[:count], nil
}

// FileSink writes to a file, creating or truncating it on Open.
type FileSink struct {
	path  string
	order binary.ByteOrder
	mode  os.FileMode

	file   *os.File
	writer *bufio.Writer
}

// NewFileSink returns a sink writing path with permission mode 0644. A
// nil order selects little-endian.
func NewFileSink(path string, order binary.ByteOrder) *FileSink {
	if order == nil {
		order = binary.LittleEndian
	}
	return &FileSink{path: path, order: order, mode: 0o644}
}

func (s *FileSink) Open() error {
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.mode)
	if err != nil {
		return err
	}
	s.file = file
	s.writer = bufio.NewWriterSize(file, fileBufferSize)
	return nil
}

func (s *FileSink) WriteBytes(data []byte) error {
	if s.writer == nil {
		return ErrClosed
	}
	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// Close flushes buffered output, syncs, and closes the file.
func (s *FileSink) Close() error {
	if s.file == nil {
		return nil
	}
	var errs []error
	if err := s.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flushing %s: %w", s.path, err))
	}
	if err := s.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("syncing %s: %w", s.path, err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}
	s.file = nil
	s.writer = nil
	return errors.Join(errs...)
}

func (s *FileSink) ByteOrder() binary.ByteOrder {
	return s.order
}
