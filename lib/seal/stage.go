// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dylanclarke890/krystal/lib/dataflow"
	"github.com/dylanclarke890/krystal/lib/secret"
)

// Format is the element type of sealed streams.
const Format dataflow.ElementType = "sealed"

const (
	// DefaultBlockSize is the plaintext size of each frame when none is
	// given.
	DefaultBlockSize = 64 * 1024

	// MaxBlockSize is the largest plaintext frame the stages accept.
	MaxBlockSize = 64 * 1024 * 1024
)

// Options configures an Encoder.
type Options struct {
	// BlockSize is the plaintext size of each frame. Zero selects
	// DefaultBlockSize.
	BlockSize int

	// Random supplies salts and nonces. Nil selects crypto/rand.
	Random io.Reader
}

func checkMasterKey(masterKey *secret.Buffer) error {
	if masterKey == nil {
		return errors.New("seal: master key is nil")
	}
	if masterKey.Len() != secret.KeySize {
		return fmt.Errorf("seal: master key must be %d bytes, got %d", secret.KeySize, masterKey.Len())
	}
	return nil
}

// Encoder is the sealing stage. It borrows the master key; the caller
// keeps it open for as long as the stage is used.
type Encoder struct {
	masterKey *secret.Buffer
	random    io.Reader
	blocks    *dataflow.BlockBuffer

	cipher   *streamCipher
	index    uint64
	finished bool
}

// NewEncoder returns a stage sealing its input under masterKey.
func NewEncoder(masterKey *secret.Buffer, options Options) (*Encoder, error) {
	if err := checkMasterKey(masterKey); err != nil {
		return nil, err
	}
	if options.BlockSize == 0 {
		options.BlockSize = DefaultBlockSize
	}
	if options.BlockSize < 1 || options.BlockSize > MaxBlockSize {
		return nil, fmt.Errorf("seal: block size %d outside [1, %d]", options.BlockSize, MaxBlockSize)
	}
	if options.Random == nil {
		options.Random = rand.Reader
	}
	return &Encoder{
		masterKey: masterKey,
		random:    options.Random,
		blocks:    dataflow.NewBlockBuffer(options.BlockSize),
	}, nil
}

func (e *Encoder) Name() string {
	return "seal"
}

func (e *Encoder) InputType() dataflow.ElementType {
	return dataflow.Bytes
}

func (e *Encoder) OutputType() dataflow.ElementType {
	return Format
}

func (e *Encoder) Setup() error {
	e.blocks.Reset()
	err := e.cipher.close()
	e.cipher = nil
	e.index = 0
	e.finished = false
	return err
}

func (e *Encoder) ProcessChunk(chunk *dataflow.ChunkContext) error {
	if e.finished {
		return errors.New("seal: input after the final frame")
	}
	if e.cipher == nil {
		salt := make([]byte, SaltSize)
		if _, err := io.ReadFull(e.random, salt); err != nil {
			return fmt.Errorf("seal: generating salt: %w", err)
		}
		cipher, err := newStreamCipher(e.masterKey, salt)
		if err != nil {
			return err
		}
		e.cipher = cipher
		chunk.Emit(Version)
		chunk.Emit(salt...)
	}

	return e.blocks.Feed(chunk.Input, chunk.IsLastChunk, func(block []byte, final bool) error {
		var err error
		chunk.Output, err = e.cipher.appendFrame(chunk.Output, block, e.index, final, e.random)
		if err != nil {
			return err
		}
		e.index++
		e.finished = final
		return nil
	})
}

// Teardown fails with [dataflow.ErrUnflushed] if the final frame was
// never written, and releases the stream key.
func (e *Encoder) Teardown() error {
	pending := e.blocks.Pending()
	started := e.cipher != nil
	finished := e.finished
	closeErr := e.Setup()
	switch {
	case pending > 0:
		return fmt.Errorf("seal: %d bytes never sealed: %w", pending, dataflow.ErrUnflushed)
	case started && !finished:
		return fmt.Errorf("seal: final frame never written: %w", dataflow.ErrUnflushed)
	}
	return closeErr
}

// Decoder is the opening stage. It borrows the master key.
type Decoder struct {
	masterKey    *secret.Buffer
	maxBlockSize int
	frames       *dataflow.FrameBuffer

	preamble []byte
	cipher   *streamCipher
	index    uint64
	finished bool
}

// NewDecoder returns a stage opening streams sealed under masterKey.
// Frames holding more than maxBlockSize plaintext bytes are rejected;
// zero selects MaxBlockSize.
func NewDecoder(masterKey *secret.Buffer, maxBlockSize int) (*Decoder, error) {
	if err := checkMasterKey(masterKey); err != nil {
		return nil, err
	}
	if maxBlockSize == 0 {
		maxBlockSize = MaxBlockSize
	}
	if maxBlockSize < 1 || maxBlockSize > MaxBlockSize {
		return nil, fmt.Errorf("seal: max block size %d outside [1, %d]", maxBlockSize, MaxBlockSize)
	}
	d := &Decoder{masterKey: masterKey, maxBlockSize: maxBlockSize}
	d.frames = dataflow.NewFrameBuffer(lengthSize, func(header []byte) (int, error) {
		length := int64(binary.LittleEndian.Uint32(header))
		if length < frameOverhead {
			return 0, fmt.Errorf("seal: frame length %d below the %d-byte minimum: %w",
				length, frameOverhead, dataflow.ErrCorrupt)
		}
		if length-frameOverhead > int64(d.maxBlockSize) {
			return 0, fmt.Errorf("seal: frame of %d plaintext bytes exceeds limit %d: %w",
				length-frameOverhead, d.maxBlockSize, dataflow.ErrCorrupt)
		}
		return lengthSize + int(length), nil
	})
	return d, nil
}

func (d *Decoder) Name() string {
	return "unseal"
}

func (d *Decoder) InputType() dataflow.ElementType {
	return Format
}

func (d *Decoder) OutputType() dataflow.ElementType {
	return dataflow.Bytes
}

func (d *Decoder) Setup() error {
	d.frames.Reset()
	d.preamble = d.preamble[:0]
	err := d.cipher.close()
	d.cipher = nil
	d.index = 0
	d.finished = false
	return err
}

func (d *Decoder) ProcessChunk(chunk *dataflow.ChunkContext) error {
	input := chunk.Input
	if d.cipher == nil {
		take := min(PreambleSize-len(d.preamble), len(input))
		d.preamble = append(d.preamble, input[:take]...)
		input = input[take:]
		if len(d.preamble) < PreambleSize {
			if chunk.IsLastChunk {
				return fmt.Errorf("seal: stream ends inside the preamble: %w", dataflow.ErrTruncated)
			}
			return nil
		}
		if d.preamble[0] != Version {
			return fmt.Errorf("seal: unsupported version %#x: %w", d.preamble[0], dataflow.ErrCorrupt)
		}
		cipher, err := newStreamCipher(d.masterKey, d.preamble[1:])
		if err != nil {
			return err
		}
		d.cipher = cipher
	}

	err := d.frames.Feed(input, func(frame []byte) error {
		if d.finished {
			return fmt.Errorf("seal: frame %d follows the final frame: %w", d.index, dataflow.ErrCorrupt)
		}
		var (
			final bool
			err   error
		)
		chunk.Output, final, err = d.cipher.openFrame(chunk.Output, frame, d.index)
		if err != nil {
			return fmt.Errorf("seal: %w: %w", dataflow.ErrCorrupt, err)
		}
		d.index++
		d.finished = final
		return nil
	})
	if err != nil {
		return err
	}

	if chunk.IsLastChunk {
		if d.frames.Pending() > 0 {
			return fmt.Errorf("seal: stream ends inside a frame (%d bytes buffered): %w",
				d.frames.Pending(), dataflow.ErrTruncated)
		}
		if !d.finished {
			return fmt.Errorf("seal: stream ends after %d frames without a final frame: %w",
				d.index, dataflow.ErrTruncated)
		}
	}
	return nil
}

// Teardown fails with [dataflow.ErrTruncated] if the stream stopped
// before its final frame, and releases the stream key.
func (d *Decoder) Teardown() error {
	started := len(d.preamble) > 0
	finished := d.finished
	closeErr := d.Setup()
	if started && !finished {
		return fmt.Errorf("seal: stream torn down before its final frame: %w", dataflow.ErrTruncated)
	}
	return closeErr
}

// Seal runs data through an Encoder in one call.
func Seal(data []byte, masterKey *secret.Buffer, options Options) ([]byte, error) {
	encoder, err := NewEncoder(masterKey, options)
	if err != nil {
		return nil, err
	}
	return dataflow.Apply([]dataflow.Stage{encoder}, data)
}

// Open reverses [Seal].
func Open(sealed []byte, masterKey *secret.Buffer) ([]byte, error) {
	decoder, err := NewDecoder(masterKey, 0)
	if err != nil {
		return nil, err
	}
	return dataflow.Apply([]dataflow.Stage{decoder}, sealed)
}
