// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNilSource is returned by [New] when Config.Source is nil.
	ErrNilSource = errors.New("dataflow: source is nil")

	// ErrNilSink is returned by [New] when Config.Sink is nil.
	ErrNilSink = errors.New("dataflow: sink is nil")

	// ErrNilStage is returned by [New] when a stage in the chain is nil.
	ErrNilStage = errors.New("dataflow: stage is nil")

	// ErrEmptySource is returned by [Pipeline.Execute] when the source
	// reports a total size of zero.
	ErrEmptySource = errors.New("dataflow: source is empty")

	// ErrSourceOverrun means the source produced more bytes than its
	// Size reported.
	ErrSourceOverrun = errors.New("dataflow: source produced more bytes than its reported size")

	// ErrSourceShort means the source ran out before producing the
	// number of bytes its Size reported.
	ErrSourceShort = errors.New("dataflow: source ended before its reported size")

	// ErrClosed is returned by sources and sinks used outside an
	// Open/Close pair.
	ErrClosed = errors.New("dataflow: not open")

	// ErrCorrupt is wrapped by every codec error caused by malformed
	// encoded input: impossible lengths, invalid back-references,
	// inconsistent headers.
	ErrCorrupt = errors.New("corrupt stream")

	// ErrTruncated is wrapped by codec errors raised when the stream
	// ends in the middle of a record.
	ErrTruncated = errors.New("truncated stream")

	// ErrUnflushed is returned by Teardown when an encoder still holds
	// input it never saw the last chunk for.
	ErrUnflushed = errors.New("stage torn down with unflushed input")
)

// TypeMismatchError reports a stage whose input type does not match the
// output type of the stage before it (or the pipeline's declared input
// type, for the first stage).
type TypeMismatchError struct {
	// Index is the position of the offending stage in the chain.
	Index int

	// Stage is the offending stage's name.
	Stage string

	// Want is the element type the stage consumes.
	Want ElementType

	// Got is the element type produced upstream.
	Got ElementType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("dataflow: stage %d (%s) consumes %q but receives %q",
		e.Index, e.Stage, e.Want, e.Got)
}
