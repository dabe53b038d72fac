// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import "io"

// ElementType names the format of the bytes flowing between stages.
type ElementType string

// Bytes is an arbitrary byte stream. A stage whose input type is Bytes
// accepts the output of any other stage.
const Bytes ElementType = "bytes"

// Accepts reports whether a stage consuming want can follow a stage
// producing got.
func Accepts(want, got ElementType) bool {
	return want == Bytes || want == got
}

// ChunkContext carries one chunk through the stage chain together with
// the stream position it came from.
//
// For the first stage, IsLastChunk is true exactly when
// BytesProcessed + len(Input) == TotalBytesToProcess. Later stages see
// the same flags and counters with Input set to the previous stage's
// Output.
type ChunkContext struct {
	// IsFirstChunk is true for the first chunk of the run.
	IsFirstChunk bool

	// IsLastChunk is true for the final chunk of the run. Stages flush
	// any pending output when they see it.
	IsLastChunk bool

	// TotalBytesToProcess is the source size, fixed before the first
	// chunk is read.
	TotalBytesToProcess int64

	// BytesProcessed counts source bytes consumed by earlier chunks.
	BytesProcessed int64

	// Input is the data this stage transforms. It is only valid for the
	// duration of the ProcessChunk call.
	Input []byte

	// Output is where the stage appends its result. The pipeline hands
	// every stage a reusable buffer truncated to length zero; stages
	// must append to it rather than replace it with their own memory.
	Output []byte
}

// Emit appends data to the chunk's output.
func (c *ChunkContext) Emit(data ...byte) {
	c.Output = append(c.Output, data...)
}

// Writer returns an io.Writer that appends to the chunk's output.
func (c *ChunkContext) Writer() io.Writer {
	return outputWriter{chunk: c}
}

type outputWriter struct {
	chunk *ChunkContext
}

func (w outputWriter) Write(p []byte) (int, error) {
	w.chunk.Output = append(w.chunk.Output, p...)
	return len(p), nil
}

// Stage is one transformation in a pipeline.
//
// A Stage instance belongs to one pipeline run at a time. It may be
// reused for a later run because Setup resets its state, but it must
// never be shared between concurrent runs.
type Stage interface {
	// Name identifies the stage in logs and errors.
	Name() string

	// InputType is the format the stage consumes.
	InputType() ElementType

	// OutputType is the format the stage produces.
	OutputType() ElementType

	// Setup resets the stage's state. It is idempotent.
	Setup() error

	// ProcessChunk transforms chunk.Input, appending the result to
	// chunk.Output. Pending output must be flushed when
	// chunk.IsLastChunk is set.
	ProcessChunk(chunk *ChunkContext) error

	// Teardown reports any state left pending (a record cut short, input
	// never flushed) and clears it.
	Teardown() error
}

// Identity passes its input through unchanged.
type Identity struct{}

// NewIdentity returns an identity stage.
func NewIdentity() *Identity {
	return &Identity{}
}

func (*Identity) Name() string {
	return "identity"
}

func (*Identity) InputType() ElementType {
	return Bytes
}

func (*Identity) OutputType() ElementType {
	return Bytes
}

func (*Identity) Setup() error {
	return nil
}

func (*Identity) Teardown() error {
	return nil
}

func (*Identity) ProcessChunk(chunk *ChunkContext) error {
	chunk.Emit(chunk.Input...)
	return nil
}
