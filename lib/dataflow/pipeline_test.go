// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dylanclarke890/krystal/lib/clock"
	"github.com/dylanclarke890/krystal/lib/testutil"
)

// scriptedSource returns data in reads of the scripted lengths, ignoring
// the requested size once the script is exhausted (it then honours n).
// reportedSize overrides Size when non-negative.
type scriptedSource struct {
	data         []byte
	reads        []int
	reportedSize int64
	readErr      error
	closeErr     error

	position int
	call     int
	opened   int
	closed   int
}

func newScriptedSource(data []byte, reads ...int) *scriptedSource {
	return &scriptedSource{data: data, reads: reads, reportedSize: -1}
}

func (s *scriptedSource) Open() error {
	s.position, s.call = 0, 0
	s.opened++
	return nil
}

func (s *scriptedSource) Close() error {
	s.closed++
	return s.closeErr
}

func (s *scriptedSource) EOS() bool {
	return s.position >= len(s.data)
}

func (s *scriptedSource) Size() int64 {
	if s.reportedSize >= 0 {
		return s.reportedSize
	}
	return int64(len(s.data))
}

func (s *scriptedSource) ByteOrder() binary.ByteOrder {
	return binary.LittleEndian
}

func (s *scriptedSource) ReadBytes(n int) ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	if s.call < len(s.reads) {
		n = min(n, s.reads[s.call])
	}
	s.call++
	end := min(s.position+n, len(s.data))
	data := s.data[s.position:end]
	s.position = end
	return data, nil
}

// recordingStage copies its input and records every chunk's flags.
type recordingStage struct {
	name     string
	in, out  ElementType
	chunks   []ChunkContext
	setups   int
	teardown int

	failOnChunk   int
	teardownError error
}

func newRecordingStage(name string) *recordingStage {
	return &recordingStage{name: name, in: Bytes, out: Bytes, failOnChunk: -1}
}

func (s *recordingStage) Name() string {
	return s.name
}

func (s *recordingStage) InputType() ElementType {
	return s.in
}

func (s *recordingStage) OutputType() ElementType {
	return s.out
}

func (s *recordingStage) Setup() error {
	s.setups++
	s.chunks = nil
	return nil
}

func (s *recordingStage) Teardown() error {
	s.teardown++
	return s.teardownError
}

func (s *recordingStage) ProcessChunk(chunk *ChunkContext) error {
	if len(s.chunks) == s.failOnChunk {
		return fmt.Errorf("%w: injected failure", ErrCorrupt)
	}
	recorded := *chunk
	recorded.Input = bytes.Clone(chunk.Input)
	recorded.Output = nil
	s.chunks = append(s.chunks, recorded)
	chunk.Emit(chunk.Input...)
	return nil
}

// upperStage upper-cases ASCII letters.
type upperStage struct{ Identity }

func (upperStage) Name() string {
	return "upper"
}

func (upperStage) ProcessChunk(chunk *ChunkContext) error {
	chunk.Emit(bytes.ToUpper(chunk.Input)...)
	return nil
}

func mustNew(t *testing.T, config Config) *Pipeline {
	t.Helper()
	pipeline, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return pipeline
}

func TestNewValidation(t *testing.T) {
	source := NewMemorySource([]byte("x"), nil)
	sink := NewMemorySink(nil)

	if _, err := New(Config{Sink: sink}); !errors.Is(err, ErrNilSource) {
		t.Errorf("missing source: err = %v, want ErrNilSource", err)
	}
	if _, err := New(Config{Source: source}); !errors.Is(err, ErrNilSink) {
		t.Errorf("missing sink: err = %v, want ErrNilSink", err)
	}
	if _, err := New(Config{Source: source, Sink: sink, Stages: []Stage{NewIdentity(), nil}}); !errors.Is(err, ErrNilStage) {
		t.Errorf("nil stage: err = %v, want ErrNilStage", err)
	}

	pipeline := mustNew(t, Config{Source: source, Sink: sink})
	if pipeline.ChunkSize() != DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want default %d", pipeline.ChunkSize(), DefaultChunkSize)
	}
	if pipeline.OutputType() != Bytes {
		t.Errorf("OutputType = %q, want %q", pipeline.OutputType(), Bytes)
	}
}

func TestNewTypeChecking(t *testing.T) {
	encoder := newRecordingStage("encoder")
	encoder.out = "packed"
	decoder := newRecordingStage("decoder")
	decoder.in = "packed"
	other := newRecordingStage("other")
	other.in = "sealed"

	tests := []struct {
		name      string
		inputType ElementType
		stages    []Stage
		wantIndex int
		wantOut   ElementType
	}{
		{name: "matching", stages: []Stage{encoder, decoder}, wantIndex: -1, wantOut: Bytes},
		{name: "bytes accepts anything", stages: []Stage{encoder, NewIdentity()}, wantIndex: -1, wantOut: Bytes},
		{name: "declared input", inputType: "packed", stages: []Stage{decoder}, wantIndex: -1, wantOut: Bytes},
		{name: "encoder output", stages: []Stage{encoder}, wantIndex: -1, wantOut: "packed"},
		{name: "decoder on raw bytes", stages: []Stage{decoder}, wantIndex: 0},
		{name: "wrong format", stages: []Stage{encoder, other}, wantIndex: 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pipeline, err := New(Config{
				Source:    NewMemorySource([]byte("x"), nil),
				Sink:      NewMemorySink(nil),
				Stages:    test.stages,
				InputType: test.inputType,
			})
			if test.wantIndex < 0 {
				if err != nil {
					t.Fatalf("New: %v", err)
				}
				if pipeline.OutputType() != test.wantOut {
					t.Errorf("OutputType = %q, want %q", pipeline.OutputType(), test.wantOut)
				}
				return
			}
			var mismatch *TypeMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("err = %v, want *TypeMismatchError", err)
			}
			if mismatch.Index != test.wantIndex {
				t.Errorf("mismatch index = %d, want %d", mismatch.Index, test.wantIndex)
			}
		})
	}
}

func TestExecuteChunkFlags(t *testing.T) {
	data := []byte("0123456789")
	stage := newRecordingStage("recorder")
	sink := NewMemorySink(nil)
	pipeline := mustNew(t, Config{
		Source:    NewMemorySource(data, nil),
		Sink:      sink,
		Stages:    []Stage{stage},
		ChunkSize: 4,
	})

	report, err := pipeline.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !bytes.Equal(sink.Bytes(), data) {
		t.Errorf("sink = %q, want %q", sink.Bytes(), data)
	}
	if report.Chunks != 3 || report.BytesRead != 10 || report.BytesWritten != 10 {
		t.Errorf("report = %+v, want 3 chunks, 10 bytes each way", report)
	}

	want := []struct {
		first, last bool
		processed   int64
		input       string
	}{
		{true, false, 0, "0123"},
		{false, false, 4, "4567"},
		{false, true, 8, "89"},
	}
	if len(stage.chunks) != len(want) {
		t.Fatalf("stage saw %d chunks, want %d", len(stage.chunks), len(want))
	}
	for i, w := range want {
		got := stage.chunks[i]
		if got.IsFirstChunk != w.first || got.IsLastChunk != w.last ||
			got.BytesProcessed != w.processed || string(got.Input) != w.input ||
			got.TotalBytesToProcess != 10 {
			t.Errorf("chunk %d = {first:%v last:%v processed:%d total:%d input:%q}, want %+v",
				i, got.IsFirstChunk, got.IsLastChunk, got.BytesProcessed, got.TotalBytesToProcess, got.Input, w)
		}
	}
	if stage.setups != 1 || stage.teardown != 1 {
		t.Errorf("setups = %d, teardowns = %d, want 1 each", stage.setups, stage.teardown)
	}
}

func TestExecuteSingleChunk(t *testing.T) {
	stage := newRecordingStage("recorder")
	pipeline := mustNew(t, Config{
		Source: NewMemorySource([]byte("abc"), nil),
		Sink:   NewMemorySink(nil),
		Stages: []Stage{stage},
	})
	if _, err := pipeline.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(stage.chunks) != 1 || !stage.chunks[0].IsFirstChunk || !stage.chunks[0].IsLastChunk {
		t.Fatalf("single chunk flags = %+v, want first and last", stage.chunks)
	}
}

func TestExecuteStagesInOrder(t *testing.T) {
	first := newRecordingStage("first")
	sink := NewMemorySink(nil)
	pipeline := mustNew(t, Config{
		Source:    NewMemorySource([]byte("chunked pipeline"), nil),
		Sink:      sink,
		Stages:    []Stage{first, &upperStage{}, NewIdentity()},
		ChunkSize: 5,
	})
	if _, err := pipeline.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := string(sink.Bytes()); got != "CHUNKED PIPELINE" {
		t.Errorf("sink = %q, want %q", got, "CHUNKED PIPELINE")
	}
	if got := string(first.chunks[0].Input); got != "chunk" {
		t.Errorf("first stage saw %q, want raw input", got)
	}
}

func TestExecuteIsRepeatable(t *testing.T) {
	stage := newRecordingStage("recorder")
	sink := NewMemorySink(nil)
	pipeline := mustNew(t, Config{
		Source:    NewMemorySource([]byte("repeat"), nil),
		Sink:      sink,
		Stages:    []Stage{stage},
		ChunkSize: 2,
	})
	for run := range 2 {
		if _, err := pipeline.Execute(context.Background()); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if string(sink.Bytes()) != "repeat" {
			t.Fatalf("run %d: sink = %q", run, sink.Bytes())
		}
	}
	if stage.setups != 2 || len(stage.chunks) != 3 {
		t.Errorf("setups = %d, chunks in last run = %d, want 2 and 3", stage.setups, len(stage.chunks))
	}
}

func TestExecuteIrregularReads(t *testing.T) {
	data := testutil.TextBytes(5, 100)
	source := newScriptedSource(data, 1, 30, 2, 7)
	stage := newRecordingStage("recorder")
	sink := NewMemorySink(nil)
	pipeline := mustNew(t, Config{Source: source, Sink: sink, Stages: []Stage{stage}, ChunkSize: 40})

	if _, err := pipeline.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	testutil.RequireBytes(t, sink.Bytes(), data, "irregular reads")

	var processed int64
	for i, chunk := range stage.chunks {
		if chunk.BytesProcessed != processed {
			t.Errorf("chunk %d BytesProcessed = %d, want %d", i, chunk.BytesProcessed, processed)
		}
		processed += int64(len(chunk.Input))
		if chunk.IsLastChunk != (processed == 100) {
			t.Errorf("chunk %d IsLastChunk = %v at %d/100", i, chunk.IsLastChunk, processed)
		}
	}
	if source.opened != 1 || source.closed != 1 {
		t.Errorf("source opened %d, closed %d, want 1 each", source.opened, source.closed)
	}
}

func TestExecuteSourceErrors(t *testing.T) {
	readFailure := errors.New("disk on fire")
	tests := []struct {
		name   string
		source func() *scriptedSource
		want   error
	}{
		{
			name:   "empty",
			source: func() *scriptedSource { return newScriptedSource(nil) },
			want:   ErrEmptySource,
		},
		{
			name: "overrun",
			source: func() *scriptedSource {
				source := newScriptedSource([]byte("abcdef"))
				source.reportedSize = 4
				return source
			},
			want: ErrSourceOverrun,
		},
		{
			name: "overrun after last chunk",
			source: func() *scriptedSource {
				source := newScriptedSource([]byte("abcdef"), 4)
				source.reportedSize = 4
				return source
			},
			want: ErrSourceOverrun,
		},
		{
			name: "short",
			source: func() *scriptedSource {
				source := newScriptedSource([]byte("abc"))
				source.reportedSize = 10
				return source
			},
			want: ErrSourceShort,
		},
		{
			name: "read error",
			source: func() *scriptedSource {
				source := newScriptedSource([]byte("abc"))
				source.readErr = readFailure
				return source
			},
			want: readFailure,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			source := test.source()
			stage := newRecordingStage("recorder")
			pipeline := mustNew(t, Config{Source: source, Sink: NewMemorySink(nil), Stages: []Stage{stage}})
			_, err := pipeline.Execute(context.Background())
			testutil.RequireErrorIs(t, err, test.want, test.name)
			if source.closed != 1 {
				t.Errorf("source closed %d times, want 1", source.closed)
			}
		})
	}
}

func TestExecuteStageFailureStillTearsDown(t *testing.T) {
	failing := newRecordingStage("failing")
	failing.failOnChunk = 1
	failing.teardownError = ErrTruncated
	after := newRecordingStage("after")

	pipeline := mustNew(t, Config{
		Source:    NewMemorySource([]byte("abcdefgh"), nil),
		Sink:      NewMemorySink(nil),
		Stages:    []Stage{failing, after},
		ChunkSize: 3,
	})
	report, err := pipeline.Execute(context.Background())
	testutil.RequireErrorIs(t, err, ErrCorrupt, "stage failure")
	if errors.Is(err, ErrTruncated) {
		t.Error("teardown error leaked into a failed run's error")
	}
	if !strings.Contains(err.Error(), "failing") || !strings.Contains(err.Error(), "chunk 1") {
		t.Errorf("error %q does not name the stage and chunk", err)
	}
	if failing.teardown != 1 || after.teardown != 1 {
		t.Errorf("teardowns = %d, %d, want 1 each", failing.teardown, after.teardown)
	}
	if report == nil || report.Chunks != 1 {
		t.Errorf("report = %+v, want one completed chunk", report)
	}
}

func TestExecuteTeardownErrorFailsRun(t *testing.T) {
	stage := newRecordingStage("leaky")
	stage.teardownError = ErrUnflushed
	pipeline := mustNew(t, Config{
		Source: NewMemorySource([]byte("abc"), nil),
		Sink:   NewMemorySink(nil),
		Stages: []Stage{stage},
	})
	_, err := pipeline.Execute(context.Background())
	testutil.RequireErrorIs(t, err, ErrUnflushed, "teardown error")
}

func TestExecuteCloseError(t *testing.T) {
	source := newScriptedSource([]byte("abc"))
	source.closeErr = errors.New("close failed")
	pipeline := mustNew(t, Config{Source: source, Sink: NewMemorySink(nil)})
	_, err := pipeline.Execute(context.Background())
	testutil.RequireErrorIs(t, err, source.closeErr, "close error")
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stage := newRecordingStage("recorder")
	pipeline := mustNew(t, Config{
		Source: NewMemorySource([]byte("abc"), nil),
		Sink:   NewMemorySink(nil),
		Stages: []Stage{stage},
	})
	_, err := pipeline.Execute(ctx)
	testutil.RequireErrorIs(t, err, context.Canceled, "cancelled context")
	if len(stage.chunks) != 0 {
		t.Errorf("stage processed %d chunks after cancellation", len(stage.chunks))
	}
	if stage.teardown != 1 {
		t.Errorf("teardown ran %d times, want 1", stage.teardown)
	}
}

func TestExecuteNoStagesCopies(t *testing.T) {
	data := testutil.RandomBytes(2, 5000)
	sink := NewMemorySink(nil)
	pipeline := mustNew(t, Config{Source: NewMemorySource(data, nil), Sink: sink, ChunkSize: 999})
	if _, err := pipeline.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	testutil.RequireBytes(t, sink.Bytes(), data, "copy")
}

func TestExecuteProgressLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	fake.SetStep(time.Second)

	pipeline := mustNew(t, Config{
		Source:           NewMemorySource(make([]byte, 10), nil),
		Sink:             NewMemorySink(nil),
		ChunkSize:        1,
		Logger:           logger,
		Clock:            fake,
		ProgressInterval: 3 * time.Second,
	})
	report, err := pipeline.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Start reads t=0 and chunks read t=1..10, so progress fires at
	// t=3, 6 and 9.
	if got := strings.Count(logs.String(), "pipeline progress"); got != 3 {
		t.Errorf("progress records = %d, want 3\n%s", got, logs.String())
	}
	if strings.Contains(logs.String(), "chunk processed") {
		t.Error("debug records emitted at info level")
	}
	if report.Elapsed != 11*time.Second {
		t.Errorf("Elapsed = %v, want 11s", report.Elapsed)
	}
}
