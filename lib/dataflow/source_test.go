// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dylanclarke890/krystal/lib/testutil"
)

func TestMemorySource(t *testing.T) {
	source := NewMemorySource([]byte("hello world"), nil)
	if _, err := source.ReadBytes(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("read before Open: err = %v, want ErrClosed", err)
	}
	if err := source.Open(); err != nil {
		t.Fatal(err)
	}
	if source.Size() != 11 || source.ByteOrder() != binary.LittleEndian {
		t.Errorf("Size = %d, ByteOrder = %v", source.Size(), source.ByteOrder())
	}
	first, _ := source.ReadBytes(5)
	second, _ := source.ReadBytes(100)
	if string(first) != "hello" || string(second) != " world" {
		t.Errorf("reads = %q, %q", first, second)
	}
	if !source.EOS() {
		t.Error("EOS false after reading everything")
	}
	if rest, err := source.ReadBytes(1); err != nil || len(rest) != 0 {
		t.Errorf("read at end = %q, %v; want empty, nil", rest, err)
	}

	// Reopening rewinds.
	source.Open()
	if again, _ := source.ReadBytes(5); string(again) != "hello" {
		t.Errorf("read after reopen = %q", again)
	}
}

func TestMemorySinkResetsOnOpen(t *testing.T) {
	sink := NewMemorySink(binary.BigEndian)
	if err := sink.WriteBytes([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("write before Open: err = %v, want ErrClosed", err)
	}
	sink.Open()
	sink.WriteBytes([]byte("first"))
	sink.Close()
	sink.Open()
	sink.WriteBytes([]byte("second"))
	if string(sink.Bytes()) != "second" || sink.Len() != 6 {
		t.Errorf("sink = %q (len %d), want \"second\"", sink.Bytes(), sink.Len())
	}
}

func TestFileSourceAndSink(t *testing.T) {
	data := testutil.RandomBytes(3, 300_000)
	input := testutil.WriteFile(t, "input.bin", data)
	output := filepath.Join(t.TempDir(), "output.bin")

	source := NewFileSource(input, nil)
	report, err := mustNew(t, Config{
		Source:    source,
		Sink:      NewFileSink(output, nil),
		Stages:    []Stage{NewIdentity()},
		ChunkSize: 70_000,
	}).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Chunks != 5 {
		t.Errorf("Chunks = %d, want 5", report.Chunks)
	}
	if source.Size() != int64(len(data)) {
		t.Errorf("Size = %d, want %d", source.Size(), len(data))
	}

	written, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireBytes(t, written, data, "file copy")
}

func TestFileSourceErrors(t *testing.T) {
	if err := NewFileSource(filepath.Join(t.TempDir(), "missing"), nil).Open(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v, want os.ErrNotExist", err)
	}
	if err := NewFileSource(t.TempDir(), nil).Open(); err == nil {
		t.Error("opening a directory succeeded")
	}
	if _, err := NewFileSource("unused", nil).ReadBytes(1); !errors.Is(err, ErrClosed) {
		t.Errorf("read before Open: err = %v, want ErrClosed", err)
	}
	if err := NewFileSink(filepath.Join(t.TempDir(), "f"), nil).WriteBytes(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("write before Open: err = %v, want ErrClosed", err)
	}
}

type record struct {
	Magic   uint32
	Version uint16
	Flags   uint8
	_       uint8
	Size    int64
}

func TestTypedIO(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			sink := NewMemorySink(order)
			sink.Open()
			want := record{Magic: 0x4b525953, Version: 3, Flags: 0x81, Size: -42}
			if err := Write(sink, want); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := WriteSlice(sink, []uint16{1, 2, 0xbeef}); err != nil {
				t.Fatalf("WriteSlice: %v", err)
			}
			if err := Write(sink, uint32(7)); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if sink.Len() != 16+6+4 {
				t.Fatalf("wrote %d bytes, want 26", sink.Len())
			}
			if order == binary.BigEndian && sink.Bytes()[0] != 0x4b {
				t.Errorf("big-endian magic starts with %#x", sink.Bytes()[0])
			}

			source := NewMemorySource(sink.Bytes(), order)
			source.Open()
			got, err := Read[record](source)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got != want {
				t.Errorf("record = %+v, want %+v", got, want)
			}
			values, err := ReadSlice[uint16](source, 3)
			if err != nil || values[2] != 0xbeef {
				t.Errorf("ReadSlice = %v, %v", values, err)
			}
			if value, err := Read[uint32](source); err != nil || value != 7 {
				t.Errorf("Read[uint32] = %d, %v", value, err)
			}
			if _, err := Read[uint32](source); !errors.Is(err, io.EOF) {
				t.Errorf("Read at end: err = %v, want io.EOF", err)
			}
		})
	}
}

func TestTypedReadTruncated(t *testing.T) {
	source := NewMemorySource([]byte{1, 2, 3}, nil)
	source.Open()
	if _, err := Read[uint64](source); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want io.ErrUnexpectedEOF", err)
	}
	if _, err := Read[map[string]int](NewMemorySource(nil, nil)); err == nil {
		t.Error("variable-size type accepted")
	}
}

func TestApply(t *testing.T) {
	stage := newRecordingStage("recorder")
	out, err := Apply([]Stage{stage, &upperStage{}}, []byte("ab"), nil, []byte("c"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(out) != "ABC" {
		t.Errorf("output = %q, want ABC", out)
	}
	if len(stage.chunks) != 2 || !stage.chunks[0].IsFirstChunk || !stage.chunks[1].IsLastChunk ||
		stage.chunks[1].BytesProcessed != 2 || stage.chunks[1].TotalBytesToProcess != 3 {
		t.Errorf("chunk flags = %+v", stage.chunks)
	}
	if stage.teardown != 1 {
		t.Errorf("teardowns = %d, want 1", stage.teardown)
	}

	failing := newRecordingStage("failing")
	failing.failOnChunk = 0
	if _, err := Apply([]Stage{failing}, []byte("x")); !errors.Is(err, ErrCorrupt) {
		t.Errorf("failing stage: err = %v, want ErrCorrupt", err)
	}
	if failing.teardown != 1 {
		t.Errorf("failing stage torn down %d times, want 1", failing.teardown)
	}

	if out, err := Apply([]Stage{NewIdentity()}); err != nil || len(out) != 0 {
		t.Errorf("empty Apply = %q, %v", out, err)
	}
}
