// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package blockcodec

import (
	"fmt"
	"testing"

	"github.com/dylanclarke890/krystal/lib/dataflow"
	"github.com/dylanclarke890/krystal/lib/testutil"
)

func TestStageChunkInvariance(t *testing.T) {
	input := append(testutil.TextBytes(1, 40_000), testutil.RandomBytes(2, 10_000)...)
	options := Options{BlockSize: 8192}

	for _, tag := range []Tag{None, LZ4, Zstd, BG4LZ4, Auto} {
		reference, err := Compress(input, tag, options)
		if err != nil {
			t.Fatalf("%s: Compress: %v", tag, err)
		}
		for _, size := range []int{1000, 8191, 8192, 8193, 50_000} {
			t.Run(fmt.Sprintf("%s/chunk_%d", tag, size), func(t *testing.T) {
				encoder, err := NewEncoder(tag, options)
				if err != nil {
					t.Fatal(err)
				}
				encoded, err := dataflow.Apply([]dataflow.Stage{encoder}, testutil.Split(input, size)...)
				if err != nil {
					t.Fatalf("encode: %v", err)
				}
				testutil.RequireBytes(t, encoded, reference, "encoding in %d-byte chunks", size)

				decoder, err := NewDecoder(options.BlockSize)
				if err != nil {
					t.Fatal(err)
				}
				decoded, err := dataflow.Apply([]dataflow.Stage{decoder}, testutil.RandomSplits(uint64(size), encoded, size)...)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				testutil.RequireBytes(t, decoded, input, "decoding")
			})
		}
	}
}

func TestAutoMixesTags(t *testing.T) {
	input := append(testutil.TextBytes(3, 8192), testutil.RandomBytes(4, 8192)...)
	encoded, err := Compress(input, Auto, Options{BlockSize: 8192})
	if err != nil {
		t.Fatal(err)
	}
	first := parseFrameHeader(encoded)
	second := parseFrameHeader(encoded[HeaderSize+int(first.storedLen):])
	if first.tag == None {
		t.Errorf("text block stored as %s", first.tag)
	}
	if second.tag != None {
		t.Errorf("random block stored as %s, want none", second.tag)
	}
}

func TestDecoderRejectsBadFrames(t *testing.T) {
	valid, err := Compress(testutil.TextBytes(5, 4000), Zstd, Options{})
	if err != nil {
		t.Fatal(err)
	}
	mutate := func(change func([]byte)) []byte {
		data := append([]byte(nil), valid...)
		change(data)
		return data
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"unknown tag", mutate(func(b []byte) { b[0] = 9 }), dataflow.ErrCorrupt},
		{"auto on wire", mutate(func(b []byte) { b[0] = byte(Auto) }), dataflow.ErrCorrupt},
		{"zero raw length", mutate(func(b []byte) { b[5], b[6], b[7], b[8] = 0, 0, 0, 0 }), dataflow.ErrCorrupt},
		{"stored exceeds raw", mutate(func(b []byte) { b[3] = 0xff }), dataflow.ErrCorrupt},
		{"garbage payload", mutate(func(b []byte) { b[HeaderSize+4] ^= 0xff; b[HeaderSize+5] ^= 0xff }), dataflow.ErrCorrupt},
		{"truncated", valid[:len(valid)-1], dataflow.ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decompress(tt.data)
			testutil.RequireErrorIs(t, err, tt.want, tt.name)
		})
	}
}

func TestEncoderNameAndTypes(t *testing.T) {
	encoder, err := NewEncoder(Zstd, Options{Level: 3})
	if err != nil {
		t.Fatal(err)
	}
	if encoder.Name() != "zstd-encode" || encoder.OutputType() != Format {
		t.Errorf("Name = %q, OutputType = %q", encoder.Name(), encoder.OutputType())
	}
	if _, err := NewEncoder(LZ4, Options{BlockSize: MaxBlockSize + 1}); err == nil {
		t.Error("oversized block accepted")
	}

	encoder.Setup()
	chunk := &dataflow.ChunkContext{IsFirstChunk: true, TotalBytesToProcess: 10, Input: []byte("abc")}
	if err := encoder.ProcessChunk(chunk); err != nil {
		t.Fatal(err)
	}
	testutil.RequireErrorIs(t, encoder.Teardown(), dataflow.ErrUnflushed, "pending block")
}
