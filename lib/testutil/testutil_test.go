// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"testing"
)

func TestGeneratorsAreDeterministic(t *testing.T) {
	generators := []struct {
		name string
		gen  func(seed uint64) []byte
	}{
		{"random", func(seed uint64) []byte { return RandomBytes(seed, 1000) }},
		{"text", func(seed uint64) []byte { return TextBytes(seed, 1000) }},
		{"runs", func(seed uint64) []byte { return RunBytes(seed, 1000, 40) }},
	}
	for _, generator := range generators {
		t.Run(generator.name, func(t *testing.T) {
			first := generator.gen(7)
			if len(first) != 1000 {
				t.Fatalf("len = %d, want 1000", len(first))
			}
			if !bytes.Equal(first, generator.gen(7)) {
				t.Error("same seed produced different data")
			}
			if bytes.Equal(first, generator.gen(8)) {
				t.Error("different seeds produced identical data")
			}
		})
	}
}

func TestSplitCoversInput(t *testing.T) {
	data := RandomBytes(1, 1001)
	for _, chunks := range [][][]byte{Split(data, 100), RandomSplits(3, data, 17)} {
		joined := bytes.Join(chunks, nil)
		if !bytes.Equal(joined, data) {
			t.Fatal("joined chunks differ from input")
		}
		for i, chunk := range chunks {
			if len(chunk) == 0 {
				t.Fatalf("chunk %d is empty", i)
			}
		}
	}
	if got := len(Split(data, 100)); got != 11 {
		t.Errorf("Split into 100-byte chunks gave %d chunks, want 11", got)
	}
	if chunks := Split(nil, 10); len(chunks) != 0 {
		t.Errorf("Split(nil) = %d chunks, want 0", len(chunks))
	}
}

type recordingTB struct {
	failed  bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.failed = true
}

func TestRequireBytes(t *testing.T) {
	var recorder recordingTB
	RequireBytes(&recorder, []byte("abc"), []byte("abc"))
	if recorder.failed {
		t.Fatal("equal slices reported as different")
	}
	RequireBytes(&recorder, []byte("abd"), []byte("abc"))
	if !recorder.failed {
		t.Fatal("differing slices not reported")
	}
	recorder = recordingTB{}
	RequireBytes(&recorder, []byte("ab"), []byte("abc"))
	if !recorder.failed {
		t.Fatal("length mismatch not reported")
	}
}
