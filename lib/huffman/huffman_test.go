// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package huffman

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/dylanclarke890/krystal/lib/bitio"
	"github.com/dylanclarke890/krystal/lib/dataflow"
	"github.com/dylanclarke890/krystal/lib/testutil"
)

func alphabet(k int) []byte {
	data := make([]byte, 0, k*(k+1)/2)
	for symbol := range k {
		// Distinct, uneven frequencies: symbol i appears i+1 times.
		data = append(data, bytes.Repeat([]byte{byte(symbol)}, symbol+1)...)
	}
	return data
}

// requireShape walks tree from its root and checks that it reaches every
// arena node exactly once, with k leaves and k-1 internal nodes.
func requireShape(t *testing.T, tree *Tree, k int) {
	t.Helper()
	visited := make([]bool, len(tree.nodes))
	var leaves, internal int
	stack := []int32{tree.root}
	for len(stack) > 0 {
		index := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[index] {
			t.Fatalf("node %d reached twice", index)
		}
		visited[index] = true
		n := tree.nodes[index]
		if n.isLeaf() {
			if n.right != noChild {
				t.Fatalf("leaf %d has a right child", index)
			}
			leaves++
			continue
		}
		if n.right == noChild {
			t.Fatalf("internal node %d has no right child", index)
		}
		internal++
		stack = append(stack, n.right, n.left)
	}
	if leaves+internal != len(tree.nodes) {
		t.Errorf("reached %d of %d nodes", leaves+internal, len(tree.nodes))
	}
	if leaves != k || internal != k-1 {
		t.Errorf("walk found %d leaves and %d internal nodes, want %d and %d", leaves, internal, k, k-1)
	}
	if tree.Leaves() != leaves || tree.Internal() != internal {
		t.Errorf("Leaves, Internal = %d, %d, want %d, %d", tree.Leaves(), tree.Internal(), leaves, internal)
	}
	if tree.SerializedBits() != 10*k {
		t.Errorf("SerializedBits = %d, want %d", tree.SerializedBits(), 10*k)
	}
}

func TestTreeShape(t *testing.T) {
	for _, k := range []int{1, 2, 3, 17, 255, 256} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			tree := Build(Count(alphabet(k)))
			requireShape(t, tree, k)

			var buffer bytes.Buffer
			writer := bitio.NewWriter(&buffer, binary.LittleEndian)
			if err := tree.WriteTo(writer); err != nil {
				t.Fatal(err)
			}
			if err := writer.Flush(); err != nil {
				t.Fatal(err)
			}
			parsed, err := ReadTree(bitio.NewReader(&buffer, binary.LittleEndian), tree.SerializedBits())
			if err != nil {
				t.Fatalf("ReadTree: %v", err)
			}
			requireShape(t, parsed, k)
		})
	}
}

func TestShapeCountsReachableNodes(t *testing.T) {
	// Root 2 joins leaves 0 and 1; leaf 3 is in the arena but detached.
	tree := &Tree{
		nodes: []node{
			{left: noChild, right: noChild, symbol: 'a'},
			{left: noChild, right: noChild, symbol: 'b'},
			{left: 0, right: 1},
			{left: noChild, right: noChild, symbol: 'c'},
		},
		root: 2,
	}
	if tree.Leaves() != 2 || tree.Internal() != 1 {
		t.Errorf("Leaves, Internal = %d, %d, want 2, 1", tree.Leaves(), tree.Internal())
	}
	if tree.SerializedBits() != 20 {
		t.Errorf("SerializedBits = %d, want 20", tree.SerializedBits())
	}
}

func TestCodesArePrefixFree(t *testing.T) {
	data := testutil.TextBytes(1, 10_000)
	frequencies := Count(data)
	codes, err := Build(frequencies).Codes()
	if err != nil {
		t.Fatal(err)
	}
	var present []int
	for symbol, frequency := range frequencies {
		if frequency > 0 {
			present = append(present, symbol)
		}
	}
	for _, a := range present {
		for _, b := range present {
			if a == b {
				continue
			}
			ca, cb := codes[a], codes[b]
			if ca.Length <= cb.Length && cb.Bits>>(cb.Length-ca.Length) == ca.Bits {
				t.Fatalf("code for %q (%v) is a prefix of %q (%v)", a, ca, b, cb)
			}
			if frequencies[a] > frequencies[b] && ca.Length > cb.Length {
				t.Errorf("%q is more frequent than %q but has a longer code", a, b)
			}
		}
	}
}

func TestSingleSymbolTree(t *testing.T) {
	tree := Build(Count([]byte("zzzz")))
	if tree.Leaves() != 1 || tree.Internal() != 0 {
		t.Fatalf("shape = %d leaves, %d internal", tree.Leaves(), tree.Internal())
	}
	codes, err := tree.Codes()
	if err != nil {
		t.Fatal(err)
	}
	if codes['z'].Length != 0 {
		t.Errorf("single symbol code length = %d, want 0", codes['z'].Length)
	}

	encoded, err := Encode([]byte("zzzz"))
	if err != nil {
		t.Fatal(err)
	}
	header := parseHeader(encoded)
	if header != (BlockHeader{EncodedBits: 0, TreeBits: 10, OriginalCount: 4}) {
		t.Errorf("header = %+v", header)
	}
	if len(encoded) != HeaderSize+2 {
		t.Errorf("encoded %d bytes, want %d", len(encoded), HeaderSize+2)
	}
	decoded, err := Decode(encoded)
	if err != nil || string(decoded) != "zzzz" {
		t.Errorf("Decode = %q, %v", decoded, err)
	}
}

func TestEncodeKnownBlock(t *testing.T) {
	// a (2) and b (1): b pops first and becomes the left child, so b=0
	// and a=1. Tree bits: 0, 1 'b', 1 'a', sentinel 0; codes: 1 1 0.
	encoded, err := Encode([]byte("aab"))
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		3, 0, 0, 0,
		20, 0, 0, 0,
		3, 0, 0, 0,
		0x58, 0xac, 0x2c,
	}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("Encode = % x, want % x", encoded, want)
	}
}

func TestTreeSerializationRoundTrip(t *testing.T) {
	tree := Build(Count(testutil.TextBytes(2, 5000)))
	var buffer bytes.Buffer
	writer := bitio.NewWriter(&buffer, binary.LittleEndian)
	if err := tree.WriteTo(writer); err != nil {
		t.Fatal(err)
	}
	if writer.BitsWritten() != uint64(tree.SerializedBits()) {
		t.Errorf("wrote %d bits, SerializedBits = %d", writer.BitsWritten(), tree.SerializedBits())
	}
	writer.Flush()

	parsed, err := ReadTree(bitio.NewReader(&buffer, binary.LittleEndian), tree.SerializedBits())
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	want, _ := tree.Codes()
	got, _ := parsed.Codes()
	if *got != *want {
		t.Error("parsed tree assigns different codes")
	}
}

func TestEmptyTree(t *testing.T) {
	tree := Build(&Frequencies{})
	if !tree.Empty() || tree.Leaves() != 0 {
		t.Fatalf("empty table built %d leaves", tree.Leaves())
	}
	if _, err := tree.Codes(); !errors.Is(err, ErrNoTree) {
		t.Errorf("Codes: err = %v, want ErrNoTree", err)
	}
	_, err := tree.decodeSymbols(nil, bitio.NewReader(bytes.NewReader(nil), binary.LittleEndian), BlockHeader{OriginalCount: 1})
	if !errors.Is(err, ErrNoTree) {
		t.Errorf("decodeSymbols: err = %v, want ErrNoTree", err)
	}
	if encoded, err := Encode(nil); err != nil || len(encoded) != 0 {
		t.Errorf("Encode(nil) = %v, %v", encoded, err)
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) {
	return 0, w.err
}

func TestWriteBlockReportsWriteErrors(t *testing.T) {
	errDisk := errors.New("disk full")
	for _, size := range []int{1, 100, 20_000} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			err := writeBlock(failingWriter{errDisk}, testutil.TextBytes(3, size))
			if !errors.Is(err, errDisk) {
				t.Errorf("writeBlock err = %v, want %v", err, errDisk)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"text":      testutil.TextBytes(3, 20_000),
		"random":    testutil.RandomBytes(4, 20_000),
		"runs":      testutil.RunBytes(5, 20_000, 50),
		"all bytes": alphabet(256),
		"two":       []byte("ab"),
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			encoded, err := Encode(input)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			testutil.RequireBytes(t, decoded, input, name)
		})
	}
}

func corruptBlock(mutate func([]byte)) []byte {
	encoded, _ := Encode([]byte("aab"))
	mutate(encoded)
	return encoded
}

func TestDecodeCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		encoded []byte
		want    error
	}{
		{"count too large", corruptBlock(func(b []byte) { b[8] = 4 }), dataflow.ErrCorrupt},
		{"count zero", corruptBlock(func(b []byte) { b[8] = 0 }), dataflow.ErrCorrupt},
		{"code bits short", corruptBlock(func(b []byte) { b[0] = 2 }), dataflow.ErrCorrupt},
		{"tree bits too small", corruptBlock(func(b []byte) { b[4] = 9 }), dataflow.ErrCorrupt},
		{"tree bits huge", corruptBlock(func(b []byte) { b[5] = 0xff }), dataflow.ErrCorrupt},
		{"sentinel set", corruptBlock(func(b []byte) { b[14] |= 0x10 }), dataflow.ErrCorrupt},
		{"truncated payload", corruptBlock(func(b []byte) {})[:14], dataflow.ErrTruncated},
		{"truncated header", corruptBlock(func(b []byte) {})[:5], dataflow.ErrTruncated},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(test.encoded)
			testutil.RequireErrorIs(t, err, test.want, test.name)
		})
	}
}

func TestChunkBoundaryInvariance(t *testing.T) {
	input := testutil.TextBytes(6, 9_000)
	const blockSize = 1000

	reference := func() []byte {
		var joined []byte
		for _, block := range testutil.Split(input, blockSize) {
			encoded, err := Encode(block)
			if err != nil {
				t.Fatal(err)
			}
			joined = append(joined, encoded...)
		}
		return joined
	}()

	for _, size := range []int{1, 7, 999, 1000, 1001, 4096, 9000} {
		t.Run(fmt.Sprintf("chunk_%d", size), func(t *testing.T) {
			encoder, err := NewEncoder(blockSize)
			if err != nil {
				t.Fatal(err)
			}
			encoded, err := dataflow.Apply([]dataflow.Stage{encoder}, testutil.Split(input, size)...)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			testutil.RequireBytes(t, encoded, reference, "encoding in %d-byte chunks", size)

			decoder, err := NewDecoder(blockSize)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := dataflow.Apply([]dataflow.Stage{decoder}, testutil.RandomSplits(uint64(size), encoded, size)...)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			testutil.RequireBytes(t, decoded, input, "decoding in chunks of up to %d bytes", size)
		})
	}
}

func TestDecoderStageErrors(t *testing.T) {
	encoded, _ := Encode(testutil.TextBytes(7, 500))

	decoder, _ := NewDecoder(100)
	_, err := dataflow.Apply([]dataflow.Stage{decoder}, encoded)
	testutil.RequireErrorIs(t, err, dataflow.ErrCorrupt, "block above decoder limit")

	decoder, _ = NewDecoder(0)
	_, err = dataflow.Apply([]dataflow.Stage{decoder}, testutil.Split(encoded[:len(encoded)-1], 64)...)
	testutil.RequireErrorIs(t, err, dataflow.ErrTruncated, "missing final byte")

	if _, err := NewEncoder(MaxBlockSize + 1); err == nil {
		t.Error("oversized block size accepted")
	}
	if _, err := NewDecoder(-5); err == nil {
		t.Error("negative max block size accepted")
	}
}

func TestStageSetupTeardown(t *testing.T) {
	encoder, _ := NewEncoder(0)
	decoder, _ := NewDecoder(0)
	for _, stage := range []dataflow.Stage{encoder, decoder} {
		stage.Setup()
		stage.Setup()
		if err := stage.Teardown(); err != nil {
			t.Errorf("%s: Teardown without chunks: %v", stage.Name(), err)
		}
	}

	encoder.Setup()
	chunk := &dataflow.ChunkContext{IsFirstChunk: true, TotalBytesToProcess: 100, Input: []byte("partial")}
	if err := encoder.ProcessChunk(chunk); err != nil {
		t.Fatal(err)
	}
	testutil.RequireErrorIs(t, encoder.Teardown(), dataflow.ErrUnflushed, "unflushed block")
}
