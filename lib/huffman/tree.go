// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package huffman

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/dylanclarke890/krystal/lib/bitio"
	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// ErrNoTree is returned when coding is attempted with a tree that has no
// nodes.
var ErrNoTree = errors.New("huffman: tree is empty")

const (
	// maxLeaves is the number of distinct byte values.
	maxLeaves = 256

	// maxTreeBits is the serialized size of a tree with every symbol
	// present: 9 bits per leaf, 1 per internal node, 1 sentinel.
	maxTreeBits = 10 * maxLeaves

	// maxCodeLength bounds code lengths so codes fit a uint64. Blocks are
	// at most 2^32-1 bytes, which keeps real trees far shallower.
	maxCodeLength = 64
)

// Frequencies counts occurrences of each byte value.
type Frequencies [256]uint64

// Count returns the byte frequencies of data.
func Count(data []byte) *Frequencies {
	var frequencies Frequencies
	for _, b := range data {
		frequencies[b]++
	}
	return &frequencies
}

// noChild marks a leaf's child fields.
const noChild int32 = -1

type node struct {
	frequency   uint64
	left, right int32
	symbol      byte
}

func (n *node) isLeaf() bool {
	return n.left == noChild
}

// Tree is a Huffman tree stored as an arena of nodes.
type Tree struct {
	nodes []node
	root  int32
}

// nodeHeap orders arena indexes by node frequency.
type nodeHeap struct {
	nodes   []node
	indexes []int32
}

func (h *nodeHeap) Len() int {
	return len(h.indexes)
}

func (h *nodeHeap) Less(i, j int) bool {
	return h.nodes[h.indexes[i]].frequency < h.nodes[h.indexes[j]].frequency
}

func (h *nodeHeap) Swap(i, j int) {
	h.indexes[i], h.indexes[j] = h.indexes[j], h.indexes[i]
}

func (h *nodeHeap) Push(x any) {
	h.indexes = append(h.indexes, x.(int32))
}

func (h *nodeHeap) Pop() any {
	last := h.indexes[len(h.indexes)-1]
	h.indexes = h.indexes[:len(h.indexes)-1]
	return last
}

// Build returns the Huffman tree for a frequency table. Symbols with a
// zero count get no leaf. An all-zero table yields an empty tree.
func Build(frequencies *Frequencies) *Tree {
	h := &nodeHeap{nodes: make([]node, 0, 2*maxLeaves-1)}
	for symbol, frequency := range frequencies {
		if frequency == 0 {
			continue
		}
		h.nodes = append(h.nodes, node{
			frequency: frequency,
			left:      noChild,
			right:     noChild,
			symbol:    byte(symbol),
		})
		h.indexes = append(h.indexes, int32(len(h.nodes)-1))
	}
	if len(h.nodes) == 0 {
		return &Tree{root: noChild}
	}

	heap.Init(h)
	for h.Len() > 1 {
		left := heap.Pop(h).(int32)
		right := heap.Pop(h).(int32)
		h.nodes = append(h.nodes, node{
			frequency: h.nodes[left].frequency + h.nodes[right].frequency,
			left:      left,
			right:     right,
		})
		heap.Push(h, int32(len(h.nodes)-1))
	}
	return &Tree{nodes: h.nodes, root: h.indexes[0]}
}

// Empty reports whether the tree has no nodes.
func (t *Tree) Empty() bool {
	return t == nil || t.root == noChild
}

// Leaves returns the number of leaf nodes reachable from the root.
func (t *Tree) Leaves() int {
	leaves, _ := t.shape()
	return leaves
}

// Internal returns the number of internal nodes reachable from the root.
func (t *Tree) Internal() int {
	_, internal := t.shape()
	return internal
}

// shape walks the tree from the root and counts leaf and internal nodes.
func (t *Tree) shape() (leaves, internal int) {
	if t.Empty() {
		return 0, 0
	}
	stack := []int32{t.root}
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if n.isLeaf() {
			leaves++
			continue
		}
		internal++
		stack = append(stack, n.right, n.left)
	}
	return leaves, internal
}

// Code is one symbol's bit pattern, held in the low Length bits of Bits.
type Code struct {
	Bits   uint64
	Length uint8
}

func (c Code) String() string {
	if c.Length == 0 {
		return "-"
	}
	return fmt.Sprintf("%0*b", c.Length, c.Bits)
}

// CodeTable maps each byte value to its code. Symbols absent from the
// tree have a zero-length code.
type CodeTable [256]Code

// Codes walks the tree and returns every leaf's code. A single-leaf tree
// assigns its symbol an empty code.
func (t *Tree) Codes() (*CodeTable, error) {
	if t.Empty() {
		return nil, ErrNoTree
	}
	type frame struct {
		index  int32
		code   uint64
		length int
	}
	var table CodeTable
	stack := []frame{{index: t.root}}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[current.index]
		if n.isLeaf() {
			table[n.symbol] = Code{Bits: current.code, Length: uint8(current.length)}
			continue
		}
		if current.length == maxCodeLength {
			return nil, fmt.Errorf("huffman: code length exceeds %d bits", maxCodeLength)
		}
		stack = append(stack,
			frame{index: n.right, code: current.code<<1 | 1, length: current.length + 1},
			frame{index: n.left, code: current.code << 1, length: current.length + 1},
		)
	}
	return &table, nil
}

// SerializedBits returns the size of the tree's serialized form.
func (t *Tree) SerializedBits() int {
	if t.Empty() {
		return 0
	}
	leaves, internal := t.shape()
	return 9*leaves + internal + 1
}

// WriteTo writes the tree in pre-order followed by the 0 sentinel.
func (t *Tree) WriteTo(w *bitio.Writer) error {
	if t.Empty() {
		return ErrNoTree
	}
	stack := []int32{t.root}
	for len(stack) > 0 {
		index := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[index]
		if n.isLeaf() {
			if err := w.WriteBits(1<<8|uint64(n.symbol), 9); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteBit(0); err != nil {
			return err
		}
		stack = append(stack, n.right, n.left)
	}
	return w.WriteBit(0)
}

// ReadTree reads a serialized tree of exactly treeBits bits, sentinel
// included. Malformed trees wrap [dataflow.ErrCorrupt]; running out of
// input wraps [dataflow.ErrTruncated].
func ReadTree(r *bitio.Reader, treeBits int) (*Tree, error) {
	if treeBits < 10 || treeBits > maxTreeBits {
		return nil, fmt.Errorf("huffman: tree length %d bits outside [10, %d]: %w",
			treeBits, maxTreeBits, dataflow.ErrCorrupt)
	}
	start := r.BitsRead()
	tree := &Tree{nodes: make([]node, 0, 2*maxLeaves-1), root: noChild}

	var (
		seen    [256]bool
		leaves  int
		pending []int32 // internal nodes still missing a child
	)
	for {
		if uint64(treeBits) <= r.BitsRead()-start {
			return nil, fmt.Errorf("huffman: tree incomplete after %d bits: %w", treeBits, dataflow.ErrCorrupt)
		}
		bit, err := r.ReadBit()
		if err != nil {
			return nil, treeReadError(err)
		}

		n := node{left: noChild, right: noChild}
		if bit == 1 {
			symbol, err := r.ReadBits(8)
			if err != nil {
				return nil, treeReadError(err)
			}
			if seen[symbol] {
				return nil, fmt.Errorf("huffman: symbol %d appears twice in tree: %w", symbol, dataflow.ErrCorrupt)
			}
			seen[symbol] = true
			leaves++
			n.symbol = byte(symbol)
		} else if len(tree.nodes)-leaves >= maxLeaves-1 {
			return nil, fmt.Errorf("huffman: more than %d internal nodes: %w", maxLeaves-1, dataflow.ErrCorrupt)
		}

		index := int32(len(tree.nodes))
		tree.nodes = append(tree.nodes, n)
		if tree.root == noChild {
			tree.root = index
		} else {
			parent := &tree.nodes[pending[len(pending)-1]]
			if parent.left == noChild {
				parent.left = index
			} else {
				parent.right = index
				pending = pending[:len(pending)-1]
			}
		}
		if bit == 0 {
			pending = append(pending, index)
		}
		if len(pending) == 0 {
			break
		}
	}

	sentinel, err := r.ReadBit()
	if err != nil {
		return nil, treeReadError(err)
	}
	if sentinel != 0 {
		return nil, fmt.Errorf("huffman: tree sentinel bit is 1: %w", dataflow.ErrCorrupt)
	}
	if consumed := r.BitsRead() - start; consumed != uint64(treeBits) {
		return nil, fmt.Errorf("huffman: tree occupies %d bits, header says %d: %w",
			consumed, treeBits, dataflow.ErrCorrupt)
	}
	return tree, nil
}

func treeReadError(err error) error {
	return fmt.Errorf("huffman: reading tree: %w: %w", dataflow.ErrTruncated, err)
}
