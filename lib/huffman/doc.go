// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package huffman implements static Huffman coding over bytes.
//
// A [Tree] is built from a byte frequency table by repeatedly merging
// the two least frequent nodes taken from a min-heap. Ties are broken by
// heap order, not by symbol value, so codes are not canonical: the tree
// itself is stored alongside the data. Nodes live in an arena owned by
// the tree and refer to their children by index.
//
// # Block format
//
// Input is coded in independent blocks. Each block is
//
//	u32 encodedBitLength     bits of packed codes
//	u32 treeBitLength        bits of serialized tree
//	u32 originalByteCount    bytes the block decodes to
//	serialized tree          pre-order: 1 + 8-bit symbol per leaf, 0 per internal node, then a 0 sentinel
//	packed codes             left descent 0, right descent 1
//
// The three lengths are little-endian. The tree and codes share one
// MSB-first bitstream that is zero-padded to a whole byte. A block whose
// input holds a single distinct symbol has a one-node tree and no code
// bits at all; it decodes to originalByteCount copies of that symbol.
//
// [Encode] codes its whole input as one block. The [Encoder] stage
// splits the stream into fixed-size blocks (BlockSize bytes, except the
// last), so memory stays bounded and the output does not depend on how
// the input was chunked.
package huffman
