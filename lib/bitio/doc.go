// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package bitio reads and writes bit-granular data over byte-oriented
// streams.
//
// Bits are packed most-significant-bit first within each byte: the first
// bit written lands in bit 7 of the first byte. A multi-bit value written
// with [Writer.WriteBits] is emitted from its most significant bit down,
// so reading the same width back with [Reader.ReadBits] reproduces it
// regardless of how the value straddles byte boundaries.
//
// Byte order is chosen per Writer/Reader and applies only to the
// multi-byte numeric helpers (WriteUint16, ReadUint32, ...). It never
// affects the order of bits inside a byte.
//
// The final partial byte is zero-padded by [Writer.Flush]. Readers that
// know where a bitstream ends call [Reader.Align] to skip the padding.
package bitio
