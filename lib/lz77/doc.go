// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package lz77 implements sliding-window dictionary coding.
//
// The input is described as a sequence of [Token] values. Each token
// copies Length bytes starting Offset bytes behind the current output
// position, then appends one literal byte. A token with Length zero is a
// bare literal. A copy may overlap the bytes it produces (offset 1 with
// length 10 repeats the previous byte ten more times), so decoders copy
// one byte at a time.
//
// The encoder considers every match start within the last WindowSize
// bytes, nearest first, and keeps the first longest match it finds, up
// to MaxMatch bytes. This is a deliberately simple exhaustive search:
// compression ratio and speed are secondary to predictable output.
//
// # Wire form
//
// On the wire each token occupies [TokenSize] bytes:
//
//	u16 offset | u16 length | u8 literal   (little-endian)
//
// # Streaming
//
// [Encoder] keeps WindowSize bytes of history across chunks and holds
// back MaxMatch+1 bytes of lookahead until the last chunk, so its output
// is byte-for-byte identical to [Encode] over the whole input regardless
// of how the input was chunked. [Decoder] keeps WindowSize bytes of
// decoded history and carries a partially received token into the next
// chunk. It rejects matches longer than MaxMatch, which bounds how much
// one chunk of tokens can expand to.
package lz77
