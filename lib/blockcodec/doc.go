// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package blockcodec compresses byte streams in independent framed
// blocks using general-purpose block compressors: LZ4, zstd, and a
// byte-grouped LZ4 variant for arrays of 4-byte values.
//
// The [Encoder] stage cuts its input into fixed-size blocks and writes
// each as one frame:
//
//	u8 tag | u32 storedLength | u32 rawLength | payload
//
// Lengths are little-endian. A block that the chosen algorithm cannot
// shrink is stored with tag none instead. With the [Auto] pseudo-tag the
// encoder probes every block and picks the algorithm per block. The
// [Decoder] accepts frames of every tag, so one decoder serves all
// encoder configurations.
package blockcodec
