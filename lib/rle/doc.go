// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package rle implements run-length coding as pipeline stages.
//
// The encoded form is a flat sequence of (count, value) byte pairs, one
// per maximal run of identical bytes. Runs longer than 255 bytes are
// split into several pairs of count 255 followed by the remainder, so
// 600 copies of b encode as [255 b 255 b 90 b]. A count of zero never
// appears in valid output.
//
// Both stages carry state across chunk boundaries. The [Encoder] keeps
// the run that is open at the end of a chunk and continues it into the
// next one, flushing it only when a different byte arrives or the last
// chunk has been seen. The [Decoder] keeps a trailing count byte whose
// value byte has not arrived yet. Encoded output is therefore identical
// however the input is chunked.
package rle
