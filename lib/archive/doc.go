// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive defines the self-describing container krystal
// writes: a header recording how the payload was produced, followed by
// the payload itself.
//
//	"KRYS" | u8 format version | u32 header length (LE) | CBOR Header | payload
//
// The header carries the codec chain with every option resolved, the
// chunk size, the original size and a BLAKE3 keyed digest of the
// original bytes, so an archive decodes without any outside knowledge
// except, for sealed archives, the key.
//
// [Sink] and [Source] wrap dataflow sinks and sources so that the
// header is written or consumed around the pipeline's payload stream.
// [VerifyingSink] checks the restored bytes against the header's
// digest and size when it is closed.
package archive
