// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package dataflow runs byte streams through an ordered chain of
// transformation stages in bounded memory.
//
// A [Pipeline] pulls chunks of at most ChunkSize bytes from a [Source],
// passes each chunk through every [Stage] in declared order, and writes
// the last stage's output to a [Sink]. Stages run sequentially on one
// goroutine; reading, transforming, and writing never overlap.
//
// # Stage lifecycle
//
// Every stage goes through Setup, then one ProcessChunk call per chunk,
// then Teardown, all within a single [Pipeline.Execute]. A stage keeps
// whatever it needs across chunk boundaries (an open run, a window of
// history, a partially received frame) in its own state value, because
// nothing guarantees that chunk boundaries line up with the records a
// codec produces. Stages flush pending output on the call whose
// [ChunkContext] has IsLastChunk set; Teardown only verifies that
// nothing is left over and clears the state.
//
// # Element types
//
// Each stage declares the format it consumes and produces as an
// [ElementType]. [New] rejects chains where a stage expects a format the
// previous stage does not produce. Stages that accept any byte stream
// (every encoder) declare [Bytes] as their input type.
//
// # Sources and sinks
//
// [MemorySource], [MemorySink], [FileSource] and [FileSink] cover the
// common cases. [Read], [ReadSlice], [Write] and [WriteSlice] perform
// fixed-size typed I/O in the source's or sink's byte order.
//
// # Re-blocking helpers
//
// [BlockBuffer] turns an arbitrarily chunked stream into fixed-size
// blocks, so block-oriented encoders produce identical output no matter
// how the input was chunked. [FrameBuffer] reassembles length-prefixed
// frames that straddle chunk boundaries on the decoding side.
package dataflow
