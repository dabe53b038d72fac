// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Krystal packages.
//
// [RandomBytes], [TextBytes] and [RunBytes] generate deterministic test
// corpora from a seed, so that a failing case can be reproduced exactly.
// Each models a different input class: incompressible noise, natural
// language with repeated words, and long byte runs.
//
// [Split] and [RandomSplits] cut a corpus into chunks. Codec tests feed
// the same input through many different chunkings and require identical
// output, which is how chunk-boundary handling is exercised.
//
// [RequireBytes] and [RequireErrorIs] report mismatches with enough
// context (first differing offset, wrapped error chain) to debug a
// codec failure without dumping megabytes of output.
//
// [WriteFile] creates a file under t.TempDir().
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Krystal-internal dependencies.
package testutil
