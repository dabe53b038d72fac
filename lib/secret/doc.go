// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// [Buffer] allocates memory via mmap(MAP_ANONYMOUS), locks it into RAM
// with mlock, and excludes it from core dumps with
// madvise(MADV_DONTDUMP). Close zeroes, unlocks and unmaps it. The
// garbage collector never sees the memory, so it cannot leave copies of
// a key behind.
//
// [GenerateKey] fills a new buffer from crypto/rand. [ReadKeyFile] loads
// a key written by [FormatKey]: KeySize bytes as hex text, surrounding
// whitespace ignored. Raw binary key files of exactly KeySize bytes are
// accepted too.
//
// Depends on golang.org/x/sys/unix. No Krystal-internal dependencies.
package secret
