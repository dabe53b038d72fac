// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "math/rand/v2"

// Split cuts data into consecutive chunks of size bytes; the last chunk
// may be shorter. The chunks alias data.
func Split(data []byte, size int) [][]byte {
	if size <= 0 {
		panic("testutil.Split: size must be positive")
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// RandomSplits cuts data into chunks of random lengths between 1 and
// maxSize bytes, derived from seed. The chunks alias data.
func RandomSplits(seed uint64, data []byte, maxSize int) [][]byte {
	if maxSize <= 0 {
		panic("testutil.RandomSplits: maxSize must be positive")
	}
	rng := rand.New(rand.NewPCG(seed, 3))
	var chunks [][]byte
	for len(data) > 0 {
		n := min(1+rng.IntN(maxSize), len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}
