// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"math/rand/v2"
	"strings"
)

// RandomBytes returns n pseudo-random bytes derived from seed.
func RandomBytes(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(rng.Uint32())
	}
	return data
}

var words = strings.Fields(`the quick brown fox jumps over a lazy dog while
	streams of bytes flow through chunked stages and every block is
	encoded decoded verified then written to disk again`)

// TextBytes returns n bytes of space-separated words chosen from a small
// vocabulary, giving a skewed symbol distribution and frequent repeats.
func TextBytes(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, 1))
	data := make([]byte, 0, n+16)
	for len(data) < n {
		data = append(data, words[rng.IntN(len(words))]...)
		data = append(data, ' ')
	}
	return data[:n]
}

// RunBytes returns n bytes made of runs between 1 and maxRun bytes long,
// each of a symbol drawn from a four-letter alphabet.
func RunBytes(seed uint64, n, maxRun int) []byte {
	rng := rand.New(rand.NewPCG(seed, 2))
	data := make([]byte, 0, n)
	for len(data) < n {
		symbol := "ACGT"[rng.IntN(4)]
		length := min(1+rng.IntN(maxRun), n-len(data))
		for range length {
			data = append(data, symbol)
		}
	}
	return data
}
