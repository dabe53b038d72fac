// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package codecs

import (
	"math"

	"github.com/dylanclarke890/krystal/lib/blockcodec"
	"github.com/dylanclarke890/krystal/lib/dataflow"
	"github.com/dylanclarke890/krystal/lib/huffman"
	"github.com/dylanclarke890/krystal/lib/lz77"
	"github.com/dylanclarke890/krystal/lib/rle"
	"github.com/dylanclarke890/krystal/lib/seal"
)

func init() {
	register(&Codec{
		Name:        "identity",
		Description: "pass bytes through unchanged",
		Format:      dataflow.Bytes,
		encoder:     identity,
		decoder:     identity,
	})

	register(&Codec{
		Name:        "rle",
		Description: "run-length encoding as (count, byte) pairs",
		Format:      rle.Format,
		encoder: func(Options, Env) (dataflow.Stage, error) {
			return rle.NewEncoder(), nil
		},
		decoder: func(Options, Env) (dataflow.Stage, error) {
			return rle.NewDecoder(), nil
		},
	})

	register(&Codec{
		Name:        "lz77",
		Description: "sliding-window LZ77 with 5-byte tokens",
		Format:      lz77.Format,
		Parameters: []Parameter{
			{Name: "window_size", Default: lz77.DefaultWindowSize, Min: 1, Max: math.MaxUint16},
			{Name: "max_match", Default: lz77.DefaultMaxMatch, Min: 1, Max: math.MaxUint16},
		},
		encoder: func(options Options, _ Env) (dataflow.Stage, error) {
			return lz77.NewEncoder(lz77Options(options))
		},
		decoder: func(options Options, _ Env) (dataflow.Stage, error) {
			return lz77.NewDecoder(lz77Options(options))
		},
	})

	register(&Codec{
		Name:        "huffman",
		Description: "per-block Huffman coding with an embedded tree",
		Format:      huffman.Format,
		Parameters: []Parameter{
			{Name: "block_size", Default: huffman.DefaultBlockSize, Min: 1, Max: huffman.MaxBlockSize},
		},
		encoder: func(options Options, _ Env) (dataflow.Stage, error) {
			return huffman.NewEncoder(options.BlockSize)
		},
		decoder: func(options Options, _ Env) (dataflow.Stage, error) {
			return huffman.NewDecoder(options.BlockSize)
		},
	})

	registerBlockCodec(blockcodec.Zstd, "zstd block compression", 22)
	registerBlockCodec(blockcodec.LZ4, "LZ4 block compression", 9)
	registerBlockCodec(blockcodec.BG4LZ4, "4-byte group transpose, then LZ4", 9)
	registerBlockCodec(blockcodec.Auto, "per-block choice of zstd, LZ4 or stored", 0)

	register(&Codec{
		Name:        "seal",
		Description: "XChaCha20-Poly1305 authenticated encryption",
		Format:      seal.Format,
		Keyed:       true,
		Parameters: []Parameter{
			{Name: "block_size", Default: seal.DefaultBlockSize, Min: 1, Max: seal.MaxBlockSize},
		},
		encoder: func(options Options, env Env) (dataflow.Stage, error) {
			return seal.NewEncoder(env.Key, seal.Options{BlockSize: options.BlockSize, Random: env.Random})
		},
		decoder: func(options Options, env Env) (dataflow.Stage, error) {
			return seal.NewDecoder(env.Key, options.BlockSize)
		},
	})
}

func identity(Options, Env) (dataflow.Stage, error) {
	return dataflow.NewIdentity(), nil
}

func lz77Options(options Options) lz77.Options {
	return lz77.Options{WindowSize: options.WindowSize, MaxMatch: options.MaxMatch}
}

// registerBlockCodec registers a blockcodec tag. A maxLevel of zero
// means the tag takes no level.
func registerBlockCodec(tag blockcodec.Tag, description string, maxLevel int) {
	parameters := []Parameter{
		{Name: "block_size", Default: blockcodec.DefaultBlockSize, Min: 1, Max: blockcodec.MaxBlockSize},
	}
	if maxLevel > 0 {
		parameters = append(parameters, Parameter{Name: "level", Min: 1, Max: maxLevel})
	}
	register(&Codec{
		Name:        tag.String(),
		Description: description,
		Format:      blockcodec.Format,
		Parameters:  parameters,
		encoder: func(options Options, _ Env) (dataflow.Stage, error) {
			return blockcodec.NewEncoder(tag, blockcodec.Options{
				BlockSize: options.BlockSize,
				Level:     options.Level,
			})
		},
		decoder: func(options Options, _ Env) (dataflow.Stage, error) {
			return blockcodec.NewDecoder(options.BlockSize)
		},
	})
}
