// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the krystal CLI command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/dylanclarke890/krystal/cmd/krystal/cli"
	"github.com/dylanclarke890/krystal/lib/version"
)

// Root builds and returns the complete krystal command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "krystal",
		Description: `Krystal: bounded-memory chunked compression.

Stream files of any size through chains of codecs (RLE, LZ77, Huffman,
zstd, LZ4, authenticated encryption) a chunk at a time, into
self-describing archives that restore and verify themselves.`,
		Subcommands: []*cli.Command{
			compressCommand(),
			decompressCommand(),
			inspectCommand(),
			codecsCommand(),
			profilesCommand(),
			validateCommand(),
			keygenCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string) error {
					fmt.Printf("krystal %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Compress with the default profile",
				Command:     "krystal compress data.bin",
			},
			{
				Description: "Restore and verify",
				Command:     "krystal decompress data.bin.krys",
			},
			{
				Description: "See what an archive contains",
				Command:     "krystal inspect data.bin.krys",
			},
			{
				Description: "Compress with a JSONC pipeline definition",
				Command:     "krystal compress --pipeline pipelines/logs.jsonc logs.txt",
			},
		},
	}
}
