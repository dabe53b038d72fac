// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/dylanclarke890/krystal/cmd/krystal/cli"
	"github.com/dylanclarke890/krystal/lib/archive"
	"github.com/dylanclarke890/krystal/lib/codec"
)

type inspectParams struct {
	cli.JSONOutput
	Diag bool `flag:"diag" desc:"print the raw header in CBOR diagnostic notation"`
}

// archiveInfo is the --json form of inspect.
type archiveInfo struct {
	Path        string          `json:"path"`
	ArchiveSize int64           `json:"archive_size"`
	HeaderSize  int             `json:"header_size"`
	PayloadSize int64           `json:"payload_size"`
	Ratio       float64         `json:"ratio"`
	Header      *archive.Header `json:"header"`
}

func inspectCommand() *cli.Command {
	var params inspectParams
	return &cli.Command{
		Name:    "inspect",
		Summary: "Show an archive's header",
		Description: `Print what an archive's header records: the codec chain with resolved
options, chunk size, original size and digest, and whether the payload
is sealed. The payload is not read.

--diag prints the header exactly as stored, in CBOR Extended Diagnostic
Notation.`,
		Usage: "krystal inspect [flags] <archive>",
		Examples: []cli.Example{
			{
				Description: "Summarize an archive",
				Command:     "krystal inspect data.bin.krys",
			},
			{
				Description: "Show the raw header",
				Command:     "krystal inspect --diag data.bin.krys",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("inspect", &params)
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: krystal inspect [flags] <archive>")
			}
			if params.Diag {
				return diagnoseHeader(os.Stdout, args[0])
			}
			info, err := loadArchiveInfo(args[0])
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(info); done {
				return err
			}
			return writeArchiveInfo(os.Stdout, info)
		},
	}
}

func loadArchiveInfo(path string) (*archiveInfo, error) {
	header, headerSize, err := readArchiveHeader(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	payload := stat.Size() - int64(headerSize)
	return &archiveInfo{
		Path:        path,
		ArchiveSize: stat.Size(),
		HeaderSize:  headerSize,
		PayloadSize: payload,
		Ratio:       ratio(stat.Size(), header.OriginalSize),
		Header:      header,
	}, nil
}

func writeArchiveInfo(w io.Writer, info *archiveInfo) error {
	header := info.Header
	sealing := "no"
	switch {
	case len(header.WrappedKey) > 0:
		sealing = "yes, key wrapped for age recipients"
	case header.Sealed():
		sealing = "yes, external key"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "archive:\t%s\n", info.Path)
	if header.Name != "" {
		fmt.Fprintf(tw, "name:\t%s\n", header.Name)
	}
	fmt.Fprintf(tw, "original size:\t%d bytes (%s)\n", header.OriginalSize, humanize.IBytes(uint64(header.OriginalSize)))
	fmt.Fprintf(tw, "archive size:\t%d bytes (%s; header %d, payload %d)\n",
		info.ArchiveSize, humanize.IBytes(uint64(info.ArchiveSize)), info.HeaderSize, info.PayloadSize)
	if header.OriginalSize > 0 {
		fmt.Fprintf(tw, "ratio:\t%.3f\n", info.Ratio)
	}
	fmt.Fprintf(tw, "chunk size:\t%d\n", header.ChunkSize)
	fmt.Fprintf(tw, "digest:\t%s\n", header.Digest)
	for index, spec := range header.Stages {
		fmt.Fprintf(tw, "stage %d:\t%s\n", index, spec)
	}
	fmt.Fprintf(tw, "sealed:\t%s\n", sealing)
	return tw.Flush()
}

func diagnoseHeader(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	raw, err := archive.RawHeader(file)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	notation, err := codec.Diagnose(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	_, err = fmt.Fprintln(w, notation)
	return err
}
