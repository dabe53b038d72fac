// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/dylanclarke890/krystal/cmd/krystal/cli"
	"github.com/dylanclarke890/krystal/lib/archive"
	"github.com/dylanclarke890/krystal/lib/codecs"
	"github.com/dylanclarke890/krystal/lib/config"
	"github.com/dylanclarke890/krystal/lib/dataflow"
	"github.com/dylanclarke890/krystal/lib/secret"
	"github.com/dylanclarke890/krystal/lib/sealed"
)

type decompressParams struct {
	Globals
	OutputFlags

	KeyFile  string `flag:"key-file" desc:"master key for a sealed archive (default: paths.key_file)"`
	Identity string `flag:"identity,i" desc:"age identity file for an archive sealed to recipients (default: paths.identity)"`
}

func decompressCommand() *cli.Command {
	var params decompressParams
	return &cli.Command{
		Name:    "decompress",
		Summary: "Restore the original file from a krystal archive",
		Description: `Decode an archive's payload with the inverse of the chain recorded in
its header, and verify the restored bytes against the recorded size and
BLAKE3 digest. A failed run removes the partial output.

Without --output the archive name minus its .krys suffix is used.`,
		Usage: "krystal decompress [flags] <archive>",
		Examples: []cli.Example{
			{
				Description: "Restore data.bin",
				Command:     "krystal decompress data.bin.krys",
			},
			{
				Description: "Restore an archive sealed to an age recipient",
				Command:     "krystal decompress -i ~/.config/krystal/identity.txt -o data.bin data.bin.krys",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("decompress", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: krystal decompress [flags] <archive>")
			}
			cfg, logger, err := params.session("decompress")
			if err != nil {
				return err
			}
			return runDecompress(ctx, cfg, logger, &params, args[0])
		},
	}
}

// readArchiveHeader reads the header of the archive at path.
func readArchiveHeader(path string) (*archive.Header, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()
	header, size, err := archive.ReadHeader(file)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return header, size, nil
}

// decompressKey recovers the master key of a sealed archive. The caller
// closes it.
func decompressKey(cfg *config.Config, params *decompressParams, header *archive.Header) (*secret.Buffer, error) {
	if len(header.WrappedKey) > 0 {
		path := params.Identity
		if path == "" {
			path = cfg.Paths.Identity
		}
		if path == "" {
			return nil, fmt.Errorf("%w: archive is sealed to age recipients; pass --identity or set paths.identity", codecs.ErrKeyRequired)
		}
		identity, err := sealed.ReadIdentityFile(path)
		if err != nil {
			return nil, err
		}
		defer identity.Close()
		return sealed.UnwrapKey(header.WrappedKey, identity)
	}

	path := params.KeyFile
	if path == "" {
		path = cfg.Paths.KeyFile
	}
	if path == "" {
		return nil, fmt.Errorf("%w: archive is sealed; pass --key-file or set paths.key_file", codecs.ErrKeyRequired)
	}
	return secret.ReadKeyFile(path)
}

func runDecompress(ctx context.Context, cfg *config.Config, logger *slog.Logger, params *decompressParams, input string) error {
	header, headerSize, err := readArchiveHeader(input)
	if err != nil {
		return err
	}
	info, err := os.Stat(input)
	if err != nil {
		return err
	}
	payloadSize := info.Size() - int64(headerSize)

	output := params.Output
	if output == "" {
		output, err = restoredPath(input)
		if err != nil {
			return err
		}
	}
	if err := params.checkOutput(input, output); err != nil {
		return err
	}
	logger = logger.With("input", input, "output", output)

	var env codecs.Env
	if header.Sealed() {
		key, err := decompressKey(cfg, params, header)
		if err != nil {
			return err
		}
		defer key.Close()
		env.Key = key
	}

	source := archive.NewSource(dataflow.NewFileSource(input, nil))
	sink := archive.NewVerifyingSink(dataflow.NewFileSink(output, nil), header.Digest, header.OriginalSize)

	if header.OriginalSize == 0 {
		if err := restoreEmpty(source, sink); err != nil {
			removePartial(output, logger)
			return err
		}
		logger.Info("archive restored", "original_size", 0)
		return nil
	}

	stages, err := codecs.Build(header.Stages, codecs.Decode, env)
	if err != nil {
		return err
	}
	report, err := params.execute(ctx, logger, "decompress "+input, payloadSize, dataflow.Config{
		Source:           source,
		Sink:             sink,
		Stages:           stages,
		ChunkSize:        header.ChunkSize,
		InputType:        codecs.OutputType(header.Stages),
		ProgressInterval: cfg.ProgressInterval(),
	})
	if err != nil {
		removePartial(output, logger)
		return err
	}

	logger.Info("archive restored",
		"stages", describeStages(header.Stages),
		"chunks", report.Chunks,
		"payload_size", report.BytesRead,
		"original_size", report.BytesWritten,
		"elapsed", report.Elapsed,
	)
	return nil
}

// restoreEmpty handles an archive of an empty file: the payload must be
// empty and the output is created empty, digest-checked on close.
func restoreEmpty(source *archive.Source, sink *archive.VerifyingSink) error {
	if err := source.Open(); err != nil {
		return err
	}
	payload := source.Size()
	if err := source.Close(); err != nil {
		return err
	}
	if payload != 0 {
		return fmt.Errorf("%w: archive of an empty file has a %d-byte payload", dataflow.ErrCorrupt, payload)
	}
	if err := sink.Open(); err != nil {
		return err
	}
	return sink.Close()
}
