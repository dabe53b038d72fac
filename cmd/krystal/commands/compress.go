// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dylanclarke890/krystal/cmd/krystal/cli"
	"github.com/dylanclarke890/krystal/lib/archive"
	"github.com/dylanclarke890/krystal/lib/codecs"
	"github.com/dylanclarke890/krystal/lib/config"
	"github.com/dylanclarke890/krystal/lib/dataflow"
	"github.com/dylanclarke890/krystal/lib/pipelinedef"
	"github.com/dylanclarke890/krystal/lib/secret"
	"github.com/dylanclarke890/krystal/lib/sealed"
)

type compressParams struct {
	Globals
	OutputFlags

	Stages     string   `flag:"stages" desc:"comma-separated codec chain, e.g. rle,huffman"`
	Pipeline   string   `flag:"pipeline,p" desc:"pipeline definition file, or a name in paths.pipelines"`
	Profile    string   `flag:"profile" desc:"configured profile (default: pipeline.default_profile)"`
	ChunkSize  int      `flag:"chunk-size" desc:"bytes read per chunk (default: from pipeline, profile or config)"`
	KeyFile    string   `flag:"key-file" desc:"master key for the seal codec (default: paths.key_file)"`
	Recipients []string `flag:"recipient,r" desc:"age recipient (age1...) to wrap a fresh master key for; repeatable"`
}

func compressCommand() *cli.Command {
	var params compressParams
	return &cli.Command{
		Name:    "compress",
		Summary: "Compress a file into a krystal archive",
		Description: `Run a file through a codec chain and write a self-describing archive.

The chain comes from exactly one of --stages, --pipeline or --profile;
with none of them the configured default profile is used. The archive
header records the chain with every option resolved, the chunk size,
and the size and BLAKE3 digest of the input, so decompress needs no
flags beyond the key material for sealed archives.

Sealing: a chain ending in the seal codec encrypts the payload. The
master key comes from --key-file (or paths.key_file), or is generated
fresh and wrapped for each --recipient with age. Giving --key-file or
--recipient for a chain without seal appends a seal stage.`,
		Usage: "krystal compress [flags] <input>",
		Examples: []cli.Example{
			{
				Description: "Compress with the default profile (zstd)",
				Command:     "krystal compress data.bin",
			},
			{
				Description: "Use the classic LZ77 + Huffman chain with 1 MiB chunks",
				Command:     "krystal compress --stages lz77,huffman --chunk-size 1048576 -o data.krys data.bin",
			},
			{
				Description: "Compress and seal for an age recipient",
				Command:     "krystal compress --profile fast -r age1... data.bin",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("compress", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: krystal compress [flags] <input>")
			}
			cfg, logger, err := params.session("compress")
			if err != nil {
				return err
			}
			return runCompress(ctx, cfg, logger, &params, args[0])
		},
	}
}

// compressPlan is the resolved chain a compress run uses.
type compressPlan struct {
	name      string
	chunkSize int
	stages    []codecs.Spec
}

// planCompress picks the chain from the flags and configuration.
func planCompress(cfg *config.Config, params *compressParams) (*compressPlan, error) {
	chosen := 0
	for _, value := range []string{params.Stages, params.Pipeline, params.Profile} {
		if value != "" {
			chosen++
		}
	}
	if chosen > 1 {
		return nil, errors.New("--stages, --pipeline and --profile are mutually exclusive")
	}

	var plan compressPlan
	switch {
	case params.Stages != "":
		stages, err := codecs.ParseNames(params.Stages)
		if err != nil {
			return nil, fmt.Errorf("--stages: %w", err)
		}
		plan.stages = stages
		plan.chunkSize = cfg.Pipeline.ChunkSize

	case params.Pipeline != "":
		definition, err := pipelinedef.ReadFile(cfg.PipelinePath(params.Pipeline))
		if err != nil {
			return nil, err
		}
		if issues := pipelinedef.Validate(definition); len(issues) > 0 {
			return nil, fmt.Errorf("pipeline %s: %s", definition.Name, strings.Join(issues, "; "))
		}
		plan.name = definition.Name
		plan.stages = definition.Stages
		plan.chunkSize = definition.ChunkSize
		if plan.chunkSize == 0 {
			plan.chunkSize = cfg.Pipeline.ChunkSize
		}

	default:
		name := params.Profile
		if name == "" {
			name = cfg.Pipeline.DefaultProfile
		}
		profile, err := cfg.Profile(name)
		if err != nil {
			return nil, err
		}
		plan.name = name
		plan.stages = profile.Stages
		plan.chunkSize = cfg.ChunkSizeFor(profile)
	}

	if params.ChunkSize != 0 {
		if params.ChunkSize < 0 || params.ChunkSize > config.MaxChunkSize {
			return nil, fmt.Errorf("--chunk-size %d outside [1, %d]", params.ChunkSize, config.MaxChunkSize)
		}
		plan.chunkSize = params.ChunkSize
	}

	if (params.KeyFile != "" || len(params.Recipients) > 0) && !codecs.Keyed(plan.stages) {
		plan.stages = append(plan.stages[:len(plan.stages):len(plan.stages)], codecs.Spec{Codec: "seal"})
	}

	resolved, err := codecs.ResolveAll(plan.stages)
	if err != nil {
		return nil, err
	}
	plan.stages = resolved
	return &plan, nil
}

// compressKey returns the master key for a keyed chain and, when
// recipients were given, the key wrapped for them. The caller closes
// the key.
func compressKey(cfg *config.Config, params *compressParams) (*secret.Buffer, []byte, error) {
	if len(params.Recipients) > 0 {
		if params.KeyFile != "" {
			return nil, nil, errors.New("--key-file and --recipient are mutually exclusive")
		}
		key, err := secret.GenerateKey()
		if err != nil {
			return nil, nil, err
		}
		wrapped, err := sealed.WrapKey(key, params.Recipients)
		if err != nil {
			key.Close()
			return nil, nil, err
		}
		return key, wrapped, nil
	}

	path := params.KeyFile
	if path == "" {
		path = cfg.Paths.KeyFile
	}
	if path == "" {
		return nil, nil, fmt.Errorf("%w: pass --key-file or --recipient, or set paths.key_file", codecs.ErrKeyRequired)
	}
	key, err := secret.ReadKeyFile(path)
	if err != nil {
		return nil, nil, err
	}
	return key, nil, nil
}

func runCompress(ctx context.Context, cfg *config.Config, logger *slog.Logger, params *compressParams, input string) error {
	plan, err := planCompress(cfg, params)
	if err != nil {
		return err
	}

	output := params.Output
	if output == "" {
		output = input + ArchiveExtension
	}
	if err := params.checkOutput(input, output); err != nil {
		return err
	}

	var env codecs.Env
	var wrappedKey []byte
	if codecs.Keyed(plan.stages) {
		key, wrapped, err := compressKey(cfg, params)
		if err != nil {
			return err
		}
		defer key.Close()
		env.Key = key
		wrappedKey = wrapped
	}

	logger = logger.With("input", input, "output", output)

	digest, size, err := archive.DigestFile(input)
	if err != nil {
		return err
	}
	header := &archive.Header{
		Name:         plan.name,
		ChunkSize:    plan.chunkSize,
		OriginalSize: size,
		Digest:       digest,
		Stages:       plan.stages,
		WrappedKey:   wrappedKey,
	}
	sink, err := archive.NewSink(dataflow.NewFileSink(output, nil), header)
	if err != nil {
		return err
	}

	// An empty input has no payload: the header alone describes it.
	if size == 0 {
		if err := sink.Open(); err != nil {
			return err
		}
		if err := sink.Close(); err != nil {
			removePartial(output, logger)
			return err
		}
		logger.Info("archive written", "original_size", 0, "stages", describeStages(plan.stages))
		return nil
	}

	stages, err := codecs.Build(plan.stages, codecs.Encode, env)
	if err != nil {
		return err
	}
	report, err := params.execute(ctx, logger, "compress "+input, size, dataflow.Config{
		Source:           dataflow.NewFileSource(input, nil),
		Sink:             sink,
		Stages:           stages,
		ChunkSize:        plan.chunkSize,
		ProgressInterval: cfg.ProgressInterval(),
	})
	if err == nil && report.BytesRead != size {
		err = fmt.Errorf("%s changed while compressing: digested %d bytes, compressed %d", input, size, report.BytesRead)
	}
	if err != nil {
		removePartial(output, logger)
		return err
	}

	logger.Info("archive written",
		"stages", describeStages(plan.stages),
		"chunks", report.Chunks,
		"original_size", size,
		"payload_size", report.BytesWritten,
		"ratio", ratio(report.BytesWritten, size),
		"sealed", env.Key != nil,
		"elapsed", report.Elapsed,
	)
	return nil
}

// describeStages renders a chain the way logs and inspect show it.
func describeStages(specs []codecs.Spec) string {
	parts := make([]string, len(specs))
	for index, spec := range specs {
		parts[index] = spec.String()
	}
	return strings.Join(parts, " | ")
}

// ratio returns encoded/original rounded to three places, or 0 when
// original is empty.
func ratio(encoded, original int64) float64 {
	if original == 0 {
		return 0
	}
	return float64(int64(float64(encoded)/float64(original)*1000+0.5)) / 1000
}
