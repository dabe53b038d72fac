// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dylanclarke890/krystal/cmd/krystal/cli"
	"github.com/dylanclarke890/krystal/lib/config"
)

// ArchiveExtension is appended by compress and stripped by decompress
// when no output path is given.
const ArchiveExtension = ".krys"

// Globals are the flags shared by every command that reads
// configuration.
type Globals struct {
	Config     string `flag:"config" desc:"configuration file (default: $KRYSTAL_CONFIG, else built-in defaults)"`
	Verbose    bool   `flag:"verbose,v" desc:"log at debug level"`
	NoProgress bool   `flag:"no-progress" desc:"never draw a progress bar, even on a terminal"`

	level    slog.Level
	progress bool
}

// session loads the configuration and builds the command's logger. It
// also decides whether pipelines draw a progress bar: only on an
// interactive stderr, and never for JSON logs.
func (g *Globals) session(command string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(g.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.LogLevel()
	if g.Verbose {
		level = slog.LevelDebug
	}
	logger, err := cli.NewCommandLogger(level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	g.level = level
	g.progress = !g.NoProgress && cfg.Logging.Format != cli.FormatJSON && term.IsTerminal(int(os.Stderr.Fd()))
	return cfg, logger.With("command", command), nil
}

// OutputFlags choose where a command writes its result.
type OutputFlags struct {
	Output string `flag:"output,o" desc:"output path"`
	Force  bool   `flag:"force,f" desc:"overwrite an existing output file"`
}

// checkOutput fails if output names the same file as input, even with
// --force, or if output exists and --force was not given.
func (o *OutputFlags) checkOutput(input, output string) error {
	outputInfo, err := os.Stat(output)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if outputInfo != nil {
		inputInfo, err := os.Stat(input)
		if err != nil {
			return err
		}
		if os.SameFile(inputInfo, outputInfo) {
			return fmt.Errorf("output %s is the input file", output)
		}
	}
	if o.Force {
		return nil
	}
	_, err = os.Lstat(output)
	if err == nil {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// removePartial deletes an output file left behind by a failed run.
func removePartial(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("removing partial output", "path", path, "error", err)
	}
}

// restoredPath returns the default decompress output for an archive.
func restoredPath(archivePath string) (string, error) {
	restored, found := strings.CutSuffix(archivePath, ArchiveExtension)
	if !found || restored == "" {
		return "", fmt.Errorf("cannot derive an output name from %s (no %s suffix); use --output", archivePath, ArchiveExtension)
	}
	return restored, nil
}
