// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/dylanclarke890/krystal/lib/dataflow"
	"github.com/dylanclarke890/krystal/lib/tui"
)

// execute builds and runs a pipeline from config. On an interactive
// stderr the run is drawn as a progress bar over total source bytes and
// the pipeline logs into the display; otherwise it logs to logger.
func (g *Globals) execute(ctx context.Context, logger *slog.Logger, title string, total int64, config dataflow.Config) (*dataflow.Report, error) {
	if !g.progress {
		config.Logger = logger
		pipeline, err := dataflow.New(config)
		if err != nil {
			return nil, err
		}
		return pipeline.Execute(ctx)
	}

	var report *dataflow.Report
	err := tui.RunProgress(ctx, os.Stderr, tui.ProgressOptions{
		Title: title,
		Total: total,
		Level: g.level,
	}, func(ctx context.Context, display *slog.Logger) error {
		config.Logger = display
		pipeline, err := dataflow.New(config)
		if err != nil {
			return err
		}
		report, err = pipeline.Execute(ctx)
		return err
	})
	return report, err
}
