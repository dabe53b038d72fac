// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dylanclarke890/krystal/lib/clock"
)

const (
	// DefaultChunkSize is used when Config.ChunkSize is not positive.
	DefaultChunkSize = 64 * 1024

	// DefaultProgressInterval is used when Config.ProgressInterval is
	// zero.
	DefaultProgressInterval = 5 * time.Second
)

// Messages of the records a pipeline logs as it runs. Handlers that
// track progress match on them.
const (
	// LogChunkProcessed is logged at debug level after every chunk. Its
	// bytes_in attribute is the number of source bytes in the chunk.
	LogChunkProcessed = "chunk processed"

	// LogProgress is logged at info level at most once per
	// ProgressInterval, with bytes_processed and total_bytes.
	LogProgress = "pipeline progress"
)

// Config describes a pipeline.
type Config struct {
	// Source supplies the input bytes. Required.
	Source Source

	// Sink receives the final stage's output. Required.
	Sink Sink

	// Stages run in order on every chunk. An empty chain copies the
	// source to the sink.
	Stages []Stage

	// ChunkSize is the maximum number of source bytes read per chunk.
	// Zero or negative selects DefaultChunkSize.
	ChunkSize int

	// InputType is the format of the source bytes. Empty means Bytes.
	// Decoding pipelines set it to the format their first stage expects.
	InputType ElementType

	// Logger receives per-chunk debug records and periodic progress. Nil
	// discards.
	Logger *slog.Logger

	// Clock times the run. Nil selects the real clock.
	Clock clock.Clock

	// ProgressInterval is the minimum time between progress records.
	// Zero selects DefaultProgressInterval; negative disables progress
	// logging.
	ProgressInterval time.Duration
}

// Report summarizes a run.
type Report struct {
	// Chunks is the number of chunks read from the source.
	Chunks int

	// BytesRead is the number of bytes read from the source.
	BytesRead int64

	// BytesWritten is the number of bytes written to the sink.
	BytesWritten int64

	// Elapsed is the wall time of the run as measured by Config.Clock.
	Elapsed time.Duration
}

// Pipeline moves a Source through a chain of Stages into a Sink.
// A Pipeline may be executed more than once, but not concurrently.
type Pipeline struct {
	source     Source
	sink       Sink
	stages     []Stage
	chunkSize  int
	outputType ElementType
	logger     *slog.Logger
	clock      clock.Clock
	progress   time.Duration

	// buffers[i] is the reusable output buffer handed to stages[i].
	buffers [][]byte
}

// New validates config and returns a pipeline ready to execute. Every
// stage's input type must accept the output type of the stage before it.
func New(config Config) (*Pipeline, error) {
	if config.Source == nil {
		return nil, ErrNilSource
	}
	if config.Sink == nil {
		return nil, ErrNilSink
	}

	upstream := config.InputType
	if upstream == "" {
		upstream = Bytes
	}
	for index, stage := range config.Stages {
		if stage == nil {
			return nil, fmt.Errorf("%w at index %d", ErrNilStage, index)
		}
		if !Accepts(stage.InputType(), upstream) {
			return nil, &TypeMismatchError{
				Index: index,
				Stage: stage.Name(),
				Want:  stage.InputType(),
				Got:   upstream,
			}
		}
		upstream = stage.OutputType()
	}

	pipeline := &Pipeline{
		source:     config.Source,
		sink:       config.Sink,
		stages:     append([]Stage(nil), config.Stages...),
		chunkSize:  config.ChunkSize,
		outputType: upstream,
		logger:     config.Logger,
		clock:      config.Clock,
		progress:   config.ProgressInterval,
		buffers:    make([][]byte, len(config.Stages)),
	}
	if pipeline.chunkSize <= 0 {
		pipeline.chunkSize = DefaultChunkSize
	}
	if pipeline.logger == nil {
		pipeline.logger = slog.New(slog.DiscardHandler)
	}
	if pipeline.clock == nil {
		pipeline.clock = clock.Real()
	}
	if pipeline.progress == 0 {
		pipeline.progress = DefaultProgressInterval
	}
	return pipeline, nil
}

// OutputType returns the format of the bytes written to the sink.
func (p *Pipeline) OutputType() ElementType {
	return p.outputType
}

// ChunkSize returns the effective chunk size.
func (p *Pipeline) ChunkSize() int {
	return p.chunkSize
}

// Execute runs the pipeline to completion.
//
// The source is opened before the sink; both are closed (sink first)
// whatever the outcome. Every stage is set up before the first chunk and
// torn down after the last one, including when a chunk fails. When the
// run itself fails, teardown and close errors are logged at debug level
// and the run error is returned. The returned Report is non-nil once the
// source and sink are open, and reflects the work done up to a failure.
func (p *Pipeline) Execute(ctx context.Context) (*Report, error) {
	start := p.clock.Now()

	if err := p.source.Open(); err != nil {
		return nil, fmt.Errorf("dataflow: opening source: %w", err)
	}
	if err := p.sink.Open(); err != nil {
		if closeErr := p.source.Close(); closeErr != nil {
			p.logger.Debug("closing source after sink open failure", "error", closeErr)
		}
		return nil, fmt.Errorf("dataflow: opening sink: %w", err)
	}

	report := &Report{}
	runErr := p.run(ctx, report, start)

	var closeErrs []error
	if err := p.sink.Close(); err != nil {
		closeErrs = append(closeErrs, fmt.Errorf("dataflow: closing sink: %w", err))
	}
	if err := p.source.Close(); err != nil {
		closeErrs = append(closeErrs, fmt.Errorf("dataflow: closing source: %w", err))
	}
	closeErr := errors.Join(closeErrs...)

	report.Elapsed = clock.Since(p.clock, start)

	if runErr != nil {
		if closeErr != nil {
			p.logger.Debug("close failed after pipeline error", "error", closeErr)
		}
		return report, runErr
	}
	if closeErr != nil {
		return report, closeErr
	}

	p.logger.Debug("pipeline complete",
		"chunks", report.Chunks,
		"bytes_read", report.BytesRead,
		"bytes_written", report.BytesWritten,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// run sets up the stages, drives the chunk loop and tears the stages
// down again.
func (p *Pipeline) run(ctx context.Context, report *Report, start time.Time) error {
	total := p.source.Size()
	if total == 0 {
		return ErrEmptySource
	}
	if total < 0 {
		return fmt.Errorf("dataflow: source reported negative size %d", total)
	}

	for index, stage := range p.stages {
		if err := stage.Setup(); err != nil {
			p.teardown(p.stages[:index], true)
			return fmt.Errorf("dataflow: setting up stage %d (%s): %w", index, stage.Name(), err)
		}
	}

	loopErr := p.loop(ctx, total, report, start)
	teardownErr := p.teardown(p.stages, loopErr != nil)
	if loopErr != nil {
		return loopErr
	}
	return teardownErr
}

func (p *Pipeline) loop(ctx context.Context, total int64, report *Report, start time.Time) error {
	chunk := ChunkContext{
		IsFirstChunk:        true,
		TotalBytesToProcess: total,
	}
	lastProgress := start

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("dataflow: stopped before chunk %d: %w", index, err)
		}

		data, err := p.source.ReadBytes(p.chunkSize)
		if err != nil {
			return fmt.Errorf("dataflow: reading chunk %d: %w", index, err)
		}
		if len(data) == 0 {
			if p.source.EOS() {
				break
			}
			return fmt.Errorf("dataflow: chunk %d: source returned no data before end of stream: %w",
				index, ErrSourceShort)
		}
		if chunk.BytesProcessed+int64(len(data)) > total {
			return fmt.Errorf("dataflow: chunk %d: %d bytes read past reported size %d: %w",
				index, chunk.BytesProcessed+int64(len(data))-total, total, ErrSourceOverrun)
		}
		chunk.IsLastChunk = chunk.BytesProcessed+int64(len(data)) == total

		output := data
		for stageIndex, stage := range p.stages {
			chunk.Input = output
			chunk.Output = p.buffers[stageIndex][:0]
			if err := stage.ProcessChunk(&chunk); err != nil {
				chunk.Input, chunk.Output = nil, nil
				return fmt.Errorf("dataflow: stage %d (%s) on chunk %d: %w",
					stageIndex, stage.Name(), index, err)
			}
			p.buffers[stageIndex] = chunk.Output
			output = chunk.Output
		}
		chunk.Input, chunk.Output = nil, nil

		if len(output) > 0 {
			if err := p.sink.WriteBytes(output); err != nil {
				return fmt.Errorf("dataflow: writing chunk %d: %w", index, err)
			}
		}

		report.Chunks++
		report.BytesRead += int64(len(data))
		report.BytesWritten += int64(len(output))
		chunk.BytesProcessed += int64(len(data))
		chunk.IsFirstChunk = false

		p.logger.Debug(LogChunkProcessed,
			"chunk", index,
			"bytes_in", len(data),
			"bytes_out", len(output),
			"last", chunk.IsLastChunk,
		)
		if p.progress > 0 {
			now := p.clock.Now()
			if now.Sub(lastProgress) >= p.progress {
				p.logger.Info(LogProgress,
					"bytes_processed", chunk.BytesProcessed,
					"total_bytes", total,
					"bytes_written", report.BytesWritten,
				)
				lastProgress = now
			}
		}

		if chunk.IsLastChunk {
			break
		}
	}

	if chunk.BytesProcessed < total {
		return fmt.Errorf("dataflow: source ended after %d of %d bytes: %w",
			chunk.BytesProcessed, total, ErrSourceShort)
	}
	if !p.source.EOS() {
		return fmt.Errorf("dataflow: source has data beyond its reported size %d: %w",
			total, ErrSourceOverrun)
	}
	return nil
}

// teardown runs Teardown on every stage in order. After a failed run the
// errors are only logged; otherwise they are joined and returned.
func (p *Pipeline) teardown(stages []Stage, failed bool) error {
	var errs []error
	for index, stage := range stages {
		err := stage.Teardown()
		if err == nil {
			continue
		}
		if failed {
			p.logger.Debug("stage teardown after failure",
				"stage", stage.Name(),
				"index", index,
				"error", err,
			)
			continue
		}
		errs = append(errs, fmt.Errorf("dataflow: tearing down stage %d (%s): %w", index, stage.Name(), err))
	}
	return errors.Join(errs...)
}
