// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package dataflow

import (
	"errors"
	"fmt"
)

// Apply runs stages over an in-memory stream presented as the given
// chunks and returns the concatenated output. It follows the same
// lifecycle as [Pipeline.Execute] (Setup, one ProcessChunk per chunk
// with the same flags and counters, Teardown) without a source or sink.
//
// Empty chunks are skipped. With no non-empty chunks the stages are set
// up and torn down without processing anything, and the result is empty.
func Apply(stages []Stage, chunks ...[]byte) ([]byte, error) {
	var total int64
	for _, data := range chunks {
		total += int64(len(data))
	}

	for index, stage := range stages {
		if stage == nil {
			return nil, fmt.Errorf("%w at index %d", ErrNilStage, index)
		}
		if err := stage.Setup(); err != nil {
			return nil, fmt.Errorf("setting up %s: %w", stage.Name(), err)
		}
	}

	var result []byte
	chunk := ChunkContext{IsFirstChunk: true, TotalBytesToProcess: total}
	for _, data := range chunks {
		if len(data) == 0 {
			continue
		}
		chunk.IsLastChunk = chunk.BytesProcessed+int64(len(data)) == total
		output := data
		for _, stage := range stages {
			chunk.Input = output
			chunk.Output = nil
			if err := stage.ProcessChunk(&chunk); err != nil {
				abandon(stages)
				return nil, fmt.Errorf("%s: %w", stage.Name(), err)
			}
			output = chunk.Output
		}
		result = append(result, output...)
		chunk.BytesProcessed += int64(len(data))
		chunk.IsFirstChunk = false
	}

	var errs []error
	for _, stage := range stages {
		if err := stage.Teardown(); err != nil {
			errs = append(errs, fmt.Errorf("tearing down %s: %w", stage.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return result, nil
}

// abandon tears down stages after a failure, discarding their errors.
func abandon(stages []Stage) {
	for _, stage := range stages {
		_ = stage.Teardown()
	}
}
