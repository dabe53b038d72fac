// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package lz77

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultWindowSize is the default look-back window in bytes.
	DefaultWindowSize = 1024

	// DefaultMaxMatch is the default longest match in bytes.
	DefaultMaxMatch = 255

	// maxField is the largest offset or length a token can carry.
	maxField = math.MaxUint16
)

// Options configures the window and match limits. Zero fields select
// the defaults. The decoder must use the same WindowSize as the encoder
// (or a larger one).
type Options struct {
	WindowSize int
	MaxMatch   int
}

// withDefaults fills zero fields and validates the result.
func (o Options) withDefaults() (Options, error) {
	if o.WindowSize == 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.MaxMatch == 0 {
		o.MaxMatch = DefaultMaxMatch
	}
	var errs []error
	if o.WindowSize < 1 || o.WindowSize > maxField {
		errs = append(errs, fmt.Errorf("window size %d outside [1, %d]", o.WindowSize, maxField))
	}
	if o.MaxMatch < 1 || o.MaxMatch > maxField {
		errs = append(errs, fmt.Errorf("max match %d outside [1, %d]", o.MaxMatch, maxField))
	}
	if err := errors.Join(errs...); err != nil {
		return o, fmt.Errorf("lz77: %w", err)
	}
	return o, nil
}
